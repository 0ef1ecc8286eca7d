// Package shade derives the shade availability index from per-time
// building and tree shade percentages.
package shade

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
)

// Defaults for index derivation.
const (
	DefaultDate      = "20240215"
	DefaultThreshold = 50.0
)

var (
	// DefaultTimes are the hourly daylight samples 08:00 through 16:00.
	DefaultTimes = []string{"0800", "0900", "1000", "1100", "1200", "1300", "1400", "1500", "1600"}
	// DefaultKeyTimes are the times exported as combined columns.
	DefaultKeyTimes = []string{"1000", "1300", "1530", "1800"}
)

// Options configures derivation.
type Options struct {
	// Field receives the derived index.
	Field     string
	Date      string
	Times     []string
	KeyTimes  []string
	// Threshold is the minimum combined shade percentage that counts as
	// shaded. Nil means DefaultThreshold; zero is a valid threshold.
	Threshold *float64
}

func (o Options) withDefaults() Options {
	if o.Date == "" {
		o.Date = DefaultDate
	}
	if len(o.Times) == 0 {
		o.Times = DefaultTimes
	}
	if o.KeyTimes == nil {
		o.KeyTimes = DefaultKeyTimes
	}
	if o.Threshold == nil {
		o.Threshold = model.Float(DefaultThreshold)
	}
	return o
}

// Stats counts derivation results.
type Stats struct {
	Derived   int `json:"derived" yaml:"derived"`
	Undefined int `json:"undefined" yaml:"undefined"`
}

// BuildingColumn names the building shade column for a date and time.
func BuildingColumn(date, t string) string {
	return fmt.Sprintf("%s_building_shade_percent_at_%s", date, t)
}

// TreeColumn names the tree shade column for a date and time.
func TreeColumn(date, t string) string {
	return fmt.Sprintf("%s_tree_shade_percent_at_%s", date, t)
}

// CombinedColumn names the combined shade column for a key time.
func CombinedColumn(t string) string {
	return "shade_percent_at_" + t
}

// Combined returns the larger of the building and tree shade at time t,
// or only the one that is present.
func Combined(r model.Record, date, t string) (float64, bool) {
	b, okB := r.Float(BuildingColumn(date, t))
	tr, okT := r.Float(TreeColumn(date, t))
	switch {
	case okB && okT:
		return max(b, tr), true
	case okB:
		return b, true
	case okT:
		return tr, true
	default:
		return 0, false
	}
}

// Index returns the fraction of sampled times whose combined shade is at
// least the threshold. It is undefined when no time has data.
func Index(r model.Record, opts Options) (float64, bool) {
	opts = opts.withDefaults()
	threshold := *opts.Threshold
	var n, above int
	for _, t := range opts.Times {
		v, ok := Combined(r, opts.Date, t)
		if !ok {
			continue
		}
		n++
		if v >= threshold {
			above++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(above) / float64(n), true
}

// Derive writes the index field and combined key-time columns into each
// feature's properties. Undefined indices are stored as nil.
func Derive(features []model.Feature, opts Options) (Stats, error) {
	if opts.Field == "" {
		return Stats{}, eris.New("shade: index field is required")
	}
	opts = opts.withDefaults()

	var stats Stats
	for i := range features {
		f := &features[i]
		if f.Properties == nil {
			f.Properties = make(map[string]any)
		}
		r := model.Record{Properties: f.Properties}

		if v, ok := Index(r, opts); ok {
			f.Properties[opts.Field] = v
			stats.Derived++
		} else {
			f.Properties[opts.Field] = nil
			stats.Undefined++
		}

		for _, t := range opts.KeyTimes {
			if v, ok := Combined(r, opts.Date, t); ok {
				f.Properties[CombinedColumn(t)] = v
			}
		}
	}

	zap.L().With(zap.String("component", "shade")).Info("derived shade index",
		zap.String("field", opts.Field),
		zap.Int("derived", stats.Derived),
		zap.Int("undefined", stats.Undefined),
	)
	return stats, nil
}
