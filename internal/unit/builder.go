// Package unit builds the administrative overview units that features
// are aggregated into.
package unit

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/planar"
)

// DefaultPlaceholder names units whose boundary records carry no name.
const DefaultPlaceholder = "Unknown"

// ErrMissingAttribute is returned when the name field is absent from every
// boundary record.
var ErrMissingAttribute = eris.New("unit: name field missing from boundary source")

// Options configures how boundary records are named and tagged.
type Options struct {
	NameField     string
	FallbackField string
	AdminLevel    string
	Placeholder   string
}

// BuildStats reports what happened to the raw boundaries.
type BuildStats struct {
	Boundaries int
	Groups     int
	Dropped    int
}

// Name resolves the display name of a boundary record: the name field,
// then the fallback field, then the placeholder.
func (o Options) Name(r model.Record) string {
	if name := r.String(o.NameField); name != "" {
		return name
	}
	if o.FallbackField != "" {
		if name := r.String(o.FallbackField); name != "" {
			return name
		}
	}
	if p := strings.TrimSpace(o.Placeholder); p != "" {
		return p
	}
	return DefaultPlaceholder
}

// Build dissolves boundaries by display name into units. Groups are kept
// in first-seen order so ids are stable for a given input order. Groups
// whose dissolve is empty are dropped.
func Build(boundaries []model.Boundary, opts Options, geo planar.Adapter) ([]*model.Unit, BuildStats, error) {
	stats := BuildStats{Boundaries: len(boundaries)}
	if opts.NameField == "" {
		return nil, stats, eris.New("unit: name field is required")
	}
	if len(boundaries) > 0 && !anyHas(boundaries, opts.NameField) {
		return nil, stats, eris.Wrapf(ErrMissingAttribute, "field %q", opts.NameField)
	}

	var order []string
	groups := make(map[string][]geom.T)
	for _, b := range boundaries {
		name := opts.Name(b)
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], b.Geometry)
	}
	stats.Groups = len(order)

	names := make([]string, 0, len(order))
	dissolved := make([]geom.T, 0, len(order))
	for _, name := range order {
		g := geo.Union(groups[name])
		if planar.IsEmpty(g) {
			stats.Dropped++
			zap.L().Debug("unit: dropping unit with empty geometry", zap.String("unit_name", name))
			continue
		}
		names = append(names, name)
		dissolved = append(dissolved, g)
	}

	ids := UniqueIDs(names)
	units := make([]*model.Unit, len(names))
	for i, name := range names {
		units[i] = &model.Unit{
			ID:         ids[i],
			Name:       name,
			AdminLevel: opts.AdminLevel,
			Geometry:   dissolved[i],
		}
	}
	return units, stats, nil
}

func anyHas(records []model.Record, field string) bool {
	for _, r := range records {
		if r.Has(field) {
			return true
		}
	}
	return false
}
