// Package selection decides, per unit, whether the fixed selection buffer
// around the reference geometry should widen to the maximum buffer.
package selection

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/stats"
)

// p90Rank is the quantile used for the indicator distance.
const p90Rank = 0.9

// Params are the adaptive selection thresholds. Distances share the CRS
// unit of the feature distances (meters).
type Params struct {
	Base            float64
	Max             float64
	Indicator       float64
	GrowthThreshold float64
	P90Threshold    float64
	Forced          []string
}

// Outcome is the expanded unit set plus the full diagnostic table.
type Outcome struct {
	Expanded  map[string]bool
	Decisions []model.Decision
}

// Names returns the expanded unit names in ascending order.
func (o Outcome) Names() []string {
	names := make([]string, 0, len(o.Expanded))
	for n := range o.Expanded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Diagnose builds the per-unit table over assigned features within the
// indicator band. Units without such features do not appear. Rows are
// sorted by unit name.
func Diagnose(features []model.Feature, p Params) []model.Decision {
	byUnit := make(map[string][]float64)
	for i := range features {
		f := &features[i]
		if !f.Assigned() || f.Distance > p.Indicator {
			continue
		}
		byUnit[f.UnitName] = append(byUnit[f.UnitName], f.Distance)
	}

	names := make([]string, 0, len(byUnit))
	for n := range byUnit {
		names = append(names, n)
	}
	sort.Strings(names)

	decisions := make([]model.Decision, 0, len(names))
	for _, name := range names {
		dists := byUnit[name]
		sort.Float64s(dists)

		var base, wide int
		for _, d := range dists {
			if d <= p.Base {
				base++
			}
			if d <= p.Max {
				wide++
			}
		}
		p90, _ := stats.Quantile(dists, p90Rank)
		decisions = append(decisions, model.Decision{
			UnitName:  name,
			CountBase: base,
			CountMax:  wide,
			Growth:    float64(wide-base) / float64(max(base, 1)),
			P90:       p90,
		})
	}
	return decisions
}

// Expands reports whether a diagnostic row passes the growth and p90
// tests. CountMax > CountBase keeps a zero-base unit with nothing beyond
// the base buffer from expanding.
func Expands(d model.Decision, p Params) bool {
	return d.Growth >= p.GrowthThreshold && d.P90 >= p.P90Threshold && d.CountMax > d.CountBase
}

// Choose runs the adaptive decision. Forced unit names are added when at
// least one assigned feature carries them and ignored otherwise.
func Choose(features []model.Feature, p Params) Outcome {
	log := zap.L().With(zap.String("component", "selection"))

	out := Outcome{Expanded: make(map[string]bool), Decisions: Diagnose(features, p)}
	for i := range out.Decisions {
		d := &out.Decisions[i]
		if Expands(*d, p) {
			d.Expanded = true
			out.Expanded[d.UnitName] = true
		}
	}

	if len(p.Forced) > 0 {
		known := make(map[string]bool)
		for i := range features {
			if features[i].Assigned() {
				known[features[i].UnitName] = true
			}
		}
		for _, name := range p.Forced {
			if !known[name] {
				log.Debug("ignoring unknown forced unit", zap.String("unit_name", name))
				continue
			}
			out.Expanded[name] = true
		}
		for i := range out.Decisions {
			if out.Expanded[out.Decisions[i].UnitName] {
				out.Decisions[i].Expanded = true
			}
		}
	}

	log.Info("adaptive selection decided",
		zap.Int("diagnosed_units", len(out.Decisions)),
		zap.Int("expanded_units", len(out.Expanded)),
	)
	return out
}

// Select returns the indices of features within the base buffer, or within
// the maximum buffer when their unit is expanded. Unassigned features can
// only pass the base buffer.
func Select(features []model.Feature, base, wide float64, expanded map[string]bool) []int {
	var idx []int
	for i := range features {
		f := &features[i]
		switch {
		case f.Distance <= base:
			idx = append(idx, i)
		case f.Assigned() && f.Distance <= wide && expanded[f.UnitName]:
			idx = append(idx, i)
		}
	}
	return idx
}
