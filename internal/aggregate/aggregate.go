// Package aggregate computes per-unit summaries of the quality index over
// the selected features.
package aggregate

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/stats"
)

// Edges are the three inner boundaries splitting [0,1] into the poor,
// acceptable, good and excellent coverage buckets.
type Edges [3]float64

// DefaultEdges match the policy buckets poor <0.5, acceptable <0.7,
// good <0.9, excellent >=0.9.
var DefaultEdges = Edges{0.5, 0.7, 0.9}

// Validate checks that the edges are strictly ascending inside (0,1].
func (e Edges) Validate() error {
	prev := 0.0
	for i, v := range e {
		if v <= prev || v > 1 {
			return eris.Errorf("aggregate: bucket edge %d (%g) must be ascending within (0,1]", i, v)
		}
		prev = v
	}
	return nil
}

// Bucket returns the bucket index (0..3) of an index value.
func (e Edges) Bucket(v float64) int {
	switch {
	case v < e[0]:
		return 0
	case v < e[1]:
		return 1
	case v < e[2]:
		return 2
	default:
		return 3
	}
}

// Options configures aggregation.
type Options struct {
	Edges Edges
	// Workers bounds concurrent per-unit computations; <= 0 means one per
	// unit.
	Workers int
}

// Result holds summaries keyed by unit id plus the global thresholds.
type Result struct {
	Summaries  map[string]*model.Summary
	Thresholds model.Thresholds
}

// Aggregate summarizes the selected, assigned features with a defined
// quality index and attaches a Summary to every unit, including units
// without data.
func Aggregate(ctx context.Context, units []*model.Unit, features []model.Feature, selected []int, opts Options) (Result, error) {
	if opts.Edges == (Edges{}) {
		opts.Edges = DefaultEdges
	}
	if err := opts.Edges.Validate(); err != nil {
		return Result{}, err
	}

	values := make(map[string][]float64, len(units))
	for _, i := range selected {
		f := &features[i]
		if !f.Assigned() || f.Quality == nil {
			continue
		}
		values[f.UnitID] = append(values[f.UnitID], *f.Quality)
	}

	// Each worker writes only its own slot.
	slots := make([]*model.Summary, len(units))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, u := range units {
		vals := values[u.ID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = Summarize(vals, opts.Edges)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, eris.Wrap(err, "aggregate: summarize units")
	}

	res := Result{Summaries: make(map[string]*model.Summary, len(units))}
	var means []float64
	for i, u := range units {
		s := slots[i]
		u.Summary = s
		res.Summaries[u.ID] = s
		if s.Count > 0 && s.Mean != nil {
			means = append(means, *s.Mean)
		}
	}
	res.Thresholds = Thresholds(means)
	return res, nil
}

// Summarize computes the statistics and coverage of one unit's values.
func Summarize(values []float64, edges Edges) *model.Summary {
	d := stats.Describe(values)
	s := &model.Summary{
		Mean:    d.Mean,
		Std:     d.Std,
		Count:   d.Count,
		Min:     d.Min,
		Max:     d.Max,
		HasData: d.Count > 0,
	}
	if d.Count == 0 {
		return s
	}

	var counts [4]int
	for _, v := range values {
		counts[edges.Bucket(v)]++
	}
	pct := func(c int) *float64 {
		return model.Float(float64(c) / float64(d.Count) * 100)
	}
	s.Coverage = model.Coverage{
		Poor:       pct(counts[0]),
		Acceptable: pct(counts[1]),
		Good:       pct(counts[2]),
		Excellent:  pct(counts[3]),
	}
	return s
}

// Thresholds computes P10 and P90 across unit means (not feature values).
func Thresholds(means []float64) model.Thresholds {
	sorted := append([]float64(nil), means...)
	sort.Float64s(sorted)

	var t model.Thresholds
	if v, ok := stats.Quantile(sorted, 0.10); ok {
		t.P10 = model.Float(v)
	}
	if v, ok := stats.Quantile(sorted, 0.90); ok {
		t.P90 = model.Float(v)
	}
	return t
}
