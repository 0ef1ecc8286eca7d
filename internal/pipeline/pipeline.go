// Package pipeline runs the overview pipeline: unit building, assignment,
// adaptive selection and aggregation.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/aggregate"
	"github.com/sells-group/shade-units/internal/assign"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/planar"
	"github.com/sells-group/shade-units/internal/selection"
	"github.com/sells-group/shade-units/internal/shade"
	"github.com/sells-group/shade-units/internal/unit"
)

var (
	// ErrMissingIndexField is returned when no feature carries the
	// configured quality index field.
	ErrMissingIndexField = eris.New("pipeline: index field missing from features")
	// ErrNoReference is returned when the reference source has no usable
	// geometry to measure distances against.
	ErrNoReference = eris.New("pipeline: reference geometry is empty")
)

// Input is the in-memory data a run consumes.
type Input struct {
	Features   []model.Record
	Boundaries []model.Boundary
	Reference  []model.Record
	// Skipped counts source rows the loaders rejected before the run.
	Skipped Skipped
}

// Skipped counts source rows without usable geometry, per input.
type Skipped struct {
	Features   int `json:"features" yaml:"features"`
	Boundaries int `json:"boundaries" yaml:"boundaries"`
	Reference  int `json:"reference" yaml:"reference"`
}

// Total sums the per-input counts.
func (s Skipped) Total() int {
	return s.Features + s.Boundaries + s.Reference
}

// Dropped counts records removed for degenerate geometry.
type Dropped struct {
	Features   int `json:"features" yaml:"features"`
	Boundaries int `json:"boundaries" yaml:"boundaries"`
	Reference  int `json:"reference" yaml:"reference"`
	Units      int `json:"units" yaml:"units"`
}

// Phase records how long one pipeline step took.
type Phase struct {
	Name     string `json:"name" yaml:"name"`
	Duration int64  `json:"duration_ms" yaml:"duration_ms"`
}

// Result is everything a run produces.
type Result struct {
	Units    []*model.Unit
	Features []model.Feature
	// Reference holds the reference records that survived cleaning.
	Reference []model.Record
	// Selected indexes into Features.
	Selected   []int
	Decisions  []model.Decision
	Expanded   []string
	Thresholds model.Thresholds
	Dropped    Dropped
	Skipped    Skipped
	Assignment assign.Stats
	Derived    *shade.Stats
	Phases     []Phase
	Options    Options
}

// UnitsWithData counts units whose summary has at least one value.
func (r *Result) UnitsWithData() int {
	n := 0
	for _, u := range r.Units {
		if u.Summary != nil && u.Summary.HasData {
			n++
		}
	}
	return n
}

// SelectedFor returns the selected, assigned features of one unit.
func (r *Result) SelectedFor(unitID string) []*model.Feature {
	var out []*model.Feature
	for _, i := range r.Selected {
		if r.Features[i].UnitID == unitID {
			out = append(out, &r.Features[i])
		}
	}
	return out
}

// Pipeline runs the overview computation with a fixed set of options.
type Pipeline struct {
	opts Options
	geo  *planar.Planar
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, geo: planar.New()}, nil
}

// Run executes the pipeline over in. Inputs are not mutated.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	res := &Result{Options: p.opts, Skipped: in.Skipped}

	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		d := time.Since(start).Milliseconds()
		res.Phases = append(res.Phases, Phase{Name: name, Duration: d})
		if err != nil {
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", d), zap.Error(err))
			return err
		}
		log.Debug("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", d))
		return nil
	}

	var reference geom.T
	err := track("prepare", func() error {
		res.Features, res.Dropped.Features = cleanFeatures(in.Features)
		var err error
		res.Reference, reference, res.Dropped.Reference, err = referenceGeometry(in.Reference)
		if err != nil {
			return err
		}
		p.geo.Prepare(reference)
		if p.opts.Derive != nil {
			d := *p.opts.Derive
			if d.Field == "" {
				d.Field = p.opts.IndexField
			}
			stats, err := shade.Derive(res.Features, d)
			if err != nil {
				return eris.Wrap(err, "pipeline: derive index")
			}
			res.Derived = &stats
		}
		return resolveQuality(res.Features, p.opts.IndexField)
	})
	if err != nil {
		return nil, err
	}

	var boundaries []model.Boundary
	boundaries, res.Dropped.Boundaries = cleanRecords(in.Boundaries)
	err = track("units", func() error {
		units, stats, err := unit.Build(boundaries, p.opts.Units, p.geo)
		if err != nil {
			return eris.Wrap(err, "pipeline: build units")
		}
		res.Units = units
		res.Dropped.Units = stats.Dropped
		for _, u := range units {
			p.geo.Prepare(u.Geometry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = track("assign", func() error {
		res.Assignment = assign.Assign(res.Features, res.Units, p.geo)
		return nil
	})

	err = track("distance", func() error {
		for i := range res.Features {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "pipeline: distance")
				}
			}
			res.Features[i].Distance = p.geo.Distance(res.Features[i].Geometry, reference)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = track("select", func() error {
		p.selectFeatures(res)
		return nil
	})

	err = track("aggregate", func() error {
		agg, err := aggregate.Aggregate(ctx, res.Units, res.Features, res.Selected, aggregate.Options{
			Edges:   p.opts.Edges,
			Workers: p.opts.Workers,
		})
		if err != nil {
			return err
		}
		res.Thresholds = agg.Thresholds
		return nil
	})
	if err != nil {
		return nil, err
	}

	expanded := make(map[string]bool, len(res.Expanded))
	for _, name := range res.Expanded {
		expanded[name] = true
	}
	for _, u := range res.Units {
		u.Expanded = expanded[u.Name]
	}

	log.Info("pipeline: run complete",
		zap.Int("units", len(res.Units)),
		zap.Int("units_with_data", res.UnitsWithData()),
		zap.Int("features", len(res.Features)),
		zap.Int("selected", len(res.Selected)),
		zap.Int("expanded", len(res.Expanded)),
		zap.Int("dropped_features", res.Dropped.Features),
	)
	return res, nil
}

func (p *Pipeline) selectFeatures(res *Result) {
	sel := p.opts.Selection
	if p.opts.Mode == model.SelectionFixed {
		res.Selected = selection.Select(res.Features, sel.Base, sel.Base, nil)
		return
	}
	out := selection.Choose(res.Features, sel)
	res.Decisions = out.Decisions
	res.Expanded = out.Names()
	res.Selected = selection.Select(res.Features, sel.Base, sel.Max, out.Expanded)
}

func cleanRecords(records []model.Record) ([]model.Record, int) {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		g := planar.Clean(r.Geometry)
		if g == nil {
			continue
		}
		out = append(out, model.Record{Geometry: g, Properties: r.Properties})
	}
	return out, len(records) - len(out)
}

// cleanFeatures keeps the source row of each surviving record. Properties
// are copied so derivation never writes into the caller's maps.
func cleanFeatures(records []model.Record) ([]model.Feature, int) {
	out := make([]model.Feature, 0, len(records))
	for row, r := range records {
		g := planar.Clean(r.Geometry)
		if g == nil {
			continue
		}
		props := make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			props[k] = v
		}
		out = append(out, model.FeatureFromRecord(row, model.Record{Geometry: g, Properties: props}))
	}
	return out, len(records) - len(out)
}

func referenceGeometry(records []model.Record) ([]model.Record, geom.T, int, error) {
	clean, dropped := cleanRecords(records)
	gc := geom.NewGeometryCollection()
	for _, r := range clean {
		if err := gc.Push(r.Geometry); err != nil {
			return nil, nil, dropped, eris.Wrap(err, "pipeline: collect reference geometry")
		}
	}
	if gc.NumGeoms() == 0 {
		return nil, nil, dropped, ErrNoReference
	}
	return clean, gc, dropped, nil
}

func resolveQuality(features []model.Feature, field string) error {
	present := false
	for i := range features {
		f := &features[i]
		r := model.Record{Properties: f.Properties}
		if r.Has(field) {
			present = true
		}
		if v, ok := r.Float(field); ok {
			f.Quality = model.Float(v)
		}
	}
	if len(features) > 0 && !present {
		return eris.Wrapf(ErrMissingIndexField, "field %q", field)
	}
	return nil
}
