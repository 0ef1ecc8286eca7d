package config

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/aggregate"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
	"github.com/sells-group/shade-units/internal/selection"
	"github.com/sells-group/shade-units/internal/shade"
	"github.com/sells-group/shade-units/internal/unit"
)

// PipelineOptions converts the loaded configuration into run options.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	lvl, err := c.Units.Resolve()
	if err != nil {
		return pipeline.Options{}, err
	}
	if len(c.Aggregate.Edges) != 3 {
		return pipeline.Options{}, eris.Errorf("config: aggregate.edges has %d values, want 3", len(c.Aggregate.Edges))
	}

	opts := pipeline.Options{
		Mode: model.SelectionMode(c.Selection.Mode),
		Selection: selection.Params{
			Base:            c.Selection.BaseBuffer,
			Max:             c.Selection.MaxBuffer,
			Indicator:       c.Selection.IndicatorDistance,
			GrowthThreshold: c.Selection.GrowthThreshold,
			P90Threshold:    c.Selection.P90Threshold,
			Forced:          c.Selection.ForcedUnits,
		},
		Units: unit.Options{
			NameField:     lvl.Field,
			FallbackField: lvl.Fallback,
			AdminLevel:    lvl.Field,
			Placeholder:   c.Units.Placeholder,
		},
		IndexField: c.Index.Field,
		Edges:      aggregate.Edges{c.Aggregate.Edges[0], c.Aggregate.Edges[1], c.Aggregate.Edges[2]},
		Workers:    c.Aggregate.Workers,
	}
	if d := c.Index.Derive; d.Enabled {
		opts.Derive = &shade.Options{
			Field:     c.Index.Field,
			Date:      d.Date,
			Times:     d.Times,
			KeyTimes:  d.KeyTimes,
			Threshold: model.Float(d.Threshold),
		}
	}

	if err := opts.Validate(); err != nil {
		return pipeline.Options{}, eris.Wrap(err, "config: pipeline options")
	}
	return opts, nil
}
