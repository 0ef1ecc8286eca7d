package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/aggregate"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/selection"
	"github.com/sells-group/shade-units/internal/shade"
	"github.com/sells-group/shade-units/internal/unit"
)

// ErrInvalidConfig wraps every configuration error reported by Validate.
var ErrInvalidConfig = eris.New("pipeline: invalid configuration")

// Options configures a run.
type Options struct {
	Mode       model.SelectionMode
	Selection  selection.Params
	Units      unit.Options
	IndexField string
	// Derive computes IndexField from shade time series first; nil keeps
	// the source values.
	Derive  *shade.Options
	Edges   aggregate.Edges
	Workers int
}

// MaxBuffer is the effective widest selection distance: the configured
// maximum in adaptive mode, the base buffer in fixed mode.
func (o Options) MaxBuffer() float64 {
	if o.Mode == model.SelectionFixed {
		return o.Selection.Base
	}
	return o.Selection.Max
}

// Validate reports structural misconfiguration before any work starts.
func (o Options) Validate() error {
	s := o.Selection
	switch {
	case !o.Mode.Valid():
		return eris.Wrapf(ErrInvalidConfig, "unknown selection mode %q", o.Mode)
	case s.Base <= 0:
		return eris.Wrapf(ErrInvalidConfig, "base buffer %g must be > 0", s.Base)
	case s.Max < s.Base:
		return eris.Wrapf(ErrInvalidConfig, "max buffer %g is smaller than base buffer %g", s.Max, s.Base)
	case s.Indicator < s.Max:
		return eris.Wrapf(ErrInvalidConfig, "indicator distance %g is smaller than max buffer %g", s.Indicator, s.Max)
	case s.GrowthThreshold < 0:
		return eris.Wrapf(ErrInvalidConfig, "growth threshold %g must be >= 0", s.GrowthThreshold)
	case s.P90Threshold < 0:
		return eris.Wrapf(ErrInvalidConfig, "p90 threshold %g must be >= 0", s.P90Threshold)
	case o.IndexField == "":
		return eris.Wrap(ErrInvalidConfig, "index field is required")
	case o.Units.NameField == "":
		return eris.Wrap(ErrInvalidConfig, "unit name field is required")
	}
	if o.Edges != (aggregate.Edges{}) {
		if err := o.Edges.Validate(); err != nil {
			return eris.Wrapf(ErrInvalidConfig, "%v", err)
		}
	}
	return nil
}
