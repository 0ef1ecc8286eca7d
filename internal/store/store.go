// Package store persists pipeline runs with their unit summaries and
// selection decisions.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Mode       model.SelectionMode `json:"selection_mode,omitempty"`
	IndexField string              `json:"index_field,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
	Offset     int                 `json:"offset,omitempty"`
}

// RunRecord is one run with everything stored alongside it.
type RunRecord struct {
	Run       model.Run
	Units     []model.UnitStat
	Decisions []model.Decision
}

// Store defines run history persistence.
type Store interface {
	// SaveRun stores rec atomically. An empty Run.ID is replaced with a
	// new UUID; the stored id is returned.
	SaveRun(ctx context.Context, rec *RunRecord) (string, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListUnitStats(ctx context.Context, runID string) ([]model.UnitStat, error)
	ListDecisions(ctx context.Context, runID string) ([]model.Decision, error)

	Migrate(ctx context.Context) error
	Close() error
}

// NewRunRecord flattens a pipeline result. Unit geometries are encoded as
// little-endian EWKB.
func NewRunRecord(res *pipeline.Result, now time.Time) (*RunRecord, error) {
	opts := res.Options
	rec := &RunRecord{
		Run: model.Run{
			Mode:           opts.Mode,
			IndexField:     opts.IndexField,
			AdminLevel:     opts.Units.AdminLevel,
			BaseBuffer:     opts.Selection.Base,
			MaxBuffer:      opts.MaxBuffer(),
			UnitsTotal:     len(res.Units),
			UnitsWithData:  res.UnitsWithData(),
			FeaturesTotal:  len(res.Features),
			FeaturesChosen: len(res.Selected),
			Expanded:       res.Expanded,
			Thresholds:     res.Thresholds,
			CreatedAt:      now.UTC(),
		},
		Decisions: res.Decisions,
	}
	if rec.Run.Expanded == nil {
		rec.Run.Expanded = []string{}
	}

	for _, u := range res.Units {
		stat := model.UnitStat{
			UnitID:     u.ID,
			UnitName:   u.Name,
			AdminLevel: u.AdminLevel,
			Expanded:   u.Expanded,
		}
		if u.Summary != nil {
			stat.Summary = *u.Summary
		}
		if u.Geometry != nil {
			data, err := ewkb.Marshal(u.Geometry, ewkb.NDR)
			if err != nil {
				return nil, eris.Wrapf(err, "store: encode geometry of unit %s", u.ID)
			}
			stat.Geometry = data
		}
		rec.Units = append(rec.Units, stat)
	}
	return rec, nil
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}
