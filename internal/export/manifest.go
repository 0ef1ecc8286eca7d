package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/shade-units/internal/assign"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
	"github.com/sells-group/shade-units/internal/shade"
)

// Manifest records the configuration and outcome of one run.
type Manifest struct {
	RunID      string              `yaml:"run_id,omitempty"`
	CreatedAt  time.Time           `yaml:"created_at"`
	Mode       model.SelectionMode `yaml:"selection_mode"`
	IndexField string              `yaml:"index_field"`
	AdminLevel string              `yaml:"admin_level"`
	Selection  SelectionManifest   `yaml:"selection"`
	Units      CountManifest       `yaml:"units"`
	Features   CountManifest       `yaml:"features"`
	Expanded   []string            `yaml:"expanded_units"`
	Thresholds model.Thresholds    `yaml:"thresholds"`
	Dropped    pipeline.Dropped    `yaml:"dropped"`
	Skipped    pipeline.Skipped    `yaml:"skipped"`
	Assignment assign.Stats        `yaml:"assignment"`
	Derived    *shade.Stats        `yaml:"derived,omitempty"`
	Phases     []pipeline.Phase    `yaml:"phases"`
	Outputs    []string            `yaml:"outputs,omitempty"`
}

// SelectionManifest holds the selection thresholds in effect.
type SelectionManifest struct {
	BaseBuffer        float64  `yaml:"buffer_m"`
	MaxBuffer         float64  `yaml:"max_buffer_m"`
	IndicatorDistance float64  `yaml:"indicator_distance_m"`
	GrowthThreshold   float64  `yaml:"growth_threshold"`
	P90Threshold      float64  `yaml:"p90_threshold"`
	Forced            []string `yaml:"forced_units,omitempty"`
}

// CountManifest is a total with the part that carried data.
type CountManifest struct {
	Total int `yaml:"total"`
	Used  int `yaml:"used"`
}

// NewManifest summarizes res.
func NewManifest(runID string, res *pipeline.Result, outputs []string, now time.Time) Manifest {
	opts := res.Options
	expanded := res.Expanded
	if expanded == nil {
		expanded = []string{}
	}
	return Manifest{
		RunID:      runID,
		CreatedAt:  now.UTC(),
		Mode:       opts.Mode,
		IndexField: opts.IndexField,
		AdminLevel: opts.Units.AdminLevel,
		Selection: SelectionManifest{
			BaseBuffer:        opts.Selection.Base,
			MaxBuffer:         opts.MaxBuffer(),
			IndicatorDistance: opts.Selection.Indicator,
			GrowthThreshold:   opts.Selection.GrowthThreshold,
			P90Threshold:      opts.Selection.P90Threshold,
			Forced:            opts.Selection.Forced,
		},
		Units:      CountManifest{Total: len(res.Units), Used: res.UnitsWithData()},
		Features:   CountManifest{Total: len(res.Features), Used: len(res.Selected)},
		Expanded:   expanded,
		Thresholds: res.Thresholds,
		Dropped:    res.Dropped,
		Skipped:    res.Skipped,
		Assignment: res.Assignment,
		Derived:    res.Derived,
		Phases:     res.Phases,
		Outputs:    outputs,
	}
}

// WriteManifest writes m as YAML.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: encode manifest")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write manifest %s", path)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "export: read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, eris.Wrap(err, "export: decode manifest")
	}
	return m, nil
}
