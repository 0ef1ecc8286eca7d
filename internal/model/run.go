package model

import "time"

// SelectionMode controls how features near the reference geometry are picked.
type SelectionMode string

const (
	SelectionAdaptive SelectionMode = "adaptive"
	SelectionFixed    SelectionMode = "fixed"
)

// Valid reports whether m is a known selection mode.
func (m SelectionMode) Valid() bool {
	return m == SelectionAdaptive || m == SelectionFixed
}

// Run is the stored header of one pipeline execution.
type Run struct {
	ID             string        `json:"id"`
	Mode           SelectionMode `json:"selection_mode"`
	IndexField     string        `json:"index_field"`
	AdminLevel     string        `json:"admin_level"`
	BaseBuffer     float64       `json:"buffer_m"`
	MaxBuffer      float64       `json:"max_buffer_m"`
	UnitsTotal     int           `json:"units_total"`
	UnitsWithData  int           `json:"units_with_data"`
	FeaturesTotal  int           `json:"features_total"`
	FeaturesChosen int           `json:"features_selected"`
	Expanded       []string      `json:"expanded_units"`
	Thresholds     Thresholds    `json:"thresholds"`
	CreatedAt      time.Time     `json:"created_at"`
}

// UnitStat is a flattened unit summary as stored with a run.
type UnitStat struct {
	RunID      string  `json:"run_id"`
	UnitID     string  `json:"unit_id"`
	UnitName   string  `json:"unit_name"`
	AdminLevel string  `json:"admin_level"`
	Expanded   bool    `json:"expanded_buffer_unit"`
	Summary    Summary `json:"summary"`
	// Geometry is the EWKB encoding of the unit geometry, when stored.
	Geometry []byte `json:"-"`
}
