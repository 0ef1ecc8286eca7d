package model

import "github.com/twpayne/go-geom"

// Unit is a dissolved administrative overview region.
type Unit struct {
	ID         string `json:"unit_id"`
	Name       string `json:"unit_name"`
	AdminLevel string `json:"admin_level"`
	Geometry   geom.T `json:"-"`

	// Summary is attached by aggregation.
	Summary  *Summary `json:"summary,omitempty"`
	Expanded bool     `json:"expanded_buffer_unit"`
}

// Coverage holds the share (0–100) of features in each quality bucket.
// All fields are nil when the unit has no data.
type Coverage struct {
	Poor       *float64 `json:"coverage_poor" yaml:"coverage_poor"`
	Acceptable *float64 `json:"coverage_acceptable" yaml:"coverage_acceptable"`
	Good       *float64 `json:"coverage_good" yaml:"coverage_good"`
	Excellent  *float64 `json:"coverage_excellent" yaml:"coverage_excellent"`
}

// Summary is the per-unit aggregate of the quality index.
type Summary struct {
	Mean     *float64 `json:"mean" yaml:"mean"`
	Std      *float64 `json:"std" yaml:"std"`
	Count    int      `json:"count" yaml:"count"`
	Min      *float64 `json:"min" yaml:"min"`
	Max      *float64 `json:"max" yaml:"max"`
	Coverage Coverage `json:"coverage" yaml:"coverage"`
	HasData  bool     `json:"has_data" yaml:"has_data"`
}

// Thresholds are percentiles over the unit means of all units with data.
type Thresholds struct {
	P10 *float64 `json:"p10_threshold" yaml:"p10_threshold"`
	P90 *float64 `json:"p90_threshold" yaml:"p90_threshold"`
}

// Decision is one row of the adaptive selection diagnostic table.
type Decision struct {
	UnitName  string  `json:"unit_name" yaml:"unit_name"`
	CountBase int     `json:"count_base" yaml:"count_base"`
	CountMax  int     `json:"count_max" yaml:"count_max"`
	Growth    float64 `json:"growth" yaml:"growth"`
	P90       float64 `json:"p90_indicator" yaml:"p90_indicator"`
	Expanded  bool    `json:"expanded" yaml:"expanded"`
}

// Float returns a pointer to v, for optional statistics.
func Float(v float64) *float64 {
	return &v
}
