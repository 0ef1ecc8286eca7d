package model

import "github.com/twpayne/go-geom"

// Feature is one sidewalk or street segment carrying a quality index.
// Assignment and distance fields are filled in place by the pipeline.
type Feature struct {
	// Row is the position of the feature in its source.
	Row        int
	Geometry   geom.T
	Properties map[string]any

	// Quality is the shade availability index; nil when undefined.
	Quality *float64

	UnitID     string
	UnitName   string
	AdminLevel string

	// DistanceToUnit is 0 for contained features and the fallback distance
	// for features assigned to their nearest unit.
	DistanceToUnit float64

	// Distance is the distance to the reference geometry in CRS units.
	Distance float64
}

// Assigned reports whether the feature has been attached to a unit.
func (f *Feature) Assigned() bool {
	return f.UnitID != ""
}

// FeatureFromRecord wraps a source record as an unassigned feature.
func FeatureFromRecord(row int, r Record) Feature {
	return Feature{Row: row, Geometry: r.Geometry, Properties: r.Properties}
}
