// Package export writes pipeline results: the overview GeoJSON, per-unit
// detail files, an XLSX report and a YAML run manifest.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
)

// GeometryMode tags outputs that keep whole feature geometries.
const GeometryMode = "full_sidewalk"

// UnitProperties flattens a unit and its summary into overview feature
// properties. Undefined statistics are nil.
func UnitProperties(u *model.Unit, res *pipeline.Result) map[string]any {
	opts := res.Options
	s := u.Summary
	if s == nil {
		s = &model.Summary{}
	}
	field := opts.IndexField

	props := map[string]any{
		"unit_id":              u.ID,
		"unit_name":            u.Name,
		"admin_level":          u.AdminLevel,
		field + "_mean":        value(s.Mean),
		field + "_std":         value(s.Std),
		field + "_count":       s.Count,
		field + "_min":         value(s.Min),
		field + "_max":         value(s.Max),
		"coverage_poor":        value(s.Coverage.Poor),
		"coverage_acceptable":  value(s.Coverage.Acceptable),
		"coverage_good":        value(s.Coverage.Good),
		"coverage_excellent":   value(s.Coverage.Excellent),
		"buffer_m":             opts.Selection.Base,
		"max_buffer_m":         opts.MaxBuffer(),
		"selection_mode":       string(opts.Mode),
		"geometry_mode":        GeometryMode,
		"has_data":             s.HasData,
		"expanded_buffer_unit": u.Expanded,
		"p10_threshold":        value(res.Thresholds.P10),
		"p90_threshold":        value(res.Thresholds.P90),
	}
	if opts.Mode == model.SelectionAdaptive {
		props["adaptive_growth_threshold"] = opts.Selection.GrowthThreshold
		props["adaptive_p90_threshold"] = opts.Selection.P90Threshold
	}
	return props
}

// WriteUnits writes the overview FeatureCollection, one feature per unit.
func WriteUnits(path string, res *pipeline.Result) error {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(res.Units))}
	for _, u := range res.Units {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         u.ID,
			Geometry:   u.Geometry,
			Properties: UnitProperties(u, res),
		})
	}
	return writeJSON(path, fc)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "export: encode %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func value(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
