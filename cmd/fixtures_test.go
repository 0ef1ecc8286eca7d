//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/shade-units/internal/config"
)

const (
	boundariesGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"Gebied":"Centrum-West","Stadsdeel":"Centrum"},
  "geometry":{"type":"Polygon","coordinates":[[[0,-5],[100,-5],[100,100],[0,100],[0,-5]]]}},
 {"type":"Feature","properties":{"Gebied":"Oost","Stadsdeel":"Oost"},
  "geometry":{"type":"Polygon","coordinates":[[[100,-5],[200,-5],[200,100],[100,100],[100,-5]]]}}
]}`
	referenceGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"OBJECTNUMMER":"GS-1","fid":7},"geometry":{"type":"LineString","coordinates":[[0,0],[200,0]]}}
]}`
	featuresGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"shade_availability_index_30":0.2,"Guid":0},"geometry":{"type":"Point","coordinates":[10,5]}},
 {"type":"Feature","properties":{"shade_availability_index_30":0.4,"Guid":1},"geometry":{"type":"Point","coordinates":[11,5]}},
 {"type":"Feature","properties":{"shade_availability_index_30":0.6,"Guid":2},"geometry":{"type":"Point","coordinates":[12,5]}},
 {"type":"Feature","properties":{"shade_availability_index_30":0.8,"Guid":3},"geometry":{"type":"Point","coordinates":[13,5]}},
 {"type":"Feature","properties":{"shade_availability_index_30":0.9,"Guid":4},"geometry":{"type":"Point","coordinates":[150,80]}},
 {"type":"Feature","properties":{"shade_availability_index_30":0.5,"Guid":5},"geometry":null}
]}`
)

// testConfig writes the fixture sources into a temp dir and returns a
// configuration pointing at them.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	return &config.Config{
		Selection: config.SelectionConfig{
			Mode:              "adaptive",
			BaseBuffer:        15,
			MaxBuffer:         22.5,
			IndicatorDistance: 35,
			GrowthThreshold:   0.15,
			P90Threshold:      21.5,
		},
		Units: config.UnitsConfig{
			Level: "gebied",
			Levels: map[string]config.LevelConfig{
				"gebied":    {Field: "Gebied", Fallback: "Stadsdeel"},
				"stadsdeel": {Field: "Stadsdeel"},
			},
			Placeholder: "Unknown",
		},
		Index:     config.IndexConfig{Field: "shade_availability_index_30"},
		Aggregate: config.AggregateConfig{Edges: []float64{0.5, 0.7, 0.9}, Workers: 2},
		Input: config.InputConfig{
			Features:   write("features.geojson", featuresGeoJSON),
			Boundaries: write("boundaries.geojson", boundariesGeoJSON),
			Reference:  write("reference.geojson", referenceGeoJSON),
		},
		Output: config.OutputConfig{
			Dir:           filepath.Join(dir, "out"),
			UnitsFile:     "units.geojson",
			DetailDir:     "details",
			DetailPattern: "unit_{id}.geojson",
			LinesFile:     "lines.geojson",
			Report:        "report.xlsx",
			Manifest:      "manifest.yaml",
		},
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "runs.db")},
		Server: config.ServerConfig{Port: 8080},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
}
