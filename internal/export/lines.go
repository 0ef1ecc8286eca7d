package export

import (
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
)

// DefaultLineFields are the reference line attributes kept on the line
// overlay when present.
var DefaultLineFields = []string{
	"OBJECTNUMMER",
	"Objectnummer_1",
	"Soort_verbinding",
	"Mate_van_ingrijpen",
	"Groot_onderhoud",
	"Inrichting_noodzakelijk",
	"OK",
	"Beschrijving",
}

// WriteLines writes the cleaned reference lines as an overlay collection.
// Each feature carries the available subset of fields and a line_id
// numbered from 1 in input order.
func WriteLines(path string, res *pipeline.Result, fields []string) error {
	if fields == nil {
		fields = DefaultLineFields
	}
	cols := availableLineFields(res.Reference, fields)

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(res.Reference))}
	for i, r := range res.Reference {
		props := make(map[string]any, len(cols)+1)
		for _, name := range cols {
			props[name] = r.Properties[name]
		}
		props["line_id"] = i + 1
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: r.Geometry, Properties: props})
	}
	if err := writeJSON(path, fc); err != nil {
		return err
	}

	zap.L().With(zap.String("component", "export")).Info("wrote reference lines",
		zap.String("path", path),
		zap.Int("lines", len(fc.Features)),
		zap.Strings("fields", cols),
	)
	return nil
}

func availableLineFields(records []model.Record, fields []string) []string {
	present := make(map[string]bool)
	for _, r := range records {
		for k := range r.Properties {
			present[k] = true
		}
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if present[f] {
			out = append(out, f)
		}
	}
	return out
}
