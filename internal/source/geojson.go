package source

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
)

// ReadGeoJSON loads a FeatureCollection. Features without geometry are
// skipped and counted.
func ReadGeoJSON(path string) ([]model.Record, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "source: read %s", path)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON decodes FeatureCollection bytes into records and the number
// of features skipped for lacking geometry.
func ParseGeoJSON(data []byte) ([]model.Record, int, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, 0, eris.Wrap(err, "source: decode geojson")
	}

	records := make([]model.Record, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}
		props := f.Properties
		if props == nil {
			props = make(map[string]any)
		}
		records = append(records, model.Record{Geometry: f.Geometry, Properties: props})
	}

	if skipped > 0 {
		zap.L().Warn("source: skipped geojson features without geometry", zap.Int("skipped", skipped))
	}
	return records, skipped, nil
}
