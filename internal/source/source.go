// Package source loads vector records from GeoJSON and ESRI shapefiles.
package source

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/model"
)

// ErrUnsupportedFormat is returned by Read for unknown file extensions.
var ErrUnsupportedFormat = eris.New("source: unsupported file format")

// Read loads records from path, choosing the reader by extension. It also
// returns how many source rows had no usable geometry and were skipped.
func Read(path string) ([]model.Record, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ReadGeoJSON(path)
	case ".shp":
		return ReadShapefile(path)
	default:
		return nil, 0, eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}
