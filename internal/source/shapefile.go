package source

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
)

// ReadShapefile loads every shape with its attributes. Numeric dBASE
// fields are parsed to float64; blank values become nil. Null and
// unsupported shapes are skipped and counted.
func ReadShapefile(path string) ([]model.Record, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "source: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	numeric := make([]bool, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		numeric[i] = f.Fieldtype == 'N' || f.Fieldtype == 'F'
	}

	var records []model.Record
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := ShapeGeometry(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = attribute(reader.Attribute(i), numeric[i])
		}
		records = append(records, model.Record{Geometry: g, Properties: props})
	}

	if skipped > 0 {
		zap.L().Warn("source: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return records, skipped, nil
}

func attribute(raw string, numeric bool) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}
	if numeric {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return val
}

// ShapeGeometry converts a shapefile shape to go-geom. It returns nil for
// nil, empty and unsupported shapes.
func ShapeGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return multiLineString(s)
	case *shp.Polygon:
		return multiPolygon(s)
	}
	return nil
}

// parts splits a flat point list at the shapefile part offsets.
func parts(partIdx []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(partIdx))
	for i, start := range partIdx {
		end := int32(len(points))
		if i+1 < len(partIdx) {
			end = partIdx[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}

func multiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || len(pl.Points) == 0 {
		return nil
	}
	mls := geom.NewMultiLineString(geom.XY)
	for i, flat := range parts(pl.Parts, pl.Points) {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("source: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// multiPolygon groups rings into polygons: clockwise rings start a new
// polygon, counter-clockwise rings are holes of the polygon before them.
func multiPolygon(p *shp.Polygon) geom.T {
	if p == nil || len(p.Points) == 0 {
		return nil
	}
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("source: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i, flat := range parts(p.Parts, p.Points) {
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		hole := len(flat) >= 8 && xy.IsRingCounterClockwise(geom.XY, flat)
		if !hole || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("source: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
