package planar

import (
	"math"

	"github.com/twpayne/go-geom"
)

// IsEmpty reports whether g is nil or has no coordinates.
func IsEmpty(g geom.T) bool {
	switch t := g.(type) {
	case nil:
		return true
	case *geom.GeometryCollection:
		for _, c := range t.Geoms() {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	}
	return len(g.FlatCoords()) == 0
}

// Clean returns g reduced to XY with degenerate parts removed: points
// with non-finite ordinates, line parts with fewer than two vertices and
// rings with fewer than four. Open rings are closed. It returns nil when
// nothing valid remains.
func Clean(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		if c, ok := xy2(t.FlatCoords(), t.Stride(), 0); ok {
			return geom.NewPointFlat(geom.XY, c)
		}
	case *geom.MultiPoint:
		var flat []float64
		for i := 0; i < t.NumPoints(); i++ {
			if c, ok := xy2(t.Point(i).FlatCoords(), t.Stride(), 0); ok {
				flat = append(flat, c...)
			}
		}
		if len(flat) > 0 {
			return geom.NewMultiPointFlat(geom.XY, flat)
		}
	case *geom.LineString:
		if flat := cleanLine(t.FlatCoords(), t.Stride()); flat != nil {
			return geom.NewLineStringFlat(geom.XY, flat)
		}
	case *geom.MultiLineString:
		mls := geom.NewMultiLineString(geom.XY)
		for i := 0; i < t.NumLineStrings(); i++ {
			if flat := cleanLine(t.LineString(i).FlatCoords(), t.Stride()); flat != nil {
				_ = mls.Push(geom.NewLineStringFlat(geom.XY, flat))
			}
		}
		if mls.NumLineStrings() > 0 {
			return mls
		}
	case *geom.Polygon:
		if p := cleanPolygon(t); p != nil {
			return p
		}
	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			if p := cleanPolygon(t.Polygon(i)); p != nil {
				_ = mp.Push(p)
			}
		}
		if mp.NumPolygons() > 0 {
			return mp
		}
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, c := range t.Geoms() {
			if cc := Clean(c); cc != nil {
				_ = gc.Push(cc)
			}
		}
		if gc.NumGeoms() > 0 {
			return gc
		}
	}
	return nil
}

func polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, t.Polygon(i))
		}
		return out
	case *geom.GeometryCollection:
		var out []*geom.Polygon
		for _, c := range t.Geoms() {
			out = append(out, polygons(c)...)
		}
		return out
	}
	return nil
}

func cleanPolygon(poly *geom.Polygon) *geom.Polygon {
	if poly.NumLinearRings() == 0 {
		return nil
	}
	shell := cleanRing(poly.LinearRing(0).FlatCoords(), poly.Stride())
	if shell == nil {
		return nil
	}
	flat := append([]float64(nil), shell...)
	ends := []int{len(flat)}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if hole := cleanRing(poly.LinearRing(i).FlatCoords(), poly.Stride()); hole != nil {
			flat = append(flat, hole...)
			ends = append(ends, len(flat))
		}
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func cleanLine(flat []float64, stride int) []float64 {
	var out []float64
	for i := 0; i*stride < len(flat); i++ {
		c, ok := xy2(flat, stride, i)
		if !ok {
			continue
		}
		n := len(out)
		if n >= 2 && out[n-2] == c[0] && out[n-1] == c[1] {
			continue
		}
		out = append(out, c...)
	}
	if len(out) < 4 {
		return nil
	}
	return out
}

func cleanRing(flat []float64, stride int) []float64 {
	out := cleanLine(flat, stride)
	if out == nil {
		return nil
	}
	n := len(out)
	if out[0] != out[n-2] || out[1] != out[n-1] {
		out = append(out, out[0], out[1])
	}
	if len(out) < 8 {
		return nil
	}
	return out
}

func xy2(flat []float64, stride, i int) ([]float64, bool) {
	if stride < 2 || (i+1)*stride > len(flat) {
		return nil, false
	}
	x, y := flat[i*stride], flat[i*stride+1]
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return nil, false
	}
	return []float64{x, y}, true
}
