package planar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10})
}

func TestContains(t *testing.T) {
	a := New()
	sq := square(0, 0, 10)

	assert.True(t, a.Contains(sq, geom.Coord{5, 5}))
	assert.True(t, a.Contains(sq, geom.Coord{0, 5}), "boundary counts as contained")
	assert.False(t, a.Contains(sq, geom.Coord{11, 5}))

	withHole := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		4, 4, 4, 6, 6, 6, 6, 4, 4, 4,
	}, []int{10, 20})
	assert.False(t, a.Contains(withHole, geom.Coord{5, 5}))
	assert.True(t, a.Contains(withHole, geom.Coord{4, 5}), "hole boundary belongs to the polygon")
	assert.True(t, a.Contains(withHole, geom.Coord{2, 2}))

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(0, 0, 1)))
	require.NoError(t, mp.Push(square(5, 5, 1)))
	assert.True(t, a.Contains(mp, geom.Coord{5.5, 5.5}))
	assert.False(t, a.Contains(mp, geom.Coord{3, 3}))

	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 10})
	assert.False(t, a.Contains(line, geom.Coord{5, 5}))
}

func TestRepresentativePoint_Polygon(t *testing.T) {
	a := New()

	c, err := a.RepresentativePoint(square(0, 0, 10))
	require.NoError(t, err)
	assert.True(t, a.Contains(square(0, 0, 10), c))

	// U shape: the centroid falls in the notch, the interior point must not.
	u := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 9, 0, 9, 9, 6, 9, 6, 3, 3, 3, 3, 9, 0, 9, 0, 0,
	}, []int{18})
	c, err = a.RepresentativePoint(u)
	require.NoError(t, err)
	assert.True(t, a.Contains(u, c))
	assert.False(t, c[0] > 3 && c[0] < 6 && c[1] > 3, "point must not fall in the notch")
}

func TestRepresentativePoint_Line(t *testing.T) {
	a := New()

	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 5, 0, 10, 0})
	c, err := a.RepresentativePoint(ls)
	require.NoError(t, err)
	assert.Equal(t, geom.Coord{5, 0}, c)

	two := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 4, 3})
	c, err = a.RepresentativePoint(two)
	require.NoError(t, err)
	assert.InDelta(t, 0, a.Distance(geom.NewPointFlat(geom.XY, c), two), 1e-9, "point lies on the line")

	c, err = a.RepresentativePoint(geom.NewPointFlat(geom.XY, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, geom.Coord{3, 4}, c)
}

func TestRepresentativePoint_Empty(t *testing.T) {
	_, err := New().RepresentativePoint(geom.NewMultiPolygon(geom.XY))
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestDistance(t *testing.T) {
	a := New()
	sq := square(0, 0, 10)

	tests := []struct {
		name string
		g    geom.T
		want float64
	}{
		{"parallel line to the right", geom.NewLineStringFlat(geom.XY, []float64{15, 0, 15, 10}), 5},
		{"crossing line", geom.NewLineStringFlat(geom.XY, []float64{-5, 5, 15, 5}), 0},
		{"line inside", geom.NewLineStringFlat(geom.XY, []float64{2, 2, 3, 3}), 0},
		{"diagonal point", geom.NewPointFlat(geom.XY, []float64{13, 14}), 5},
		{"other square", square(20, 0, 5), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, a.Distance(sq, tt.g), 1e-9)
			assert.InDelta(t, tt.want, a.Distance(tt.g, sq), 1e-9)
		})
	}

	assert.True(t, math.IsInf(a.Distance(sq, geom.NewMultiLineString(geom.XY)), 1))
}

func TestDistance_Prepared(t *testing.T) {
	a := New()
	ref := geom.NewMultiLineString(geom.XY)
	require.NoError(t, ref.Push(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0})))
	require.NoError(t, ref.Push(geom.NewLineStringFlat(geom.XY, []float64{0, 50, 100, 50})))
	a.Prepare(ref)

	assert.InDelta(t, 10, a.Distance(geom.NewPointFlat(geom.XY, []float64{50, 40}), ref), 1e-9)
	assert.InDelta(t, 7, a.Distance(square(20, 7, 5), ref), 1e-9)
}

func rect(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10})
}

func TestUnion_Dissolves(t *testing.T) {
	a := New()

	// Touching and overlapping parts merge into a single polygon.
	u := a.Union([]geom.T{rect(0, 0, 10, 10), rect(10, 0, 20, 10), rect(5, 0, 15, 10), nil})
	require.NotNil(t, u)
	mp, ok := u.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 1, mp.NumPolygons())
	assert.InDelta(t, 200, mp.Area(), 1e-9)

	b := mp.Bounds()
	assert.InDelta(t, 0, b.Min(0), 1e-9)
	assert.InDelta(t, 0, b.Min(1), 1e-9)
	assert.InDelta(t, 20, b.Max(0), 1e-9)
	assert.InDelta(t, 10, b.Max(1), 1e-9)
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
	assert.True(t, a.Contains(u, geom.Coord{10, 5}), "former shared edge is interior")
}

func TestUnion_Disjoint(t *testing.T) {
	a := New()

	u := a.Union([]geom.T{square(0, 0, 1), square(5, 5, 1)})
	mp, ok := u.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, 2, mp.Area(), 1e-9)
}

func TestUnion_Degenerate(t *testing.T) {
	a := New()

	degenerate := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 1, 0, 0}, []int{6})
	assert.Nil(t, a.Union([]geom.T{degenerate}))
	assert.Nil(t, a.Union(nil))
}

func TestRepair(t *testing.T) {
	a := New()

	bowtie := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 10, 10, 10, 0, 0, 10, 0, 0}, []int{10})
	fixed := a.Repair(bowtie)
	require.NotNil(t, fixed)
	mp, ok := fixed.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, 50, mp.Area(), 1e-9)

	valid := square(0, 0, 1)
	assert.Same(t, valid, a.Repair(valid))

	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
	assert.Same(t, line, a.Repair(line))

	u := a.Union([]geom.T{bowtie})
	require.NotNil(t, u)
	assert.InDelta(t, 50, u.(*geom.MultiPolygon).Area(), 1e-9)
}

func TestNearest(t *testing.T) {
	a := New()
	cands := []geom.T{square(10, 0, 1), square(-11, 0, 1), square(0, 20, 1)}

	idx, d := a.Nearest(geom.Coord{0, 0.5}, cands)
	assert.Equal(t, 0, idx, "tie goes to the first candidate")
	assert.InDelta(t, 10, d, 1e-9)

	idx, d = a.Nearest(geom.Coord{0.5, 19}, cands)
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 1, d, 1e-9)

	idx, _ = a.Nearest(geom.Coord{0, 0}, nil)
	assert.Equal(t, -1, idx)
}

func TestClean(t *testing.T) {
	open := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 0, 4, 4, 0, 4}, []int{8})
	got, ok := Clean(open).(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 5, got.LinearRing(0).NumCoords(), "open ring is closed")

	xyz := geom.NewLineStringFlat(geom.XYZ, []float64{0, 0, 1, 1, 1, 2})
	line, ok := Clean(xyz).(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, geom.XY, line.Layout())

	assert.Nil(t, Clean(geom.NewLineStringFlat(geom.XY, []float64{1, 1, 1, 1})))
	assert.Nil(t, Clean(geom.NewPointFlat(geom.XY, []float64{math.NaN(), 1})))
	assert.Nil(t, Clean(nil))

	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(geom.NewMultiPolygon(geom.XY)))
	assert.False(t, IsEmpty(square(0, 0, 1)))
}
