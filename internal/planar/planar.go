// Package planar implements the 2D geometry operations the overview
// pipeline depends on. Geometries are go-geom values at the edges; the
// topology work (dissolve, repair, distance, containment, point on
// surface) runs in GEOS through github.com/twpayne/go-geos.
//
// All geometries are expected in a projected CRS with metric units; no
// reprojection happens here.
package planar

import (
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
)

// ErrEmptyGeometry is returned when an operation needs at least one vertex.
var ErrEmptyGeometry = eris.New("planar: empty geometry")

// Adapter is the geometry capability consumed by unit building, assignment
// and selection.
type Adapter interface {
	// Distance returns the minimum distance between a and b, 0 when they
	// touch or overlap, +Inf when either is empty.
	Distance(a, b geom.T) float64
	// Union dissolves areal geometries into one multipolygon, nil when none
	// of the inputs carries a valid polygon.
	Union(gs []geom.T) geom.T
	// Contains reports whether p lies inside or on the boundary of area.
	Contains(area geom.T, p geom.Coord) bool
	// RepresentativePoint returns a point guaranteed to lie on g.
	RepresentativePoint(g geom.T) (geom.Coord, error)
	// Nearest returns the index of and distance to the candidate closest to
	// p. Ties go to the lowest index; -1 when there are no candidates.
	Nearest(p geom.Coord, candidates []geom.T) (int, float64)
}

type prepared struct {
	g    *geos.Geom
	prep *geos.PrepGeom
}

// Planar is the GEOS backed Adapter. It is safe for concurrent use; GEOS
// calls are serialized by its context.
type Planar struct {
	ctx *geos.Context
	log *zap.Logger

	mu       sync.RWMutex
	prepared map[geom.T]*prepared
}

// New returns a ready Planar adapter with its own GEOS context.
func New() *Planar {
	return &Planar{
		ctx:      geos.NewContext(),
		log:      zap.L().With(zap.String("component", "planar")),
		prepared: make(map[geom.T]*prepared),
	}
}

// Prepare converts g once and keeps a prepared GEOS geometry for it, so
// repeated distance and containment queries skip the conversion. Only
// pointer geometries can be cached.
func (p *Planar) Prepare(g geom.T) {
	if IsEmpty(g) {
		return
	}
	gg, err := p.toGEOS(g)
	if err != nil {
		p.log.Warn("planar: prepare geometry", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.prepared[g] = &prepared{g: gg, prep: gg.Prepare()}
	p.mu.Unlock()
}

func (p *Planar) cached(g geom.T) *prepared {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prepared[g]
}

// geometry returns the GEOS form of g and a release func for temporaries.
func (p *Planar) geometry(g geom.T) (*geos.Geom, func(), error) {
	if c := p.cached(g); c != nil {
		return c.g, func() {}, nil
	}
	gg, err := p.toGEOS(g)
	if err != nil {
		return nil, nil, err
	}
	return gg, gg.Destroy, nil
}

// Distance implements Adapter.
func (p *Planar) Distance(a, b geom.T) float64 {
	if IsEmpty(a) || IsEmpty(b) {
		return math.Inf(1)
	}
	ga, releaseA, err := p.geometry(a)
	if err != nil {
		return math.Inf(1)
	}
	defer releaseA()
	gb, releaseB, err := p.geometry(b)
	if err != nil {
		return math.Inf(1)
	}
	defer releaseB()
	return ga.Distance(gb)
}

// Union implements Adapter. Each input is repaired with MakeValid when
// GEOS reports it invalid, then all polygons are merged with a unary
// union so shared edges and overlaps dissolve.
func (p *Planar) Union(gs []geom.T) geom.T {
	parts := geom.NewGeometryCollection()
	for _, g := range gs {
		for _, poly := range polygons(p.Repair(Clean(g))) {
			if err := parts.Push(poly); err != nil {
				continue
			}
		}
	}
	if parts.NumGeoms() == 0 {
		return nil
	}

	gg, err := p.toGEOS(parts)
	if err != nil {
		p.log.Warn("planar: union input", zap.Error(err))
		return nil
	}
	defer gg.Destroy()
	u := gg.UnaryUnion()
	if u == nil {
		return nil
	}
	defer u.Destroy()

	out, err := fromGEOS(u)
	if err != nil {
		p.log.Warn("planar: union result", zap.Error(err))
		return nil
	}
	return multiPolygon(out)
}

// Repair returns g unchanged when it has no polygons or GEOS considers it
// valid, and the polygonal part of its MakeValid result otherwise. It
// returns nil when the repair leaves no area.
func (p *Planar) Repair(g geom.T) geom.T {
	if len(polygons(g)) == 0 {
		return g
	}
	gg, err := p.toGEOS(g)
	if err != nil {
		return nil
	}
	defer gg.Destroy()
	if gg.IsValid() {
		return g
	}
	fixed := gg.MakeValid()
	if fixed == nil {
		return nil
	}
	defer fixed.Destroy()
	out, err := fromGEOS(fixed)
	if err != nil {
		return nil
	}
	return multiPolygon(out)
}

// Contains implements Adapter.
func (p *Planar) Contains(area geom.T, pt geom.Coord) bool {
	if IsEmpty(area) || len(polygons(area)) == 0 {
		return false
	}
	point, err := p.point(pt)
	if err != nil {
		return false
	}
	defer point.Destroy()
	if c := p.cached(area); c != nil {
		return c.prep.Intersects(point)
	}
	ga, err := p.toGEOS(area)
	if err != nil {
		return false
	}
	defer ga.Destroy()
	return ga.Intersects(point)
}

// RepresentativePoint implements Adapter. It is the GEOS point on surface:
// an interior point for areas and a vertex near the middle for lines.
func (p *Planar) RepresentativePoint(g geom.T) (geom.Coord, error) {
	if IsEmpty(g) {
		return nil, ErrEmptyGeometry
	}
	gg, release, err := p.geometry(g)
	if err != nil {
		return nil, err
	}
	defer release()
	pos := gg.PointOnSurface()
	if pos == nil {
		return nil, ErrEmptyGeometry
	}
	defer pos.Destroy()
	if pos.IsEmpty() {
		return nil, ErrEmptyGeometry
	}
	out, err := fromGEOS(pos)
	if err != nil {
		return nil, err
	}
	pt, ok := out.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("planar: point on surface returned %T", out)
	}
	return geom.Coord{pt.X(), pt.Y()}, nil
}

// Nearest implements Adapter.
func (p *Planar) Nearest(pt geom.Coord, candidates []geom.T) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	if len(candidates) == 0 {
		return best, bestDist
	}
	point := geom.NewPointFlat(geom.XY, []float64{pt[0], pt[1]})
	for i, c := range candidates {
		if d := p.Distance(point, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (p *Planar) point(c geom.Coord) (*geos.Geom, error) {
	return p.toGEOS(geom.NewPointFlat(geom.XY, []float64{c[0], c[1]}))
}

// multiPolygon collects the polygons of g into one multipolygon, nil when
// there are none.
func multiPolygon(g geom.T) geom.T {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polygons(g) {
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

var _ Adapter = (*Planar)(nil)
