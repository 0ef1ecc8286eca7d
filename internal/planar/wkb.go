package planar

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// toGEOS converts a go-geom geometry through little-endian WKB.
func (p *Planar) toGEOS(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "planar: encode wkb")
	}
	gg, err := p.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "planar: parse wkb")
	}
	return gg, nil
}

func fromGEOS(g *geos.Geom) (geom.T, error) {
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "planar: decode wkb")
	}
	return out, nil
}
