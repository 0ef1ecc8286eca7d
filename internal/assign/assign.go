// Package assign attaches every feature to exactly one overview unit.
package assign

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/planar"
)

// Stats counts how features were assigned.
type Stats struct {
	Contained  int `json:"contained" yaml:"contained"`
	Nearest    int `json:"nearest" yaml:"nearest"`
	Unassigned int `json:"unassigned" yaml:"unassigned"`
}

// Assign sets UnitID, UnitName and AdminLevel on each feature. A feature
// goes to the first unit, in slice order, containing its representative
// point; features outside every unit go to the nearest unit. Features are
// left unassigned only when there are no units.
func Assign(features []model.Feature, units []*model.Unit, geo planar.Adapter) Stats {
	log := zap.L().With(zap.String("component", "assign"))

	var stats Stats
	if len(units) == 0 {
		stats.Unassigned = len(features)
		log.Warn("no units available, features left unassigned", zap.Int("features", len(features)))
		return stats
	}

	geoms := make([]geom.T, len(units))
	bounds := make([]*geom.Bounds, len(units))
	for i, u := range units {
		geoms[i] = u.Geometry
		bounds[i] = u.Geometry.Bounds()
	}

	points := make([]geom.Coord, len(features))
	var missing []int
	for i := range features {
		f := &features[i]
		pt, err := geo.RepresentativePoint(f.Geometry)
		if err != nil {
			log.Debug("feature has no representative point", zap.Int("row", f.Row), zap.Error(err))
			stats.Unassigned++
			continue
		}
		points[i] = pt

		idx := containing(pt, geoms, bounds, geo)
		if idx < 0 {
			missing = append(missing, i)
			continue
		}
		set(f, units[idx], 0)
		stats.Contained++
	}

	// Nearest-unit fallback only for features that failed containment.
	for _, i := range missing {
		idx, dist := geo.Nearest(points[i], geoms)
		if idx < 0 {
			stats.Unassigned++
			continue
		}
		set(&features[i], units[idx], dist)
		stats.Nearest++
	}

	log.Info("assigned features to units",
		zap.Int("contained", stats.Contained),
		zap.Int("nearest", stats.Nearest),
		zap.Int("unassigned", stats.Unassigned),
	)
	return stats
}

func containing(pt geom.Coord, geoms []geom.T, bounds []*geom.Bounds, geo planar.Adapter) int {
	for i, g := range geoms {
		b := bounds[i]
		if pt[0] < b.Min(0) || pt[0] > b.Max(0) || pt[1] < b.Min(1) || pt[1] > b.Max(1) {
			continue
		}
		if geo.Contains(g, pt) {
			return i
		}
	}
	return -1
}

func set(f *model.Feature, u *model.Unit, dist float64) {
	f.UnitID = u.ID
	f.UnitName = u.Name
	f.AdminLevel = u.AdminLevel
	f.DistanceToUnit = dist
}
