package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/shade-units/internal/pipeline"
)

// DefaultDetailPattern names per-unit detail files; {id} is the unit id.
const DefaultDetailPattern = "unit_{id}.geojson"

// DefaultDetailFields are the pass-through attributes kept on detail
// features when present.
var DefaultDetailFields = []string{
	"Guid",
	"Gebruiksfunctie",
	"Jaar_van_aanleg",
	"Jaar_laatste_conservering",
	"Jaar_uitgevoerd_onderhoud",
	"shade_availability_index_30",
	"shade_availability_index_40",
	"shade_availability_index_50",
	"shade_percent_at_1000",
	"shade_percent_at_1300",
	"shade_percent_at_1530",
	"shade_percent_at_1800",
}

// DetailOptions configures WriteDetails.
type DetailOptions struct {
	Pattern string
	Fields  []string
}

// WriteDetails clears existing *.geojson files in dir and writes one file
// per unit holding its selected, assigned features. Units without selected
// features get no file. It returns the paths written.
func WriteDetails(dir string, res *pipeline.Result, opts DetailOptions) ([]string, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultDetailPattern
	}
	if opts.Fields == nil {
		opts.Fields = DefaultDetailFields
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create detail directory %s", dir)
	}

	old, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, eris.Wrap(err, "export: list detail files")
	}
	for _, f := range old {
		if err := os.Remove(f); err != nil {
			return nil, eris.Wrapf(err, "export: remove %s", f)
		}
	}

	fields := availableFields(res, opts.Fields)
	var written []string
	for _, u := range res.Units {
		features := res.SelectedFor(u.ID)
		if len(features) == 0 {
			continue
		}

		fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
		for _, f := range features {
			props := make(map[string]any, len(fields)+6)
			for _, name := range fields {
				props[name] = f.Properties[name]
			}
			props["distance_m"] = f.Distance
			props["unit_id"] = u.ID
			props["unit_name"] = u.Name
			props["admin_level"] = u.AdminLevel
			props["buffer_m"] = res.Options.Selection.Base
			props["selection_mode"] = string(res.Options.Mode)
			fc.Features = append(fc.Features, &geojson.Feature{Geometry: f.Geometry, Properties: props})
		}

		path := filepath.Join(dir, strings.ReplaceAll(opts.Pattern, "{id}", u.ID))
		if err := writeJSON(path, fc); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	zap.L().With(zap.String("component", "export")).Info("wrote unit detail files",
		zap.String("dir", dir),
		zap.Int("files", len(written)),
		zap.Int("removed", len(old)),
	)
	return written, nil
}

// availableFields keeps the configured fields carried by at least one
// selected feature, in configured order.
func availableFields(res *pipeline.Result, fields []string) []string {
	present := make(map[string]bool)
	for _, i := range res.Selected {
		for k := range res.Features[i].Properties {
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
