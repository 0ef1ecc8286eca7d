package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/shade-units/internal/config"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/planar"
	"github.com/sells-group/shade-units/internal/source"
	"github.com/sells-group/shade-units/internal/unit"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Build units from the boundary source and list their ids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate("units"); err != nil {
			return err
		}

		units, err := buildUnits(cfg)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			fmt.Fprintln(os.Stderr, "No units built.")
			return nil
		}
		formatUnitsList(os.Stdout, units)
		return nil
	},
}

func init() {
	unitsCmd.Flags().String("boundaries", "", "boundary source (.geojson or .shp)")
	unitsCmd.Flags().String("level", "", "admin level preset (e.g. gebied, stadsdeel)")
	rootCmd.AddCommand(unitsCmd)
}

// buildUnits reads the boundary source and dissolves it into units.
func buildUnits(c *config.Config) ([]*model.Unit, error) {
	lvl, err := c.Units.Resolve()
	if err != nil {
		return nil, err
	}
	recs, _, err := source.Read(c.Input.Boundaries)
	if err != nil {
		return nil, err
	}

	boundaries := make([]model.Boundary, 0, len(recs))
	for _, r := range recs {
		if g := planar.Clean(r.Geometry); g != nil {
			boundaries = append(boundaries, model.Boundary{Geometry: g, Properties: r.Properties})
		}
	}

	units, _, err := unit.Build(boundaries, unit.Options{
		NameField:     lvl.Field,
		FallbackField: lvl.Fallback,
		AdminLevel:    lvl.Field,
		Placeholder:   c.Units.Placeholder,
	}, planar.New())
	if err != nil {
		return nil, eris.Wrap(err, "build units")
	}
	return units, nil
}

// formatUnitsList writes a tabular list of units to w.
func formatUnitsList(out io.Writer, units []*model.Unit) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tLEVEL")
	_, _ = fmt.Fprintln(w, "--\t----\t-----")
	for _, u := range units {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Name, u.AdminLevel)
	}
	_ = w.Flush()
}
