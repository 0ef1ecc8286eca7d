package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shade-units/internal/config"
	"github.com/sells-group/shade-units/internal/export"
	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/pipeline"
	"github.com/sells-group/shade-units/internal/source"
	"github.com/sells-group/shade-units/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the unit overview and write its outputs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		var st store.Store
		if record, _ := cmd.Flags().GetBool("record"); record {
			s, err := initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		out, err := executeRun(ctx, cfg, st, time.Now())
		if err != nil {
			return err
		}
		formatRunSummary(os.Stdout, out)
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.String("features", "", "feature source (.geojson or .shp)")
	f.String("boundaries", "", "boundary source (.geojson or .shp)")
	f.String("reference", "", "green-street reference source (.geojson or .shp)")
	f.String("mode", "", "selection mode: adaptive or fixed")
	f.String("level", "", "admin level preset (e.g. gebied, stadsdeel)")
	f.StringSlice("force", nil, "unit names that always use the max buffer")
	f.String("output", "", "output directory")
	f.Bool("record", false, "store the run in the configured run store")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides configuration with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	strs := map[string]*string{
		"features":   &c.Input.Features,
		"boundaries": &c.Input.Boundaries,
		"reference":  &c.Input.Reference,
		"mode":       &c.Selection.Mode,
		"level":      &c.Units.Level,
		"output":     &c.Output.Dir,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
	}
	if flags.Changed("force") {
		v, err := flags.GetStringSlice("force")
		if err != nil {
			return eris.Wrap(err, "flag --force")
		}
		c.Selection.ForcedUnits = v
	}
	return nil
}

// runOutput is what one executed run produced.
type runOutput struct {
	RunID   string
	Result  *pipeline.Result
	Outputs []string
}

// loadInput reads the three sources concurrently.
func loadInput(in config.InputConfig) (pipeline.Input, error) {
	var (
		input pipeline.Input
		g     errgroup.Group
	)
	read := func(path string, dst *[]model.Record, skipped *int) {
		g.Go(func() error {
			recs, n, err := source.Read(path)
			if err != nil {
				return err
			}
			*dst = recs
			*skipped = n
			return nil
		})
	}
	read(in.Features, &input.Features, &input.Skipped.Features)
	read(in.Boundaries, &input.Boundaries, &input.Skipped.Boundaries)
	read(in.Reference, &input.Reference, &input.Skipped.Reference)
	if err := g.Wait(); err != nil {
		return pipeline.Input{}, eris.Wrap(err, "load input")
	}
	return input, nil
}

// executeRun loads the inputs, runs the pipeline, optionally stores the run
// in st and writes every configured output.
func executeRun(ctx context.Context, c *config.Config, st store.Store, now time.Time) (*runOutput, error) {
	log := zap.L().With(zap.String("component", "run"))

	opts, err := c.PipelineOptions()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}

	input, err := loadInput(c.Input)
	if err != nil {
		return nil, err
	}
	log.Info("inputs loaded",
		zap.Int("features", len(input.Features)),
		zap.Int("boundaries", len(input.Boundaries)),
		zap.Int("reference", len(input.Reference)),
		zap.Int("skipped", input.Skipped.Total()),
	)

	res, err := p.Run(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "run pipeline")
	}

	out := &runOutput{RunID: uuid.NewString(), Result: res}
	if st != nil {
		rec, err := store.NewRunRecord(res, now)
		if err != nil {
			return nil, err
		}
		rec.Run.ID = out.RunID
		if _, err := st.SaveRun(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "save run")
		}
	}

	outputs, err := writeOutputs(c.Output, res)
	if err != nil {
		return nil, err
	}
	out.Outputs = outputs

	if name := c.Output.Manifest; name != "" {
		path := filepath.Join(c.Output.Dir, name)
		m := export.NewManifest(out.RunID, res, outputs, now)
		if err := export.WriteManifest(path, m); err != nil {
			return nil, err
		}
		out.Outputs = append(out.Outputs, path)
	}

	log.Info("run complete",
		zap.String("run_id", out.RunID),
		zap.Int("units", len(res.Units)),
		zap.Int("units_with_data", res.UnitsWithData()),
		zap.Int("selected", len(res.Selected)),
		zap.Strings("expanded", res.Expanded),
	)
	return out, nil
}

// writeOutputs writes the overview, detail, line and report files enabled
// in oc.
func writeOutputs(oc config.OutputConfig, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(oc.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create output dir")
	}

	var outputs []string
	if oc.UnitsFile != "" {
		path := filepath.Join(oc.Dir, oc.UnitsFile)
		if err := export.WriteUnits(path, res); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}
	if oc.DetailDir != "" {
		files, err := export.WriteDetails(filepath.Join(oc.Dir, oc.DetailDir), res, export.DetailOptions{
			Pattern: oc.DetailPattern,
			Fields:  oc.DetailFields,
		})
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, files...)
	}
	if oc.LinesFile != "" {
		path := filepath.Join(oc.Dir, oc.LinesFile)
		if err := export.WriteLines(path, res, oc.LineFields); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}
	if oc.Report != "" {
		path := filepath.Join(oc.Dir, oc.Report)
		if err := export.WriteReport(path, res); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

// formatRunSummary writes a short human-readable summary of a run to w.
func formatRunSummary(w io.Writer, out *runOutput) {
	res := out.Result
	_, _ = fmt.Fprintf(w, "run %s\n", out.RunID)
	_, _ = fmt.Fprintf(w, "units: %d (%d with data)\n", len(res.Units), res.UnitsWithData())
	_, _ = fmt.Fprintf(w, "features: %d selected of %d\n", len(res.Selected), len(res.Features))
	if len(res.Expanded) > 0 {
		_, _ = fmt.Fprintf(w, "expanded: %v\n", res.Expanded)
	}
	if s := res.Skipped; s.Total() > 0 {
		_, _ = fmt.Fprintf(w, "skipped without geometry: %d features, %d boundaries, %d reference\n",
			s.Features, s.Boundaries, s.Reference)
	}
	for _, o := range out.Outputs {
		_, _ = fmt.Fprintf(w, "wrote %s\n", o)
	}
}
