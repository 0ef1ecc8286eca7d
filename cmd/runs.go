package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/shade-units/internal/model"
	"github.com/sells-group/shade-units/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored run history",
	Long:  "Commands for listing stored runs and viewing their unit statistics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mode, _ := cmd.Flags().GetString("mode")
		index, _ := cmd.Flags().GetString("index")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Mode:       model.SelectionMode(mode),
			IndexField: index,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its unit statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		units, err := st.ListUnitStats(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Run
				Units []model.UnitStat `json:"units"`
			}{run, units})
		}
		formatRunDetail(os.Stdout, run, units)
		return nil
	},
}

// -- runs decisions --

var runsDecisionsCmd = &cobra.Command{
	Use:   "decisions <run-id>",
	Short: "Show the adaptive selection table of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		decisions, err := st.ListDecisions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs decisions")
		}
		if len(decisions) == 0 {
			fmt.Fprintln(os.Stderr, "No selection decisions recorded.")
			return nil
		}
		formatDecisions(os.Stdout, decisions)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("mode", "", "filter by selection mode (adaptive, fixed)")
	runsListCmd.Flags().String("index", "", "filter by index field")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDecisionsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tLEVEL\tINDEX\tUNITS\tSELECTED\tEXPANDED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t-----\t--------\t--------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d/%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Mode,
			r.AdminLevel,
			r.IndexField,
			r.UnitsWithData, r.UnitsTotal,
			r.FeaturesChosen, r.FeaturesTotal,
			len(r.Expanded),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunDetail writes a run header followed by its unit table to w.
func formatRunDetail(out io.Writer, run *model.Run, units []model.UnitStat) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Mode:\t%s\n", run.Mode)
	_, _ = fmt.Fprintf(w, "Buffer:\t%g m (max %g m)\n", run.BaseBuffer, run.MaxBuffer)
	_, _ = fmt.Fprintf(w, "Thresholds:\tp10 %s, p90 %s\n", formatOptional(run.Thresholds.P10), formatOptional(run.Thresholds.P90))
	if len(run.Expanded) > 0 {
		_, _ = fmt.Fprintf(w, "Expanded:\t%s\n", strings.Join(run.Expanded, ", "))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "UNIT\tNAME\tCOUNT\tMEAN\tMIN\tMAX\tEXPANDED")
	_, _ = fmt.Fprintln(w, "----\t----\t-----\t----\t---\t---\t--------")
	for _, u := range units {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%t\n",
			u.UnitID,
			u.UnitName,
			u.Summary.Count,
			formatOptional(u.Summary.Mean),
			formatOptional(u.Summary.Min),
			formatOptional(u.Summary.Max),
			u.Expanded,
		)
	}
	_ = w.Flush()
}

// formatDecisions writes the adaptive selection table to w.
func formatDecisions(out io.Writer, decisions []model.Decision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIT\tBASE\tMAX\tGROWTH\tP90\tEXPANDED")
	_, _ = fmt.Fprintln(w, "----\t----\t---\t------\t---\t--------")
	for _, d := range decisions {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\t%.2f\t%t\n",
			d.UnitName, d.CountBase, d.CountMax, d.Growth, d.P90, d.Expanded)
	}
	_ = w.Flush()
}

// formatOptional renders an undefined statistic as "-".
func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
