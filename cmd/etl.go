package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/pipeline"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run and inspect the incremental pipeline",
	Long:  "Commands for executing the clean/validate/enrich/merge run and inspecting its history.",
}

// -- etl run --

var etlFullRefresh bool

var etlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir, err := initDirectory()
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(st, cfg, dir)
		metrics, err := runner.Run(ctx, pipeline.RunOpts{FullRefresh: etlFullRefresh})
		if err != nil {
			return eris.Wrap(err, "etl run")
		}

		formatRunMetrics(os.Stdout, metrics)
		return nil
	},
}

// -- etl status --

var etlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watermarks and recent run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRunMetrics(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "etl status")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, src := range []string{"employees", "claims"} {
			wm, err := st.Watermark(ctx, src)
			if err != nil {
				return eris.Wrap(err, "etl status")
			}
			pos := "(none)"
			if wm != nil {
				pos = wm.Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(w, "watermark %s:\t%s\n", src, pos)
		}
		_ = w.Flush()

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		fmt.Println()
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	etlRunCmd.Flags().BoolVar(&etlFullRefresh, "full-refresh", false, "ignore watermarks and reprocess every row")
	etlStatusCmd.Flags().Int("limit", 20, "max number of runs to display")

	etlCmd.AddCommand(etlRunCmd)
	etlCmd.AddCommand(etlStatusCmd)
	rootCmd.AddCommand(etlCmd)
}

// formatRunsList writes a tabular run history to w.
func formatRunsList(out io.Writer, runs []model.RunMetrics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tREAD\tVALID\tFLAGGED\tWRITTEN\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t-----\t-------\t-------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%dms\n",
			truncateID(r.RunID),
			r.Status,
			r.RowsRead,
			r.RowsValid,
			r.RowsFlagged,
			r.RowsWritten,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.ElapsedMS,
		)
	}
	_ = w.Flush()
}

// formatRunMetrics writes one run's metrics to w.
func formatRunMetrics(out io.Writer, m *model.RunMetrics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", m.RunID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", m.Status)
	_, _ = fmt.Fprintf(w, "Rows read:\t%d\n", m.RowsRead)
	_, _ = fmt.Fprintf(w, "Rows cleaned:\t%d\n", m.RowsCleaned)
	_, _ = fmt.Fprintf(w, "Rows valid:\t%d\n", m.RowsValid)
	_, _ = fmt.Fprintf(w, "Rows flagged:\t%d\n", m.RowsFlagged)
	_, _ = fmt.Fprintf(w, "Rows enriched:\t%d\n", m.RowsEnriched)
	_, _ = fmt.Fprintf(w, "Rows written:\t%d\n", m.RowsWritten)
	_, _ = fmt.Fprintf(w, "Duplicate claims:\t%d\n", m.DuplicateClaims)
	_, _ = fmt.Fprintf(w, "EINs inferred:\t%d\n", m.EINsInferred)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%dms\n", m.ElapsedMS)
	if m.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", m.Error)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
