package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/source"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analytical queries over the merged dataset",
	Long:  "Computes coverage gaps, claims cost spikes, and roster reconciliation from the store, persists the results, and prints them.",
}

var (
	gapThresholdDays  int
	spikeThresholdPct float64
	spikeBucketDays   int
)

// -- analyze gaps --

var analyzeGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Detect coverage gaps between plan intervals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		plans, err := st.Plans(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze gaps")
		}

		threshold := gapThresholdDays
		if threshold == 0 {
			threshold = cfg.Analysis.GapThresholdDays
		}

		gaps := analytics.DetectGaps(plans, threshold, time.Now().UTC())
		if err := st.ReplaceGaps(ctx, gaps); err != nil {
			return eris.Wrap(err, "analyze gaps")
		}
		zap.L().Info("gap analysis complete",
			zap.Int("plans", len(plans)),
			zap.Int("gaps", len(gaps)),
			zap.Int("threshold_days", threshold),
		)

		if len(gaps) == 0 {
			fmt.Fprintln(os.Stderr, "No coverage gaps found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "COMPANY\tPLAN_TYPE\tGAP_START\tGAP_END\tDAYS\tPREV_CARRIER\tNEXT_CARRIER")
		for _, g := range gaps {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				g.CompanyEIN, g.PlanType,
				g.GapStart.Format("2006-01-02"), g.GapEnd.Format("2006-01-02"),
				g.GapDays, g.PrevCarrier, g.NextCarrier,
			)
		}
		_ = w.Flush()
		return nil
	},
}

// -- analyze spikes --

var analyzeSpikesCmd = &cobra.Command{
	Use:   "spikes",
	Short: "Detect cost spikes between adjacent claim buckets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		claims, err := st.Claims(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze spikes")
		}

		threshold := spikeThresholdPct
		if threshold == 0 {
			threshold = cfg.Analysis.SpikeThresholdPct
		}
		bucketDays := spikeBucketDays
		if bucketDays == 0 {
			bucketDays = cfg.Analysis.BucketDays
		}

		spikes := analytics.DetectSpikes(claims, bucketDays, threshold)
		if err := st.ReplaceSpikes(ctx, spikes); err != nil {
			return eris.Wrap(err, "analyze spikes")
		}
		zap.L().Info("spike analysis complete",
			zap.Int("claims", len(claims)),
			zap.Int("spikes", len(spikes)),
			zap.Float64("threshold_pct", threshold),
			zap.Int("bucket_days", bucketDays),
		)

		if len(spikes) == 0 {
			fmt.Fprintln(os.Stderr, "No cost spikes found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "COMPANY\tBUCKET_START\tBUCKET_END\tPREV_COST\tCURR_COST\tPCT_CHANGE")
		for _, s := range spikes {
			pct := fmt.Sprintf("%.1f%%", s.PctChange)
			if s.ZeroBaseline {
				pct = "(zero baseline)"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
				s.CompanyEIN,
				s.BucketStart.Format("2006-01-02"), s.BucketEnd.Format("2006-01-02"),
				s.PrevCost, s.CurrCost, pct,
			)
		}
		_ = w.Flush()
		return nil
	},
}

// -- analyze roster --

var analyzeRosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Reconcile employee counts against the expected roster",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		actual, err := st.EmployeeCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze roster")
		}
		expected, err := source.LoadExpectedCounts(ctx, cfg.Roster)
		if err != nil {
			return eris.Wrap(err, "analyze roster")
		}

		mismatches := analytics.CompareRoster(actual, expected)
		if err := st.ReplaceRoster(ctx, mismatches); err != nil {
			return eris.Wrap(err, "analyze roster")
		}
		zap.L().Info("roster reconciliation complete",
			zap.Int("companies", len(mismatches)),
		)

		if len(mismatches) == 0 {
			fmt.Fprintln(os.Stderr, "No companies to reconcile.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "COMPANY\tEXPECTED\tACTUAL\tDELTA\tPCT_DIFF\tSEVERITY")
		for _, m := range mismatches {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%+d\t%.1f%%\t%s\n",
				m.CompanyEIN, m.Expected, m.Actual, m.Delta, m.PctDiff, m.Severity,
			)
		}
		_ = w.Flush()
		return nil
	},
}

// -- analyze views --

var analyzeViewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Rebuild the database views over the analysis tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.RebuildViews(ctx); err != nil {
			return eris.Wrap(err, "analyze views")
		}
		fmt.Println("Views rebuilt: v_plan_gaps, v_claims_cost_spike, v_roster_mismatch")
		return nil
	},
}

func init() {
	analyzeGapsCmd.Flags().IntVar(&gapThresholdDays, "threshold-days", 0, "minimum gap length in days (default from config)")
	analyzeSpikesCmd.Flags().Float64Var(&spikeThresholdPct, "threshold-pct", 0, "minimum percentage increase (default from config)")
	analyzeSpikesCmd.Flags().IntVar(&spikeBucketDays, "bucket-days", 0, "bucket width in days (default from config)")

	analyzeCmd.AddCommand(analyzeGapsCmd)
	analyzeCmd.AddCommand(analyzeSpikesCmd)
	analyzeCmd.AddCommand(analyzeRosterCmd)
	analyzeCmd.AddCommand(analyzeViewsCmd)
	rootCmd.AddCommand(analyzeCmd)
}
