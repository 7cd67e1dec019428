package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khautala/swingmaster/internal/metrics"
)

// newEWScoreCmd computes EW scores for one as-of date.
func newEWScoreCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "ew-score",
		Short: "Compute entry-window scores for one as-of date",
		Long: `Scores every ticker sitting in ENTRY_WINDOW on the as-of date. The
per-market router decides which of the fastpass and rolling modes run;
each mode writes only its own column group.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				return fmt.Errorf("--date is required")
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.scorer.RunDaily(ctx, date)
			if err != nil {
				return err
			}
			if n > 0 {
				metrics.EWScoreWritesTotal.WithLabelValues("cli").Add(float64(n))
			}
			fmt.Printf("EW_SCORE date=%s rows=%d\n", date, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "As-of date (YYYY-MM-DD)")
	return cmd
}
