package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/khautala/swingmaster/internal/config"
	"github.com/khautala/swingmaster/internal/universe"
)

// newRangeCmd runs the universe over a date range in ascending order,
// then backfills entry-continuation confirmations and optional EW scores.
func newRangeCmd() *cobra.Command {
	var (
		dateFrom string
		dateTo   string
		maxDays  int
		market   string
		tickers  string
		dryRun   bool
		ewScores bool
	)
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Evaluate a universe across a date range",
		Long: `Derives trading days from stored OHLC between --from and --to and
evaluates each day in ascending order. Rejects mixed signal/policy
version pairs before touching storage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dateFrom == "" || dateTo == "" {
				return fmt.Errorf("--from and --to are required")
			}
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if err := universe.CheckVersions(cfg.SignalVersion, cfg.PolicyVersion); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			spec := universe.RangeSpec{
				DateFrom:      dateFrom,
				DateTo:        dateTo,
				MaxDays:       maxDays,
				Market:        market,
				Tickers:       splitTickers(tickers),
				DryRun:        dryRun,
				SignalVersion: a.cfg.SignalVersion,
				PolicyVersion: a.cfg.PolicyVersion,
				WithEWScores:  ewScores,
			}
			result, err := a.runner.RunRange(ctx, spec, a.confirmer, a.scorer)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("DRY RUN days=%d tickers=%d\n", len(result.TradingDays), len(result.Tickers))
				for _, d := range result.TradingDays {
					fmt.Println(d)
				}
				return nil
			}

			lastDay := result.TradingDays[len(result.TradingDays)-1]
			counts, err := a.runner.StateCounts(ctx, lastDay, result.LastRunID)
			if err != nil {
				return err
			}
			fmt.Printf("RANGE %s..%s days=%d tickers=%d run_id=%s\n",
				dateFrom, dateTo, len(result.TradingDays), len(result.Tickers), result.LastRunID)
			fmt.Printf("CONFIRMATIONS %d EW_ROWS %d\n", result.Confirmations, result.EWRowsWritten)
			for state, n := range counts {
				fmt.Printf("%s: %d\n", state, n)
			}
			log.Info().Str("last_day", lastDay).Str("run_id", result.LastRunID).Msg("range complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFrom, "from", "", "Range start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Range end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&maxDays, "max-days", 0, "Process at most N trading days (0 = guarded default)")
	cmd.Flags().StringVar(&market, "market", "", "Restrict universe to one market label")
	cmd.Flags().StringVar(&tickers, "tickers", "", "Comma-separated ticker list (default: resolved universe)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve days and tickers without evaluating")
	cmd.Flags().BoolVar(&ewScores, "ew-scores", false, "Compute EW scores for each processed day")
	return cmd
}
