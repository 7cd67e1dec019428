package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newScheduleCmd runs the daily universe evaluation on a cron schedule,
// evaluating the previous calendar day each time it fires.
func newScheduleCmd() *cobra.Command {
	var (
		schedule string
		tickers  string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily evaluation on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			list := splitTickers(tickers)

			c := cron.New()
			_, err = c.AddFunc(schedule, func() {
				asOf := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
				universe := list
				if len(universe) == 0 {
					resolved, rerr := a.ohlc.Tickers(ctx, "")
					if rerr != nil {
						log.Error().Err(rerr).Msg("resolve universe")
						return
					}
					universe = resolved
				}
				runID, rerr := a.runner.RunDaily(ctx, asOf, universe)
				if rerr != nil {
					log.Error().Err(rerr).Str("date", asOf).Msg("scheduled run failed")
					return
				}
				log.Info().Str("date", asOf).Str("run_id", runID).Int("tickers", len(universe)).Msg("scheduled run complete")
			})
			if err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
			}

			c.Start()
			defer c.Stop()
			log.Info().Str("schedule", schedule).Msg("scheduler started")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Info().Msg("scheduler stopping")
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "cron", "30 6 * * 2-6", "Cron schedule (default: 06:30 Tue-Sat, after each trading day)")
	cmd.Flags().StringVar(&tickers, "tickers", "", "Comma-separated ticker list (default: all)")
	return cmd
}
