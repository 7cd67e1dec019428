package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khautala/swingmaster/internal/config"
	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/persistence"
	"github.com/khautala/swingmaster/internal/universe"
)

// newScanCmd evaluates one as-of date for an explicit ticker list and
// prints the resulting states.
func newScanCmd() *cobra.Command {
	var (
		date    string
		tickers string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate one as-of date for a set of tickers",
		Long:  "Runs the signal provider, policy and guardrails for one trading day and persists state, signal and transition rows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				return fmt.Errorf("--date is required")
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

			list := splitTickers(tickers)
			if len(list) == 0 {
				list, err = a.ohlc.Tickers(ctx, "")
				if err != nil {
					return err
				}
			}
			if len(list) == 0 {
				return fmt.Errorf("no tickers to scan")
			}

			runID, err := a.runner.RunDaily(ctx, date, list)
			if err != nil {
				return err
			}

			fmt.Printf("RUN %s date=%s tickers=%d\n", runID, date, len(list))
			for _, t := range list {
				row, gerr := a.states.GetState(ctx, t, date)
				if gerr != nil {
					return gerr
				}
				if row == nil {
					continue
				}
				note := ""
				if reasons := persistence.ParseReasons(row.ReasonsJSON); len(reasons) > 0 {
					if meta, ok := domain.ReasonMetadata[reasons[0]]; ok {
						note = meta.Message
					}
				}
				fmt.Printf("%s | %s | age=%d | %s | %s\n", t, row.State, row.Age, row.ReasonsJSON, note)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "As-of date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tickers, "tickers", "", "Comma-separated ticker list (default: all)")
	return cmd
}

func splitTickers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
