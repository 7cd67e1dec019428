package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "swingmaster"
	version = "v3.0.0"
)

var (
	flagConfig  string
	flagDB      string
	flagVerbose bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic exclusion-first market-state engine for swing investing",
		Version: version,
		Long: `Swingmaster evaluates daily OHLC history into semantic signals, a
state-machine decision with reason codes, and structured lifecycle
metadata for a downtrend -> stabilization -> entry -> pass cycle.
Decisions persist per (ticker, date); the EW scoring layer writes
per-day episode scores on top.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if flagVerbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Row-store DSN (SQLite file path or postgres:// URL)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newRangeCmd())
	rootCmd.AddCommand(newEWScoreCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
