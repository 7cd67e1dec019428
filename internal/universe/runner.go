package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/engine"
	"github.com/khautala/swingmaster/internal/ewscore"
	"github.com/khautala/swingmaster/internal/metrics"
	"github.com/khautala/swingmaster/internal/persistence"
	"github.com/khautala/swingmaster/internal/policy"
	"github.com/khautala/swingmaster/internal/signals"
)

// maxRangeDaysWithoutOverride guards accidental full-history runs.
const maxRangeDaysWithoutOverride = 300

// Runner orchestrates daily universe evaluations: signals, policy,
// guardrails, persistence. One evaluation covers one (ticker, date); the
// same ticker is always processed in ascending date order.
type Runner struct {
	states   *persistence.StateRepo
	runs     *persistence.RunRepo
	ohlc     *persistence.OHLCReader
	provider *signals.Provider
	policy   policy.TransitionPolicy

	engineVersion string
	now           func() time.Time
}

// NewRunner wires an orchestrator.
func NewRunner(states *persistence.StateRepo, runs *persistence.RunRepo, ohlc *persistence.OHLCReader, provider *signals.Provider, pol policy.TransitionPolicy, engineVersion string) *Runner {
	return &Runner{
		states:        states,
		runs:          runs,
		ohlc:          ohlc,
		provider:      provider,
		policy:        pol,
		engineVersion: engineVersion,
		now:           time.Now,
	}
}

// RunDaily evaluates every ticker for one as-of date under a fresh run id.
func (r *Runner) RunDaily(ctx context.Context, asOfDate string, tickers []string) (string, error) {
	runID := uuid.NewString()
	createdAt := r.now().UTC().Format(time.RFC3339)
	if err := r.runs.InsertRun(ctx, runID, createdAt, r.engineVersion, r.policy.ID(), r.policy.Version()); err != nil {
		return "", err
	}

	required := r.provider.Config().RequiredRows()
	for _, ticker := range tickers {
		series, err := r.ohlc.LastN(ctx, ticker, asOfDate, required)
		if err != nil {
			return "", fmt.Errorf("load ohlc for %s: %w", ticker, err)
		}
		set := r.provider.Evaluate(ticker, series, asOfDate)

		prevState, prevAttrs, err := r.states.PrevState(ctx, ticker, asOfDate)
		if err != nil {
			return "", err
		}

		result, err := engine.EvaluateStep(prevState, prevAttrs, set, r.policy, ticker, asOfDate)
		if err != nil {
			return "", err
		}

		if err := r.states.UpsertState(ctx, ticker, asOfDate, result.FinalState, prevState, result.Reasons, result.FinalAttrs, runID); err != nil {
			return "", err
		}
		if err := r.states.UpsertSignals(ctx, ticker, asOfDate, set, runID); err != nil {
			return "", err
		}
		if err := r.states.UpsertTransition(ctx, ticker, asOfDate, result.Transition, result.FinalAttrs, runID); err != nil {
			return "", err
		}

		metrics.EvaluationsTotal.Inc()
		if set.Has(signals.DataInsufficient) {
			metrics.DataInsufficientTotal.Inc()
		}
		if result.Transition != nil {
			metrics.TransitionsTotal.WithLabelValues(string(result.FinalState)).Inc()
			log.Debug().
				Str("ticker", ticker).
				Str("date", asOfDate).
				Str("from", string(result.PrevState)).
				Str("to", string(result.FinalState)).
				Msg("transition")
		}
	}
	return runID, nil
}

// RangeSpec parameterizes a range run.
type RangeSpec struct {
	DateFrom string
	DateTo   string
	MaxDays  int
	Market   string
	Tickers  []string
	DryRun   bool

	SignalVersion string
	PolicyVersion string

	WithEWScores bool
}

// RangeResult summarizes a range run.
type RangeResult struct {
	TradingDays   []string
	Tickers       []string
	LastRunID     string
	Confirmations int
	EWRowsWritten int
}

// RunRange evaluates every trading day in the window in ascending order,
// then backfills entry-continuation confirmations and, when requested,
// EW scores. The version guard runs before any storage interaction.
func (r *Runner) RunRange(ctx context.Context, spec RangeSpec, confirmer *ewscore.Confirmer, scorer *ewscore.Engine) (*RangeResult, error) {
	if err := CheckVersions(spec.SignalVersion, spec.PolicyVersion); err != nil {
		return nil, err
	}

	tickers := spec.Tickers
	if len(tickers) == 0 {
		var err error
		tickers, err = r.ohlc.Tickers(ctx, spec.Market)
		if err != nil {
			return nil, err
		}
	}
	tickers = dedupe(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers resolved for range run")
	}

	days, err := r.ohlc.TradingDays(ctx, spec.DateFrom, spec.DateTo)
	if err != nil {
		return nil, err
	}
	if spec.MaxDays > 0 && len(days) > spec.MaxDays {
		days = days[:spec.MaxDays]
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s", spec.DateFrom, spec.DateTo)
	}
	if spec.MaxDays == 0 && len(days) > maxRangeDaysWithoutOverride {
		return nil, fmt.Errorf("range covers %d trading days (limit %d); narrow the window or set --max-days",
			len(days), maxRangeDaysWithoutOverride)
	}

	result := &RangeResult{TradingDays: days, Tickers: tickers}
	if spec.DryRun {
		return result, nil
	}

	for i, day := range days {
		start := time.Now()
		runID, rerr := r.RunDaily(ctx, day, tickers)
		if rerr != nil {
			return nil, fmt.Errorf("day %s: %w", day, rerr)
		}
		result.LastRunID = runID
		if i == 0 || i == len(days)-1 || (i+1)%5 == 0 {
			log.Info().
				Int("day", i+1).
				Int("days", len(days)).
				Str("date", day).
				Str("run_id", runID).
				Dur("elapsed", time.Since(start)).
				Msg("range day complete")
		}
	}

	if confirmer != nil {
		n, cerr := confirmer.Run(ctx, spec.DateFrom, spec.DateTo)
		if cerr != nil {
			return nil, cerr
		}
		result.Confirmations = n
	}

	if spec.WithEWScores && scorer != nil {
		for _, day := range days {
			n, serr := scorer.RunDaily(ctx, day)
			if serr != nil {
				return nil, serr
			}
			result.EWRowsWritten += n
			if n > 0 {
				metrics.EWScoreWritesTotal.WithLabelValues("daily").Add(float64(n))
			}
		}
	}
	return result, nil
}

// StateCounts summarizes the final day of a run for report output.
func (r *Runner) StateCounts(ctx context.Context, date, runID string) (map[domain.State]int, error) {
	return r.states.StateCountsOn(ctx, date, runID)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
