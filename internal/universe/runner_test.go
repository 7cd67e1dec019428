package universe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/ewscore"
	"github.com/khautala/swingmaster/internal/ohlc"
	"github.com/khautala/swingmaster/internal/persistence"
	"github.com/khautala/swingmaster/internal/policy"
	"github.com/khautala/swingmaster/internal/signals"
)

type fixture struct {
	store  *persistence.Store
	states *persistence.StateRepo
	runs   *persistence.RunRepo
	reader *persistence.OHLCReader
	runner *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.EnsureOHLCTable(ctx))

	states := persistence.NewStateRepo(store)
	runs := persistence.NewRunRepo(store)
	reader, err := persistence.NewOHLCReader(store, "ohlc_daily")
	require.NoError(t, err)

	provider, err := signals.NewProvider(signals.DefaultConfig())
	require.NoError(t, err)

	runner := NewRunner(states, runs, reader, provider, policy.NewV3(states), "test")
	return &fixture{store: store, states: states, runs: runs, reader: reader, runner: runner}
}

// seedFlatHistory writes n flat trading days ending on endDate.
func (f *fixture) seedFlatHistory(t *testing.T, ticker string, n int, endDate string) []string {
	t.Helper()
	end, err := time.Parse("2006-01-02", endDate)
	require.NoError(t, err)
	dates := make([]string, 0, n)
	day := end
	for len(dates) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append([]string{day.Format("2006-01-02")}, dates...)
		}
		day = day.AddDate(0, 0, -1)
	}
	for _, d := range dates {
		bar := ohlc.Bar{Date: d, Open: 100, High: 100, Low: 100, Close: 100}
		require.NoError(t, f.reader.InsertBar(context.Background(), ticker, bar, "omxh"))
	}
	return dates
}

func TestRunDailyPersistsQuietNoTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFlatHistory(t, "AAA", 60, "2026-03-31")

	runID, err := f.runner.RunDaily(ctx, "2026-03-31", []string{"AAA"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	row, err := f.states.GetState(ctx, "AAA", "2026-03-31")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "NO_TRADE", row.State)
	assert.Equal(t, 1, row.Age)
	assert.Equal(t, `["POLICY:NO_SIGNAL"]`, row.ReasonsJSON)
	assert.Equal(t, runID, row.RunID)

	tr, err := f.states.GetTransition(ctx, "AAA", "2026-03-31")
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestRunDailyShortHistoryDegradesToDataInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFlatHistory(t, "AAA", 10, "2026-03-31")

	_, err := f.runner.RunDaily(ctx, "2026-03-31", []string{"AAA"})
	require.NoError(t, err)

	row, err := f.states.GetState(ctx, "AAA", "2026-03-31")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "NO_TRADE", row.State)
	assert.Equal(t, `["POLICY:DATA_INSUFFICIENT"]`, row.ReasonsJSON)
}

func TestRunDailyAgeAccumulatesAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dates := f.seedFlatHistory(t, "AAA", 62, "2026-03-31")
	lastThree := dates[len(dates)-3:]

	for _, d := range lastThree {
		_, err := f.runner.RunDaily(ctx, d, []string{"AAA"})
		require.NoError(t, err)
	}

	for i, d := range lastThree {
		row, err := f.states.GetState(ctx, "AAA", d)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, i+1, row.Age, "age on %s", d)
	}
}

func TestRunDailyRerunIsIdempotentModuloRunID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFlatHistory(t, "AAA", 60, "2026-03-31")

	_, err := f.runner.RunDaily(ctx, "2026-03-31", []string{"AAA"})
	require.NoError(t, err)
	first, err := f.states.GetState(ctx, "AAA", "2026-03-31")
	require.NoError(t, err)

	_, err = f.runner.RunDaily(ctx, "2026-03-31", []string{"AAA"})
	require.NoError(t, err)
	second, err := f.states.GetState(ctx, "AAA", "2026-03-31")
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.ReasonsJSON, second.ReasonsJSON)
	assert.Equal(t, first.Age, second.Age)
	assert.Equal(t, first.StateAttrsJSON, second.StateAttrsJSON)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunRangeRejectsMixedVersions(t *testing.T) {
	f := newFixture(t)
	spec := RangeSpec{
		DateFrom:      "2026-03-01",
		DateTo:        "2026-03-31",
		SignalVersion: "v3",
		PolicyVersion: "v2",
	}
	_, err := f.runner.RunRange(context.Background(), spec, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatibleVersions)
}

func TestRunRangeDryRunResolvesDays(t *testing.T) {
	f := newFixture(t)
	f.seedFlatHistory(t, "AAA", 60, "2026-03-31")

	spec := RangeSpec{
		DateFrom:      "2026-03-25",
		DateTo:        "2026-03-31",
		DryRun:        true,
		SignalVersion: "v3",
		PolicyVersion: "v3",
	}
	result, err := f.runner.RunRange(context.Background(), spec, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.TradingDays)
	assert.Equal(t, []string{"AAA"}, result.Tickers)
	for _, d := range result.TradingDays {
		assert.GreaterOrEqual(t, d, "2026-03-25")
		assert.LessOrEqual(t, d, "2026-03-31")
	}
}

func TestRunRangeEvaluatesAscendingAndReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedFlatHistory(t, "AAA", 63, "2026-03-31")

	confirmer := ewscore.NewConfirmer(f.states, f.reader)
	scores := persistence.NewEWScoreRepo(f.store)
	scorer := ewscore.NewEngine(f.states, scores, f.reader)

	spec := RangeSpec{
		DateFrom:      "2026-03-27",
		DateTo:        "2026-03-31",
		SignalVersion: "v3",
		PolicyVersion: "v3",
		WithEWScores:  true,
	}
	result, err := f.runner.RunRange(ctx, spec, confirmer, scorer)
	require.NoError(t, err)
	require.NotEmpty(t, result.LastRunID)

	lastDay := result.TradingDays[len(result.TradingDays)-1]
	counts, err := f.runner.StateCounts(ctx, lastDay, result.LastRunID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StateNoTrade])
}

func TestRunRangeSafetyStopWithoutMaxDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 301 synthetic trading days trip the guard.
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	added := 0
	for added < 301 {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			d := day.Format("2006-01-02")
			bar := ohlc.Bar{Date: d, Open: 100, High: 100, Low: 100, Close: 100}
			require.NoError(t, f.reader.InsertBar(ctx, "AAA", bar, "omxh"))
			added++
		}
		day = day.AddDate(0, 0, 1)
	}

	spec := RangeSpec{
		DateFrom:      "2024-01-01",
		DateTo:        fmt.Sprintf("%d-12-31", 2025),
		SignalVersion: "v3",
		PolicyVersion: "v3",
	}
	_, err := f.runner.RunRange(ctx, spec, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading days")
}
