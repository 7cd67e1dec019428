package ewscore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/ohlc"
	"github.com/khautala/swingmaster/internal/persistence"
)

type fixture struct {
	store  *persistence.Store
	states *persistence.StateRepo
	scores *persistence.EWScoreRepo
	reader *persistence.OHLCReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := persistence.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.EnsureOHLCTable(ctx))

	reader, err := persistence.NewOHLCReader(store, "ohlc_daily")
	require.NoError(t, err)
	return &fixture{
		store:  store,
		states: persistence.NewStateRepo(store),
		scores: persistence.NewEWScoreRepo(store),
		reader: reader,
	}
}

func (f *fixture) addBar(t *testing.T, ticker, date string, close float64, market string) {
	t.Helper()
	bar := ohlc.Bar{Date: date, Open: close, High: close, Low: close, Close: close}
	require.NoError(t, f.reader.InsertBar(context.Background(), ticker, bar, market))
}

func (f *fixture) addState(t *testing.T, ticker, date string, state domain.State, status domain.Status) {
	t.Helper()
	require.NoError(t, f.states.UpsertState(context.Background(), ticker, date, state, state,
		[]domain.ReasonCode{domain.ReasonNoSignal}, domain.StateAttrs{Age: 1, Status: status}, "run-1"))
}

func (f *fixture) addEntryTransition(t *testing.T, ticker, date string) {
	t.Helper()
	tr := &domain.Transition{
		FromState: domain.StateStabilizing,
		ToState:   domain.StateEntryWindow,
		Reasons:   []domain.ReasonCode{domain.ReasonEntryConditionsMet},
	}
	require.NoError(t, f.states.UpsertTransition(context.Background(), ticker, date, tr, domain.StateAttrs{Age: 1}, "run-1"))
}

func TestEngineWritesFastpassAndRollingForNordicMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// STABILIZING on 01-09 at 100, entry window opens 01-10 at 105,
	// still open on 01-13.
	f.addBar(t, "AAA", "2026-01-09", 100, MarketOMXS)
	f.addBar(t, "AAA", "2026-01-10", 105, MarketOMXS)
	f.addBar(t, "AAA", "2026-01-13", 107, MarketOMXS)

	f.addState(t, "AAA", "2026-01-09", domain.StateStabilizing, domain.Status{})
	f.addState(t, "AAA", "2026-01-10", domain.StateEntryWindow, domain.Status{
		DeclineProfile: domain.ProfileUnknown,
		EntryQuality:   domain.EntryQualityA,
	})
	f.addState(t, "AAA", "2026-01-13", domain.StateEntryWindow, domain.Status{})
	f.addEntryTransition(t, "AAA", "2026-01-10")

	engine := NewEngine(f.states, f.scores, f.reader)
	n, err := engine.RunDaily(ctx, "2026-01-13")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := f.scores.GetRow(ctx, "AAA", "2026-01-13")
	require.NoError(t, err)
	require.NotNil(t, row)

	require.True(t, row.ScoreFastpass.Valid)
	assert.Equal(t, RuleFastpassSE, row.RuleFastpass.String)
	require.True(t, row.ScoreRolling.Valid)
	assert.Equal(t, RuleRollingSE, row.RuleRolling.String)
	// Legacy columns untouched.
	assert.False(t, row.ScoreDay3.Valid)

	var fp map[string]any
	require.NoError(t, json.Unmarshal([]byte(row.InputsJSONFastpass.String), &fp))
	for _, key := range []string{
		"rule_id", "beta0", "threshold", "entry_date", "last_stab_date",
		"close_entry", "close_last_stab", "r_stab_to_entry_pct",
		"downtrend_origin", "downtrend_entry_type", "decline_profile",
		"stabilization_phase", "entry_gate", "entry_quality",
		"rows_total", "score_raw_z",
	} {
		assert.Contains(t, fp, key)
	}
	assert.Equal(t, "2026-01-10", fp["entry_date"])
	assert.Equal(t, "2026-01-09", fp["last_stab_date"])
	assert.InDelta(t, 5.0, fp["r_stab_to_entry_pct"].(float64), 1e-9)
	assert.InDelta(t, 2.0, fp["rows_total"].(float64), 1e-9)

	var rl map[string]any
	require.NoError(t, json.Unmarshal([]byte(row.InputsJSONRolling.String), &rl))
	for _, key := range []string{
		"rule_id", "beta0", "beta1", "threshold", "entry_date", "as_of_date",
		"close_day0", "close_today", "r_prefix_pct", "rows_total", "score_raw_z",
	} {
		assert.Contains(t, rl, key)
	}
	assert.InDelta(t, 100.0*(107.0/105.0-1.0), rl["r_prefix_pct"].(float64), 1e-9)
}

func TestEngineUSAWritesFastpassOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBar(t, "BBB", "2026-01-09", 100, MarketUSA)
	f.addBar(t, "BBB", "2026-01-10", 105, MarketUSA)
	f.addState(t, "BBB", "2026-01-09", domain.StateStabilizing, domain.Status{})
	f.addState(t, "BBB", "2026-01-10", domain.StateEntryWindow, domain.Status{})
	f.addEntryTransition(t, "BBB", "2026-01-10")

	engine := NewEngine(f.states, f.scores, f.reader)
	n, err := engine.RunDaily(ctx, "2026-01-10")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := f.scores.GetRow(ctx, "BBB", "2026-01-10")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.ScoreFastpass.Valid)
	assert.False(t, row.ScoreRolling.Valid)
	// One prefix row: provisional level 0 or 1.
	assert.LessOrEqual(t, row.LevelFastpass.Int64, int64(1))
}

func TestEngineSkipsTickersNotInEntryWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBar(t, "CCC", "2026-01-10", 100, MarketOMXH)
	f.addState(t, "CCC", "2026-01-10", domain.StateStabilizing, domain.Status{})

	engine := NewEngine(f.states, f.scores, f.reader)
	n, err := engine.RunDaily(ctx, "2026-01-10")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestContinuationConfirmsThreeOfFive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Pre-entry history at 100, entry window opens on 01-05, five
	// forward days with four closes above the rolling SMA5.
	pre := []string{"2025-12-26", "2025-12-29", "2025-12-30", "2025-12-31", "2026-01-02"}
	for _, d := range pre {
		f.addBar(t, "AAA", d, 100, MarketOMXH)
	}
	f.addBar(t, "AAA", "2026-01-05", 100, MarketOMXH)
	forward := []struct {
		date  string
		close float64
	}{
		{"2026-01-06", 103},
		{"2026-01-07", 104},
		{"2026-01-08", 101}, // below its SMA5: the one miss
		{"2026-01-09", 105},
		{"2026-01-12", 106},
	}
	for _, fd := range forward {
		f.addBar(t, "AAA", fd.date, fd.close, MarketOMXH)
	}

	f.addEntryTransition(t, "AAA", "2026-01-05")
	f.addState(t, "AAA", "2026-01-05", domain.StateEntryWindow, domain.Status{})
	f.addState(t, "AAA", "2026-01-12", domain.StateEntryWindow, domain.Status{})

	confirmer := NewConfirmer(f.states, f.reader)
	n, err := confirmer.Run(ctx, "2026-01-01", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Decision-day state row carries the verdict.
	row, err := f.states.GetState(ctx, "AAA", "2026-01-12")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.True(t, row.StateAttrsJSON.Valid)
	var outer struct {
		Status struct {
			EntryContinuationConfirmed *bool `json:"entry_continuation_confirmed"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(row.StateAttrsJSON.String), &outer))
	require.NotNil(t, outer.Status.EntryContinuationConfirmed)
	assert.True(t, *outer.Status.EntryContinuationConfirmed)

	// Mirrored into the originating transition row.
	trRow, err := f.states.GetTransition(ctx, "AAA", "2026-01-05")
	require.NoError(t, err)
	require.NotNil(t, trRow)
	require.True(t, trRow.StateAttrsJSON.Valid)
	require.NoError(t, json.Unmarshal([]byte(trRow.StateAttrsJSON.String), &outer))
	require.NotNil(t, outer.Status.EntryContinuationConfirmed)
	assert.True(t, *outer.Status.EntryContinuationConfirmed)
}

func TestContinuationUndecidableBeforeFifthForwardDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBar(t, "AAA", "2026-01-05", 100, MarketOMXH)
	f.addBar(t, "AAA", "2026-01-06", 103, MarketOMXH)
	f.addEntryTransition(t, "AAA", "2026-01-05")

	confirmer := NewConfirmer(f.states, f.reader)
	n, err := confirmer.Run(ctx, "2026-01-01", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
