package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.EnsureOHLCTable(context.Background()))
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.EnsureDualModeColumns(context.Background()))
}

func TestEnsureDualModeColumnsRequiresBaseTable(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.EnsureDualModeColumns(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMissing)
}

func TestStateUpsertAndPrevState(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	// Unseen ticker defaults to a fresh NO_TRADE context.
	state, attrs, err := repo.PrevState(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNoTrade, state)
	assert.Equal(t, 0, attrs.Age)

	wroteAttrs := domain.StateAttrs{
		Age: 3,
		Status: domain.Status{
			DowntrendOrigin: domain.OriginTrend,
			DeclineProfile:  domain.ProfileSlowDrift,
		},
	}
	require.NoError(t, repo.UpsertState(ctx, "AAA", "2026-01-02", domain.StateDowntrendEarly, domain.StateNoTrade,
		[]domain.ReasonCode{domain.ReasonTrendStarted}, wroteAttrs, "run-1"))

	state, attrs, err = repo.PrevState(ctx, "AAA", "2026-01-03")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDowntrendEarly, state)
	assert.Equal(t, 3, attrs.Age)
	assert.Equal(t, domain.OriginTrend, attrs.Status.DowntrendOrigin)
	assert.Equal(t, domain.ProfileSlowDrift, attrs.Status.DeclineProfile)

	// Same-day rows are invisible to the prev-state read.
	state, _, err = repo.PrevState(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNoTrade, state)
}

func TestStateUpsertIsIdempotent(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	attrs := domain.StateAttrs{Age: 1, Status: domain.Status{StabilizationPhase: domain.PhaseEarlyReversal}}
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpsertState(ctx, "AAA", "2026-01-02", domain.StateStabilizing, domain.StateDowntrendLate,
			[]domain.ReasonCode{domain.ReasonStabilizationConfirmed}, attrs, "run-1"))
	}
	row, err := repo.GetState(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, `["POLICY:STABILIZATION_CONFIRMED"]`, row.ReasonsJSON)
	assert.Equal(t, `{"status":{"stabilization_phase":"EARLY_REVERSAL"}}`, row.StateAttrsJSON.String)
}

func TestReasonNormalizationCollapsesEntryConditions(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	reasons := []domain.ReasonCode{domain.ReasonStabilizationConfirmed, domain.ReasonEntryConditionsMet}
	require.NoError(t, repo.UpsertState(ctx, "AAA", "2026-01-02", domain.StateEntryWindow, domain.StateStabilizing,
		reasons, domain.StateAttrs{Age: 1}, "run-1"))

	row, err := repo.GetState(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, `["POLICY:ENTRY_CONDITIONS_MET"]`, row.ReasonsJSON)
}

func TestSignalRowsSortedAndIdempotent(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	set := signals.NewSet("test", signals.TrendStarted, signals.DowTrendDown, signals.SharpSellOffDetected)
	require.NoError(t, repo.UpsertSignals(ctx, "AAA", "2026-01-02", set, "run-1"))
	require.NoError(t, repo.UpsertSignals(ctx, "AAA", "2026-01-02", set, "run-2"))

	days, err := repo.RecentDays("AAA", "2026-01-03", 5)
	require.NoError(t, err)
	assert.Empty(t, days) // no state row yet; signal rows alone are not history

	var keysJSON string
	require.NoError(t, store.DB.Get(&keysJSON,
		`SELECT signal_keys_json FROM rc_signal_daily WHERE ticker = 'AAA' AND date = '2026-01-02'`))
	assert.Equal(t, `["DOW_TREND_DOWN","SHARP_SELL_OFF_DETECTED","TREND_STARTED"]`, keysJSON)
}

func TestTransitionRecordedOnlyWhenProvided(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	require.NoError(t, repo.UpsertTransition(ctx, "AAA", "2026-01-02", nil, domain.StateAttrs{}, "run-1"))
	row, err := repo.GetTransition(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Nil(t, row)

	tr := &domain.Transition{
		FromState: domain.StateStabilizing,
		ToState:   domain.StateEntryWindow,
		Reasons:   []domain.ReasonCode{domain.ReasonEntryConditionsMet},
	}
	require.NoError(t, repo.UpsertTransition(ctx, "AAA", "2026-01-02", tr, domain.StateAttrs{Age: 1}, "run-1"))
	row, err = repo.GetTransition(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "STABILIZING", row.FromState)
	assert.Equal(t, "ENTRY_WINDOW", row.ToState)
}

func TestHistoryPortReadsStateAndSignals(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	for i, date := range []string{"2026-01-02", "2026-01-03", "2026-01-05"} {
		state := domain.StateStabilizing
		if i == 1 {
			state = domain.StateEntryWindow
		}
		require.NoError(t, repo.UpsertState(ctx, "AAA", date, state, domain.StateStabilizing,
			[]domain.ReasonCode{domain.ReasonNoSignal}, domain.StateAttrs{Age: i + 1}, "run-1"))
		require.NoError(t, repo.UpsertSignals(ctx, "AAA", date,
			signals.NewSet("test", signals.StabilizationConfirmed), "run-1"))
	}

	days, err := repo.RecentDays("AAA", "2026-01-06", 10)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-01-05", days[0].Date)
	assert.Equal(t, domain.StateEntryWindow, days[1].State)
	assert.Contains(t, days[0].SignalKeys, signals.StabilizationConfirmed)
}

func TestEWScoreWriteIsolation(t *testing.T) {
	store := testStore(t)
	repo := NewEWScoreRepo(store)
	ctx := context.Background()

	fixed := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	require.NoError(t, repo.UpsertLegacy(ctx, "AAA", "2026-01-02", 0.5, 2, "EW_SCORE_DAY3_V1_FIN", `{"r":1}`))

	before, err := repo.GetRow(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.False(t, before.ScoreFastpass.Valid)
	assert.False(t, before.ScoreRolling.Valid)
	createdAt := before.CreatedAt

	// A later fastpass write must not disturb legacy or rolling columns,
	// nor created_at.
	repo.now = func() time.Time { return fixed.Add(48 * time.Hour) }
	require.NoError(t, repo.UpsertFastpass(ctx, "AAA", "2026-01-02", 0.77, 1, "EW_SCORE_FASTPASS_V1_SE", `{"f":1}`))

	row, err := repo.GetRow(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, 0.5, row.ScoreDay3.Float64)
	assert.Equal(t, `{"r":1}`, row.InputsJSON.String)
	assert.Equal(t, 0.77, row.ScoreFastpass.Float64)
	assert.Equal(t, int64(1), row.LevelFastpass.Int64)
	assert.False(t, row.ScoreRolling.Valid)
	assert.Equal(t, createdAt, row.CreatedAt)

	require.NoError(t, repo.UpsertRolling(ctx, "AAA", "2026-01-02", 0.42, 0, "EW_SCORE_ROLLING_V2_SE", `{"g":1}`))
	row, err = repo.GetRow(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, 0.77, row.ScoreFastpass.Float64)
	assert.Equal(t, 0.42, row.ScoreRolling.Float64)
	assert.Equal(t, 0.5, row.ScoreDay3.Float64)
	assert.Equal(t, createdAt, row.CreatedAt)
}

func TestContinuationMergeTouchesOnlyItsKey(t *testing.T) {
	store := testStore(t)
	repo := NewStateRepo(store)
	ctx := context.Background()

	attrs := domain.StateAttrs{Age: 1, Status: domain.Status{
		EntryGate:    domain.EntryGateA,
		EntryQuality: domain.EntryQualityA,
	}}
	require.NoError(t, repo.UpsertState(ctx, "AAA", "2026-01-09", domain.StateEntryWindow, domain.StateEntryWindow,
		[]domain.ReasonCode{domain.ReasonNoSignal}, attrs, "run-1"))
	tr := &domain.Transition{FromState: domain.StateStabilizing, ToState: domain.StateEntryWindow,
		Reasons: []domain.ReasonCode{domain.ReasonEntryConditionsMet}}
	require.NoError(t, repo.UpsertTransition(ctx, "AAA", "2026-01-02", tr, attrs, "run-1"))

	require.NoError(t, repo.SetContinuationConfirmed(ctx, "AAA", "2026-01-09", "2026-01-02", true))

	row, err := repo.GetState(ctx, "AAA", "2026-01-09")
	require.NoError(t, err)
	status, err := parseAttrsStatus(row.StateAttrsJSON.String)
	require.NoError(t, err)
	require.NotNil(t, status.EntryContinuationConfirmed)
	assert.True(t, *status.EntryContinuationConfirmed)
	assert.Equal(t, domain.EntryGateA, status.EntryGate)

	trRow, err := repo.GetTransition(ctx, "AAA", "2026-01-02")
	require.NoError(t, err)
	status, err = parseAttrsStatus(trRow.StateAttrsJSON.String)
	require.NoError(t, err)
	require.NotNil(t, status.EntryContinuationConfirmed)
	assert.True(t, *status.EntryContinuationConfirmed)
}
