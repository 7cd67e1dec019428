package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

func TestV3GateAOverridesToEntryWindow(t *testing.T) {
	pol := NewV3(nil)
	d := pol.Decide("AAA", "2026-01-02", domain.StateStabilizing, attrs(3),
		makeSet(signals.MA20Reclaimed, signals.HigherLowConfirmed))

	assert.Equal(t, domain.StateEntryWindow, d.NextState)
	assert.Equal(t, domain.EntryGateA, d.Attrs.Status.EntryGate)
	assert.Equal(t, domain.EntryQualityA, d.Attrs.Status.EntryQuality)
	assert.Equal(t, domain.PhaseEarlyReversal, d.Attrs.Status.StabilizationPhase)
	assert.Equal(t, 1, d.Attrs.Age)
	// The override introduces no reason codes of its own.
	assert.NotContains(t, d.Reasons, domain.ReasonEntryConditionsMet)
}

func TestV3GateBWithoutHigherLow(t *testing.T) {
	pol := NewV3(nil)
	d := pol.Decide("AAA", "2026-01-02", domain.StateStabilizing, attrs(3), makeSet(signals.MA20Reclaimed))

	assert.Equal(t, domain.StateEntryWindow, d.NextState)
	assert.Equal(t, domain.EntryGateB, d.Attrs.Status.EntryGate)
	assert.Equal(t, domain.EntryQualityB, d.Attrs.Status.EntryQuality)
}

func TestV3GateDoesNotFireOnTransitionIntoStabilizing(t *testing.T) {
	pol := NewV3(nil)
	// A downtrend resolving into STABILIZING while MA20 is reclaimed the
	// same day: the gate must not re-route the transition, ENTRY_WINDOW
	// has no edge from the downtrend states.
	for _, prev := range []domain.State{domain.StateDowntrendEarly, domain.StateDowntrendLate} {
		d := pol.Decide("AAA", "2026-01-02", prev, attrs(4),
			makeSet(signals.StabilizationConfirmed, signals.MA20Reclaimed, signals.HigherLowConfirmed))
		assert.Equal(t, domain.StateStabilizing, d.NextState, "from %s", prev)
		assert.Equal(t, []domain.ReasonCode{domain.ReasonStabilizationConfirmed}, d.Reasons)
		assert.Empty(t, d.Attrs.Status.EntryGate)
		assert.Empty(t, d.Attrs.Status.EntryQuality)
	}
}

func TestV3GateBlockedByInjectedInvalidation(t *testing.T) {
	pol := NewV3(nil)
	d := pol.Decide("AAA", "2026-01-02", domain.StateStabilizing, attrs(3),
		makeSet(signals.MA20Reclaimed, signals.HigherLowConfirmed, signals.DowNewLL))
	assert.Equal(t, domain.StateNoTrade, d.NextState)
	assert.Contains(t, d.Reasons, domain.ReasonInvalidated)
}

func TestV3LegacyEntryGetsLegacyGate(t *testing.T) {
	pol := NewV3(nil)
	d := pol.Decide("AAA", "2026-01-02", domain.StateStabilizing, attrs(3),
		makeSet(signals.StabilizationConfirmed, signals.EntrySetupValid))

	require.Equal(t, domain.StateEntryWindow, d.NextState)
	assert.Equal(t, domain.EntryGateLegacy, d.Attrs.Status.EntryGate)
	assert.Equal(t, domain.EntryQualityLegacy, d.Attrs.Status.EntryQuality)
	assert.Equal(t, domain.PhaseEarlyReversal, d.Attrs.Status.StabilizationPhase)
}

func TestV3DowntrendOriginAndEntryTypeOnTrendStart(t *testing.T) {
	pol := NewV3(nil)

	d := pol.Decide("AAA", "2026-01-02", domain.StateNoTrade, attrs(5), makeSet(signals.TrendStarted))
	require.Equal(t, domain.StateDowntrendEarly, d.NextState)
	assert.Equal(t, domain.OriginTrend, d.Attrs.Status.DowntrendOrigin)
	assert.Equal(t, domain.EntryTypeTrendSoft, d.Attrs.Status.DowntrendEntryType)

	d = pol.Decide("AAA", "2026-01-02", domain.StateNoTrade, attrs(5),
		makeSet(signals.TrendStarted, signals.DowTrendDown))
	require.Equal(t, domain.StateDowntrendEarly, d.NextState)
	assert.Equal(t, domain.EntryTypeTrendStructural, d.Attrs.Status.DowntrendEntryType)
}

func TestV3EntryTypeSetOnlyOnce(t *testing.T) {
	pol := NewV3(nil)
	prev := domain.StateAttrs{
		Age:    3,
		Status: domain.Status{DowntrendEntryType: domain.EntryTypeSlowSoft},
	}
	// The lifecycle re-enters a downtrend without a reset; the stored
	// entry type must not be rewritten.
	d := pol.Decide("AAA", "2026-01-02", domain.StateNoTrade, prev,
		makeSet(signals.TrendStarted, signals.StructuralDowntrendDetected))
	require.Equal(t, domain.StateDowntrendEarly, d.NextState)
	assert.Equal(t, domain.EntryTypeSlowSoft, d.Attrs.Status.DowntrendEntryType)
}

func TestV3DeclineProfileMonotone(t *testing.T) {
	pol := NewV3(nil)

	// Specific profiles never downgrade.
	prev := domain.StateAttrs{Age: 3, Status: domain.Status{DeclineProfile: domain.ProfileSlowDrift}}
	d := pol.Decide("AAA", "2026-01-02", domain.StateDowntrendEarly, prev, makeSet(signals.SharpSellOffDetected))
	assert.Equal(t, domain.ProfileSlowDrift, d.Attrs.Status.DeclineProfile)

	// UNKNOWN upgrades to specific.
	prev = domain.StateAttrs{Age: 3, Status: domain.Status{DeclineProfile: domain.ProfileUnknown}}
	d = pol.Decide("AAA", "2026-01-02", domain.StateDowntrendEarly, prev, makeSet(signals.SharpSellOffDetected))
	assert.Equal(t, domain.ProfileSharpSellOff, d.Attrs.Status.DeclineProfile)
}

func TestV3InvalidatedLegacyBranchForcesEarlyStabilization(t *testing.T) {
	pol := NewV3(nil)
	// A same-day setup killed by an injected invalidation: state resolves
	// to NO_TRADE but the stabilization attempt stays on the record.
	d := pol.Decide("AAA", "2026-01-02", domain.StateStabilizing, attrs(4),
		makeSet(signals.EntrySetupValid, signals.DowNewLL))

	require.Equal(t, domain.StateNoTrade, d.NextState)
	assert.Contains(t, d.Reasons, domain.ReasonInvalidated)
	assert.Equal(t, domain.PhaseEarlyStabilization, d.Attrs.Status.StabilizationPhase)
	assert.Empty(t, d.Attrs.Status.DowntrendOrigin)
	assert.Empty(t, d.Attrs.Status.EntryGate)
}

func TestV3NoTradeClearsLifecycleFields(t *testing.T) {
	pol := NewV3(nil)
	prev := domain.StateAttrs{
		Age: 2,
		Status: domain.Status{
			DowntrendOrigin:    domain.OriginTrend,
			DeclineProfile:     domain.ProfileStructural,
			StabilizationPhase: domain.PhaseBaseBuilding,
		},
	}
	d := pol.Decide("AAA", "2026-01-02", domain.StatePass, prev, makeSet())
	require.Equal(t, domain.StateNoTrade, d.NextState)
	assert.True(t, d.Attrs.Status.IsEmpty())
}
