package policy

import (
	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

// V3 delegates state and reason selection to V2, then applies the
// early-stabilization entry gates and maintains the lifecycle
// classification fields in state attrs. The gate override never adds
// reason codes.
type V3 struct {
	v2 *V2
	id string
}

// NewV3 builds the v3 policy. history may be nil.
func NewV3(history History) *V3 {
	return &V3{v2: NewV2(history), id: "rule_v3"}
}

func (p *V3) ID() string      { return p.id }
func (p *V3) Version() string { return "v3" }

func (p *V3) Decide(ticker, asOfDate string, prev domain.State, prevAttrs domain.StateAttrs, set signals.Set) domain.Decision {
	decision := p.v2.Decide(ticker, asOfDate, prev, prevAttrs, set)
	enriched := p.v2.Enrich(prev, set)

	prevStatus := prevAttrs.Status
	finalState := decision.NextState
	gateA, gateB := false, false

	// The early-stabilization gates only re-route a STABILIZING stay;
	// a fresh downtrend -> STABILIZING transition has no ENTRY_WINDOW
	// edge to take.
	if prev == domain.StateStabilizing && decision.NextState == domain.StateStabilizing &&
		!enriched.Has(signals.Invalidated) {
		if enriched.Has(signals.MA20Reclaimed) {
			if enriched.Has(signals.HigherLowConfirmed) {
				finalState = domain.StateEntryWindow
				gateA = true
			} else {
				finalState = domain.StateEntryWindow
				gateB = true
			}
		}
	}

	status := prevStatus
	status.EntryContinuationConfirmed = nil // backfilled by the range runner, never carried forward

	phase := resolveStabilizationPhase(finalState, enriched, prevStatus.StabilizationPhase)
	status.StabilizationPhase = phase

	switch {
	case gateA:
		status.EntryGate = domain.EntryGateA
		status.EntryQuality = domain.EntryQualityA
	case gateB:
		status.EntryGate = domain.EntryGateB
		status.EntryQuality = domain.EntryQualityB
	case finalState == domain.StateEntryWindow && prevStatus.EntryGate == "" && prevStatus.EntryQuality == "":
		status.EntryGate = domain.EntryGateLegacy
		status.EntryQuality = domain.EntryQualityLegacy
	}

	candidate := classifyDeclineProfile(enriched)

	if prev == domain.StateNoTrade && finalState == domain.StateDowntrendEarly {
		status.DowntrendOrigin = resolveDowntrendOrigin(enriched, prevStatus.DowntrendOrigin)
		if status.DowntrendEntryType == "" {
			entryType := classifyDowntrendEntryType(enriched)
			// A TREND_STARTED entry wins the origin half of the label even
			// when the slow-decline signal fired the same day. Applies only
			// to the freshly computed value; a stored type never rewrites.
			if domain.ContainsReason(decision.Reasons, domain.ReasonTrendStarted) {
				switch entryType {
				case domain.EntryTypeSlowStructural:
					entryType = domain.EntryTypeTrendStructural
				case domain.EntryTypeSlowSoft:
					entryType = domain.EntryTypeTrendSoft
				}
			}
			status.DowntrendEntryType = entryType
		}
		status.DeclineProfile = upgradeProfile(prevStatus.DeclineProfile, candidate, true)
	} else if isDowntrend(prev) && isDowntrend(finalState) {
		status.DeclineProfile = upgradeProfile(prevStatus.DeclineProfile, candidate, false)
	}

	if finalState == domain.StateNoTrade {
		forcedPhase := ""
		// A setup killed by a same-day invalidation still counts as a
		// stabilization attempt for audit purposes.
		if prev == domain.StateStabilizing && set.Has(signals.EntrySetupValid) && enriched.Has(signals.Invalidated) {
			forcedPhase = domain.PhaseEarlyStabilization
		}
		status = domain.Status{StabilizationPhase: forcedPhase}
	}

	attrs := decision.Attrs
	if finalState != prev {
		attrs.Age = 1
	}
	attrs.Status = status

	return domain.Decision{
		NextState: finalState,
		Reasons:   decision.Reasons,
		Attrs:     attrs,
	}
}

func isDowntrend(s domain.State) bool {
	return s == domain.StateDowntrendEarly || s == domain.StateDowntrendLate
}

func classifyDeclineProfile(set signals.Set) string {
	switch {
	case set.Has(signals.SlowDriftDetected):
		return domain.ProfileSlowDrift
	case set.Has(signals.SharpSellOffDetected):
		return domain.ProfileSharpSellOff
	case set.HasAny(signals.StructuralDowntrendDetected, signals.TrendMatured, signals.DowTrendDown):
		return domain.ProfileStructural
	}
	return domain.ProfileUnknown
}

func resolveDowntrendOrigin(set signals.Set, prevOrigin string) string {
	if set.Has(signals.TrendStarted) {
		return domain.OriginTrend
	}
	if set.Has(signals.SlowDeclineStarted) {
		return domain.OriginSlow
	}
	return prevOrigin
}

func classifyDowntrendEntryType(set signals.Set) string {
	origin := ""
	if set.Has(signals.SlowDeclineStarted) {
		origin = domain.OriginSlow
	} else if set.Has(signals.TrendStarted) {
		origin = domain.OriginTrend
	}
	structural := set.HasAny(
		signals.StructuralDowntrendDetected,
		signals.DowTrendDown,
		signals.DowNewLL,
		signals.DowBosBreakDown,
	)
	switch {
	case origin == domain.OriginSlow && structural:
		return domain.EntryTypeSlowStructural
	case origin == domain.OriginSlow:
		return domain.EntryTypeSlowSoft
	case origin == domain.OriginTrend && structural:
		return domain.EntryTypeTrendStructural
	case origin == domain.OriginTrend:
		return domain.EntryTypeTrendSoft
	}
	return domain.EntryTypeUnknown
}

// upgradeProfile keeps decline_profile monotone: specific values stick,
// UNKNOWN may upgrade to specific. On a fresh downtrend entry
// (allowUnknown) an empty profile initializes to UNKNOWN.
func upgradeProfile(prev, candidate string, allowUnknown bool) string {
	if domain.SpecificProfiles[prev] {
		return prev
	}
	if domain.SpecificProfiles[candidate] {
		return candidate
	}
	if prev == domain.ProfileUnknown {
		return domain.ProfileUnknown
	}
	if allowUnknown {
		return domain.ProfileUnknown
	}
	return prev
}

func resolveStabilizationPhase(next domain.State, set signals.Set, prevPhase string) string {
	switch next {
	case domain.StateStabilizing:
		if set.Has(signals.EntrySetupValid) && !set.Has(signals.Invalidated) {
			return domain.PhaseEarlyReversal
		}
		if set.Has(signals.StabilizationConfirmed) &&
			set.Has(signals.VolatilityCompressionDetected) &&
			!set.Has(signals.Invalidated) {
			return domain.PhaseBaseBuilding
		}
		return domain.PhaseEarlyStabilization
	case domain.StateEntryWindow:
		return domain.PhaseEarlyReversal
	}
	return prevPhase
}
