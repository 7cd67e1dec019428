package policy

import (
	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

// V2 layers Dow-structure awareness on top of V1: a fresh lower low while
// stabilizing or in an entry window injects INVALIDATED, a slow decline
// can open a downtrend from NO_TRADE, and a TREND_STARTED reason survives
// a no-op stay in STABILIZING.
type V2 struct {
	v1 *V1
	id string
}

// NewV2 builds the v2 policy. history may be nil.
func NewV2(history History) *V2 {
	return &V2{v1: NewV1(history), id: "rule_v2"}
}

func (p *V2) ID() string      { return p.id }
func (p *V2) Version() string { return "v2" }

// Enrich applies the Dow invalidation injection. The injected INVALIDATED
// suppresses same-day constructive signals, preserving the provider
// invariant for downstream layers.
func (p *V2) Enrich(prev domain.State, set signals.Set) signals.Set {
	if set.Has(signals.DataInsufficient) || set.Has(signals.Invalidated) {
		return set
	}
	if prev != domain.StateStabilizing && prev != domain.StateEntryWindow {
		return set
	}
	if !set.Has(signals.DowNewLL) {
		return set
	}
	enriched := set.Clone()
	enriched.Add(signals.Invalidated)
	enriched.Remove(signals.StabilizationConfirmed)
	enriched.Remove(signals.EntrySetupValid)
	return enriched
}

func (p *V2) Decide(ticker, asOfDate string, prev domain.State, prevAttrs domain.StateAttrs, set signals.Set) domain.Decision {
	enriched := p.Enrich(prev, set)
	decision := p.v1.Decide(ticker, asOfDate, prev, prevAttrs, enriched)

	if slow := p.slowDeclineEntry(prev, decision, enriched); slow != nil {
		return *slow
	}

	// Keep the TREND_STARTED reason visible on a quiet STABILIZING stay.
	if prev == domain.StateStabilizing &&
		decision.NextState == domain.StateStabilizing &&
		enriched.Has(signals.TrendStarted) &&
		!domain.ContainsReason(decision.Reasons, domain.ReasonTrendStarted) &&
		len(decision.Reasons) == 1 && decision.Reasons[0] == domain.ReasonNoSignal {
		decision.Reasons = []domain.ReasonCode{domain.ReasonTrendStarted}
	}

	return decision
}

// slowDeclineEntry opens a downtrend on SLOW_DECLINE_STARTED when the
// base decision was a quiet NO_TRADE stay and the Dow trend is not up.
func (p *V2) slowDeclineEntry(prev domain.State, decision domain.Decision, set signals.Set) *domain.Decision {
	if prev != domain.StateNoTrade || decision.NextState != domain.StateNoTrade {
		return nil
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != domain.ReasonNoSignal {
		return nil
	}
	if !set.Has(signals.SlowDeclineStarted) || set.Has(signals.DowTrendUp) {
		return nil
	}
	return &domain.Decision{
		NextState: domain.StateDowntrendEarly,
		Reasons:   []domain.ReasonCode{domain.ReasonSlowDeclineStarted},
		Attrs:     domain.StateAttrs{Age: 1},
	}
}
