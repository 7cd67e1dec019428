package policy

import (
	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

// Helper thresholds. The window/threshold pair governs both the churn
// guard and its reset escalation.
const (
	edgeGoneEntryWindowDays  = 9
	edgeGoneStabilizingDays  = 20
	edgeGoneSetupRecentDays  = 10
	stabRecencyDays          = 10
	setupFreshDays           = 5
	resetNoSignalDays        = 7
	churnGuardWindowDays     = 10
	churnGuardThreshold      = 2
)

// TransitionPolicy maps (prev state, signals, history) to a decision.
type TransitionPolicy interface {
	Decide(ticker, asOfDate string, prev domain.State, prevAttrs domain.StateAttrs, set signals.Set) domain.Decision
	ID() string
	Version() string
}

// fallbackReasons annotate quiet stays per state; states not listed fall
// back to NO_SIGNAL.
var fallbackReasons = map[domain.State]domain.ReasonCode{
	domain.StateNoTrade:        domain.ReasonNoSignal,
	domain.StateDowntrendEarly: domain.ReasonTrendStarted,
	domain.StateDowntrendLate:  domain.ReasonTrendMatured,
}

// progressSignals block the silent-decay reset: any of them means the
// lifecycle is still moving.
var progressSignals = []signals.Key{
	signals.StabilizationConfirmed,
	signals.EntrySetupValid,
	signals.TrendStarted,
	signals.TrendMatured,
	signals.SellingPressureEased,
	signals.MA20Reclaimed,
}

// V1 is the base rule policy: hard exclusions, helpers, per-state rules,
// fallback. History is optional; without it the history-aware helpers use
// their strict same-day forms.
type V1 struct {
	history History
	id      string
}

// NewV1 builds the base policy. history may be nil.
func NewV1(history History) *V1 {
	return &V1{history: history, id: "rule_v1"}
}

func (p *V1) ID() string      { return p.id }
func (p *V1) Version() string { return "v1" }

// Decide evaluates one day. The returned attrs carry 1-based age: 1 on a
// transition, prev+1 on a stay.
func (p *V1) Decide(ticker, asOfDate string, prev domain.State, prevAttrs domain.StateAttrs, set signals.Set) domain.Decision {
	next, reasons := p.propose(ticker, asOfDate, prev, prevAttrs, set)

	if next != prev {
		return domain.Decision{
			NextState: next,
			Reasons:   reasons,
			Attrs:     domain.StateAttrs{Age: 1},
		}
	}
	if len(reasons) == 0 {
		fallback, ok := fallbackReasons[prev]
		if !ok {
			fallback = domain.ReasonNoSignal
		}
		reasons = []domain.ReasonCode{fallback}
	}
	return domain.Decision{
		NextState: prev,
		Reasons:   reasons,
		Attrs: domain.StateAttrs{
			Confidence: prevAttrs.Confidence,
			Age:        prevAttrs.Age + 1,
			Status:     prevAttrs.Status,
		},
	}
}

func (p *V1) propose(ticker, asOfDate string, prev domain.State, prevAttrs domain.StateAttrs, set signals.Set) (domain.State, []domain.ReasonCode) {
	// Hard exclusions, ordered: DATA_INSUFFICIENT > INVALIDATED.
	if set.Has(signals.DataInsufficient) {
		return domain.StateNoTrade, []domain.ReasonCode{domain.ReasonDataInsufficient}
	}
	if set.Has(signals.Invalidated) {
		return domain.StateNoTrade, []domain.ReasonCode{domain.ReasonInvalidated}
	}

	days := p.recentDays(ticker, asOfDate)

	if next, reasons, ok := p.edgeGone(prev, prevAttrs, set, days); ok {
		return next, reasons
	}
	if next, reasons, ok := p.entryConditionsMet(prev, set, days); ok {
		if blocked := p.churnBlocked(prev, next, days); blocked {
			return prev, []domain.ReasonCode{domain.ReasonChurnGuard}
		}
		return next, reasons
	}
	if next, reasons, ok := p.resetToNeutral(prev, prevAttrs, set, days); ok {
		return next, reasons
	}

	next, reasons := perStateRules(prev, set)
	if next != prev && p.churnBlocked(prev, next, days) {
		return prev, []domain.ReasonCode{domain.ReasonChurnGuard}
	}
	return next, reasons
}

func (p *V1) recentDays(ticker, asOfDate string) []HistoryDay {
	if p.history == nil {
		return nil
	}
	days, err := p.history.RecentDays(ticker, asOfDate, churnGuardWindowDays+1)
	if err != nil {
		// History is advisory; a read failure degrades to history-less
		// behavior rather than aborting the evaluation.
		return nil
	}
	return days
}

// edgeGone expires stale windows: a long-lived ENTRY_WINDOW becomes PASS,
// a long-lived STABILIZING drops back to NO_TRADE unless an entry setup
// appeared recently.
func (p *V1) edgeGone(prev domain.State, prevAttrs domain.StateAttrs, set signals.Set, days []HistoryDay) (domain.State, []domain.ReasonCode, bool) {
	switch prev {
	case domain.StateEntryWindow:
		if prevAttrs.Age >= edgeGoneEntryWindowDays {
			return domain.StatePass, []domain.ReasonCode{domain.ReasonEdgeGone}, true
		}
	case domain.StateStabilizing:
		if prevAttrs.Age >= edgeGoneStabilizingDays {
			if set.Has(signals.EntrySetupValid) ||
				historySignalSeen(days, signals.EntrySetupValid, edgeGoneSetupRecentDays) {
				return prev, nil, false
			}
			return domain.StateNoTrade, []domain.ReasonCode{domain.ReasonEdgeGone}, true
		}
	}
	return prev, nil, false
}

// entryConditionsMet promotes STABILIZING to ENTRY_WINDOW when a valid
// setup appears inside a confirmed (or recently confirmed) stabilization.
func (p *V1) entryConditionsMet(prev domain.State, set signals.Set, days []HistoryDay) (domain.State, []domain.ReasonCode, bool) {
	if prev != domain.StateStabilizing {
		return prev, nil, false
	}
	if set.HasAny(signals.EdgeGone, signals.NoSignal, signals.TrendStarted, signals.TrendMatured) {
		return prev, nil, false
	}
	if !set.Has(signals.EntrySetupValid) {
		return prev, nil, false
	}

	sameDayStab := set.Has(signals.StabilizationConfirmed)
	stabContext := sameDayStab
	setupFresh := sameDayStab
	if p.history != nil {
		if !stabContext {
			stabContext = historySignalSeen(days, signals.StabilizationConfirmed, stabRecencyDays)
		}
		setupFresh = historySignalSeen(days, signals.EntrySetupValid, setupFreshDays) || set.Has(signals.EntrySetupValid)
	}
	if !stabContext || !setupFresh {
		return prev, nil, false
	}

	reasons := []domain.ReasonCode{domain.ReasonEntryConditionsMet}
	if sameDayStab {
		reasons = []domain.ReasonCode{domain.ReasonStabilizationConfirmed, domain.ReasonEntryConditionsMet}
	}
	return domain.StateEntryWindow, reasons, true
}

// resetToNeutral handles silent decay: a lifecycle that stopped producing
// signals returns to NO_TRADE instead of idling forever.
func (p *V1) resetToNeutral(prev domain.State, prevAttrs domain.StateAttrs, set signals.Set, days []HistoryDay) (domain.State, []domain.ReasonCode, bool) {
	if prev == domain.StateNoTrade {
		return prev, nil, false
	}
	if set.HasAny(progressSignals...) {
		return prev, nil, false
	}

	reset := []domain.ReasonCode{domain.ReasonResetToNeutral}
	quietDecay := set.Has(signals.NoSignal) && prevAttrs.Age+1 >= resetNoSignalDays

	switch prev {
	case domain.StatePass:
		if set.Has(signals.EdgeGone) {
			return domain.StateNoTrade, reset, true
		}
		if quietDecay {
			return domain.StateNoTrade, reset, true
		}
		if historyReasonCount(days, domain.ReasonChurnGuard, churnGuardWindowDays) >= churnGuardThreshold {
			return domain.StateNoTrade, reset, true
		}
	case domain.StateDowntrendEarly, domain.StateDowntrendLate:
		if quietDecay {
			return domain.StateNoTrade, reset, true
		}
	}
	return prev, nil, false
}

// churnBlocked blocks re-entry into a state the ticker has been bouncing
// out of recently. Inert without history.
func (p *V1) churnBlocked(prev, proposed domain.State, days []HistoryDay) bool {
	if proposed == prev || proposed == domain.StateNoTrade || len(days) == 0 {
		return false
	}
	return historyExitCount(days, proposed, churnGuardWindowDays) >= churnGuardThreshold
}

// perStateRules are the plain signal-to-transition rules.
func perStateRules(prev domain.State, set signals.Set) (domain.State, []domain.ReasonCode) {
	switch prev {
	case domain.StateNoTrade:
		if set.Has(signals.TrendStarted) {
			return domain.StateDowntrendEarly, []domain.ReasonCode{domain.ReasonTrendStarted}
		}
	case domain.StateDowntrendEarly:
		if set.Has(signals.TrendMatured) {
			return domain.StateDowntrendLate, []domain.ReasonCode{domain.ReasonTrendMatured}
		}
		if set.Has(signals.StabilizationConfirmed) {
			return domain.StateStabilizing, []domain.ReasonCode{domain.ReasonStabilizationConfirmed}
		}
		if set.Has(signals.SellingPressureEased) {
			return domain.StateStabilizing, []domain.ReasonCode{domain.ReasonSellingPressureEased}
		}
	case domain.StateDowntrendLate:
		if set.Has(signals.StabilizationConfirmed) {
			return domain.StateStabilizing, []domain.ReasonCode{domain.ReasonStabilizationConfirmed}
		}
		if set.Has(signals.SellingPressureEased) {
			return domain.StateStabilizing, []domain.ReasonCode{domain.ReasonSellingPressureEased}
		}
	case domain.StateStabilizing:
		if set.Has(signals.StabilizationConfirmed) {
			return domain.StateStabilizing, []domain.ReasonCode{domain.ReasonStabilizationConfirmed}
		}
	case domain.StateEntryWindow:
		if set.Has(signals.EntrySetupValid) {
			return domain.StateEntryWindow, []domain.ReasonCode{domain.ReasonEntryConditionsMet}
		}
		return domain.StatePass, []domain.ReasonCode{domain.ReasonEntryWindowCompleted}
	case domain.StatePass:
		return domain.StateNoTrade, []domain.ReasonCode{domain.ReasonPassCompleted}
	}
	return prev, nil
}
