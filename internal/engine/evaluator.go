package engine

import (
	"fmt"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/policy"
	"github.com/khautala/swingmaster/internal/signals"
)

// Result captures one evaluation step for persistence and audit.
type Result struct {
	PrevState         domain.State
	FinalState        domain.State
	Reasons           []domain.ReasonCode
	Transition        *domain.Transition
	FinalAttrs        domain.StateAttrs
	GuardrailsBlocked bool
	ProposedState     domain.State
}

// churnIncompatible lists reasons that must not be diluted by a
// guardrail-level CHURN_GUARD annotation.
var churnIncompatible = []domain.ReasonCode{
	domain.ReasonInvalidated,
	domain.ReasonDataInsufficient,
	domain.ReasonTrendStarted,
	domain.ReasonTrendMatured,
	domain.ReasonStabilizationConfirmed,
	domain.ReasonEntryConditionsMet,
}

// EvaluateStep applies the policy decision and the guardrails for one
// (ticker, day) and merges their reasons. Deterministic; no OHLC access.
func EvaluateStep(prev domain.State, prevAttrs domain.StateAttrs, set signals.Set, pol policy.TransitionPolicy, ticker, asOfDate string) (Result, error) {
	decision := pol.Decide(ticker, asOfDate, prev, prevAttrs, set)
	proposed := decision.NextState
	policyReasons := decision.Reasons

	guard := policy.ApplyGuardrails(prev, prevAttrs, proposed)

	var finalState domain.State
	var finalAttrs domain.StateAttrs
	guardReasons := guard.Reasons
	if guard.Allowed {
		finalState = proposed
		finalAttrs = decision.Attrs
	} else {
		finalState = prev
		finalAttrs = domain.StateAttrs{
			Confidence: prevAttrs.Confidence,
			Age:        prevAttrs.Age + 1,
			Status:     prevAttrs.Status,
		}
		// A blocked invalidation keeps its own audit trail instead of the
		// generic age lock.
		if domain.ContainsReason(policyReasons, domain.ReasonInvalidated) &&
			domain.ContainsReason(guardReasons, domain.ReasonMinStateAgeLock) {
			policyReasons = removeReason(policyReasons, domain.ReasonInvalidated)
			guardReasons = []domain.ReasonCode{domain.ReasonInvalidationBlockedByLock}
		}
	}

	reasons := append(append([]domain.ReasonCode{}, policyReasons...), guardReasons...)
	if domain.ContainsReason(reasons, domain.ReasonChurnGuard) {
		for _, r := range reasons {
			if domain.ContainsReason(churnIncompatible, r) {
				reasons = removeReason(reasons, domain.ReasonChurnGuard)
				break
			}
		}
	}
	if len(reasons) == 0 {
		return Result{}, fmt.Errorf("invariant violation: empty reasons for %s on %s", ticker, asOfDate)
	}

	var transition *domain.Transition
	if finalState != prev {
		transition = &domain.Transition{
			FromState: prev,
			ToState:   finalState,
			Reasons:   reasons,
		}
	}

	return Result{
		PrevState:         prev,
		FinalState:        finalState,
		Reasons:           reasons,
		Transition:        transition,
		FinalAttrs:        finalAttrs,
		GuardrailsBlocked: !guard.Allowed,
		ProposedState:     proposed,
	}, nil
}

func removeReason(reasons []domain.ReasonCode, code domain.ReasonCode) []domain.ReasonCode {
	out := reasons[:0:0]
	for _, r := range reasons {
		if r != code {
			out = append(out, r)
		}
	}
	return out
}
