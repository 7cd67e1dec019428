package policy

import "github.com/khautala/swingmaster/internal/domain"

// MinStateAge is the minimum 1-based age a state must reach before a
// transition out of it is allowed.
var MinStateAge = map[domain.State]int{
	domain.StateNoTrade:        0,
	domain.StateDowntrendEarly: 2,
	domain.StateDowntrendLate:  3,
	domain.StateStabilizing:    2,
	domain.StateEntryWindow:    1,
	domain.StatePass:           1,
}

// GuardrailResult reports whether a proposed transition may proceed.
type GuardrailResult struct {
	Allowed    bool
	FinalState domain.State
	Reasons    []domain.ReasonCode
}

// ApplyGuardrails enforces the transition graph and the minimum state age.
// It is deterministic and independent of OHLC data.
func ApplyGuardrails(prev domain.State, prevAttrs domain.StateAttrs, proposed domain.State) GuardrailResult {
	if proposed == prev {
		return GuardrailResult{Allowed: true, FinalState: prev}
	}
	if !domain.TransitionAllowed(prev, proposed) {
		return GuardrailResult{
			Allowed:    false,
			FinalState: prev,
			Reasons:    []domain.ReasonCode{domain.ReasonDisallowedTransition},
		}
	}
	if prevAttrs.Age < MinStateAge[prev] {
		return GuardrailResult{
			Allowed:    false,
			FinalState: prev,
			Reasons:    []domain.ReasonCode{domain.ReasonMinStateAgeLock},
		}
	}
	return GuardrailResult{Allowed: true, FinalState: proposed}
}
