package domain

import (
	"encoding/json"
	"fmt"
)

// Downtrend lifecycle classification values stored in StateAttrs status.
const (
	OriginTrend = "TREND"
	OriginSlow  = "SLOW"

	EntryTypeSlowStructural  = "SLOW_STRUCTURAL"
	EntryTypeSlowSoft        = "SLOW_SOFT"
	EntryTypeTrendStructural = "TREND_STRUCTURAL"
	EntryTypeTrendSoft       = "TREND_SOFT"
	EntryTypeUnknown         = "UNKNOWN"

	ProfileSlowDrift    = "SLOW_DRIFT"
	ProfileSharpSellOff = "SHARP_SELL_OFF"
	ProfileStructural   = "STRUCTURAL_DOWNTREND"
	ProfileUnknown      = "UNKNOWN"

	PhaseEarlyStabilization = "EARLY_STABILIZATION"
	PhaseBaseBuilding       = "BASE_BUILDING"
	PhaseEarlyReversal      = "EARLY_REVERSAL"

	EntryGateA      = "EARLY_STAB_MA20_HL"
	EntryGateB      = "EARLY_STAB_MA20"
	EntryGateLegacy = "LEGACY_ENTRY_SETUP_VALID"

	EntryQualityA      = "A"
	EntryQualityB      = "B"
	EntryQualityLegacy = "LEGACY"
)

// SpecificProfiles are the decline profiles that never downgrade.
var SpecificProfiles = map[string]bool{
	ProfileSlowDrift:    true,
	ProfileSharpSellOff: true,
	ProfileStructural:   true,
}

// Status is the closed-key classification mapping carried in state attrs.
// Empty string / nil means the key is absent; serialization omits absent
// keys and collapses an all-absent status to NULL. Field order is
// lexicographic so serialized rows are byte-stable.
type Status struct {
	DeclineProfile             string `json:"decline_profile,omitempty"`
	DowntrendEntryType         string `json:"downtrend_entry_type,omitempty"`
	DowntrendOrigin            string `json:"downtrend_origin,omitempty"`
	EntryContinuationConfirmed *bool  `json:"entry_continuation_confirmed,omitempty"`
	EntryGate                  string `json:"entry_gate,omitempty"`
	EntryQuality               string `json:"entry_quality,omitempty"`
	StabilizationPhase         string `json:"stabilization_phase,omitempty"`
}

// statusKeys is the closed key set; anything else in a stored status
// payload is an invariant violation.
var statusKeys = map[string]bool{
	"decline_profile":              true,
	"downtrend_entry_type":         true,
	"downtrend_origin":             true,
	"entry_continuation_confirmed": true,
	"entry_gate":                   true,
	"entry_quality":                true,
	"stabilization_phase":          true,
}

// IsEmpty reports whether every status key is absent.
func (s Status) IsEmpty() bool {
	return s.DeclineProfile == "" &&
		s.DowntrendEntryType == "" &&
		s.DowntrendOrigin == "" &&
		s.EntryContinuationConfirmed == nil &&
		s.EntryGate == "" &&
		s.EntryQuality == "" &&
		s.StabilizationPhase == ""
}

// MarshalStatus serializes a status mapping; absent keys are dropped and
// an empty mapping returns ok=false (persist NULL).
func MarshalStatus(s Status) (string, bool) {
	if s.IsEmpty() {
		return "", false
	}
	b, err := json.Marshal(s)
	if err != nil {
		// Status contains only strings and a bool; marshal cannot fail.
		panic(fmt.Sprintf("invariant violation: status marshal: %v", err))
	}
	return string(b), true
}

// ParseStatus decodes a stored status payload. Keys outside the closed set
// are an invariant violation; a blank payload decodes to an empty status.
func ParseStatus(raw string) (Status, error) {
	var s Status
	if raw == "" {
		return s, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return s, fmt.Errorf("parse status attrs: %w", err)
	}
	for key := range probe {
		if !statusKeys[key] {
			return s, fmt.Errorf("invariant violation: status key %q outside closed set", key)
		}
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("parse status attrs: %w", err)
	}
	return s, nil
}

// StateAttrs carries per-day state metadata. Age is 1-based: the first day
// in a state has age 1, a stay increments it by one.
type StateAttrs struct {
	Confidence *int
	Age        int
	Status     Status
}

// Decision is the policy output for one evaluation step.
type Decision struct {
	NextState State
	Reasons   []ReasonCode
	Attrs     StateAttrs
}

// Transition records a realized state change for persistence.
type Transition struct {
	FromState State
	ToState   State
	Reasons   []ReasonCode
}
