package domain

import "strings"

// ReasonCode is a stable identifier for decision reasoning. The value is
// persisted (with the "POLICY:" prefix) and must remain stable for audits.
type ReasonCode string

const (
	ReasonSlowDeclineStarted        ReasonCode = "SLOW_DECLINE_STARTED"
	ReasonTrendStarted              ReasonCode = "TREND_STARTED"
	ReasonTrendMatured              ReasonCode = "TREND_MATURED"
	ReasonSellingPressureEased      ReasonCode = "SELLING_PRESSURE_EASED"
	ReasonStabilizationConfirmed    ReasonCode = "STABILIZATION_CONFIRMED"
	ReasonEntryConditionsMet        ReasonCode = "ENTRY_CONDITIONS_MET"
	ReasonEdgeGone                  ReasonCode = "EDGE_GONE"
	ReasonInvalidated               ReasonCode = "INVALIDATED"
	ReasonInvalidationBlockedByLock ReasonCode = "INVALIDATION_BLOCKED_BY_LOCK"
	ReasonDisallowedTransition      ReasonCode = "DISALLOWED_TRANSITION"
	ReasonPassCompleted             ReasonCode = "PASS_COMPLETED"
	ReasonEntryWindowCompleted      ReasonCode = "ENTRY_WINDOW_COMPLETED"
	ReasonResetToNeutral            ReasonCode = "RESET_TO_NEUTRAL"
	ReasonChurnGuard                ReasonCode = "CHURN_GUARD"
	ReasonMinStateAgeLock           ReasonCode = "MIN_STATE_AGE_LOCK"
	ReasonDataInsufficient          ReasonCode = "DATA_INSUFFICIENT"
	ReasonNoSignal                  ReasonCode = "NO_SIGNAL"
)

const reasonPersistPrefix = "POLICY:"

// ReasonCategory groups reason codes for report output.
type ReasonCategory string

const (
	CategoryExclusion ReasonCategory = "EXCLUSION"
	CategoryEntry     ReasonCategory = "ENTRY"
	CategoryInfo      ReasonCategory = "INFO"
)

// ReasonMeta carries audit metadata for a reason code.
type ReasonMeta struct {
	Category ReasonCategory
	Message  string
}

// ReasonMetadata is keyed by reason code and must stay complete; the
// domain test asserts full coverage.
var ReasonMetadata = map[ReasonCode]ReasonMeta{
	ReasonSlowDeclineStarted:        {CategoryInfo, "Slow staircase decline has started."},
	ReasonTrendStarted:              {CategoryInfo, "Trend has begun and is being tracked."},
	ReasonTrendMatured:              {CategoryInfo, "Trend has progressed into a later stage."},
	ReasonSellingPressureEased:      {CategoryInfo, "Selling pressure has diminished from prior levels."},
	ReasonStabilizationConfirmed:    {CategoryInfo, "Price action shows signs of stabilizing."},
	ReasonEntryConditionsMet:        {CategoryEntry, "Entry conditions have been satisfied."},
	ReasonEdgeGone:                  {CategoryExclusion, "Previously identified edge is no longer present."},
	ReasonInvalidated:               {CategoryExclusion, "Prior setup or thesis has been invalidated."},
	ReasonInvalidationBlockedByLock: {CategoryExclusion, "Invalidation blocked by minimum age guardrail."},
	ReasonDisallowedTransition:      {CategoryExclusion, "Proposed transition is not allowed by the transition graph."},
	ReasonPassCompleted:             {CategoryInfo, "Pass period completed; returning to neutral."},
	ReasonEntryWindowCompleted:      {CategoryInfo, "Entry window completed; transitioning to pass."},
	ReasonResetToNeutral:            {CategoryExclusion, "Lifecycle reset to neutral state."},
	ReasonChurnGuard:                {CategoryExclusion, "Transition blocked to prevent rapid oscillation."},
	ReasonMinStateAgeLock:           {CategoryExclusion, "State blocked by minimum age guardrail."},
	ReasonDataInsufficient:          {CategoryExclusion, "Available data is insufficient for a decision."},
	ReasonNoSignal:                  {CategoryInfo, "No actionable signals were present; state remains unchanged."},
}

// Persisted returns the storage form of the reason code.
func (r ReasonCode) Persisted() string {
	return reasonPersistPrefix + string(r)
}

// ReasonFromPersisted parses a stored label, tolerating the bare form.
// Returns "" for unknown labels.
func ReasonFromPersisted(label string) ReasonCode {
	label = strings.TrimPrefix(label, reasonPersistPrefix)
	r := ReasonCode(label)
	if _, ok := ReasonMetadata[r]; !ok {
		return ""
	}
	return r
}

// ContainsReason reports membership of code in reasons.
func ContainsReason(reasons []ReasonCode, code ReasonCode) bool {
	for _, r := range reasons {
		if r == code {
			return true
		}
	}
	return false
}
