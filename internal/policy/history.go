package policy

import (
	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/signals"
)

// HistoryDay is one persisted day of state context used by the
// history-aware helpers.
type HistoryDay struct {
	Date       string
	State      domain.State
	Reasons    []domain.ReasonCode
	SignalKeys []signals.Key
}

// History reads recent persisted days for a ticker, most recent first,
// strictly before the as-of date. A nil History disables the
// history-aware helpers.
type History interface {
	RecentDays(ticker, asOfDate string, limit int) ([]HistoryDay, error)
}

func historySignalSeen(days []HistoryDay, key signals.Key, withinDays int) bool {
	for i, d := range days {
		if i >= withinDays {
			break
		}
		for _, k := range d.SignalKeys {
			if k == key {
				return true
			}
		}
	}
	return false
}

func historyReasonCount(days []HistoryDay, code domain.ReasonCode, withinDays int) int {
	count := 0
	for i, d := range days {
		if i >= withinDays {
			break
		}
		if domain.ContainsReason(d.Reasons, code) {
			count++
		}
	}
	return count
}

// historyExitCount counts how many times the ticker left the given state
// within the window: a day in the state followed (next calendar row) by a
// different state.
func historyExitCount(days []HistoryDay, state domain.State, withinDays int) int {
	count := 0
	// days are most-recent-first; days[i+1] precedes days[i].
	for i := 0; i+1 < len(days) && i < withinDays; i++ {
		if days[i+1].State == state && days[i].State != state {
			count++
		}
	}
	return count
}
