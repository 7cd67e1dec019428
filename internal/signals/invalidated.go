package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Invalidation: today's low breaks the minimum low of the prior lookback
// days. Fires regardless of state; same-day stabilization and entry
// signals are suppressed by the provider.
func evalInvalidated(lows []float64, lookback int) bool {
	if len(lows) < lookback+1 {
		return false
	}
	return lows[0] < ohlc.Min(lows[1:lookback+1])
}
