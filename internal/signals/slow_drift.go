package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Slow-drift staircase decline: t-10 > t-5 > t-2 > t0 with at least a 3%
// ten-day decline and price under a falling short-term MA pair.
const (
	slowDriftLookback = 10
	slowDriftMAShort  = 5
	slowDriftMALong   = 10
	slowDriftMinDecline = -0.03
)

func evalSlowDrift(ctx Context) bool {
	closes := ctx.Closes
	if len(closes) < slowDriftLookback+1 {
		return false
	}
	c0, c2, c5, c10 := closes[0], closes[2], closes[5], closes[slowDriftLookback]
	if c10 <= 0 {
		return false
	}
	if !(c10 > c5 && c5 > c2 && c2 > c0) {
		return false
	}
	if c0/c10-1.0 > slowDriftMinDecline {
		return false
	}
	ma5, ok5 := ohlc.SMA(closes, slowDriftMAShort)
	ma10, ok10 := ohlc.SMA(closes, slowDriftMALong)
	if !ok5 || !ok10 {
		return false
	}
	return ma5 < ma10 && c0 < ma10
}
