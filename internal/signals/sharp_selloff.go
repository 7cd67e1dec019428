package signals

// Sharp sell-off: one-day or three-day return below an ATR-scaled
// threshold.
const (
	sellOffATRLen       = 14
	sellOffOneDayMult   = 2.5
	sellOffThreeDayMult = 3.5
)

func evalSharpSellOff(ctx Context) bool {
	closes := ctx.Closes
	if len(closes) < 4 {
		return false
	}
	c0, c1, c3 := closes[0], closes[1], closes[3]
	if c0 <= 0 || c1 <= 0 || c3 <= 0 {
		return false
	}
	atr14, ok := ctx.ATRFrom(0, sellOffATRLen)
	if !ok {
		return false
	}
	atrPct := atr14 / c0
	if atrPct <= 0 {
		return false
	}
	oneDay := c0/c1 - 1.0
	threeDay := c0/c3 - 1.0
	return oneDay <= -(sellOffOneDayMult*atrPct) || threeDay <= -(sellOffThreeDayMult*atrPct)
}
