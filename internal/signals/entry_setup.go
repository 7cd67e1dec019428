package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Entry setup: a tight base or an MA20 reclaim, validated against the
// setup's invalidation level with an ATR-scaled risk cap and a support
// check on the last three closes.
const (
	setupBaseWindow      = 10
	setupBaseMaxRangePct = 0.06
	setupLowDriftEps     = 0.003
	setupReclaimMinPos   = 0.55
	setupReclaimLowDays  = 6
	setupRiskATRMax      = 2.5
	setupRiskPctMax      = 0.06
	setupSupportDays     = 3
	setupSupportEps      = 0.003
	setupATRLen          = 14
)

func evalEntrySetupValid(ctx Context) bool {
	if len(ctx.Series) < smaLen+1 {
		return false
	}
	entry := ctx.Closes[0]
	if entry <= 0 {
		return false
	}

	invalidation, ok := baseRangeSetup(ctx)
	if !ok {
		invalidation, ok = reclaimMA20Setup(ctx)
	}
	if !ok {
		return false
	}

	if entry <= invalidation {
		return false
	}
	if atr14, okATR := ctx.ATRFrom(0, setupATRLen); okATR && atr14 > 0 {
		if (entry-invalidation)/atr14 > setupRiskATRMax {
			return false
		}
	} else if (entry-invalidation)/entry > setupRiskPctMax {
		return false
	}

	for i := 0; i < setupSupportDays; i++ {
		if ctx.Closes[i] < invalidation*(1-setupSupportEps) {
			return false
		}
	}
	return true
}

// baseRangeSetup accepts a tight ten-day base whose recent lows hold the
// older lows. Invalidation is the window low.
func baseRangeSetup(ctx Context) (float64, bool) {
	if len(ctx.Series) < setupBaseWindow {
		return 0, false
	}
	highs := ctx.Highs[:setupBaseWindow]
	lows := ctx.Lows[:setupBaseWindow]
	rangePct := (ohlc.Max(highs) - ohlc.Min(lows)) / ctx.Closes[0]
	if rangePct > setupBaseMaxRangePct {
		return 0, false
	}
	half := setupBaseWindow / 2
	minRecent := ohlc.Min(lows[:half])
	minOlder := ohlc.Min(lows[half:])
	if minRecent < minOlder*(1-setupLowDriftEps) {
		return 0, false
	}
	return ohlc.Min(lows), true
}

// reclaimMA20Setup accepts a fresh cross above SMA20 closing in the upper
// part of today's range. Invalidation is the recent swing low.
func reclaimMA20Setup(ctx Context) (float64, bool) {
	closes := ctx.Closes
	if len(closes) < smaLen+1 || len(ctx.Lows) < setupReclaimLowDays {
		return 0, false
	}
	sma20 := ohlc.SMASeries(closes, smaLen)
	if len(sma20) < 2 {
		return 0, false
	}
	if !(closes[1] <= sma20[1] && closes[0] > sma20[0]) {
		return 0, false
	}
	today := ctx.Series[0]
	if today.High <= today.Low {
		return 0, false
	}
	if (today.Close-today.Low)/(today.High-today.Low) < setupReclaimMinPos {
		return 0, false
	}
	return ohlc.Min(ctx.Lows[:setupReclaimLowDays]), true
}
