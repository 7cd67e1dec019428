package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Trend start: a downward SMA20 cross out of an established above-SMA
// regime, debounced, confirmed by a breakdown below the prior ten-day low.
func evalTrendStarted(ctx Context) bool {
	closes := ctx.Closes
	minRequired := smaLen + regimeWindow - 1
	for _, v := range []int{smaLen + slopeLookback, smaLen + debounceDays + 1, breakLowWindow + 1} {
		if v > minRequired {
			minRequired = v
		}
	}
	if len(closes) < minRequired {
		return false
	}

	sma20 := ohlc.SMASeries(closes, smaLen)
	if len(sma20) < regimeWindow {
		return false
	}

	aboveCount := 0
	for i := 0; i < regimeWindow; i++ {
		if closes[i] > sma20[i] {
			aboveCount++
		}
	}
	aboveRatio := float64(aboveCount) / float64(regimeWindow)
	slope := sma20[0] - sma20[slopeLookback]
	regimeOK := aboveRatio >= aboveRatioMin && slope > 0

	if !(closes[1] >= sma20[1] && closes[0] < sma20[0]) {
		return false
	}

	// Debounce: no recent day already below SMA before today's cross.
	for i := 1; i <= debounceDays+1; i++ {
		if closes[i] < sma20[i] {
			return false
		}
	}

	prevLow := ohlc.Min(closes[1 : 1+breakLowWindow])
	breakdownOK := closes[0] < prevLow

	return regimeOK && breakdownOK
}
