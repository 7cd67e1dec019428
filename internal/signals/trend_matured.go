package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Trend maturity: structure (clustered new lows or drawdown), time (most
// recent days below SMA20) and momentum (flattening sequence of new lows)
// must all pass.
const (
	maturedStructWindow   = 15
	maturedNewLowLookback = 10
	maturedDrawRefFar     = 20
	maturedDrawRefNear    = 5
	maturedDrawMinDD      = 0.10
	maturedTimeWindow     = 10
	maturedTimeRatio      = 0.70
	maturedMomentumWindow = 20
	maturedMomentumCount  = 3
	maturedMomentumDrop   = 0.02
)

func evalTrendMatured(ctx Context) bool {
	closes := ctx.Closes
	minRequired := maturedDrawRefFar + 1
	for _, v := range []int{
		smaLen + maturedMomentumWindow,
		maturedStructWindow + maturedNewLowLookback,
		maturedMomentumWindow + maturedNewLowLookback,
	} {
		if v > minRequired {
			minRequired = v
		}
	}
	if len(closes) < minRequired {
		return false
	}
	sma20 := ohlc.SMASeries(closes, smaLen)
	if len(sma20) < maturedTimeWindow {
		return false
	}

	newLows := 0
	for i := 0; i < maturedStructWindow; i++ {
		if isNewLow(closes, i, maturedNewLowLookback) {
			newLows++
		}
	}
	structNewLows := newLows >= 2

	refHigh := ohlc.Max(closes[maturedDrawRefNear : maturedDrawRefFar+1])
	if refHigh <= 0 {
		return false
	}
	drawdown := (refHigh - closes[0]) / refHigh
	structureOK := structNewLows || drawdown >= maturedDrawMinDD

	belowDays := 0
	for i := 0; i < maturedTimeWindow; i++ {
		if closes[i] < sma20[i] {
			belowDays++
		}
	}
	timeOK := belowDays >= ceilRatio(maturedTimeWindow, maturedTimeRatio)

	var newLowIdx []int
	for i := 0; i < maturedMomentumWindow; i++ {
		if isNewLow(closes, i, maturedNewLowLookback) {
			newLowIdx = append(newLowIdx, i)
		}
	}
	if len(newLowIdx) < maturedMomentumCount {
		return false
	}
	// Chronologically last three new lows: the three smallest offsets,
	// ordered oldest to newest.
	last3 := newLowIdx[:maturedMomentumCount]
	l1 := closes[last3[2]]
	l2 := closes[last3[1]]
	l3 := closes[last3[0]]
	if l1 <= 0 || l2 <= 0 {
		return false
	}
	step1 := absFloat(l2-l1) / l1
	step2 := absFloat(l3-l2) / l2
	momentumOK := step1 <= maturedMomentumDrop && step2 <= maturedMomentumDrop

	return structureOK && timeOK && momentumOK
}

// isNewLow reports whether closes[idx] undercuts the minimum of the
// preceding lookback closes.
func isNewLow(closes []float64, idx, lookback int) bool {
	if idx+lookback >= len(closes) {
		return false
	}
	prior := closes[idx+1 : idx+1+lookback]
	return closes[idx] < ohlc.Min(prior)
}

func ceilRatio(n int, ratio float64) int {
	if n <= 0 {
		return 0
	}
	raw := float64(n) * ratio
	whole := int(raw)
	if raw > float64(whole) {
		return whole + 1
	}
	return whole
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
