package signals

import (
	"sort"

	"github.com/khautala/swingmaster/internal/ohlc"
)

// Stabilization confirmation: the recent week trades in a shrunken range
// with few wide days, no significant new lows (at most one sweep), and a
// majority of closes in the upper part of the daily range.
const (
	stabRecentDays      = 7
	stabBaselineDays    = 20
	stabShrinkRatio     = 0.75
	stabWideDayMult     = 1.5
	stabWideDayMaxRatio = 0.20
	stabNewLowEps       = 0.003
	stabMaxSweeps       = 1
	stabUpperCloseMin   = 0.55
	stabUpperCloseDays  = 3
	stabLowRefLookback  = 10
)

func evalStabilizationConfirmed(ctx Context) bool {
	series := ctx.Series
	needed := stabRecentDays + stabBaselineDays
	if len(series) < needed+stabLowRefLookback {
		return false
	}

	recentNorm := make([]float64, 0, stabRecentDays)
	for i := 0; i < stabRecentDays; i++ {
		b := series[i]
		if b.Close <= 0 {
			return false
		}
		recentNorm = append(recentNorm, (b.High-b.Low)/b.Close)
	}
	baselineNorm := make([]float64, 0, stabBaselineDays)
	for i := stabRecentDays; i < needed; i++ {
		b := series[i]
		if b.Close <= 0 {
			return false
		}
		baselineNorm = append(baselineNorm, (b.High-b.Low)/b.Close)
	}
	recentMed := median(recentNorm)
	baselineMed := median(baselineNorm)
	if baselineMed <= 0 {
		return false
	}
	if recentMed > stabShrinkRatio*baselineMed {
		return false
	}

	wideDays := 0
	for _, r := range recentNorm {
		if r >= stabWideDayMult*baselineMed {
			wideDays++
		}
	}
	if float64(wideDays) > stabWideDayMaxRatio*float64(stabRecentDays) {
		return false
	}

	// New lows inside the recent window against the trailing reference low:
	// a break beyond epsilon disqualifies, a shallow sweep is tolerated once.
	sweeps := 0
	for i := 0; i < stabRecentDays; i++ {
		ref := ohlc.Min(ctx.Lows[i+1 : i+1+stabLowRefLookback])
		low := ctx.Lows[i]
		if low < ref*(1-stabNewLowEps) {
			return false
		}
		if low < ref {
			sweeps++
		}
	}
	if sweeps > stabMaxSweeps {
		return false
	}

	upperCloses := 0
	for i := 0; i < stabRecentDays; i++ {
		b := series[i]
		if b.High <= b.Low {
			continue
		}
		if (b.Close-b.Low)/(b.High-b.Low) >= stabUpperCloseMin {
			upperCloses++
		}
	}
	return upperCloses >= stabUpperCloseDays
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
