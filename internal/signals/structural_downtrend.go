package signals

// Structural downtrend: prefer Dow facts (DOWN trend or a fresh LL);
// otherwise fall back to a 1-step pivot scan over the last 30 closes
// requiring two descending highs and two descending lows.
const structuralLookback = 30

func evalStructuralDowntrend(ctx Context, dowFacts Set) bool {
	if dowFacts.Has(DowTrendDown) || dowFacts.Has(DowNewLL) {
		return true
	}

	closes := ctx.Closes
	if len(closes) > structuralLookback {
		closes = closes[:structuralLookback]
	}
	if len(closes) < 5 {
		return false
	}
	// Work oldest-first so "last two" means most recent.
	asc := make([]float64, len(closes))
	for i, v := range closes {
		asc[len(closes)-1-i] = v
	}
	var highs, lows []float64
	for i := 1; i < len(asc)-1; i++ {
		if asc[i] > asc[i-1] && asc[i] > asc[i+1] {
			highs = append(highs, asc[i])
		}
		if asc[i] < asc[i-1] && asc[i] < asc[i+1] {
			lows = append(lows, asc[i])
		}
	}
	if len(highs) < 2 || len(lows) < 2 {
		return false
	}
	return highs[len(highs)-2] > highs[len(highs)-1] &&
		lows[len(lows)-2] > lows[len(lows)-1]
}
