package signals

// MA20 reclaim: close crosses from at/below SMA20 to above it.
const ma20Window = 20

func evalMA20Reclaimed(ctx Context) bool {
	closes := ctx.Closes
	if len(closes) < ma20Window+1 {
		return false
	}
	for _, v := range closes[:ma20Window+1] {
		if v <= 0 {
			return false
		}
	}
	var sumT0, sumT1 float64
	for i := 0; i < ma20Window; i++ {
		sumT0 += closes[i]
		sumT1 += closes[i+1]
	}
	smaT0 := sumT0 / float64(ma20Window)
	smaT1 := sumT1 / float64(ma20Window)
	return closes[0] > smaT0 && closes[1] <= smaT1
}
