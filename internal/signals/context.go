package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Context is the immutable per-evaluation view every signal module reads.
// Series order is most-recent-first: index 0 is the as-of bar.
type Context struct {
	Series   ohlc.Series
	Closes   []float64
	Highs    []float64
	Lows     []float64
	AsOfDate string
}

// NewContext caches the price columns once for all modules.
func NewContext(series ohlc.Series, asOfDate string) Context {
	return Context{
		Series:   series,
		Closes:   series.Closes(),
		Highs:    series.Highs(),
		Lows:     series.Lows(),
		AsOfDate: asOfDate,
	}
}

// ATRFrom computes the ATR over period days starting at offset (0 = as-of
// bar). ok=false when the window is too short.
func (c Context) ATRFrom(offset, period int) (float64, bool) {
	if offset < 0 || offset >= len(c.Series) {
		return 0, false
	}
	return c.Series[offset:].ATR(period)
}
