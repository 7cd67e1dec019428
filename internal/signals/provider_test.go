package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khautala/swingmaster/internal/ohlc"
)

func flatSeries(n int) ohlc.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
	}
	return seriesFromCloses(closes...)
}

func TestProviderShortHistoryIsDataInsufficient(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)

	series := flatSeries(10)
	set := p.Evaluate("AAA", series, "2026-06-30")

	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Has(DataInsufficient))
}

func TestProviderRequireRowOnDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireRowOnDate = true
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	series := flatSeries(cfg.RequiredRows())
	set := p.Evaluate("AAA", series, "2030-12-31")
	assert.True(t, set.Has(DataInsufficient))

	set = p.Evaluate("AAA", series, series[0].Date)
	assert.False(t, set.Has(DataInsufficient))
}

func TestProviderQuietTapeEmitsNoSignalOnly(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)

	set := p.Evaluate("AAA", flatSeries(60), "2026-06-30")
	assert.True(t, set.Has(NoSignal))
	assert.False(t, set.Has(Invalidated))
	assert.False(t, set.Has(TrendStarted))
}

func TestProviderInvalidationSuppressesConstructiveSignals(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)

	// A fresh low below the prior ten-day lows on the as-of bar.
	series := flatSeries(60)
	series[0].Low = 90
	series[0].Close = 99
	series[0].High = 100
	set := p.Evaluate("AAA", series, "2026-06-30")

	assert.True(t, set.Has(Invalidated))
	assert.False(t, set.Has(StabilizationConfirmed))
	assert.False(t, set.Has(EntrySetupValid))
	assert.False(t, set.Has(NoSignal))
}

func TestProviderSlowDriftEmitsLegacyAlias(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)

	n := 60
	closes := make([]float64, n)
	// Gentle staircase decline into the as-of bar over the last ten
	// days, flat before that.
	for i := range closes {
		switch {
		case i == 0:
			closes[i] = 90
		case i <= 2:
			closes[i] = 93
		case i <= 5:
			closes[i] = 96
		case i <= 10:
			closes[i] = 100
		default:
			closes[i] = 100
		}
	}
	set := p.Evaluate("AAA", seriesFromCloses(closes...), "2026-06-30")

	assert.True(t, set.Has(SlowDriftDetected))
	assert.True(t, set.Has(SlowDeclineStarted))
	assert.False(t, set.Has(NoSignal))
}

func TestProviderDerivedFactsDoNotSuppressNoSignal(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)

	// Flat history with a trailing pivot sequence H, L, HH, HL: the Dow
	// higher-low fact fires (and derives HIGHER_LOW_CONFIRMED) while no
	// primary signal does, so the day still reads as quiet.
	closes := []float64{100.6, 100.4, 96, 100, 108, 100, 95, 100, 106}
	for len(closes) < 54 {
		closes = append(closes, 100)
	}
	set := p.Evaluate("AAA", seriesFromCloses(closes...), "2026-06-30")

	assert.True(t, set.Has(DowLastLowHL))
	assert.True(t, set.Has(HigherLowConfirmed))
	assert.True(t, set.Has(NoSignal))
	assert.False(t, set.Has(Invalidated))
	assert.False(t, set.Has(EntrySetupValid))
}

func TestProviderKeysAreSorted(t *testing.T) {
	set := NewSet("test", TrendStarted, DataInsufficient, MA20Reclaimed)
	keys := set.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, []Key{DataInsufficient, MA20Reclaimed, TrendStarted}, keys)
}
