package signals

import (
	"fmt"
)

// Trend-start constants (locked; TREND_STARTED fires only when all hold).
const (
	smaLen        = 20
	slopeLookback = 5
	regimeWindow  = 30
	aboveRatioMin = 0.70
	breakLowWindow = 10
	debounceDays  = 5
)

// safetyMarginRows pads the required-rows precondition.
const safetyMarginRows = 2

// Config is the provider configuration. Fields map 1:1 to the evaluation
// windows; defaults come from DefaultConfig.
type Config struct {
	SMAWindow            int     `yaml:"sma_window"`
	MomentumLookback     int     `yaml:"momentum_lookback"`
	ATRWindow            int     `yaml:"atr_window"`
	StabilizationDays    int     `yaml:"stabilization_days"`
	EntrySMAWindow       int     `yaml:"entry_sma_window"`
	InvalidationLookback int     `yaml:"invalidation_lookback"`
	DowWindow            int     `yaml:"dow_window"`
	DowUseHighLow        bool    `yaml:"dow_use_high_low"`
	RequireRowOnDate     bool    `yaml:"require_row_on_date"`
}

// DefaultConfig returns the production provider configuration.
func DefaultConfig() Config {
	return Config{
		SMAWindow:            20,
		MomentumLookback:     1,
		ATRWindow:            14,
		StabilizationDays:    5,
		EntrySMAWindow:       5,
		InvalidationLookback: 10,
		DowWindow:            3,
		DowUseHighLow:        true,
	}
}

// Validate rejects windows too small to evaluate.
func (c Config) Validate() error {
	checks := []struct {
		name string
		val  int
		min  int
	}{
		{"sma_window", c.SMAWindow, 2},
		{"momentum_lookback", c.MomentumLookback, 1},
		{"atr_window", c.ATRWindow, 2},
		{"stabilization_days", c.StabilizationDays, 1},
		{"entry_sma_window", c.EntrySMAWindow, 2},
		{"invalidation_lookback", c.InvalidationLookback, 1},
		{"dow_window", c.DowWindow, 2},
	}
	for _, ch := range checks {
		if ch.val < ch.min {
			return fmt.Errorf("invalid provider config: %s must be >= %d", ch.name, ch.min)
		}
	}
	return nil
}

// RequiredRows is the minimum OHLC depth for a full signal evaluation.
// Anything shorter degrades to DATA_INSUFFICIENT.
func (c Config) RequiredRows() int {
	req := c.SMAWindow + c.MomentumLookback
	for _, v := range []int{
		c.SMAWindow + 5,
		c.ATRWindow + 1,
		maxInt(c.StabilizationDays+1, c.EntrySMAWindow),
		c.InvalidationLookback + 1,
		2*c.DowWindow + 1,
		smaLen + regimeWindow - 1,
		smaLen + slopeLookback,
		breakLowWindow + 1,
	} {
		if v > req {
			req = v
		}
	}
	return req + safetyMarginRows
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
