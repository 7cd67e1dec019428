package signals

import (
	"github.com/rs/zerolog/log"

	"github.com/khautala/swingmaster/internal/ohlc"
)

const providerSource = "ohlc_v3"

// Provider orchestrates the signal modules over one OHLC window and emits
// the per-day signal set. It never fails: shortfalls degrade to
// DATA_INSUFFICIENT and individual modules degrade to signal-absent.
type Provider struct {
	cfg   Config
	dow   DowAnalyzer
	debug bool
}

// NewProvider validates the configuration and returns a provider.
func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		cfg: cfg,
		dow: DowAnalyzer{Window: cfg.DowWindow, UseHighLow: cfg.DowUseHighLow},
	}, nil
}

// SetDebug enables per-evaluation debug logging.
func (p *Provider) SetDebug(enabled bool) { p.debug = enabled }

// Config returns the provider configuration.
func (p *Provider) Config() Config { return p.cfg }

// Evaluate computes the signal set for a most-recent-first OHLC window as
// of the given date.
func (p *Provider) Evaluate(ticker string, series ohlc.Series, asOfDate string) Set {
	required := p.cfg.RequiredRows()
	if len(series) < required {
		p.logInsufficient(ticker, asOfDate, required, series)
		return NewSet(providerSource, DataInsufficient)
	}
	if p.cfg.RequireRowOnDate && series[0].Date != asOfDate {
		p.logInsufficient(ticker, asOfDate, required, series)
		return NewSet(providerSource, DataInsufficient)
	}

	ctx := NewContext(series, asOfDate)
	set := NewSet(providerSource)
	primary := 0
	fire := func(k Key) {
		set.Add(k)
		primary++
	}

	if evalSlowDrift(ctx) {
		fire(SlowDriftDetected)
		fire(SlowDeclineStarted) // legacy alias kept for v2 consumers
	}
	if evalSharpSellOff(ctx) {
		fire(SharpSellOffDetected)
	}
	if evalVolatilityCompression(ctx) {
		fire(VolatilityCompressionDetected)
	}
	if evalMA20Reclaimed(ctx) {
		fire(MA20Reclaimed)
	}

	trendStartedBase := evalTrendStarted(ctx)

	if evalTrendMatured(ctx) {
		fire(TrendMatured)
	}
	if evalStabilizationConfirmed(ctx) {
		fire(StabilizationConfirmed)
	}
	if evalEntrySetupValid(ctx) {
		fire(EntrySetupValid)
	}

	if evalInvalidated(ctx.Lows, p.cfg.InvalidationLookback) {
		fire(Invalidated)
		// Invalidation suppresses same-day constructive signals.
		if set.Has(StabilizationConfirmed) {
			set.Remove(StabilizationConfirmed)
			primary--
		}
		if set.Has(EntrySetupValid) {
			set.Remove(EntrySetupValid)
			primary--
		}
	}

	dowFacts := p.dow.Facts(series, asOfDate)

	if evalStructuralDowntrend(ctx, dowFacts) {
		fire(StructuralDowntrendDetected)
	}

	// Dow override: an UP regime dying with a lower low counts as a trend
	// start even when the SMA cross has not printed.
	if dowFacts.Has(DowTrendChangeUpToNeutral) && dowFacts.Has(DowLastLowLL) {
		fire(TrendStarted)
	} else if trendStartedBase {
		fire(TrendStarted)
	}

	for _, k := range dowFacts.Keys() {
		set.Add(k)
	}

	// Derived facts do not count as primary signals: a day carrying only
	// a Dow higher-low still reads as quiet to the policy layers.
	if set.Has(DowLastLowHL) {
		set.Add(HigherLowConfirmed)
	}
	if set.Has(DowBosBreakUp) {
		set.Add(StructureBreakoutUpConfirmed)
	}

	if primary == 0 && !set.Has(Invalidated) {
		set.Add(NoSignal)
	}
	return set
}

func (p *Provider) logInsufficient(ticker, asOfDate string, required int, series ohlc.Series) {
	if !p.debug {
		return
	}
	latest := ""
	if len(series) > 0 {
		latest = series[0].Date
	}
	log.Debug().
		Str("ticker", ticker).
		Str("date", asOfDate).
		Int("required_rows", required).
		Int("available_rows", len(series)).
		Bool("require_row_on_date", p.cfg.RequireRowOnDate).
		Str("latest_row_date", latest).
		Msg("DATA_INSUFFICIENT")
}
