package signals

// Key identifies one semantic signal. Values are persisted in
// rc_signal_daily and must remain stable.
type Key string

const (
	SlowDeclineStarted           Key = "SLOW_DECLINE_STARTED"
	SlowDriftDetected            Key = "SLOW_DRIFT_DETECTED"
	SharpSellOffDetected         Key = "SHARP_SELL_OFF_DETECTED"
	StructuralDowntrendDetected  Key = "STRUCTURAL_DOWNTREND_DETECTED"
	VolatilityCompressionDetected Key = "VOLATILITY_COMPRESSION_DETECTED"
	MA20Reclaimed                Key = "MA20_RECLAIMED"
	HigherLowConfirmed           Key = "HIGHER_LOW_CONFIRMED"
	StructureBreakoutUpConfirmed Key = "STRUCTURE_BREAKOUT_UP_CONFIRMED"
	TrendStarted                 Key = "TREND_STARTED"
	TrendMatured                 Key = "TREND_MATURED"
	SellingPressureEased         Key = "SELLING_PRESSURE_EASED"
	StabilizationConfirmed       Key = "STABILIZATION_CONFIRMED"
	EntrySetupValid              Key = "ENTRY_SETUP_VALID"
	EdgeGone                     Key = "EDGE_GONE"
	Invalidated                  Key = "INVALIDATED"
	DataInsufficient             Key = "DATA_INSUFFICIENT"
	NoSignal                     Key = "NO_SIGNAL"

	DowTrendUp      Key = "DOW_TREND_UP"
	DowTrendDown    Key = "DOW_TREND_DOWN"
	DowTrendNeutral Key = "DOW_TREND_NEUTRAL"

	DowTrendChangeUpToNeutral   Key = "DOW_TREND_CHANGE_UP_TO_NEUTRAL"
	DowTrendChangeDownToNeutral Key = "DOW_TREND_CHANGE_DOWN_TO_NEUTRAL"
	DowTrendChangeNeutralToUp   Key = "DOW_TREND_CHANGE_NEUTRAL_TO_UP"
	DowTrendChangeNeutralToDown Key = "DOW_TREND_CHANGE_NEUTRAL_TO_DOWN"

	DowLastLowL  Key = "DOW_LAST_LOW_L"
	DowLastLowHL Key = "DOW_LAST_LOW_HL"
	DowLastLowLL Key = "DOW_LAST_LOW_LL"

	DowLastHighH  Key = "DOW_LAST_HIGH_H"
	DowLastHighHH Key = "DOW_LAST_HIGH_HH"
	DowLastHighLH Key = "DOW_LAST_HIGH_LH"

	DowNewLL Key = "DOW_NEW_LL"
	DowNewHH Key = "DOW_NEW_HH"

	DowReset        Key = "DOW_RESET"
	DowBosBreakUp   Key = "DOW_BOS_BREAK_UP"
	DowBosBreakDown Key = "DOW_BOS_BREAK_DOWN"
)
