package ewscore

import (
	"fmt"

	"github.com/khautala/swingmaster/internal/domain"
)

// Rule ids are LOCKED: the coefficient tables below are immutable under
// their ids. Any coefficient or threshold change ships as a new rule id.
const (
	RuleFastpassFIN      = "EW_SCORE_FASTPASS_V1_FIN"
	RuleFastpassSE       = "EW_SCORE_FASTPASS_V1_SE"
	RuleFastpassUSASmall = "EW_SCORE_FASTPASS_V1_USA_SMALL"
	RuleRollingFIN       = "EW_SCORE_ROLLING_V2_FIN"
	RuleRollingSE        = "EW_SCORE_ROLLING_V2_SE"
)

// Markets known to the router.
const (
	MarketOMXH = "omxh"
	MarketOMXS = "omxs"
	MarketUSA  = "usa"
)

// Router flags per market.
var (
	RollingEnabled = map[string]bool{
		MarketOMXH: true,
		MarketOMXS: true,
		MarketUSA:  false,
	}
	FastpassEnabled = map[string]bool{
		MarketOMXH: true,
		MarketOMXS: true,
		MarketUSA:  true,
	}
	rollingRuleByMarket = map[string]string{
		MarketOMXH: RuleRollingFIN,
		MarketOMXS: RuleRollingSE,
	}
	fastpassRuleByMarket = map[string]string{
		MarketOMXH: RuleFastpassFIN,
		MarketOMXS: RuleFastpassSE,
		MarketUSA:  RuleFastpassUSASmall,
	}
)

// FastpassModel is a locked logistic model over the stabilization-to-entry
// return and the categorical lifecycle attrs of the entry day.
type FastpassModel struct {
	RuleID    string
	Beta0     float64
	Threshold float64
	RCoef     float64

	OriginCoef    map[string]float64
	EntryTypeCoef map[string]float64
	ProfileCoef   map[string]float64
	PhaseCoef     map[string]float64
	GateCoef      map[string]float64
	QualityCoef   map[string]float64
}

// RollingModel is a locked logistic model over the prefix return.
type RollingModel struct {
	RuleID    string
	Beta0     float64
	Beta1     float64
	Threshold float64
}

var fastpassModels = map[string]FastpassModel{
	RuleFastpassUSASmall: {
		RuleID:    RuleFastpassUSASmall,
		Beta0:     0.002991128723180779,
		Threshold: 0.60,
		RCoef:     0.3526155974028325,
		OriginCoef: map[string]float64{
			domain.OriginTrend: 0.2214632030551278,
			domain.OriginSlow:  -0.3189050113190774,
		},
		EntryTypeCoef: map[string]float64{
			domain.EntryTypeTrendStructural: 0.5120993004571188,
			domain.EntryTypeTrendSoft:       0.1417228320550971,
			domain.EntryTypeSlowStructural:  0.0886211970034472,
			domain.EntryTypeSlowSoft:        -0.2078110515786332,
			domain.EntryTypeUnknown:         -0.2110220554651147,
		},
		ProfileCoef: map[string]float64{
			domain.ProfileSlowDrift:    0.3012847220011358,
			domain.ProfileSharpSellOff: -0.4470112948512214,
			domain.ProfileStructural:   0.1893501127760239,
			domain.ProfileUnknown:      0.0,
		},
		PhaseCoef: map[string]float64{
			domain.PhaseEarlyReversal:      0.4310224997805166,
			domain.PhaseBaseBuilding:       0.2551122801137084,
			domain.PhaseEarlyStabilization: -0.1220502231018867,
		},
		GateCoef: map[string]float64{
			domain.EntryGateA:      0.3377125503312099,
			domain.EntryGateB:      0.1126220741150327,
			domain.EntryGateLegacy: -0.0551227330410776,
		},
		QualityCoef: map[string]float64{
			domain.EntryQualityA:      0.2661009228554176,
			domain.EntryQualityB:      0.0882339114701348,
			domain.EntryQualityLegacy: -0.0440551276211007,
		},
	},
	RuleFastpassFIN: {
		RuleID:    RuleFastpassFIN,
		Beta0:     -0.0412225108823317,
		Threshold: 0.60,
		RCoef:     0.3988120367245521,
		OriginCoef: map[string]float64{
			domain.OriginTrend: 0.2551338140220865,
			domain.OriginSlow:  -0.2914225330178556,
		},
		EntryTypeCoef: map[string]float64{
			domain.EntryTypeTrendStructural: 0.5533018223410857,
			domain.EntryTypeTrendSoft:       0.1620944751123307,
			domain.EntryTypeSlowStructural:  0.1011833520440286,
			domain.EntryTypeSlowSoft:        -0.2217850936124471,
			domain.EntryTypeUnknown:         -0.1986224008837335,
		},
		ProfileCoef: map[string]float64{
			domain.ProfileSlowDrift:    0.3328447112230556,
			domain.ProfileSharpSellOff: -0.4128339046211783,
			domain.ProfileStructural:   0.2077261138845109,
			domain.ProfileUnknown:      0.0,
		},
		PhaseCoef: map[string]float64{
			domain.PhaseEarlyReversal:      0.4662250318870441,
			domain.PhaseBaseBuilding:       0.2718335024410652,
			domain.PhaseEarlyStabilization: -0.1348823310120765,
		},
		GateCoef: map[string]float64{
			domain.EntryGateA:      0.3551372201184438,
			domain.EntryGateB:      0.1244862231073359,
			domain.EntryGateLegacy: -0.0622845118103323,
		},
		QualityCoef: map[string]float64{
			domain.EntryQualityA:      0.2833010457812646,
			domain.EntryQualityB:      0.0955822301441829,
			domain.EntryQualityLegacy: -0.0488036220115834,
		},
	},
	RuleFastpassSE: {
		RuleID:    RuleFastpassSE,
		Beta0:     -0.0788231066125502,
		Threshold: 0.65,
		RCoef:     0.4235956974235532,
		OriginCoef: map[string]float64{
			domain.OriginTrend: 0.2390118223074451,
			domain.OriginSlow:  -0.5567538554589132,
		},
		EntryTypeCoef: map[string]float64{
			domain.EntryTypeTrendStructural: 0.5901220733148805,
			domain.EntryTypeTrendSoft:       0.6865754008841269,
			domain.EntryTypeSlowStructural:  0.0933852208471133,
			domain.EntryTypeSlowSoft:        -0.2412230184550329,
			domain.EntryTypeUnknown:         -0.2001854122036647,
		},
		ProfileCoef: map[string]float64{
			domain.ProfileSlowDrift:    2.290586835702952,
			domain.ProfileSharpSellOff: -0.3855122036281147,
			domain.ProfileStructural:   0.2213840557120468,
			domain.ProfileUnknown:      0.0,
		},
		PhaseCoef: map[string]float64{
			domain.PhaseEarlyReversal:      -0.3624012303920593,
			domain.PhaseBaseBuilding:       0.2903350118846221,
			domain.PhaseEarlyStabilization: -0.1433028441076125,
		},
		GateCoef: map[string]float64{
			domain.EntryGateA:      0.3710080223315584,
			domain.EntryGateB:      0.1382594006923378,
			domain.EntryGateLegacy: -0.0701123385502246,
		},
		QualityCoef: map[string]float64{
			domain.EntryQualityA:      0.2955824401138207,
			domain.EntryQualityB:      0.1382594006923378,
			domain.EntryQualityLegacy: -0.0522960338114275,
		},
	},
}

var rollingModels = map[string]RollingModel{
	RuleRollingFIN: {
		RuleID:    RuleRollingFIN,
		Beta0:     -0.4880112230157733,
		Beta1:     0.2214833051126844,
		Threshold: 0.45,
	},
	RuleRollingSE: {
		RuleID:    RuleRollingSE,
		Beta0:     -0.5122036604871125,
		Beta1:     0.2388450172230561,
		Threshold: 0.47,
	},
}

// FastpassModelFor resolves the locked fastpass model for a market.
func FastpassModelFor(market string) (FastpassModel, error) {
	ruleID, ok := fastpassRuleByMarket[market]
	if !ok {
		return FastpassModel{}, fmt.Errorf("no fastpass rule for market %q", market)
	}
	return fastpassModels[ruleID], nil
}

// RollingModelFor resolves the locked rolling model for a market.
func RollingModelFor(market string) (RollingModel, error) {
	ruleID, ok := rollingRuleByMarket[market]
	if !ok {
		return RollingModel{}, fmt.Errorf("no rolling rule for market %q", market)
	}
	return rollingModels[ruleID], nil
}

// Level applies the shared 0/1/2/3 contract. The mapping is frozen for
// both modes: with fewer than four rows the score only distinguishes
// provisional levels 0/1; with four or more it resolves to final 2/3.
func Level(score float64, rowsTotal int, threshold float64) int {
	if rowsTotal < 4 {
		if score >= threshold {
			return 1
		}
		return 0
	}
	if score >= threshold {
		return 3
	}
	return 2
}
