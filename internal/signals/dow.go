package signals

import "github.com/khautala/swingmaster/internal/ohlc"

// Dow-structure analyzer: detects symmetric-window pivots, labels them
// HH/HL/LH/LL against the active structural high/low, derives the trend
// from the last labels, and resets the structure after two consecutive
// closes through the active level (break of structure).
//
// Pivots are re-derived per evaluation; there is no cross-evaluation state.

const (
	dowEpsPct         = 0.0001
	dowMeaninglessPct = 0.0001
	dowBosResetBars   = 2
)

type dowMarker struct {
	date     string
	value    float64
	label    string
	pivot    float64
	hasPivot bool
}

type dowPoint struct {
	date  string
	value float64
	high  float64
	low   float64
}

// DowAnalyzer configuration mirrors the provider config.
type DowAnalyzer struct {
	Window             int
	UseHighLow         bool
	SensitiveDownReset bool
}

// Facts computes the Dow signal facts for a most-recent-first OHLC window,
// restricted to markers on or before the as-of date.
func (a DowAnalyzer) Facts(series ohlc.Series, asOfDate string) Set {
	facts := NewSet("dow_structure")
	points := buildDowPoints(series, a.UseHighLow)
	markers := a.computeMarkers(points)

	kept := markers[:0]
	for _, m := range markers {
		if m.date != "" && m.date <= asOfDate {
			kept = append(kept, m)
		}
	}
	markers = kept
	if len(markers) == 0 {
		return facts
	}

	trend, lastHigh, lastLow := trendFromMarkers(markers)
	switch trend {
	case "UP":
		facts.Add(DowTrendUp)
	case "DOWN":
		facts.Add(DowTrendDown)
	default:
		facts.Add(DowTrendNeutral)
	}

	switch lastLow {
	case "LL":
		facts.Add(DowLastLowLL)
	case "HL":
		facts.Add(DowLastLowHL)
	case "L":
		facts.Add(DowLastLowL)
	}
	switch lastHigh {
	case "HH":
		facts.Add(DowLastHighHH)
	case "LH":
		facts.Add(DowLastHighLH)
	case "H":
		facts.Add(DowLastHighH)
	}

	lows := filterMarkers(markers, lowLabel)
	if len(lows) >= 2 && lastLow == "LL" {
		last := markerPrice(lows[len(lows)-1])
		prev := lows[len(lows)-2]
		if prev.hasPivot && last < prev.pivot*(1-dowEpsPct) {
			facts.Add(DowNewLL)
		}
	}
	highs := filterMarkers(markers, highLabel)
	if len(highs) >= 2 && lastHigh == "HH" {
		last := markerPrice(highs[len(highs)-1])
		prev := highs[len(highs)-2]
		if prev.hasPivot && last > prev.pivot*(1+dowEpsPct) {
			facts.Add(DowNewHH)
		}
	}

	for _, ch := range trendChanges(markers) {
		if ch.date != asOfDate {
			continue
		}
		switch {
		case ch.from == "UP" && ch.to == "NEUTRAL":
			facts.Add(DowTrendChangeUpToNeutral)
		case ch.from == "DOWN" && ch.to == "NEUTRAL":
			facts.Add(DowTrendChangeDownToNeutral)
		case ch.from == "NEUTRAL" && ch.to == "UP":
			facts.Add(DowTrendChangeNeutralToUp)
		case ch.from == "NEUTRAL" && ch.to == "DOWN":
			facts.Add(DowTrendChangeNeutralToDown)
		}
	}

	for i, m := range markers {
		if m.label != "R" || m.date != asOfDate {
			continue
		}
		facts.Add(DowReset)
		prevTrend, _, _ := trendFromMarkers(markers[:i])
		if prevTrend == "UP" {
			facts.Add(DowBosBreakDown)
		} else if prevTrend == "DOWN" {
			facts.Add(DowBosBreakUp)
		}
	}

	return facts
}

// buildDowPoints converts a most-recent-first window into an
// oldest-first series for the marker walk.
func buildDowPoints(series ohlc.Series, useHighLow bool) []dowPoint {
	points := make([]dowPoint, len(series))
	for i := len(series) - 1; i >= 0; i-- {
		b := series[i]
		p := dowPoint{date: b.Date, value: b.Close, high: b.Close, low: b.Close}
		if useHighLow {
			p.high = b.High
			p.low = b.Low
		}
		points[len(series)-1-i] = p
	}
	return points
}

type pivot struct {
	kind  string // "H" or "L"
	value float64
}

func (a DowAnalyzer) computeMarkers(points []dowPoint) []dowMarker {
	n := len(points)
	if n == 0 {
		return nil
	}
	window := a.Window
	pivotsByIdx := make(map[int][]pivot)
	for i := 0; i < n; i++ {
		if isPivotHigh(points, i, window) {
			pivotsByIdx[i] = append(pivotsByIdx[i], pivot{"H", points[i].high})
		}
		if isPivotLow(points, i, window) {
			pivotsByIdx[i] = append(pivotsByIdx[i], pivot{"L", points[i].low})
		}
	}

	var markers []dowMarker
	var activeHigh, activeLow *float64
	trend := "NEUTRAL"
	bosDown, bosUp := 0, 0

	for i := 0; i < n; i++ {
		val := points[i].value
		date := points[i].date
		prevTrend := trend
		trend, _, _ = trendFromMarkers(markers)

		if trend != prevTrend && (trend == "UP" || trend == "DOWN") {
			label := "U"
			if trend == "DOWN" {
				label = "D"
			}
			markers = append(markers, dowMarker{date: date, value: val, label: label})
		}

		if trend == "NEUTRAL" {
			bosDown, bosUp = 0, 0
		}

		// Break-of-structure counters run on every bar before pivots.
		if trend == "UP" && activeLow != nil && val < *activeLow {
			bosDown++
		} else {
			bosDown = 0
		}
		if trend == "DOWN" && activeHigh != nil && val > *activeHigh {
			bosUp++
		} else {
			bosUp = 0
		}

		if (trend == "UP" && bosDown >= dowBosResetBars) ||
			(trend == "DOWN" && bosUp >= dowBosResetBars) {
			markers = append(markers, dowMarker{date: date, value: val, label: "R"})
			activeHigh, activeLow = nil, nil
			bosDown, bosUp = 0, 0
			trend, _, _ = trendFromMarkers(markers)
			continue
		}

		pivotsHere := pivotsByIdx[i]
		if len(pivotsHere) == 0 {
			continue
		}
		// Highs resolve before lows on a two-pivot bar.
		for pass := 0; pass < 2; pass++ {
			want := "H"
			if pass == 1 {
				want = "L"
			}
			for _, pv := range pivotsHere {
				if pv.kind != want {
					continue
				}
				m, ok := resolvePivot(pv, date, val, &activeHigh, &activeLow, trend, a.SensitiveDownReset)
				if !ok {
					continue
				}
				markers = append(markers, m)
				trend, _, _ = trendFromMarkers(markers)
			}
		}
	}
	return markers
}

// resolvePivot labels one pivot against the active structure and updates
// the structural levels. ok=false drops a meaningless repeat of the
// current level.
func resolvePivot(pv pivot, date string, val float64, activeHigh, activeLow **float64, trend string, sensitiveDownReset bool) (dowMarker, bool) {
	if pv.kind == "H" && *activeHigh != nil {
		ref := **activeHigh
		if ref != 0 && absFloat(pv.value-ref)/ref < dowMeaninglessPct {
			return dowMarker{}, false
		}
	}
	if pv.kind == "L" && *activeLow != nil {
		ref := **activeLow
		if ref != 0 && absFloat(pv.value-ref)/ref < dowMeaninglessPct {
			return dowMarker{}, false
		}
	}

	// A "low" at or above the structural high acts as a high, and vice
	// versa; epsilon keeps borderline pivots on their own side.
	kind := pv.kind
	if kind == "L" && *activeHigh != nil && pv.value >= **activeHigh*(1-dowEpsPct) {
		kind = "H"
	} else if kind == "H" && *activeLow != nil && pv.value <= **activeLow*(1+dowEpsPct) {
		kind = "L"
	}

	var label string
	if kind == "H" {
		if *activeHigh != nil {
			if pv.value > **activeHigh {
				label = "HH"
				v := pv.value
				*activeHigh = &v
			} else {
				label = "LH"
				// LH does not move the structural high.
			}
		} else {
			label = "H"
			v := pv.value
			*activeHigh = &v
		}
	} else {
		if *activeLow != nil {
			if pv.value > **activeLow {
				label = "HL"
			} else {
				label = "LL"
			}
			v := pv.value
			*activeLow = &v
		} else {
			label = "L"
			v := pv.value
			*activeLow = &v
		}
	}

	if label == "LH" && sensitiveDownReset && trend == "DOWN" && *activeHigh != nil {
		v := pv.value
		*activeHigh = &v
	}

	return dowMarker{date: date, value: val, label: label, pivot: pv.value, hasPivot: true}, true
}

func isPivotHigh(points []dowPoint, i, window int) bool {
	h := points[i].high
	for j := maxInt(0, i-window); j < i; j++ {
		if points[j].high >= h {
			return false
		}
	}
	for j := i + 1; j < len(points) && j <= i+window; j++ {
		if points[j].high >= h {
			return false
		}
	}
	return true
}

func isPivotLow(points []dowPoint, i, window int) bool {
	l := points[i].low
	for j := maxInt(0, i-window); j < i; j++ {
		if points[j].low <= l {
			return false
		}
	}
	for j := i + 1; j < len(points) && j <= i+window; j++ {
		if points[j].low <= l {
			return false
		}
	}
	return true
}

func highLabel(label string) bool { return label == "H" || label == "HH" || label == "LH" }
func lowLabel(label string) bool  { return label == "L" || label == "HL" || label == "LL" }

func filterMarkers(markers []dowMarker, keep func(string) bool) []dowMarker {
	var out []dowMarker
	for _, m := range markers {
		if keep(m.label) {
			out = append(out, m)
		}
	}
	return out
}

func markerPrice(m dowMarker) float64 {
	if m.hasPivot {
		return m.pivot
	}
	return m.value
}

// trendFromMarkers derives the trend from the last high/low labels after
// the most recent reset: HH+HL is UP, LH+LL is DOWN, anything else NEUTRAL.
func trendFromMarkers(markers []dowMarker) (trend, lastHigh, lastLow string) {
	view := markers
	for i := len(markers) - 1; i >= 0; i-- {
		if markers[i].label == "R" {
			view = markers[i+1:]
			break
		}
	}
	for _, m := range view {
		if highLabel(m.label) {
			lastHigh = m.label
		}
		if lowLabel(m.label) {
			lastLow = m.label
		}
	}
	switch {
	case lastHigh == "HH" && lastLow == "HL":
		trend = "UP"
	case lastHigh == "LH" && lastLow == "LL":
		trend = "DOWN"
	default:
		trend = "NEUTRAL"
	}
	return trend, lastHigh, lastLow
}

type trendChange struct {
	date string
	from string
	to   string
}

func trendChanges(markers []dowMarker) []trendChange {
	var changes []trendChange
	prev := ""
	for i := range markers {
		trend, _, _ := trendFromMarkers(markers[: i+1])
		if prev == "" {
			prev = trend
			continue
		}
		if trend != prev {
			changes = append(changes, trendChange{date: markers[i].date, from: prev, to: trend})
			prev = trend
		}
	}
	return changes
}
