package ewscore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/persistence"
)

// Engine computes and stores entry-window scores for one as-of date. A
// fastpass write touches only fastpass columns, a rolling write only
// rolling columns; the router decides per market which modes run.
type Engine struct {
	states *persistence.StateRepo
	scores *persistence.EWScoreRepo
	ohlc   *persistence.OHLCReader
}

// NewEngine wires the scoring engine.
func NewEngine(states *persistence.StateRepo, scores *persistence.EWScoreRepo, ohlc *persistence.OHLCReader) *Engine {
	return &Engine{states: states, scores: scores, ohlc: ohlc}
}

// RunDaily scores every ticker sitting in ENTRY_WINDOW on the as-of date.
// Returns the number of rows written.
func (e *Engine) RunDaily(ctx context.Context, asOfDate string) (int, error) {
	if err := e.scores.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	tickers, err := e.states.EntryWindowTickers(ctx, asOfDate)
	if err != nil {
		return 0, err
	}
	stored := 0
	for _, ticker := range tickers {
		wrote, serr := e.scoreTicker(ctx, ticker, asOfDate)
		if serr != nil {
			return stored, fmt.Errorf("score %s on %s: %w", ticker, asOfDate, serr)
		}
		if wrote {
			stored++
		}
	}
	return stored, nil
}

func (e *Engine) scoreTicker(ctx context.Context, ticker, asOfDate string) (bool, error) {
	entryDate, err := e.states.EntryWindowOpenDate(ctx, ticker, asOfDate)
	if err != nil {
		return false, err
	}
	if entryDate == "" {
		// In ENTRY_WINDOW with no recorded open; nothing to anchor on.
		log.Warn().Str("ticker", ticker).Str("date", asOfDate).Msg("entry window without open transition, skipping score")
		return false, nil
	}
	market, err := e.ohlc.Market(ctx, ticker)
	if err != nil {
		return false, err
	}

	prefix, err := e.ohlc.ClosesAround(ctx, ticker, entryDate, asOfDate)
	if err != nil {
		return false, err
	}
	if len(prefix) == 0 {
		return false, nil
	}
	rowsTotal := len(prefix)

	wrote := false
	if FastpassEnabled[market] {
		if err := e.writeFastpass(ctx, ticker, asOfDate, entryDate, market, prefix, rowsTotal); err != nil {
			return wrote, err
		}
		wrote = true
	}
	if RollingEnabled[market] {
		if err := e.writeRolling(ctx, ticker, asOfDate, entryDate, market, prefix, rowsTotal); err != nil {
			return wrote, err
		}
		wrote = true
	}
	return wrote, nil
}

func (e *Engine) writeFastpass(ctx context.Context, ticker, asOfDate, entryDate, market string, prefix []persistence.DatedClose, rowsTotal int) error {
	model, err := FastpassModelFor(market)
	if err != nil {
		return err
	}

	lastStabDate, err := e.states.LastStateDateBefore(ctx, ticker, entryDate, domain.StateStabilizing)
	if err != nil {
		return err
	}
	closeEntry := prefix[0].Close
	closeLastStab := closeEntry
	if lastStabDate != "" {
		if c, ok, cerr := e.ohlc.CloseOn(ctx, ticker, lastStabDate); cerr != nil {
			return cerr
		} else if ok {
			closeLastStab = c
		}
	}
	if closeLastStab == 0 {
		return nil
	}
	rStabToEntryPct := 100.0 * (closeEntry/closeLastStab - 1.0)

	status, err := e.entryDayStatus(ctx, ticker, entryDate)
	if err != nil {
		return err
	}

	z, score := model.Score(rStabToEntryPct, status)
	level := Level(score, rowsTotal, model.Threshold)

	inputs := map[string]any{
		"rule_id":              model.RuleID,
		"beta0":                model.Beta0,
		"threshold":            model.Threshold,
		"entry_date":           entryDate,
		"last_stab_date":       lastStabDate,
		"close_entry":          closeEntry,
		"close_last_stab":      closeLastStab,
		"r_stab_to_entry_pct":  rStabToEntryPct,
		"downtrend_origin":     status.DowntrendOrigin,
		"downtrend_entry_type": status.DowntrendEntryType,
		"decline_profile":      status.DeclineProfile,
		"stabilization_phase":  status.StabilizationPhase,
		"entry_gate":           status.EntryGate,
		"entry_quality":        status.EntryQuality,
		"rows_total":           rowsTotal,
		"score_raw_z":          z,
	}
	inputsJSON, err := marshalSorted(inputs)
	if err != nil {
		return err
	}
	return e.scores.UpsertFastpass(ctx, ticker, asOfDate, score, level, model.RuleID, inputsJSON)
}

func (e *Engine) writeRolling(ctx context.Context, ticker, asOfDate, entryDate, market string, prefix []persistence.DatedClose, rowsTotal int) error {
	model, err := RollingModelFor(market)
	if err != nil {
		return err
	}
	closeDay0 := prefix[0].Close
	closeToday := prefix[len(prefix)-1].Close
	if closeDay0 == 0 {
		return nil
	}
	rPrefixPct := 100.0 * (closeToday/closeDay0 - 1.0)
	z := model.Beta0 + model.Beta1*rPrefixPct
	score := sigmoid(z)
	level := Level(score, rowsTotal, model.Threshold)

	inputs := map[string]any{
		"rule_id":      model.RuleID,
		"beta0":        model.Beta0,
		"beta1":        model.Beta1,
		"threshold":    model.Threshold,
		"entry_date":   entryDate,
		"as_of_date":   asOfDate,
		"close_day0":   closeDay0,
		"close_today":  closeToday,
		"r_prefix_pct": rPrefixPct,
		"rows_total":   rowsTotal,
		"score_raw_z":  z,
	}
	inputsJSON, err := marshalSorted(inputs)
	if err != nil {
		return err
	}
	return e.scores.UpsertRolling(ctx, ticker, asOfDate, score, level, model.RuleID, inputsJSON)
}

func (e *Engine) entryDayStatus(ctx context.Context, ticker, entryDate string) (domain.Status, error) {
	row, err := e.states.GetState(ctx, ticker, entryDate)
	if err != nil || row == nil {
		return domain.Status{}, err
	}
	if !row.StateAttrsJSON.Valid {
		return domain.Status{}, nil
	}
	var outer struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal([]byte(row.StateAttrsJSON.String), &outer); err != nil {
		return domain.Status{}, fmt.Errorf("parse entry-day attrs: %w", err)
	}
	if len(outer.Status) == 0 {
		return domain.Status{}, nil
	}
	return domain.ParseStatus(string(outer.Status))
}

// Score evaluates the locked logistic model: the raw z and the sigmoid
// score. Unknown categorical values contribute zero.
func (m FastpassModel) Score(rStabToEntryPct float64, status domain.Status) (z, score float64) {
	z = m.Beta0 + m.RCoef*rStabToEntryPct
	z += m.OriginCoef[status.DowntrendOrigin]
	z += m.EntryTypeCoef[status.DowntrendEntryType]
	z += m.ProfileCoef[status.DeclineProfile]
	z += m.PhaseCoef[status.StabilizationPhase]
	z += m.GateCoef[status.EntryGate]
	z += m.QualityCoef[status.EntryQuality]
	return z, sigmoid(z)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// marshalSorted produces a key-sorted JSON object so audit rows are
// byte-stable across runs.
func marshalSorted(m map[string]any) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(m[k])
		if err != nil {
			return "", fmt.Errorf("marshal inputs key %s: %w", k, err)
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return string(buf), nil
}
