package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/khautala/swingmaster/internal/domain"
	"github.com/khautala/swingmaster/internal/policy"
	"github.com/khautala/swingmaster/internal/signals"
)

// StateDailyRow mirrors rc_state_daily.
type StateDailyRow struct {
	Ticker         string         `db:"ticker"`
	Date           string         `db:"date"`
	State          string         `db:"state"`
	PrevState      sql.NullString `db:"prev_state"`
	ReasonsJSON    string         `db:"reasons_json"`
	Confidence     sql.NullInt64  `db:"confidence"`
	Age            int            `db:"age"`
	StateAttrsJSON sql.NullString `db:"state_attrs_json"`
	RunID          string         `db:"run_id"`
}

// TransitionRow mirrors rc_transition.
type TransitionRow struct {
	Ticker         string         `db:"ticker"`
	Date           string         `db:"date"`
	FromState      string         `db:"from_state"`
	ToState        string         `db:"to_state"`
	ReasonsJSON    string         `db:"reasons_json"`
	StateAttrsJSON sql.NullString `db:"state_attrs_json"`
	RunID          string         `db:"run_id"`
}

// StateRepo persists state, signal and transition rows and serves the
// previous-state and history reads. All writes target (ticker, date).
type StateRepo struct {
	store *Store
}

// NewStateRepo wraps a store.
func NewStateRepo(store *Store) *StateRepo { return &StateRepo{store: store} }

// normalizeReasons collapses any list containing ENTRY_CONDITIONS_MET to
// exactly that code; the entry reason is exclusive in persistence.
func normalizeReasons(reasons []domain.ReasonCode) []domain.ReasonCode {
	if domain.ContainsReason(reasons, domain.ReasonEntryConditionsMet) {
		return []domain.ReasonCode{domain.ReasonEntryConditionsMet}
	}
	return reasons
}

func marshalReasons(reasons []domain.ReasonCode) (string, error) {
	persisted := make([]string, len(reasons))
	for i, r := range reasons {
		persisted[i] = r.Persisted()
	}
	b, err := json.Marshal(persisted)
	if err != nil {
		return "", fmt.Errorf("marshal reasons: %w", err)
	}
	return string(b), nil
}

// ParseReasons decodes a stored reasons_json payload, dropping unknown
// labels.
func ParseReasons(raw string) []domain.ReasonCode {
	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil
	}
	var out []domain.ReasonCode
	for _, l := range labels {
		if r := domain.ReasonFromPersisted(l); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// UpsertState writes the daily state row.
func (r *StateRepo) UpsertState(ctx context.Context, ticker, date string, state, prevState domain.State, reasons []domain.ReasonCode, attrs domain.StateAttrs, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	reasonsJSON, err := marshalReasons(normalizeReasons(reasons))
	if err != nil {
		return err
	}
	var attrsJSON sql.NullString
	if payload, ok := domain.MarshalStatus(attrs.Status); ok {
		b, merr := json.Marshal(map[string]json.RawMessage{"status": json.RawMessage(payload)})
		if merr != nil {
			return fmt.Errorf("marshal state attrs: %w", merr)
		}
		attrsJSON = sql.NullString{String: string(b), Valid: true}
	}
	var confidence sql.NullInt64
	if attrs.Confidence != nil {
		confidence = sql.NullInt64{Int64: int64(*attrs.Confidence), Valid: true}
	}

	query := r.store.rebind(`
		INSERT INTO rc_state_daily (ticker, date, state, prev_state, reasons_json, confidence, age, state_attrs_json, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			state = excluded.state,
			prev_state = excluded.prev_state,
			reasons_json = excluded.reasons_json,
			confidence = excluded.confidence,
			age = excluded.age,
			state_attrs_json = excluded.state_attrs_json,
			run_id = excluded.run_id`)
	if _, err := r.store.DB.ExecContext(ctx, query,
		ticker, date, string(state), string(prevState), reasonsJSON, confidence, attrs.Age, attrsJSON, runID); err != nil {
		return fmt.Errorf("upsert state row: %w", err)
	}
	return nil
}

// UpsertSignals writes the per-day fired signal keys as a sorted array.
func (r *StateRepo) UpsertSignals(ctx context.Context, ticker, date string, set signals.Set, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	keys := set.Keys()
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = string(k)
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal signal keys: %w", err)
	}
	query := r.store.rebind(`
		INSERT INTO rc_signal_daily (ticker, date, signal_keys_json, run_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			signal_keys_json = excluded.signal_keys_json,
			run_id = excluded.run_id`)
	if _, err := r.store.DB.ExecContext(ctx, query, ticker, date, string(b), runID); err != nil {
		return fmt.Errorf("upsert signal row: %w", err)
	}
	return nil
}

// UpsertTransition records a realized state change; stays are not stored
// here. Nil transitions are ignored.
func (r *StateRepo) UpsertTransition(ctx context.Context, ticker, date string, tr *domain.Transition, attrs domain.StateAttrs, runID string) error {
	if tr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	reasonsJSON, err := marshalReasons(normalizeReasons(tr.Reasons))
	if err != nil {
		return err
	}
	var attrsJSON sql.NullString
	if payload, ok := domain.MarshalStatus(attrs.Status); ok {
		b, merr := json.Marshal(map[string]json.RawMessage{"status": json.RawMessage(payload)})
		if merr != nil {
			return fmt.Errorf("marshal transition attrs: %w", merr)
		}
		attrsJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := r.store.rebind(`
		INSERT INTO rc_transition (ticker, date, from_state, to_state, reasons_json, state_attrs_json, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			from_state = excluded.from_state,
			to_state = excluded.to_state,
			reasons_json = excluded.reasons_json,
			state_attrs_json = excluded.state_attrs_json,
			run_id = excluded.run_id`)
	if _, err := r.store.DB.ExecContext(ctx, query,
		ticker, date, string(tr.FromState), string(tr.ToState), reasonsJSON, attrsJSON, runID); err != nil {
		return fmt.Errorf("upsert transition row: %w", err)
	}
	return nil
}

// PrevState returns the latest persisted state strictly before the as-of
// date, or a fresh NO_TRADE context for unseen tickers.
func (r *StateRepo) PrevState(ctx context.Context, ticker, asOfDate string) (domain.State, domain.StateAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	var row StateDailyRow
	query := r.store.rebind(`
		SELECT ticker, date, state, prev_state, reasons_json, confidence, age, state_attrs_json, run_id
		FROM rc_state_daily
		WHERE ticker = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1`)
	err := r.store.DB.GetContext(ctx, &row, query, ticker, asOfDate)
	if err == sql.ErrNoRows {
		return domain.StateNoTrade, domain.StateAttrs{}, nil
	}
	if err != nil {
		return "", domain.StateAttrs{}, fmt.Errorf("read prev state: %w", err)
	}

	state, err := domain.ParseState(row.State)
	if err != nil {
		return "", domain.StateAttrs{}, err
	}
	attrs := domain.StateAttrs{Age: row.Age}
	if row.Confidence.Valid {
		v := int(row.Confidence.Int64)
		attrs.Confidence = &v
	}
	if row.StateAttrsJSON.Valid {
		status, perr := parseAttrsStatus(row.StateAttrsJSON.String)
		if perr != nil {
			return "", domain.StateAttrs{}, perr
		}
		attrs.Status = status
	}
	return state, attrs, nil
}

func parseAttrsStatus(raw string) (domain.Status, error) {
	var outer struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return domain.Status{}, fmt.Errorf("parse state_attrs_json: %w", err)
	}
	if len(outer.Status) == 0 {
		return domain.Status{}, nil
	}
	return domain.ParseStatus(string(outer.Status))
}

// GetState reads one state row.
func (r *StateRepo) GetState(ctx context.Context, ticker, date string) (*StateDailyRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var row StateDailyRow
	query := r.store.rebind(`
		SELECT ticker, date, state, prev_state, reasons_json, confidence, age, state_attrs_json, run_id
		FROM rc_state_daily WHERE ticker = ? AND date = ?`)
	err := r.store.DB.GetContext(ctx, &row, query, ticker, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state row: %w", err)
	}
	return &row, nil
}

// GetTransition reads one transition row.
func (r *StateRepo) GetTransition(ctx context.Context, ticker, date string) (*TransitionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var row TransitionRow
	query := r.store.rebind(`
		SELECT ticker, date, from_state, to_state, reasons_json, state_attrs_json, run_id
		FROM rc_transition WHERE ticker = ? AND date = ?`)
	err := r.store.DB.GetContext(ctx, &row, query, ticker, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transition row: %w", err)
	}
	return &row, nil
}

// EntryWindowTickers lists tickers sitting in ENTRY_WINDOW on a date.
func (r *StateRepo) EntryWindowTickers(ctx context.Context, date string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var tickers []string
	query := r.store.rebind(`
		SELECT ticker FROM rc_state_daily
		WHERE date = ? AND state = ?
		ORDER BY ticker`)
	if err := r.store.DB.SelectContext(ctx, &tickers, query, date, string(domain.StateEntryWindow)); err != nil {
		return nil, fmt.Errorf("list entry-window tickers: %w", err)
	}
	return tickers, nil
}

// EntryWindowOpens lists transitions into ENTRY_WINDOW between two dates.
func (r *StateRepo) EntryWindowOpens(ctx context.Context, dateFrom, dateTo string) ([]TransitionRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var rows []TransitionRow
	query := r.store.rebind(`
		SELECT ticker, date, from_state, to_state, reasons_json, state_attrs_json, run_id
		FROM rc_transition
		WHERE to_state = ? AND date >= ? AND date <= ?
		ORDER BY ticker, date`)
	if err := r.store.DB.SelectContext(ctx, &rows, query, string(domain.StateEntryWindow), dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("list entry-window opens: %w", err)
	}
	return rows, nil
}

// EntryWindowOpenDate walks back from a date the ticker is in
// ENTRY_WINDOW on and returns the first day of that window run.
func (r *StateRepo) EntryWindowOpenDate(ctx context.Context, ticker, date string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var open string
	query := r.store.rebind(`
		SELECT date FROM rc_transition
		WHERE ticker = ? AND to_state = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1`)
	err := r.store.DB.GetContext(ctx, &open, query, ticker, string(domain.StateEntryWindow), date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read entry-window open date: %w", err)
	}
	return open, nil
}

// LastStateDateBefore returns the latest date strictly before the given
// date on which the ticker sat in the given state; "" when none exists.
func (r *StateRepo) LastStateDateBefore(ctx context.Context, ticker, date string, state domain.State) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var out string
	query := r.store.rebind(`
		SELECT date FROM rc_state_daily
		WHERE ticker = ? AND date < ? AND state = ?
		ORDER BY date DESC
		LIMIT 1`)
	err := r.store.DB.GetContext(ctx, &out, query, ticker, date, string(state))
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last %s date: %w", state, err)
	}
	return out, nil
}

// SetContinuationConfirmed writes the continuation verdict into the
// decision-day state row and mirrors it into the originating transition
// row. Only the entry_continuation_confirmed status key is touched.
func (r *StateRepo) SetContinuationConfirmed(ctx context.Context, ticker, decisionDate, entryDate string, confirmed bool) error {
	if err := r.mergeContinuation(ctx, "rc_state_daily", ticker, decisionDate, confirmed); err != nil {
		return err
	}
	return r.mergeContinuation(ctx, "rc_transition", ticker, entryDate, confirmed)
}

func (r *StateRepo) mergeContinuation(ctx context.Context, table, ticker, date string, confirmed bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	var raw sql.NullString
	sel := r.store.rebind(fmt.Sprintf(`SELECT state_attrs_json FROM %s WHERE ticker = ? AND date = ?`, table))
	err := r.store.DB.GetContext(ctx, &raw, sel, ticker, date)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s attrs: %w", table, err)
	}

	status := domain.Status{}
	if raw.Valid && raw.String != "" {
		status, err = parseAttrsStatus(raw.String)
		if err != nil {
			return err
		}
	}
	status.EntryContinuationConfirmed = &confirmed

	payload, _ := domain.MarshalStatus(status)
	b, err := json.Marshal(map[string]json.RawMessage{"status": json.RawMessage(payload)})
	if err != nil {
		return fmt.Errorf("marshal continuation attrs: %w", err)
	}
	upd := r.store.rebind(fmt.Sprintf(`UPDATE %s SET state_attrs_json = ? WHERE ticker = ? AND date = ?`, table))
	if _, err := r.store.DB.ExecContext(ctx, upd, string(b), ticker, date); err != nil {
		return fmt.Errorf("update %s attrs: %w", table, err)
	}
	return nil
}

// StateCountsOn tallies states for one (date, run) for report output.
func (r *StateRepo) StateCountsOn(ctx context.Context, date, runID string) (map[domain.State]int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(`
		SELECT state, COUNT(*) FROM rc_state_daily
		WHERE date = ? AND run_id = ?
		GROUP BY state
		ORDER BY state`)
	rows, err := r.store.DB.QueryxContext(ctx, query, date, runID)
	if err != nil {
		return nil, fmt.Errorf("count states: %w", err)
	}
	defer rows.Close()
	counts := make(map[domain.State]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		st, perr := domain.ParseState(state)
		if perr != nil {
			return nil, perr
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// RecentDays implements the policy history port over rc_state_daily and
// rc_signal_daily.
func (r *StateRepo) RecentDays(ticker, asOfDate string, limit int) ([]policy.HistoryDay, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.store.timeout)
	defer cancel()

	query := r.store.rebind(`
		SELECT s.date, s.state, s.reasons_json, COALESCE(g.signal_keys_json, '[]') AS signal_keys_json
		FROM rc_state_daily s
		LEFT JOIN rc_signal_daily g ON g.ticker = s.ticker AND g.date = s.date
		WHERE s.ticker = ? AND s.date < ?
		ORDER BY s.date DESC
		LIMIT ?`)
	rows, err := r.store.DB.QueryxContext(ctx, query, ticker, asOfDate, limit)
	if err != nil {
		return nil, fmt.Errorf("read state history: %w", err)
	}
	defer rows.Close()

	var days []policy.HistoryDay
	for rows.Next() {
		var date, state, reasonsJSON, keysJSON string
		if err := rows.Scan(&date, &state, &reasonsJSON, &keysJSON); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		st, perr := domain.ParseState(state)
		if perr != nil {
			return nil, perr
		}
		var labels []string
		_ = json.Unmarshal([]byte(keysJSON), &labels)
		keys := make([]signals.Key, len(labels))
		for i, l := range labels {
			keys[i] = signals.Key(l)
		}
		days = append(days, policy.HistoryDay{
			Date:       date,
			State:      st,
			Reasons:    ParseReasons(reasonsJSON),
			SignalKeys: keys,
		})
	}
	return days, rows.Err()
}
