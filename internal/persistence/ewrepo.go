package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EWScoreRow mirrors rc_ew_score_daily with its three isolated column
// groups.
type EWScoreRow struct {
	Ticker string `db:"ticker"`
	Date   string `db:"date"`

	ScoreDay3  sql.NullFloat64 `db:"ew_score_day3"`
	LevelDay3  sql.NullInt64   `db:"ew_level_day3"`
	Rule       sql.NullString  `db:"ew_rule"`
	InputsJSON sql.NullString  `db:"inputs_json"`

	ScoreFastpass      sql.NullFloat64 `db:"ew_score_fastpass"`
	LevelFastpass      sql.NullInt64   `db:"ew_level_fastpass"`
	RuleFastpass       sql.NullString  `db:"ew_rule_fastpass"`
	InputsJSONFastpass sql.NullString  `db:"inputs_json_fastpass"`

	ScoreRolling      sql.NullFloat64 `db:"ew_score_rolling"`
	LevelRolling      sql.NullInt64   `db:"ew_level_rolling"`
	RuleRolling       sql.NullString  `db:"ew_rule_rolling"`
	InputsJSONRolling sql.NullString  `db:"inputs_json_rolling"`

	CreatedAt string `db:"created_at"`
}

// EWScoreRepo persists episode scores. Each writer touches only its own
// column group; created_at survives conflicts untouched.
type EWScoreRepo struct {
	store *Store
	now   func() time.Time
}

// NewEWScoreRepo wraps a store.
func NewEWScoreRepo(store *Store) *EWScoreRepo {
	return &EWScoreRepo{store: store, now: time.Now}
}

// EnsureSchema makes the dual-mode columns present; it is idempotent and
// fails with ErrSchemaMissing when the base table is absent.
func (r *EWScoreRepo) EnsureSchema(ctx context.Context) error {
	return r.store.EnsureDualModeColumns(ctx)
}

func (r *EWScoreRepo) createdAt() string {
	return r.now().UTC().Format(time.RFC3339)
}

// UpsertLegacy writes the legacy day3 column group.
func (r *EWScoreRepo) UpsertLegacy(ctx context.Context, ticker, date string, score float64, level int, rule, inputsJSON string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(`
		INSERT INTO rc_ew_score_daily (ticker, date, ew_score_day3, ew_level_day3, ew_rule, inputs_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			ew_score_day3 = excluded.ew_score_day3,
			ew_level_day3 = excluded.ew_level_day3,
			ew_rule = excluded.ew_rule,
			inputs_json = excluded.inputs_json`)
	if _, err := r.store.DB.ExecContext(ctx, query, ticker, date, score, level, rule, inputsJSON, r.createdAt()); err != nil {
		return fmt.Errorf("upsert legacy ew score: %w", err)
	}
	return nil
}

// UpsertFastpass writes the fastpass column group only.
func (r *EWScoreRepo) UpsertFastpass(ctx context.Context, ticker, date string, score float64, level int, rule, inputsJSON string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(`
		INSERT INTO rc_ew_score_daily (ticker, date, ew_score_fastpass, ew_level_fastpass, ew_rule_fastpass, inputs_json_fastpass, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			ew_score_fastpass = excluded.ew_score_fastpass,
			ew_level_fastpass = excluded.ew_level_fastpass,
			ew_rule_fastpass = excluded.ew_rule_fastpass,
			inputs_json_fastpass = excluded.inputs_json_fastpass`)
	if _, err := r.store.DB.ExecContext(ctx, query, ticker, date, score, level, rule, inputsJSON, r.createdAt()); err != nil {
		return fmt.Errorf("upsert fastpass ew score: %w", err)
	}
	return nil
}

// UpsertRolling writes the rolling column group only.
func (r *EWScoreRepo) UpsertRolling(ctx context.Context, ticker, date string, score float64, level int, rule, inputsJSON string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(`
		INSERT INTO rc_ew_score_daily (ticker, date, ew_score_rolling, ew_level_rolling, ew_rule_rolling, inputs_json_rolling, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			ew_score_rolling = excluded.ew_score_rolling,
			ew_level_rolling = excluded.ew_level_rolling,
			ew_rule_rolling = excluded.ew_rule_rolling,
			inputs_json_rolling = excluded.inputs_json_rolling`)
	if _, err := r.store.DB.ExecContext(ctx, query, ticker, date, score, level, rule, inputsJSON, r.createdAt()); err != nil {
		return fmt.Errorf("upsert rolling ew score: %w", err)
	}
	return nil
}

// GetRow reads one score row; nil when absent.
func (r *EWScoreRepo) GetRow(ctx context.Context, ticker, date string) (*EWScoreRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	var row EWScoreRow
	query := r.store.rebind(`
		SELECT ticker, date,
		       ew_score_day3, ew_level_day3, ew_rule, inputs_json,
		       ew_score_fastpass, ew_level_fastpass, ew_rule_fastpass, inputs_json_fastpass,
		       ew_score_rolling, ew_level_rolling, ew_rule_rolling, inputs_json_rolling,
		       created_at
		FROM rc_ew_score_daily
		WHERE ticker = ? AND date = ?`)
	err := r.store.DB.GetContext(ctx, &row, query, ticker, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ew score row: %w", err)
	}
	return &row, nil
}
