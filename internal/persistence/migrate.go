package persistence

import (
	"context"
	"errors"
	"fmt"
)

// ErrSchemaMissing is returned by the dual-mode ensure step when the base
// score table has not been migrated yet.
var ErrSchemaMissing = errors.New("rc_ew_score_daily table is missing; run the base migration first")

// baseMigrations create the RC tables. Statements are idempotent and run
// once per connection before any row operation.
var baseMigrations = []string{
	`CREATE TABLE IF NOT EXISTS rc_run (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		engine_version TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		policy_version TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rc_state_daily (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		state TEXT NOT NULL,
		prev_state TEXT,
		reasons_json TEXT NOT NULL,
		confidence INTEGER,
		age INTEGER NOT NULL,
		state_attrs_json TEXT,
		run_id TEXT NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS rc_transition (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		reasons_json TEXT NOT NULL,
		state_attrs_json TEXT,
		run_id TEXT NOT NULL,
		UNIQUE (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS rc_signal_daily (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		signal_keys_json TEXT NOT NULL,
		run_id TEXT NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
	`CREATE TABLE IF NOT EXISTS rc_ew_score_daily (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		ew_score_day3 REAL,
		ew_level_day3 INTEGER,
		ew_rule TEXT,
		inputs_json TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rc_state_daily_date ON rc_state_daily (date)`,
	`CREATE INDEX IF NOT EXISTS idx_rc_transition_to_state ON rc_transition (to_state, date)`,
}

// dualModeColumns are added by the non-destructive EW schema ensure.
var dualModeColumns = []struct {
	name string
	typ  string
}{
	{"ew_score_fastpass", "REAL"},
	{"ew_level_fastpass", "INTEGER"},
	{"ew_rule_fastpass", "TEXT"},
	{"inputs_json_fastpass", "TEXT"},
	{"ew_score_rolling", "REAL"},
	{"ew_level_rolling", "INTEGER"},
	{"ew_rule_rolling", "TEXT"},
	{"inputs_json_rolling", "TEXT"},
}

// Migrate creates the RC schema and ensures the dual-mode score columns.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	for _, stmt := range baseMigrations {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return s.EnsureDualModeColumns(ctx)
}

// EnsureDualModeColumns adds any missing fastpass/rolling columns to
// rc_ew_score_daily. Idempotent; fails with ErrSchemaMissing when the base
// table is absent.
func (s *Store) EnsureDualModeColumns(ctx context.Context) error {
	existing, err := s.tableColumns(ctx, "rc_ew_score_daily")
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return ErrSchemaMissing
	}
	for _, col := range dualModeColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE rc_ew_score_daily ADD COLUMN %s %s", col.name, col.typ)
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	query := `SELECT name FROM pragma_table_info(?)`
	if s.driver == "postgres" {
		query = s.rebind(`SELECT column_name FROM information_schema.columns WHERE table_name = ?`)
	}
	rows, err := s.DB.QueryxContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// EnsureOHLCTable creates the market-data table used by the offline
// loaders and tests; production deployments usually attach an existing
// OHLC database instead.
func (s *Store) EnsureOHLCTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ohlc_daily (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			market TEXT,
			PRIMARY KEY (ticker, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohlc_daily_date ON ohlc_daily (date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ohlc table: %w", err)
		}
	}
	return nil
}
