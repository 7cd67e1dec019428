package persistence

import (
	"context"
	"fmt"
)

// RunRepo records run metadata for audit.
type RunRepo struct {
	store *Store
}

// NewRunRepo wraps a store.
func NewRunRepo(store *Store) *RunRepo { return &RunRepo{store: store} }

// InsertRun records one orchestrated run.
func (r *RunRepo) InsertRun(ctx context.Context, runID, createdAt, engineVersion, policyID, policyVersion string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(`
		INSERT INTO rc_run (run_id, created_at, engine_version, policy_id, policy_version)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.store.DB.ExecContext(ctx, query, runID, createdAt, engineVersion, policyID, policyVersion); err != nil {
		return fmt.Errorf("insert run row: %w", err)
	}
	return nil
}
