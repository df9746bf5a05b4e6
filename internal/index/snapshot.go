package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetConfigSnapshot returns the stored value for key, or "" if unset.
// Consumers use this to detect that the ignore ruleset (or schema version)
// changed since the last run and force a rescan.
func (s *Store) GetConfigSnapshot(ctx context.Context, key string) (string, error) {
	var value string

	row := s.snapshotStmts.get.QueryRowContext(ctx, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}

		return "", fmt.Errorf("index: get config snapshot %s: %w", key, err)
	}

	return value, nil
}

// SaveConfigSnapshot persists value under key.
func (s *Store) SaveConfigSnapshot(ctx context.Context, key, value string) error {
	if _, err := s.snapshotStmts.save.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("index: save config snapshot %s: %w", key, err)
	}

	return nil
}

// RecordTombstone records that (dir, name) was deleted at the current
// time, for consumers that layer a soft-delete retention window on top of
// the index's hard-delete reconciliation sweep. Opt-in; nothing in the
// core pipeline calls this automatically.
func (s *Store) RecordTombstone(ctx context.Context, dir, name string) error {
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)

	if _, err := s.tombstoneStmts.insert.ExecContext(ctx, id, dir, name, now); err != nil {
		return fmt.Errorf("index: recording tombstone %s/%s: %w", dir, name, err)
	}

	return nil
}

// PruneDeletedOlderThan removes tombstone rows recorded before the cutoff
// implied by subtracting retention from now. A retention of zero prunes
// every existing tombstone.
func (s *Store) PruneDeletedOlderThan(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)

	if _, err := s.tombstoneStmts.pruneBefore.ExecContext(ctx, cutoff); err != nil {
		return fmt.Errorf("index: pruning tombstones: %w", err)
	}

	return nil
}
