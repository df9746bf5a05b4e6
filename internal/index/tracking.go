package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/filemole/filemole/internal/molerr"
)

// GetTracking returns the TrackingFile row for fullPath. Returns
// molerr.ErrPathNotFound if the path is not tracked.
func (s *Store) GetTracking(ctx context.Context, fullPath string) (*TrackingRow, error) {
	row := s.trackingStmts.get.QueryRowContext(ctx, fullPath)

	t, err := scanTrackingRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("index: get tracking %s: %w", fullPath, molerr.ErrPathNotFound)
		}

		return nil, fmt.Errorf("index: get tracking %s: %w", fullPath, err)
	}

	return t, nil
}

// UpsertTracking inserts or updates a TrackingFile row.
func (s *Store) UpsertTracking(ctx context.Context, t TrackingRow) error {
	var lastHash any
	if t.LastHash != "" {
		lastHash = t.LastHash
	}

	var lastBackupMtime any
	if !t.LastBackupMtime.IsZero() {
		lastBackupMtime = t.LastBackupMtime.UTC().Format(timeLayout)
	}

	if _, err := s.trackingStmts.upsert.ExecContext(ctx,
		t.FullPath, t.EnabledAt.UTC().Format(timeLayout), lastHash, lastBackupMtime,
	); err != nil {
		return fmt.Errorf("index: upserting tracking %s: %w", t.FullPath, err)
	}

	return nil
}

// DeleteTracking removes the TrackingFile row for fullPath.
func (s *Store) DeleteTracking(ctx context.Context, fullPath string) error {
	if _, err := s.trackingStmts.delete.ExecContext(ctx, fullPath); err != nil {
		return fmt.Errorf("index: deleting tracking %s: %w", fullPath, err)
	}

	return nil
}

// ListTracking returns every TrackingFile row. Used at startup to load the
// in-memory tracked-file map.
func (s *Store) ListTracking(ctx context.Context) ([]TrackingRow, error) {
	rows, err := s.trackingStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: listing tracking rows: %w", err)
	}
	defer rows.Close()

	var out []TrackingRow

	for rows.Next() {
		t, err := scanTrackingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scanning tracking row: %w", err)
		}

		out = append(out, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func scanTrackingRow(row interface{ Scan(...any) error }) (*TrackingRow, error) {
	var (
		t               TrackingRow
		enabledAt       string
		lastHash        sql.NullString
		lastBackupMtime sql.NullString
	)

	if err := row.Scan(&t.FullPath, &enabledAt, &lastHash, &lastBackupMtime); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(timeLayout, enabledAt)
	if err != nil {
		return nil, fmt.Errorf("index: parsing EnabledAt: %w", err)
	}

	t.EnabledAt = parsed
	t.LastHash = lastHash.String

	if lastBackupMtime.Valid {
		parsedBackup, err := time.Parse(timeLayout, lastBackupMtime.String)
		if err != nil {
			return nil, fmt.Errorf("index: parsing LastBackupMtime: %w", err)
		}

		t.LastBackupMtime = parsedBackup
	}

	return &t, nil
}
