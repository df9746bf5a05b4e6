package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/filemole/filemole/internal/molerr"
)

// Get returns the FileIndex row for (dir, name). Returns
// molerr.ErrPathNotFound if no such row exists.
func (s *Store) Get(ctx context.Context, dir, name string) (*Entry, error) {
	row := s.indexStmts.get.QueryRowContext(ctx, dir, name)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("index: get %s/%s: %w", dir, name, molerr.ErrPathNotFound)
		}

		return nil, fmt.Errorf("index: get %s/%s: %w", dir, name, err)
	}

	return entry, nil
}

// Upsert inserts or updates a single FileIndex row, stamping LastScanned to
// the current time.
func (s *Store) Upsert(ctx context.Context, entry Entry) error {
	return s.UpsertBatch(ctx, []Entry{entry})
}

// UpsertBatch inserts or updates many FileIndex rows inside a single
// transaction, stamping LastScanned to the current time for every row.
func (s *Store) UpsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin upsert batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := tx.StmtContext(ctx, s.indexStmts.upsert)
	now := time.Now().UTC()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.Directory, e.Name, e.Size,
			e.Created.UTC().Format(timeLayout), e.Modified.UTC().Format(timeLayout),
			e.Attributes, now.Format(timeLayout),
		); err != nil {
			return fmt.Errorf("index: upserting %s/%s: %w", e.Directory, e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit upsert batch: %w", err)
	}

	return nil
}

// Search returns every FileIndex row whose directory+name contains term,
// case-insensitively.
func (s *Store) Search(ctx context.Context, term string) ([]Entry, error) {
	pattern := "%" + escapeLike(term) + "%"

	rows, err := s.indexStmts.search.QueryContext(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("index: search %q: %w", term, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteByPath removes the single row for (dir, name).
func (s *Store) DeleteByPath(ctx context.Context, dir, name string) error {
	if _, err := s.indexStmts.delete.ExecContext(ctx, dir, name); err != nil {
		return fmt.Errorf("index: delete %s/%s: %w", dir, name, err)
	}

	return nil
}

// DeleteByDirectoryPrefix removes every row whose directory equals dir or
// is nested under it.
func (s *Store) DeleteByDirectoryPrefix(ctx context.Context, dir string) error {
	if _, err := s.indexStmts.deleteByDirPrefix.ExecContext(ctx, dir, dirPrefixPattern(dir)); err != nil {
		return fmt.Errorf("index: delete by directory prefix %s: %w", dir, err)
	}

	return nil
}

// DeleteOlderThan removes every row whose LastScanned predates ts. Used by
// the scanner's post-sweep tombstone reconciliation.
func (s *Store) DeleteOlderThan(ctx context.Context, ts time.Time) error {
	if _, err := s.indexStmts.deleteOlderThan.ExecContext(ctx, ts.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("index: delete older than %s: %w", ts, err)
	}

	return nil
}

// DeleteOlderThanUnder removes rows under (or equal to) dir whose
// LastScanned predates ts. The directory-scoped counterpart to
// DeleteOlderThan, used by a single mole's periodic safety rescan so it
// only reconciles its own subtree rather than every other mole's rows too.
func (s *Store) DeleteOlderThanUnder(ctx context.Context, dir string, ts time.Time) error {
	if _, err := s.indexStmts.deleteOlderThanUnder.ExecContext(ctx,
		ts.UTC().Format(timeLayout), dir, dirPrefixPattern(dir),
	); err != nil {
		return fmt.Errorf("index: delete older than %s under %s: %w", ts, dir, err)
	}

	return nil
}

// CountUnder returns the number of rows under (or equal to) dir.
func (s *Store) CountUnder(ctx context.Context, dir string) (int, error) {
	var count int

	row := s.indexStmts.countUnder.QueryRowContext(ctx, dir, dirPrefixPattern(dir))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("index: count under %s: %w", dir, err)
	}

	return count, nil
}

// RenameDirectoryPrefix atomically substitutes the directory-column prefix
// for every row under oldDir, re-keying them under newDir. Used when a
// watched directory is itself renamed.
func (s *Store) RenameDirectoryPrefix(ctx context.Context, oldDir, newDir string) error {
	// substr is 1-indexed; skip len(oldDir) characters of the old prefix.
	skip := len(oldDir) + 1

	if _, err := s.indexStmts.renameDirectoryPrefix.ExecContext(ctx,
		newDir, skip, oldDir, dirPrefixPattern(oldDir),
	); err != nil {
		return fmt.Errorf("index: rename directory prefix %s -> %s: %w", oldDir, newDir, err)
	}

	return nil
}

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var (
		e                 Entry
		created, modified string
		lastScanned       string
	)

	if err := row.Scan(&e.Directory, &e.Name, &e.Size, &created, &modified, &e.Attributes, &lastScanned); err != nil {
		return nil, err
	}

	var err error

	if e.Created, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("index: parsing Created: %w", err)
	}

	if e.Modified, err = time.Parse(timeLayout, modified); err != nil {
		return nil, fmt.Errorf("index: parsing Modified: %w", err)
	}

	if e.LastScanned, err = time.Parse(timeLayout, lastScanned); err != nil {
		return nil, fmt.Errorf("index: parsing LastScanned: %w", err)
	}

	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
