// Package index persists file metadata in a single embedded SQLite
// database: the FileIndex and TrackingFile tables, plus a small
// ConfigSnapshot and Tombstone table used by optional consumer-side
// bookkeeping.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width (always nine fractional digits) so stored
// timestamps compare as strings in time order, which the LastScanned and
// DeletedAt range deletes rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding the file index. Every operation
// uses a prepared statement grouped by domain, mirroring the shape of a
// connection that is opened once and reused for the life of the process.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	indexStmts     indexStatements
	trackingStmts  trackingStatements
	snapshotStmts  snapshotStatements
	tombstoneStmts tombstoneStatements
}

type indexStatements struct {
	get                   *sql.Stmt
	upsert                *sql.Stmt
	delete                *sql.Stmt
	deleteByDirPrefix     *sql.Stmt
	deleteOlderThan       *sql.Stmt
	deleteOlderThanUnder  *sql.Stmt
	search                *sql.Stmt
	countUnder            *sql.Stmt
	renameDirectoryPrefix *sql.Stmt
}

type trackingStatements struct {
	get    *sql.Stmt
	upsert *sql.Stmt
	delete *sql.Stmt
	list   *sql.Stmt
}

type snapshotStatements struct {
	get  *sql.Stmt
	save *sql.Stmt
}

type tombstoneStatements struct {
	insert      *sql.Stmt
	pruneBefore *sql.Stmt
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pending migrations, and prepares all statements. Parent directories are
// created as needed so callers need not pre-create the data directory.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: opening database: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareAllStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_size_limit = 67108864",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("index: setting pragma %q: %w", p, err)
		}
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("index: preparing statement %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// prepareAllStatements creates all prepared statements grouped by domain.
func (s *Store) prepareAllStatements(ctx context.Context) error {
	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.indexStmts.get, sqlGetEntry, "getEntry"},
		{&s.indexStmts.upsert, sqlUpsertEntry, "upsertEntry"},
		{&s.indexStmts.delete, sqlDeleteEntry, "deleteEntry"},
		{&s.indexStmts.deleteByDirPrefix, sqlDeleteByDirPrefix, "deleteByDirPrefix"},
		{&s.indexStmts.deleteOlderThan, sqlDeleteOlderThan, "deleteOlderThan"},
		{&s.indexStmts.deleteOlderThanUnder, sqlDeleteOlderThanUnder, "deleteOlderThanUnder"},
		{&s.indexStmts.search, sqlSearch, "search"},
		{&s.indexStmts.countUnder, sqlCountUnder, "countUnder"},
		{&s.indexStmts.renameDirectoryPrefix, sqlRenameDirectoryPrefix, "renameDirectoryPrefix"},
	}); err != nil {
		return err
	}

	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.trackingStmts.get, sqlGetTracking, "getTracking"},
		{&s.trackingStmts.upsert, sqlUpsertTracking, "upsertTracking"},
		{&s.trackingStmts.delete, sqlDeleteTracking, "deleteTracking"},
		{&s.trackingStmts.list, sqlListTracking, "listTracking"},
	}); err != nil {
		return err
	}

	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.snapshotStmts.get, sqlGetSnapshot, "getSnapshot"},
		{&s.snapshotStmts.save, sqlSaveSnapshot, "saveSnapshot"},
	}); err != nil {
		return err
	}

	return prepareAll(ctx, s.db, []stmtDef{
		{&s.tombstoneStmts.insert, sqlInsertTombstone, "insertTombstone"},
		{&s.tombstoneStmts.pruneBefore, sqlPruneTombstonesBefore, "pruneTombstonesBefore"},
	})
}

// escapeLike escapes LIKE metacharacters (\, %, _) so a literal directory
// path can be safely embedded in a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// dirPrefixPattern builds the LIKE pattern matching every path nested under
// dir. dir itself does not match; callers test it with a separate equality.
func dirPrefixPattern(dir string) string {
	return escapeLike(dir) + "/%"
}
