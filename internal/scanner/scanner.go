// Package scanner performs FileMole's startup reconciliation sweep: a
// concurrent walk of every mole root that brings IndexStore up to date with
// whatever is on disk, followed by a single tombstone sweep that removes
// rows no root's walk touched. Grounded in the teacher's scanner.go walk
// (orphan detection via a per-scan visited set, a cheap mtime-first
// comparison before any hashing) scaled down from the teacher's dual
// fs/db relative-path bookkeeping to FileMole's single canonical-path
// IndexStore, and in transfer.go's dispatchPool for the bounded
// one-task-per-root errgroup shape.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/filemole/filemole/internal/events"
	"github.com/filemole/filemole/internal/ignore"
	"github.com/filemole/filemole/internal/index"
)

// batchSize bounds how many entries accumulate before a walk flushes to
// IndexStore.UpsertBatch, matching the teacher's preference for batched
// store writes over one statement per file.
const batchSize = 256

// Root is one mole root the scanner walks: its canonical directory, the
// ignore engine governing which paths to skip, and the mole name stamped
// onto the InitialScanCompleted event fired for it.
type Root struct {
	Mole   string
	Path   string
	Ignore *ignore.Engine
}

// Config configures a Scanner.
type Config struct {
	Roots  []Root
	Index  *index.Store
	Bus    *events.Bus
	Logger *slog.Logger

	// Workers bounds how many roots are walked concurrently. Zero selects
	// len(Roots) (one goroutine per root, the common case of a handful of
	// moles).
	Workers int
}

// Scanner runs the one-shot startup reconciliation sweep across every
// configured mole root.
type Scanner struct {
	cfg Config
}

// New constructs a Scanner.
func New(cfg Config) *Scanner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Workers <= 0 {
		cfg.Workers = len(cfg.Roots)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Scanner{cfg: cfg}
}

// Run walks every configured root concurrently (one task per root, bounded
// by Workers), then performs the single global delete_older_than(scanStart)
// reconciliation sweep and fires one InitialScanCompleted event per mole.
// Cancellation aborts every in-flight walk and the walk's context error is
// returned; the reconciliation sweep is skipped when any walk fails.
func (s *Scanner) Run(ctx context.Context) error {
	if len(s.cfg.Roots) == 0 {
		return nil
	}

	scanStart := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, root := range s.cfg.Roots {
		root := root
		g.Go(func() error {
			return s.walkRoot(gctx, root)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scanner: sweep aborted: %w", err)
	}

	if err := s.cfg.Index.DeleteOlderThan(ctx, scanStart); err != nil {
		return fmt.Errorf("scanner: reconciliation sweep: %w", err)
	}

	for _, root := range s.cfg.Roots {
		s.publishScanCompleted(ctx, root)
	}

	return nil
}

// ScanRoot walks a single root and reconciles only that root's subtree,
// scoping the delete_older_than sweep to root.Path via
// IndexStore.DeleteOlderThanUnder. This is the method the watcher's periodic
// safety rescan calls: unlike Run's startup sweep, it must never touch rows
// belonging to a different mole.
func (s *Scanner) ScanRoot(ctx context.Context, root Root) error {
	scanStart := time.Now().UTC()

	if err := s.walkRoot(ctx, root); err != nil {
		return err
	}

	if err := s.cfg.Index.DeleteOlderThanUnder(ctx, root.Path, scanStart); err != nil {
		return fmt.Errorf("scanner: reconciliation sweep for %s: %w", root.Path, err)
	}

	s.publishScanCompleted(ctx, root)

	return nil
}

func (s *Scanner) publishScanCompleted(ctx context.Context, root Root) {
	if s.cfg.Bus == nil {
		return
	}

	s.cfg.Bus.Publish(ctx, events.Event{
		Kind:        events.InitialScanCompleted,
		IsDirectory: true,
		Path:        root.Path,
		Timestamp:   time.Now().UTC(),
		Mole:        root.Mole,
	})
}

// walkRoot recursively walks root.Path, skipping anything root.Ignore
// rejects, and flushes accumulated entries to IndexStore in batches.
func (s *Scanner) walkRoot(ctx context.Context, root Root) error {
	s.cfg.Logger.Info("scanner: starting walk", slog.String("mole", root.Mole), slog.String("root", root.Path))

	var batch []index.Entry

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		if err := s.cfg.Index.UpsertBatch(ctx, batch); err != nil {
			return err
		}

		batch = batch[:0]

		return nil
	}

	err := filepath.WalkDir(root.Path, func(path string, d os.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return fmt.Errorf("scanner: walking %s: %w", path, walkErr)
		}

		if path == root.Path {
			return nil
		}

		if root.Ignore != nil && root.Ignore.ShouldIgnore(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// The entry vanished between readdir and stat; skip it, the
			// deletion will either already be reflected in the index or
			// will fall out naturally via this sweep's reconciliation.
			return nil //nolint:nilerr
		}

		dir := filepath.Dir(path)
		name := filepath.Base(path)

		batch = append(batch, index.Entry{
			Directory:  dir,
			Name:       name,
			Size:       info.Size(),
			Created:    info.ModTime().UTC(),
			Modified:   info.ModTime().UTC(),
			Attributes: attributesFromMode(info),
		})

		if len(batch) >= batchSize {
			return flush()
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("scanner: walk %s: %w", root.Path, err)
	}

	if err := flush(); err != nil {
		return fmt.Errorf("scanner: flushing final batch for %s: %w", root.Path, err)
	}

	s.cfg.Logger.Info("scanner: walk complete", slog.String("mole", root.Mole), slog.String("root", root.Path))

	return nil
}

func attributesFromMode(info os.FileInfo) uint32 {
	var attrs uint32

	if info.Mode()&0o200 == 0 {
		attrs |= 1 << 0 // read-only bit, matching classifier's Attributes encoding
	}

	return attrs
}
