package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/filemole/filemole/internal/events"
	"github.com/filemole/filemole/internal/pathnorm"
)

// loop is the main select driving Run(). It mirrors the teacher's
// watchLoop: fsnotify events, watcher errors with exponential backoff, the
// periodic safety-scan tick, and context cancellation.
func (w *Watcher) loop(ctx context.Context, fw FsWatcher) error {
	tickCh, tickStop := w.cfg.safetyTickFunc(w.cfg.SafetyScanInterval)
	defer tickStop()

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			w.handleFsEvent(ctx, ev, fw)
			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			w.cfg.Logger.Warn("filesystem watcher error",
				slog.String("error", watchErr.Error()), slog.Duration("backoff", errBackoff))

			if sleepErr := w.cfg.sleepFunc(ctx, errBackoff); sleepErr != nil {
				return nil
			}

			if !rootExists(w.cfg.Root) {
				w.cfg.Logger.Error("mole root deleted, stopping watch", slog.String("root", w.cfg.Root))
				return ErrRootGone
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}

		case <-tickCh:
			if !rootExists(w.cfg.Root) {
				w.cfg.Logger.Error("mole root deleted, stopping watch", slog.String("root", w.cfg.Root))
				return ErrRootGone
			}

			w.runSafetyScan(ctx)
			errBackoff = watchErrInitBackoff
		}
	}
}

// handleFsEvent classifies one raw fsnotify event and schedules the
// appropriate debounced handler. Write events are coalesced per path;
// Create/Remove/Rename are handled immediately since they are already
// singular, discrete occurrences.
func (w *Watcher) handleFsEvent(ctx context.Context, ev fsnotify.Event, fw FsWatcher) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	canon, err := pathnorm.Canonicalize(ev.Name)
	if err != nil {
		w.cfg.Logger.Warn("failed to canonicalize event path",
			slog.String("path", ev.Name), slog.String("error", err.Error()))

		return
	}

	if w.cfg.Ignore.ShouldIgnore(canon) {
		w.cfg.Logger.Debug("ignoring event for ignored path", slog.String("path", canon))
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.submitForPath(ctx, canon, func(ctx context.Context) error {
			w.handleCreate(ctx, ev.Name, canon, fw)
			return nil
		})

	case ev.Has(fsnotify.Write):
		w.debouncer.Debounce(canon, func() {
			w.submitForPath(ctx, canon, func(ctx context.Context) error {
				w.handleWrite(ctx, ev.Name, canon)
				return nil
			})
		})

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.submitForPath(ctx, canon, func(ctx context.Context) error {
			w.handleRemove(ctx, fw, ev.Name, canon)
			return nil
		})
	}
}

// submitForPath runs fn through the per-path continuation chain so a
// debounced write callback, which fires on its own timer goroutine, can
// never run concurrently with a create or remove handled inline for the
// same canonical path. Submit's own cancellation error is swallowed: a
// context cancelled between debounce firing and chain turn is already
// handled by the caller's ctx plumbing, not worth a separate log line.
func (w *Watcher) submitForPath(ctx context.Context, canon string, fn func(ctx context.Context) error) {
	_ = w.queue.Submit(ctx, canon, fn)
}

// publish hands ev off to the Bus-forwarding goroutine without blocking.
// If outCh is full the event is dropped and counted: the periodic safety
// scan reconciles whatever state the drop might have missed, exactly like
// the teacher's trySend/safety-scan pairing.
func (w *Watcher) publish(ctx context.Context, ev events.Event) {
	ev.Mole = w.cfg.Mole
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case w.outCh <- ev:
	case <-ctx.Done():
	default:
		w.droppedEvents.Add(1)
		w.cfg.Logger.Warn("event hand-off channel full, dropping event (safety scan will catch up)",
			slog.String("path", ev.Path), slog.String("kind", ev.Kind.String()))
	}
}

// handleCreate stats the new path. Directories are emitted directly (they
// have no IndexEntry row) after installing a watch and catching up on any
// contents that arrived before the watch was registered. Files route
// through the Classifier, which always upserts a freshly created entry.
func (w *Watcher) handleCreate(ctx context.Context, rawPath, canon string, fw FsWatcher) {
	info, err := os.Stat(rawPath)
	if err != nil {
		w.cfg.Logger.Debug("stat failed for created path",
			slog.String("path", canon), slog.String("error", err.Error()))

		return
	}

	if info.IsDir() {
		w.markWatchedDir(canon)

		if err := fw.Add(rawPath); err != nil {
			w.cfg.Logger.Warn("failed to add watch on new directory",
				slog.String("path", canon), slog.String("error", err.Error()))
		}

		w.scanNewDirectory(ctx, rawPath, fw)

		w.publish(ctx, events.Event{Kind: events.Created, IsDirectory: true, Path: canon})

		return
	}

	w.classifyAndPublishCreate(ctx, canon, info)
}

func (w *Watcher) classifyAndPublishCreate(ctx context.Context, canon string, info os.FileInfo) {
	dir := pathnorm.Parent(canon)
	name := filepath.Base(canon)

	if w.cfg.Classifier == nil {
		w.publish(ctx, events.Event{Kind: events.Created, IsDirectory: false, Path: canon})
		return
	}

	if _, err := w.cfg.Classifier.ClassifyCreate(ctx, dir, name, info); err != nil {
		w.cfg.Logger.Warn("classifier failed on create",
			slog.String("path", canon), slog.String("error", err.Error()))

		return
	}

	w.publish(ctx, events.Event{Kind: events.Created, IsDirectory: false, Path: canon})
}

// scanNewDirectory walks a directory created between the parent watch
// firing and the new watch being registered, emitting Created events for
// anything fsnotify could not have seen yet. Duplicates from a subsequent
// fsnotify Create are harmless: ClassifyCreate re-upserting an identical
// row is a no-op in effect.
func (w *Watcher) scanNewDirectory(ctx context.Context, dirPath string, fw FsWatcher) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		w.cfg.Logger.Debug("scan new directory failed",
			slog.String("path", dirPath), slog.String("error", err.Error()))

		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		childPath := filepath.Join(dirPath, entry.Name())

		canon, err := pathnorm.Canonicalize(childPath)
		if err != nil || w.cfg.Ignore.ShouldIgnore(canon) {
			continue
		}

		if entry.IsDir() {
			w.markWatchedDir(canon)

			if err := fw.Add(childPath); err != nil {
				w.cfg.Logger.Warn("failed to add watch on nested directory",
					slog.String("path", canon), slog.String("error", err.Error()))
			}

			w.publish(ctx, events.Event{Kind: events.Created, IsDirectory: true, Path: canon})
			w.scanNewDirectory(ctx, childPath, fw)

			continue
		}

		info, statErr := entry.Info()
		if statErr != nil {
			continue
		}

		w.classifyAndPublishCreate(ctx, canon, info)
	}
}

// handleWrite stats the changed path and routes it through the Classifier,
// which decides whether the file really changed and only then upserts and
// publishes. Directory write events are ignored as OS-level mtime noise
// from adding or removing a child.
func (w *Watcher) handleWrite(ctx context.Context, rawPath, canon string) {
	info, err := os.Stat(rawPath)
	if err != nil {
		w.cfg.Logger.Debug("stat failed for modified path",
			slog.String("path", canon), slog.String("error", err.Error()))

		return
	}

	if info.IsDir() {
		return
	}

	dir := pathnorm.Parent(canon)
	name := filepath.Base(canon)

	if w.cfg.Classifier == nil {
		w.publish(ctx, events.Event{Kind: events.Changed, IsDirectory: false, Path: canon})
		return
	}

	changed, _, err := w.cfg.Classifier.ClassifyChange(ctx, dir, name, info)
	if err != nil {
		w.cfg.Logger.Warn("classifier failed on change",
			slog.String("path", canon), slog.String("error", err.Error()))

		return
	}

	if !changed {
		return
	}

	w.publish(ctx, events.Event{Kind: events.Changed, IsDirectory: false, Path: canon})
}

// handleRemove processes a Remove or Rename notification. fsnotify cannot
// distinguish a true delete from the "old name" half of a rename, so both
// are treated identically here: the path no longer exists at rawPath. A
// path this Watcher had previously marked as a watched directory is
// treated as a directory delete (removing every index row under that
// prefix and the now-stale fsnotify watch); anything else, including a
// path this Watcher never saw as a directory, is treated as a file delete
// per spec (paths that no longer exist default to "file").
func (w *Watcher) handleRemove(ctx context.Context, fw FsWatcher, rawPath, canon string) {
	isDir := w.unmarkWatchedDir(canon)

	dir := pathnorm.Parent(canon)
	name := filepath.Base(canon)

	var err error

	switch {
	case isDir:
		if w.cfg.Index != nil {
			err = w.cfg.Index.DeleteByDirectoryPrefix(ctx, canon)
		}

		if rmErr := fw.Remove(rawPath); rmErr != nil {
			w.cfg.Logger.Debug("watch removal for deleted directory",
				slog.String("path", canon), slog.String("error", rmErr.Error()))
		}

	case w.cfg.Index != nil:
		err = w.cfg.Index.DeleteByPath(ctx, dir, name)
	}

	if err != nil {
		w.cfg.Logger.Warn("failed to remove index entry for deleted path",
			slog.String("path", canon), slog.String("error", err.Error()))
	}

	w.debouncer.Cancel(canon)

	w.publish(ctx, events.Event{Kind: events.Deleted, IsDirectory: isDir, Path: canon})
}

// runSafetyScan invokes the configured Rescan callback, which re-walks the
// mole root and reconciles the index exactly like the startup scan does
// (see internal/scanner). This catches anything fsnotify may have missed:
// coalesced kernel buffer overflows, brief watcher gaps, or events dropped
// while a channel was full. A mole with no Rescan configured (e.g. in unit
// tests exercising only the event-translation path) skips the tick.
func (w *Watcher) runSafetyScan(ctx context.Context) {
	if w.cfg.Rescan == nil {
		return
	}

	w.cfg.Logger.Debug("running safety scan", slog.String("root", w.cfg.Root))

	if err := w.cfg.Rescan(ctx); err != nil && ctx.Err() == nil {
		w.cfg.Logger.Warn("safety scan failed", slog.String("error", err.Error()))
	}
}
