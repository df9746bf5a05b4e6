// Package filemole is the composition root for the FileMole library: it
// wires Watcher, Debouncer, IgnoreEngine, Classifier, IndexStore,
// TrackingManager and DiffEngine together per configured mole, owns the
// root cancellation token, and exposes the public operational surface
// (watch, unwatch, search, enable_tracking, disable_tracking, is_tracked,
// event subscription) plus mole registration. It plays the role the
// teacher's internal/sync.Engine plays for a single OneDrive account,
// generalized to own a set of independently watched roots instead of one
// drive.
package filemole

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/filemole/filemole/internal/backup"
	"github.com/filemole/filemole/internal/classifier"
	"github.com/filemole/filemole/internal/config"
	"github.com/filemole/filemole/internal/events"
	"github.com/filemole/filemole/internal/ignore"
	"github.com/filemole/filemole/internal/index"
	"github.com/filemole/filemole/internal/molerr"
	"github.com/filemole/filemole/internal/pathnorm"
	"github.com/filemole/filemole/internal/scanner"
	"github.com/filemole/filemole/internal/tracking"
	"github.com/filemole/filemole/internal/watcher"
)

// mole bundles the per-root collaborators a running mole needs: its own
// ignore engine (rules are anchored at the mole's root) and its own
// watcher and tracking manager instances, plus the goroutine running the
// watcher's Run loop.
type mole struct {
	name     string
	root     string
	ignore   *ignore.Engine
	watcher  *watcher.Watcher
	tracking *tracking.Manager

	cancel context.CancelFunc
	done   chan struct{}
}

// FileMole is the running library instance: one IndexStore, one event Bus,
// one BackupStore, one Classifier, shared across every registered mole.
type FileMole struct {
	cfg    *config.Config
	logger *slog.Logger

	index      *index.Store
	bus        *events.Bus
	backup     *backup.Store
	classifier *classifier.Classifier

	mu    sync.RWMutex
	moles map[string]*mole

	ctx    context.Context
	cancel context.CancelFunc
}

// Open constructs a FileMole instance: opens the index database, prepares
// the shared collaborators, and registers every mole named in cfg (without
// starting their watch loops — call Run to do that). Close releases every
// resource Open acquired if construction fails partway through.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*FileMole, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := filepath.Join(cfg.Storage.DataDir, cfg.Storage.DatabaseFile)

	idx, err := index.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("filemole: opening index: %w", err)
	}

	rootCtx, cancel := context.WithCancel(ctx)

	fm := &FileMole{
		cfg:        cfg,
		logger:     logger,
		index:      idx,
		bus:        events.NewBus(logger),
		backup:     backup.New(cfg.Storage.SidecarDir, logger),
		classifier: classifier.New(idx, logger),
		moles:      make(map[string]*mole),
		ctx:        rootCtx,
		cancel:     cancel,
	}

	for name, mc := range cfg.Moles {
		if err := fm.AddMole(name, mc.Path); err != nil {
			fm.Close()
			return nil, fmt.Errorf("filemole: registering mole %q: %w", name, err)
		}
	}

	return fm, nil
}

// AddMole registers a new mole rooted at path under name. It builds the
// mole's own ignore engine and tracking manager but does not start
// watching; call Run (or Watch) to begin. Safe to call before or after Run
// has started other moles.
func (fm *FileMole) AddMole(name, path string) error {
	canon, err := pathnorm.Canonicalize(path)
	if err != nil {
		return fmt.Errorf("filemole: canonicalizing mole root %s: %w", path, err)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if _, exists := fm.moles[name]; exists {
		return nil // AddMole is idempotent, matching Watcher.Watch's idempotence contract
	}

	ignoreEngine, err := ignore.New(ignore.Config{
		Root:           canon,
		IgnoreFileName: fm.cfg.Ignore.MonitoringIgnoreFile,
		Logger:         fm.logger,
	})
	if err != nil {
		return fmt.Errorf("filemole: building ignore engine for %s: %w", canon, err)
	}

	trackingIgnore, err := ignore.New(ignore.Config{
		Root:            canon,
		IgnoreFileName:  fm.cfg.Ignore.TrackingIgnoreFile,
		IncludeFileName: fm.cfg.Ignore.TrackingIncludeFile,
		Logger:          fm.logger,
	})
	if err != nil {
		return fmt.Errorf("filemole: building tracking ignore engine for %s: %w", canon, err)
	}

	trackingMgr := tracking.New(tracking.Config{
		Mole:   name,
		Index:  fm.index,
		Backup: fm.backup,
		Ignore: trackingIgnore,
		Bus:    fm.bus,
		Logger: fm.logger,
	})

	m := &mole{
		name:     name,
		root:     canon,
		ignore:   ignoreEngine,
		tracking: trackingMgr,
	}

	m.watcher = watcher.New(watcher.Config{
		Mole:               name,
		Root:               canon,
		Ignore:             ignoreEngine,
		Index:              fm.index,
		Classifier:         fm.classifier,
		Bus:                fm.bus,
		Logger:             fm.logger,
		DebounceWindow:     fm.cfg.WatcherDebounce(),
		SafetyScanInterval: fm.cfg.SafetyScanInterval(),
		Rescan:             fm.rescanFunc(m),
	})

	fm.moles[name] = m

	// The subscription lives for FileMole's lifetime; nothing ever
	// unsubscribes it, so the returned handle is discarded.
	fm.bus.Subscribe(events.SinkFunc(func(ev events.Event) {
		if ev.Mole != name {
			return
		}

		trackingMgr.HandleEvent(fm.ctx, ev)
	}))

	return nil
}

// rescanFunc binds the watcher's periodic safety-rescan hook to a
// single-root scanner call scoped to m's own subtree, so one mole's
// safety rescan never reconciles another mole's rows.
func (fm *FileMole) rescanFunc(m *mole) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		s := scanner.New(scanner.Config{
			Index:  fm.index,
			Bus:    fm.bus,
			Logger: fm.logger,
		})

		return s.ScanRoot(ctx, scanner.Root{Mole: m.name, Path: m.root, Ignore: m.ignore})
	}
}

// RemoveMole stops watching and unregisters the named mole. Its IndexStore
// rows are left in place; FileMole exposes no call that removes them.
func (fm *FileMole) RemoveMole(name string) error {
	fm.mu.Lock()
	m, ok := fm.moles[name]
	if !ok {
		fm.mu.Unlock()
		return nil
	}

	delete(fm.moles, name)
	fm.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		<-m.done
	}

	return nil
}

// Run performs the startup reconciliation sweep across every registered
// mole and then starts each mole's watch loop in its own goroutine. Run
// returns once the sweep has completed and every watcher has been
// launched; it does not block for the watchers' lifetimes. Use Close (or
// cancel the context Open was given) to stop them.
func (fm *FileMole) Run(ctx context.Context) error {
	fm.mu.RLock()

	roots := make([]scanner.Root, 0, len(fm.moles))
	for _, m := range fm.moles {
		roots = append(roots, scanner.Root{Mole: m.name, Path: m.root, Ignore: m.ignore})
	}

	fm.mu.RUnlock()

	sweep := scanner.New(scanner.Config{Roots: roots, Index: fm.index, Bus: fm.bus, Logger: fm.logger})
	if err := sweep.Run(ctx); err != nil {
		return fmt.Errorf("filemole: startup scan: %w", err)
	}

	if err := fm.reconcileTracking(ctx); err != nil {
		return fmt.Errorf("filemole: tracking reconciliation: %w", err)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	for _, m := range fm.moles {
		if m.cancel != nil {
			continue // already started
		}

		moleCtx, cancel := context.WithCancel(fm.ctx)
		m.cancel = cancel
		m.done = make(chan struct{})

		go func(m *mole) {
			defer close(m.done)

			if err := m.watcher.Run(moleCtx); err != nil && moleCtx.Err() == nil {
				fm.logger.Error("mole watcher exited", slog.String("mole", m.name), slog.String("error", err.Error()))
			}
		}(m)
	}

	return nil
}

func (fm *FileMole) reconcileTracking(ctx context.Context) error {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	for _, m := range fm.moles {
		if err := m.tracking.Reconcile(ctx); err != nil {
			return fmt.Errorf("mole %s: %w", m.name, err)
		}
	}

	return nil
}

// Close cancels the root context, waits for every mole's watcher to
// return, and closes the index database.
func (fm *FileMole) Close() error {
	fm.cancel()

	fm.mu.Lock()
	moles := make([]*mole, 0, len(fm.moles))
	for _, m := range fm.moles {
		moles = append(moles, m)
	}
	fm.mu.Unlock()

	for _, m := range moles {
		if m.done != nil {
			<-m.done
		}
	}

	return fm.index.Close()
}

// Subscribe registers sink on the shared event bus and returns its
// Subscription handle.
func (fm *FileMole) Subscribe(sink events.Sink) events.Subscription {
	return fm.bus.Subscribe(sink)
}

// Watch adds (or re-adds) a native watch on path. path must fall under an
// already-registered mole's root.
func (fm *FileMole) Watch(path string) error {
	m, err := fm.moleFor(path)
	if err != nil {
		return err
	}

	return m.watcher.Watch(path)
}

// Unwatch removes the native watch on path. path must fall under an
// already-registered mole's root.
func (fm *FileMole) Unwatch(path string) error {
	m, err := fm.moleFor(path)
	if err != nil {
		return err
	}

	return m.watcher.Unwatch(path)
}

// Search returns every indexed entry whose directory+name contains term.
func (fm *FileMole) Search(ctx context.Context, term string) ([]index.Entry, error) {
	return fm.index.Search(ctx, term)
}

// EnableTracking turns on content tracking for path.
func (fm *FileMole) EnableTracking(ctx context.Context, path string) error {
	m, err := fm.moleFor(path)
	if err != nil {
		return err
	}

	return m.tracking.Enable(ctx, path)
}

// DisableTracking turns off content tracking for path.
func (fm *FileMole) DisableTracking(ctx context.Context, path string) error {
	m, err := fm.moleFor(path)
	if err != nil {
		return err
	}

	return m.tracking.Disable(ctx, path)
}

// IsTracked reports whether path currently has content tracking enabled.
func (fm *FileMole) IsTracked(path string) bool {
	m, err := fm.moleFor(path)
	if err != nil {
		return false
	}

	return m.tracking.IsTracked(path)
}

// moleFor resolves which registered mole owns path, by longest matching
// root prefix.
func (fm *FileMole) moleFor(path string) (*mole, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	roots := make([]string, 0, len(fm.moles))
	byRoot := make(map[string]*mole, len(fm.moles))

	for _, m := range fm.moles {
		roots = append(roots, m.root)
		byRoot[m.root] = m
	}

	root, ok := pathnorm.LongestMatchingMoleRoot(roots, path)
	if !ok {
		return nil, fmt.Errorf("filemole: %s: %w", path, molerr.ErrNoProviderForPath)
	}

	return byRoot[root], nil
}
