// Package ignore implements FileMole's layered glob-based include/exclude
// engine. It is grounded in the teacher's three-layer cascade in
// internal/sync/filter.go (FilterEngine.ShouldSync) and its .odignore
// per-directory marker files, generalized from OneDrive's single
// allowlist/skip-pattern cascade into an ordered, last-match-wins ignore
// rule list with per-directory override files and debounced reloads when a
// change to one of those files is reported.
package ignore

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gi "github.com/sabhiram/go-gitignore"

	"github.com/filemole/filemole/internal/molerr"
)

// DefaultPatterns is a starter ignore list, grounded in the teacher's safety
// suffix list plus a generalization to the directory-kind skip list a local
// index needs. Nothing in this module writes it to an ignore file or applies
// it; an Engine matches only the rules it reads from ignore files.
var DefaultPatterns = []string{
	"*.tmp", "*.temp", "*.bak", "*.swp", "*~",
	"*.log", "logs/",
	"node_modules/", "build/", "dist/", "bin/", "obj/", "packages/",
	"*.db", "*.sqlite", "*.sqlite3", "*.mdf", "*.ldf",
}

// compiledRule is one ignore rule plus its compiled matcher. baseDir is the
// canonical directory the rule is anchored to; rules preserve file order so
// evaluation can apply last-match-wins.
type compiledRule struct {
	baseDir    string
	pattern    string
	isNegation bool
	matcher    *gi.GitIgnore
}

// Engine evaluates ShouldIgnore(path) against a layered rule set loaded from
// one ignore file per directory, plus a hidden-path pre-check. It reloads
// its ignore files, after a debounce, when a caller reports an out-of-band
// edit through NotifyIgnoreFileChanged, and a re-entrance flag keeps its own
// writes from triggering a reload. It does not watch the files itself, and
// nothing in this module calls NotifyIgnoreFileChanged.
type Engine struct {
	mu          sync.RWMutex
	rules       []compiledRule
	includeExt  []compiledRule // .tracking-include union
	root        string
	ignoreName  string
	includeName string
	logger      *slog.Logger

	reentrant   sync.Map // path -> struct{}, set around the engine's own writes
	reloadTimer *time.Timer
	reloadMu    sync.Mutex
}

// Config configures an Engine.
type Config struct {
	// Root is the directory the engine recursively compiles rules from.
	Root string
	// IgnoreFileName is the marker filename for exclude/include patterns,
	// e.g. ".molemonitorignore" at a mole root or ".tracking-ignore"
	// inside a sidecar.
	IgnoreFileName string
	// IncludeFileName is the optional ".tracking-include" override file
	// name. Empty disables the include-union behavior.
	IncludeFileName string
	Logger          *slog.Logger
}

// New constructs an Engine and performs the initial compile walk: it walks
// the root once and compiles every pattern found.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		root:        cfg.Root,
		ignoreName:  cfg.IgnoreFileName,
		includeName: cfg.IncludeFileName,
		logger:      cfg.Logger,
	}

	if err := e.reload(); err != nil {
		return nil, err
	}

	return e, nil
}

// reload walks e.root and recompiles every ignore file into e.rules,
// swapping the rule list in atomically under a single write lock.
func (e *Engine) reload() error {
	var rules []compiledRule

	var includes []compiledRule

	err := filepath.WalkDir(e.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // per-path walk errors are skipped, not fatal
		}

		if !d.IsDir() {
			return nil
		}

		if e.ignoreName != "" {
			rules = append(rules, e.compileFile(path, e.ignoreName, false)...)
		}

		if e.includeName != "" {
			includes = append(includes, e.compileFile(path, e.includeName, true)...)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("ignore: walking %s: %w", e.root, err)
	}

	e.mu.Lock()
	e.rules = rules
	e.includeExt = includes
	e.mu.Unlock()

	return nil
}

// compileFile loads one ignore file in dir (if present) and compiles each
// non-blank, non-comment line into a compiledRule anchored at dir.
// asInclude forces every pattern to behave as a negation, implementing the
// .tracking-include union.
func (e *Engine) compileFile(dir, name string, asInclude bool) []compiledRule {
	fpath := filepath.Join(dir, name)

	f, err := os.Open(fpath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var rules []compiledRule

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		rule, err := compileLine(dir, trimmed, asInclude)
		if err != nil {
			e.logger.Warn("skipping invalid ignore rule",
				slog.String("file", fpath), slog.String("line", trimmed),
				slog.String("error", err.Error()))

			continue
		}

		rules = append(rules, rule)
	}

	return rules
}

// compileLine compiles a single gitignore-style pattern line into a rule
// anchored at dir. A leading "!" means negation (forced true if asInclude).
// A trailing "/" expands into "p" and "p/**" so a directory pattern also
// matches everything beneath it.
func compileLine(dir, line string, asInclude bool) (compiledRule, error) {
	negation := asInclude
	pattern := line

	if strings.HasPrefix(pattern, "!") {
		negation = true
		pattern = pattern[1:]
	}

	patterns := []string{pattern}
	if strings.HasSuffix(pattern, "/") {
		base := strings.TrimSuffix(pattern, "/")
		patterns = []string{base, base + "/**"}
	}

	matcher := gi.CompileIgnoreLines(patterns...)
	if matcher == nil {
		return compiledRule{}, fmt.Errorf("%w: %q", molerr.ErrIgnoreRuleInvalid, line)
	}

	return compiledRule{
		baseDir:    dir,
		pattern:    pattern,
		isNegation: negation,
		matcher:    matcher,
	}, nil
}

// AddNegationRule appends a "!pattern" line to dir's ignore file (creating
// it if absent) and merges the compiled rule into the live rule set
// immediately, rather than waiting on the self-watch debounce. Used by
// tracking enablement to force a single file back into scope regardless of
// any broader exclude pattern already covering it.
func (e *Engine) AddNegationRule(dir, pattern string) error {
	if e.ignoreName == "" {
		return fmt.Errorf("ignore: ignore file support disabled")
	}

	path := filepath.Join(dir, e.ignoreName)

	e.BeginOwnWrite(path)
	defer e.EndOwnWrite(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ignore: opening ignore file %s: %w", path, err)
	}
	defer f.Close()

	line := "!" + pattern

	if _, err := fmt.Fprintf(f, "%s\n", line); err != nil {
		return fmt.Errorf("ignore: writing negation rule to %s: %w", path, err)
	}

	rule, err := compileLine(dir, line, false)
	if err != nil {
		return fmt.Errorf("ignore: compiling negation rule %q: %w", line, err)
	}

	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()

	return nil
}

// isHiddenPath reports whether any segment of path begins with "." — an
// unconditional, non-negatable pre-check applied before any rule runs.
func isHiddenPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != "" {
			return true
		}
	}

	return false
}

// ShouldIgnore evaluates path against the compiled rule set. Hidden-path
// detection always wins (never negated); otherwise every rule whose
// baseDir is an ancestor of (or equal to) path's directory is evaluated in
// file order, last match wins, default "not ignored".
func (e *Engine) ShouldIgnore(path string) bool {
	if isHiddenPath(e.root, path) {
		return true
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	decision := false
	dir := filepath.Dir(path)

	for _, r := range e.rules {
		if !isAncestorOrEqual(r.baseDir, dir) {
			continue
		}

		rel, err := filepath.Rel(r.baseDir, path)
		if err != nil {
			continue
		}

		if r.matcher.MatchesPath(filepath.ToSlash(rel)) {
			decision = !r.isNegation
		}
	}

	// .tracking-include union: any matching include rule forces "not ignored",
	// applied after the main cascade so it wins regardless of file order.
	for _, r := range e.includeExt {
		if !isAncestorOrEqual(r.baseDir, dir) {
			continue
		}

		rel, err := filepath.Rel(r.baseDir, path)
		if err != nil {
			continue
		}

		if r.matcher.MatchesPath(filepath.ToSlash(rel)) {
			decision = false
		}
	}

	return decision
}

// isAncestorOrEqual reports whether base is dir itself or an ancestor of it.
func isAncestorOrEqual(base, dir string) bool {
	if base == dir {
		return true
	}

	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	return strings.HasPrefix(dir, prefix)
}

// BeginOwnWrite marks path as an in-flight engine-originated write, so the
// self-watch debounce (wired by the caller's file watcher) ignores the
// resulting notification. Callers must invoke EndOwnWrite when done.
func (e *Engine) BeginOwnWrite(path string) {
	e.reentrant.Store(path, struct{}{})
}

// EndOwnWrite clears the re-entrance flag for path.
func (e *Engine) EndOwnWrite(path string) {
	e.reentrant.Delete(path)
}

// IsOwnWrite reports whether path is currently flagged as an in-flight
// engine-originated write.
func (e *Engine) IsOwnWrite(path string) bool {
	_, ok := e.reentrant.Load(path)
	return ok
}

// selfWatchDebounce is the guard window against reloading on partial writes.
const selfWatchDebounce = 500 * time.Millisecond

// NotifyIgnoreFileChanged is called by the caller's filesystem watcher when
// one of the engine's ignore/include files changes out of band. It debounces
// rapid successive notifications and skips reload entirely while the
// corresponding path is flagged via BeginOwnWrite/EndOwnWrite.
func (e *Engine) NotifyIgnoreFileChanged(path string) {
	if e.IsOwnWrite(path) {
		return
	}

	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if e.reloadTimer != nil {
		e.reloadTimer.Stop()
	}

	e.reloadTimer = time.AfterFunc(selfWatchDebounce, func() {
		if err := e.reload(); err != nil {
			e.logger.Error("ignore engine reload failed", slog.String("error", err.Error()))
		}
	})
}

// IsIgnoreFile reports whether base is the name of an ignore or include
// marker file this engine reads, so a caller's generic file watcher can
// route change notifications to NotifyIgnoreFileChanged.
func (e *Engine) IsIgnoreFile(base string) bool {
	return base == e.ignoreName || (e.includeName != "" && base == e.includeName)
}
