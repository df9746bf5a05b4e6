// Package molerr defines the stable error identities shared across FileMole's
// pipeline: error kinds are stable names, not types. Components wrap these
// with fmt.Errorf("...: %w", ...) and callers use errors.Is to classify
// failures without depending on a particular package's concrete error type.
package molerr

import "errors"

var (
	// ErrPathAccessDenied means a permission or OS-security rejection.
	// Suppressed into empty results by callers that enumerate; logged once.
	ErrPathAccessDenied = errors.New("filemole: path access denied")

	// ErrPathNotFound means the path does not exist. Surfaced to direct
	// callers; inside the pipeline it aborts only the current event.
	ErrPathNotFound = errors.New("filemole: path not found")

	// ErrNoProviderForPath means no storage provider is registered for a
	// path's mole. Always a caller error.
	ErrNoProviderForPath = errors.New("filemole: no provider for path")

	// ErrUnsupportedCrossProvider means an operation spans two different
	// storage providers, which FileMole does not support.
	ErrUnsupportedCrossProvider = errors.New("filemole: unsupported cross-provider operation")

	// ErrIoExhausted means a transient I/O error persisted past the retry
	// budget (3 attempts, linear backoff).
	ErrIoExhausted = errors.New("filemole: io retries exhausted")

	// ErrIgnoreRuleInvalid means a single ignore rule failed to compile.
	// The rule is skipped; other rules in the same file still load.
	ErrIgnoreRuleInvalid = errors.New("filemole: invalid ignore rule")

	// ErrCancelled wraps context cancellation encountered mid-pipeline.
	// Propagated untouched, never swallowed.
	ErrCancelled = errors.New("filemole: operation cancelled")
)
