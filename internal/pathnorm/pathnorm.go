// Package pathnorm provides pure, cross-platform path-canonicalization
// helpers shared by every component in the FileMole pipeline. Grounded in
// the teacher's scanner.go NFC-normalization step and filepath.ToSlash
// conventions, generalized into a standalone, idempotent primitive.
package pathnorm

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// caseInsensitiveOS reports whether the current platform folds path case,
// matching the teacher's platform-gated behavior (safety_darwin.go /
// safety_linux.go) generalized to Windows as well.
func caseInsensitiveOS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Canonicalize returns the absolute, separator-collapsed, NFC-normalized
// form of p. On case-insensitive platforms the result is additionally
// lower-cased so equality comparisons are platform-consistent. Canonicalize
// is idempotent: Canonicalize(Canonicalize(p)) == Canonicalize(p).
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	clean := filepath.Clean(abs)
	nfc := norm.NFC.String(clean)

	if caseInsensitiveOS() {
		nfc = strings.ToLower(nfc)
	}

	return nfc, nil
}

// MustCanonicalize is like Canonicalize but panics on error. Reserved for
// call sites that have already validated the path exists (tests, startup
// configuration where failure is a programmer error).
func MustCanonicalize(p string) string {
	c, err := Canonicalize(p)
	if err != nil {
		panic(err)
	}

	return c
}

// Parent returns the canonical parent directory of the canonical path p.
// For a root path (no parent under the OS's rules) Parent returns p itself,
// matching filepath.Dir's behavior at the filesystem root.
func Parent(p string) string {
	return filepath.Clean(filepath.Dir(p))
}

// Relative returns path expressed relative to base. Both arguments are
// canonicalized first so callers need not pre-normalize.
func Relative(base, path string) (string, error) {
	cb, err := Canonicalize(base)
	if err != nil {
		return "", err
	}

	cp, err := Canonicalize(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(cb, cp)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(rel), nil
}

// IsSubPath reports whether b lies strictly under a: the canonical form of
// b must start with the canonical form of a followed by a path separator.
// Equality (a == b) is false — a path is never considered its own sub-path.
func IsSubPath(a, b string) bool {
	ca, err := Canonicalize(a)
	if err != nil {
		return false
	}

	cb, err := Canonicalize(b)
	if err != nil {
		return false
	}

	if ca == cb {
		return false
	}

	prefix := ca
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	return strings.HasPrefix(cb, prefix)
}

// LongestMatchingMoleRoot resolves which of a set of canonical mole roots a
// path belongs to, by returning the longest root that is a prefix of (or
// equal to) the path. When roots happen to be nested, the longest matching
// prefix wins. Returns ("", false) if no root matches.
func LongestMatchingMoleRoot(roots []string, path string) (string, bool) {
	cp, err := Canonicalize(path)
	if err != nil {
		return "", false
	}

	best := ""
	bestLen := -1

	for _, root := range roots {
		cr, err := Canonicalize(root)
		if err != nil {
			continue
		}

		if cp != cr && !IsSubPath(cr, cp) {
			continue
		}

		if len(cr) > bestLen {
			best = cr
			bestLen = len(cr)
		}
	}

	if bestLen < 0 {
		return "", false
	}

	return best, true
}

// ToSlash is a thin re-export so callers needn't import path/filepath
// directly for this one conversion; kept here because every component that
// stores paths in the index needs forward-slash normalization.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}
