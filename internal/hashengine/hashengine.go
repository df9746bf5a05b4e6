// Package hashengine computes content digests used to decide "has this
// file really changed" without a full byte-for-byte comparison: a full MD5
// over the whole stream, and a cheap partial digest over a handful of
// fixed-size windows.
package hashengine

import (
	"context"
	"crypto/md5" //nolint:gosec // content-change fingerprint, not a security boundary
	"fmt"
	"hash"
	"io"
	"os"
	"time"

	"github.com/filemole/filemole/internal/molerr"
)

const (
	fullHashRetries = 3
	retryBackoff    = 100 * time.Millisecond

	partialWindowSize = 4096
	middleThreshold   = 2 * partialWindowSize
	endThreshold      = partialWindowSize
)

// FullHash returns the MD5 digest (hex-encoded) of the whole file at path.
// Transient I/O errors are retried up to three times with a 100ms linear
// backoff; the file is opened read-only so a concurrent writer never blocks
// observation.
func FullHash(ctx context.Context, path string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < fullHashRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("hashengine: full hash of %s: %w: %w", path, molerr.ErrCancelled, ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		sum, err := hashWholeFile(path)
		if err == nil {
			return sum, nil
		}

		lastErr = err
	}

	return "", fmt.Errorf("hashengine: full hash of %s: %w: %w", path, molerr.ErrIoExhausted, lastErr)
}

func hashWholeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// PartialHash hashes up to three 4 KiB windows of path — start, middle (if
// the file is larger than 8 KiB), and end (if larger than 4 KiB) — to
// quickly reject "same mtime, same size, different content" cases without
// reading the whole file.
func PartialHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashengine: partial hash of %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("hashengine: stat %s: %w", path, err)
	}

	size := info.Size()
	h := md5.New() //nolint:gosec

	if err := hashWindow(h, f, 0); err != nil {
		return "", fmt.Errorf("hashengine: partial hash of %s: %w", path, err)
	}

	if size > middleThreshold {
		mid := (size - partialWindowSize) / 2
		if err := hashWindow(h, f, mid); err != nil {
			return "", fmt.Errorf("hashengine: partial hash of %s: %w", path, err)
		}
	}

	if size > endThreshold {
		tail := size - partialWindowSize
		if tail < 0 {
			tail = 0
		}

		if err := hashWindow(h, f, tail); err != nil {
			return "", fmt.Errorf("hashengine: partial hash of %s: %w", path, err)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// hashWindow reads up to partialWindowSize bytes starting at offset and
// feeds them into h. A short read at EOF is not an error — it just means
// the window was smaller than the full window size.
func hashWindow(h hash.Hash, f *os.File, offset int64) error {
	buf := make([]byte, partialWindowSize)

	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}

	_, werr := h.Write(buf[:n])

	return werr
}
