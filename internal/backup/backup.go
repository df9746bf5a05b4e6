// Package backup places and maintains the content-addressed backup blobs
// that TrackingManager diffs a tracked file's latest content against.
package backup

import (
	"context"
	"crypto/md5" //nolint:gosec // content-addressed filename, not a security boundary
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/filemole/filemole/internal/molerr"
)

const backupsSubdir = "backups"

const (
	copyRetries  = 3
	retryBackoff = 100 * time.Millisecond
)

// Store locates and maintains backup blobs under a hidden sidecar
// directory found (or created) near each tracked file.
type Store struct {
	sidecarName string
	logger      *slog.Logger
}

// New returns a Store that names sidecar directories sidecarName (e.g.
// ".hill").
func New(sidecarName string, logger *slog.Logger) *Store {
	return &Store{sidecarName: sidecarName, logger: logger}
}

// SidecarDir returns the sidecar directory that owns filePath's backup,
// walking up from filePath's containing directory to find the nearest
// ancestor that already has a sidecar. If none exists, a sidecar is
// created in filePath's own directory.
func (s *Store) SidecarDir(filePath string) (string, error) {
	dir := filepath.Dir(filePath)

	for d := dir; ; {
		candidate := filepath.Join(d, s.sidecarName)

		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(d)
		if parent == d {
			break
		}

		d = parent
	}

	candidate := filepath.Join(dir, s.sidecarName)
	if err := os.MkdirAll(filepath.Join(candidate, backupsSubdir), 0o755); err != nil {
		return "", fmt.Errorf("backup: creating sidecar at %s: %w", candidate, err)
	}

	return candidate, nil
}

// BackupPath returns the content-addressed path a tracked file's backup
// blob lives (or would live) at: <sidecar>/backups/<md5(relative_path)>.bak,
// where relative_path is filePath relative to the sidecar's parent
// directory. Generalizes the teacher's conflictCopyPath idiom (derive a
// sibling path from the original) from a timestamp suffix to a
// content-addressed one.
func (s *Store) BackupPath(filePath string) (string, error) {
	sidecar, err := s.SidecarDir(filePath)
	if err != nil {
		return "", err
	}

	base := filepath.Dir(sidecar)

	rel, err := filepath.Rel(base, filePath)
	if err != nil {
		return "", fmt.Errorf("backup: computing relative path for %s: %w", filePath, err)
	}

	sum := md5.Sum([]byte(filepath.ToSlash(rel))) //nolint:gosec

	name := fmt.Sprintf("%x.bak", sum)

	return filepath.Join(sidecar, backupsSubdir, name), nil
}

// HasBackup reports whether filePath already has a backup blob.
func (s *Store) HasBackup(filePath string) (bool, error) {
	path, err := s.BackupPath(filePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("backup: checking %s: %w", path, err)
}

// Backup copies filePath's current content to its backup location,
// overwriting any existing blob in place, and carries over the source's
// mtime and permission bits. ctime is kernel-assigned and cannot be
// forged on any platform, so it is not preserved. Transient I/O on the
// copy is retried up to three times with a 100ms linear backoff, matching
// hashengine's retry contract for the same class of sharing-violation-like
// errors.
func (s *Store) Backup(ctx context.Context, filePath string) error {
	dest, err := s.BackupPath(filePath)
	if err != nil {
		return err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("backup: stat %s: %w", filePath, err)
	}

	if err := copyFileWithRetry(ctx, filePath, dest, info.Mode()); err != nil {
		return fmt.Errorf("backup: copying %s to %s: %w", filePath, dest, err)
	}

	atime := info.ModTime()
	if err := os.Chtimes(dest, atime, info.ModTime()); err != nil {
		return fmt.Errorf("backup: preserving timestamps on %s: %w", dest, err)
	}

	return nil
}

// DeleteBackup removes filePath's backup blob, if any. Deleting a
// nonexistent backup is not an error.
func (s *Store) DeleteBackup(filePath string) error {
	path, err := s.BackupPath(filePath)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("backup: deleting %s: %w", path, err)
	}

	return nil
}

// copyFileWithRetry retries copyFile up to copyRetries times with a linear
// backoff, the same shape hashengine.FullHash uses for transient I/O on the
// file it reads.
func copyFileWithRetry(ctx context.Context, src, dst string, mode os.FileMode) error {
	var lastErr error

	for attempt := 0; attempt < copyRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", molerr.ErrCancelled, ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		err := copyFile(src, dst, mode)
		if err == nil {
			return nil
		}

		lastErr = err
	}

	return fmt.Errorf("%w: %w", molerr.ErrIoExhausted, lastErr)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}
