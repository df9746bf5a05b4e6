// Package provider defines the storage-capability abstraction that every
// Mole is backed by. It is grounded in the teacher's
// internal/driveops.Downloader/Uploader split and internal/sync's
// observer/executor separation, generalized into one capability surface
// with tagged Local/Remote/Cloud implementations.
//
// Only Local is implemented in full: remote and cloud storage providers are
// named, out-of-scope external collaborators — FileMole only consumes their
// streaming listing contract. Cross-provider operations always fail with
// molerr.ErrUnsupportedCrossProvider.
package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/filemole/filemole/internal/molerr"
)

// Kind identifies which provider family backs a Mole.
type Kind string

// Provider kinds.
const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
	KindCloud  Kind = "cloud"
)

// Entry describes one listed filesystem entry, the minimal shape every
// provider's streaming listing contract must produce.
type Entry struct {
	Name       string
	Size       int64
	IsDir      bool
	ModTime    time.Time
	Attributes uint32
}

// Capability is the single interface every storage backend satisfies,
// replacing the teacher's separate Downloader/Uploader/SessionUploader
// split with one surface scoped to FileMole's read/observe/mutate needs.
type Capability interface {
	// ListFiles streams non-directory entries of dir.
	ListFiles(ctx context.Context, dir string) ([]Entry, error)
	// ListDirectories streams directory entries of dir.
	ListDirectories(ctx context.Context, dir string) ([]Entry, error)
	Get(ctx context.Context, path string) (Entry, error)
	Exists(ctx context.Context, path string) (bool, error)
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, path string) (io.WriteCloser, error)
	Move(ctx context.Context, from, to string) error
	Copy(ctx context.Context, from, to string) error
	Rename(ctx context.Context, path, newName string) error
	Delete(ctx context.Context, path string) error
}

// Registry resolves a Capability by (kind, provider name).
type Registry struct {
	providers map[string]Capability
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Capability)}
}

// key combines kind and name into the registry's lookup key.
func key(kind Kind, name string) string { return string(kind) + ":" + name }

// Register installs a Capability under (kind, name).
func (r *Registry) Register(kind Kind, name string, capability Capability) {
	r.providers[key(kind, name)] = capability
}

// Resolve returns the Capability for (kind, name), or
// molerr.ErrNoProviderForPath if none is registered.
func (r *Registry) Resolve(kind Kind, name string) (Capability, error) {
	c, ok := r.providers[key(kind, name)]
	if !ok {
		return nil, fmt.Errorf("provider: resolving %s/%s: %w", kind, name, molerr.ErrNoProviderForPath)
	}

	return c, nil
}

// CrossProviderOp returns molerr.ErrUnsupportedCrossProvider, the uniform
// rejection for any operation that would span two different providers.
func CrossProviderOp(op string) error {
	return fmt.Errorf("provider: %s: %w", op, molerr.ErrUnsupportedCrossProvider)
}

// Local is the fully-implemented Capability backed by the OS filesystem.
// It is the only provider the core pipeline (watcher, scanner, tracking)
// actually drives; Remote and Cloud exist as named interfaces for a
// consuming facade to implement against real backends.
type Local struct{}

// NewLocal creates a Local provider.
func NewLocal() *Local { return &Local{} }

func entryFromFileInfo(name string, fi os.FileInfo) Entry {
	return Entry{
		Name:    name,
		Size:    fi.Size(),
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}
}

// ListFiles implements Capability.
func (l *Local) ListFiles(_ context.Context, dir string) ([]Entry, error) {
	return l.list(dir, false)
}

// ListDirectories implements Capability.
func (l *Local) ListDirectories(_ context.Context, dir string) ([]Entry, error) {
	return l.list(dir, true)
}

func (l *Local) list(dir string, wantDirs bool) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapOSErr("list", dir, err)
	}

	out := make([]Entry, 0, len(entries))

	for _, de := range entries {
		if de.IsDir() != wantDirs {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue // entry vanished mid-list; skip rather than fail the batch
		}

		out = append(out, entryFromFileInfo(de.Name(), info))
	}

	return out, nil
}

// Get implements Capability.
func (l *Local) Get(_ context.Context, path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, wrapOSErr("get", path, err)
	}

	return entryFromFileInfo(filepath.Base(path), info), nil
}

// Exists implements Capability.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, wrapOSErr("exists", path, err)
}

// OpenRead implements Capability.
func (l *Local) OpenRead(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOSErr("open-read", path, err)
	}

	return f, nil
}

// OpenWrite implements Capability.
func (l *Local) OpenWrite(_ context.Context, path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrapOSErr("open-write", path, err)
	}

	return f, nil
}

// Move implements Capability.
func (l *Local) Move(_ context.Context, from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return wrapOSErr("move", from, err)
	}

	return nil
}

// Copy implements Capability. Preserves mtime on the destination, matching
// the backup contract's expectation that a copy looks untouched by time.
func (l *Local) Copy(_ context.Context, from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return wrapOSErr("copy", from, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return wrapOSErr("copy", from, err)
	}

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return wrapOSErr("copy", to, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return wrapOSErr("copy", to, err)
	}

	if err := dst.Close(); err != nil {
		return wrapOSErr("copy", to, err)
	}

	return os.Chtimes(to, info.ModTime(), info.ModTime())
}

// Rename implements Capability.
func (l *Local) Rename(_ context.Context, path, newName string) error {
	target := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, target); err != nil {
		return wrapOSErr("rename", path, err)
	}

	return nil
}

// Delete implements Capability.
func (l *Local) Delete(_ context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return wrapOSErr("delete", path, err)
	}

	return nil
}

// wrapOSErr classifies an OS-level error into FileMole's stable error
// identities: permission errors become ErrPathAccessDenied, missing paths
// become ErrPathNotFound, and everything else is wrapped but left otherwise
// unclassified.
func wrapOSErr(op, path string, err error) error {
	if os.IsPermission(err) {
		return fmt.Errorf("provider: %s %s: %w", op, path, molerr.ErrPathAccessDenied)
	}

	if os.IsNotExist(err) {
		return fmt.Errorf("provider: %s %s: %w", op, path, molerr.ErrPathNotFound)
	}

	return fmt.Errorf("provider: %s %s: %w", op, path, err)
}

// Remote is a named-interface stub for a remote storage provider — only its
// streaming listing contract is consumed elsewhere in the pipeline.
// FileMole's pipeline never constructs one directly; a consuming facade
// supplies a concrete implementation and registers it with a Registry.
type Remote interface {
	Capability
	ProviderName() string
}

// Cloud is the cloud-storage analogue of Remote.
type Cloud interface {
	Capability
	ProviderName() string
}
