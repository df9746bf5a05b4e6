package index

import (
	"path/filepath"
	"time"
)

// Entry is a single row of the FileIndex table: metadata for one file,
// keyed by (Directory, Name).
type Entry struct {
	Directory   string
	Name        string
	Size        int64
	Created     time.Time
	Modified    time.Time
	Attributes  uint32
	LastScanned time.Time
}

// FullPath joins Directory and Name with the OS separator (callers are
// expected to pass a canonical directory with no trailing separator).
func (e Entry) FullPath() string {
	if e.Directory == "" {
		return e.Name
	}

	return e.Directory + string(filepath.Separator) + e.Name
}

// TrackingRow is a single row of the TrackingFile table. Invariant: a
// tracked file has a backup blob iff EnabledAt is set and the source has
// been observed at least once — LastBackupMtime is zero until then.
type TrackingRow struct {
	FullPath        string
	EnabledAt       time.Time
	LastHash        string
	LastBackupMtime time.Time
}
