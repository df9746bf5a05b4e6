package diffengine

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// BinaryStrategy compares two files by full-content SHA-256, the fallback
// for anything that isn't recognized text or a supported document format.
type BinaryStrategy struct{}

func (BinaryStrategy) Generate(oldPath, newPath string, isInitial bool) (*Result, error) {
	oldSize, oldHash, err := sha256File(oldPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: hashing old version %s: %w", oldPath, err)
	}

	newSize, newHash, err := sha256File(newPath)
	if err != nil {
		return nil, fmt.Errorf("diffengine: hashing new version %s: %w", newPath, err)
	}

	identical := oldHash == newHash

	return &Result{
		FileType:  KindBinary,
		IsChanged: !identical,
		IsInitial: isInitial,
		Binary: &BinaryResult{
			OldSize:   oldSize,
			NewSize:   newSize,
			OldHash:   oldHash,
			NewHash:   newHash,
			Identical: identical,
		},
	}, nil
}

// sha256File hashes path's content. An empty or missing path (the "no old
// version yet" case for an initial diff) hashes as zero-length content,
// matching the Text strategy's own empty-old-version handling.
func sha256File(path string) (int64, string, error) {
	if path == "" {
		return 0, fmt.Sprintf("%x", sha256.Sum256(nil)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Sprintf("%x", sha256.Sum256(nil)), nil
		}

		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()

	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}

	return size, fmt.Sprintf("%x", h.Sum(nil)), nil
}
