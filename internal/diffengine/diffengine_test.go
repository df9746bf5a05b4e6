package diffengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyForText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text content\n"), 0o644))

	kind, err := StrategyFor(path)
	require.NoError(t, err)
	assert.Equal(t, KindText, kind)
}

func TestStrategyForDocumentByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	kind, err := StrategyFor(path)
	require.NoError(t, err)
	assert.Equal(t, KindDocument, kind)
}

func TestStrategyForBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}, 0o644))

	kind, err := StrategyFor(path)
	require.NoError(t, err)
	assert.Equal(t, KindBinary, kind)
}

func TestForReturnsMatchingStrategy(t *testing.T) {
	assert.IsType(t, TextStrategy{}, For(KindText))
	assert.IsType(t, DocumentStrategy{}, For(KindDocument))
	assert.IsType(t, BinaryStrategy{}, For(KindBinary))
}
