package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.txt")
	data := []byte("hello world")
	perm := os.FileMode(0o644)

	require.NoError(t, AtomicWriteFile(filename, data, perm))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Equal(t, perm, info.Mode())
}

func TestAtomicWriteFileReplaces(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "unit.service")
	require.NoError(t, AtomicWriteFile(filename, []byte("old"), 0o600))
	require.NoError(t, AtomicWriteFile(filename, []byte("new"), 0o600))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))

	entries, err := os.ReadDir(filepath.Dir(filename))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestAtomicWriteFileCreatesParents(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "a", "b", "spooled.png")
	require.NoError(t, AtomicWriteFile(filename, []byte{1, 2, 3}, 0o600))

	info, err := os.Stat(filepath.Dir(filename))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
