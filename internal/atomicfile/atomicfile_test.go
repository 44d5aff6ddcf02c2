package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite_CreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := Write(path, 0o644, false, func(f *os.File) error {
		_, err := f.Write([]byte("hello"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWrite_RefusesExistingWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := Write(path, 0o644, false, func(f *os.File) error {
		_, werr := f.Write([]byte("overwritten"))
		return werr
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestWrite_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := Write(path, 0o644, true, func(f *os.File) error {
		_, werr := f.Write([]byte("overwritten"))
		return werr
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "overwritten", string(data))
}

func TestWrite_FailureLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	writeErr := os.ErrClosed
	err := Write(path, 0o644, false, func(f *os.File) error {
		return writeErr
	})
	require.ErrorIs(t, err, writeErr)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be cleaned up on failure")
}
