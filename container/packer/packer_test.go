package packer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchthelight/pbin/compress"
	"github.com/watchthelight/pbin/target"
)

func writeTempInput(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestPack_RejectsEmptyInputs(t *testing.T) {
	_, err := Pack(context.Background(), Options{Name: "demo", Output: filepath.Join(t.TempDir(), "out.bin")})
	require.ErrorIs(t, err, ErrNoInputs)
}

func TestPack_RejectsUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeTempInput(t, dir, "bin", []byte("payload"))

	_, err := Pack(context.Background(), Options{
		Name:   "demo",
		Output: filepath.Join(dir, "out.bin"),
		Inputs: []Input{{Target: "plan9-x86_64", Path: path}},
	})
	require.ErrorIs(t, err, ErrUnknownTarget)
}

func TestPack_RejectsDuplicateTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeTempInput(t, dir, "bin", []byte("payload"))

	_, err := Pack(context.Background(), Options{
		Name:   "demo",
		Output: filepath.Join(dir, "out.bin"),
		Inputs: []Input{
			{Target: "linux-x86_64", Path: path},
			{Target: "linux-x86_64", Path: path},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestPack_RefusesExistingOutputWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := writeTempInput(t, dir, "bin", []byte("payload"))
	out := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(out, []byte("preexisting"), 0o644))

	_, err := Pack(context.Background(), Options{
		Name:   "demo",
		Output: out,
		Inputs: []Input{{Target: "linux-x86_64", Path: path}},
		Force:  false,
	})
	require.Error(t, err)
}

func TestPack_ProducesExecutableOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeTempInput(t, dir, "bin", []byte("a small fake binary payload"))
	out := filepath.Join(dir, "out.bin")

	result, err := Pack(context.Background(), Options{
		Name:    "demo",
		Version: "1.0.0",
		Profile: compress.ProfileBalanced,
		Output:  out,
		Inputs:  []Input{{Target: target.Id("linux-x86_64"), Path: path}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.EntryCount)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o111, "packed output must be executable")
}
