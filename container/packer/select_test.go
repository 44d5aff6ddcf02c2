package packer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/woozymasta/pathrules"
)

func TestDiscoverInputs_NoRulesSelectsEverything(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "linux-x86_64"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "windows-x86_64.exe"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	inputs, err := DiscoverInputs(dir, nil, pathrules.MatcherOptions{})
	require.NoError(t, err)
	require.Len(t, inputs, 2)
}

func TestDiscoverInputs_ExcludeRuleFiltersTargets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "linux-x86_64"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "windows-x86_64.exe"), []byte("b"), 0o644))

	inputs, err := DiscoverInputs(dir, []pathrules.Rule{
		{Action: pathrules.ActionExclude, Pattern: "windows-*"},
	}, pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude})
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, "linux-x86_64", string(inputs[0].Target))
}
