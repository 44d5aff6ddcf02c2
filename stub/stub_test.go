package stub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchthelight/pbin/header"
	"github.com/watchthelight/pbin/target"
)

func TestGenerate_Deterministic(t *testing.T) {
	targets := []target.Id{"linux-x86_64", "darwin-aarch64", "windows-x86_64"}

	a, err := Generate(targets, header.CompressionZstd)
	require.NoError(t, err)

	// Reverse the input order; output must be byte-identical since Generate
	// sorts internally.
	reversed := []target.Id{"windows-x86_64", "darwin-aarch64", "linux-x86_64"}
	b, err := Generate(reversed, header.CompressionZstd)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestGenerate_FullRegistryUnderBudget(t *testing.T) {
	out, err := Generate(target.All(), header.CompressionZstd)
	require.NoError(t, err)
	require.Less(t, len(out), MaxLen)
}

func TestGenerate_EmptyTargets(t *testing.T) {
	_, err := Generate(nil, header.CompressionNone)
	require.Error(t, err)
}

func TestGenerate_UnknownTarget(t *testing.T) {
	_, err := Generate([]target.Id{"plan9-x86_64"}, header.CompressionNone)
	require.Error(t, err)
}

func TestGenerate_ShebangAndBatchMarkers(t *testing.T) {
	out, err := Generate([]target.Id{"linux-x86_64"}, header.CompressionNone)
	require.NoError(t, err)

	s := string(out)
	require.Contains(t, s, "#!/bin/sh\n")
	require.Contains(t, s, "@echo off\r\n")
	require.Contains(t, s, Marker)
	require.Contains(t, s, "goto :EOF")
}

func TestGenerate_NoDecompressLineForNone(t *testing.T) {
	out, err := Generate([]target.Id{"linux-x86_64"}, header.CompressionNone)
	require.NoError(t, err)
	require.NotContains(t, string(out), "zstd -d")
	require.NotContains(t, string(out), "lz4 -d")
}

func TestGenerate_Lz4DecompressLine(t *testing.T) {
	out, err := Generate([]target.Id{"linux-x86_64"}, header.CompressionLz4)
	require.NoError(t, err)
	require.Contains(t, string(out), "lz4 -d")
}
