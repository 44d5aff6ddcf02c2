package hostdetect

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchthelight/pbin/target"
)

func TestRuntime_Detect_MatchesHostRegistry(t *testing.T) {
	id, ok := Runtime{}.Detect()

	switch runtime.GOOS {
	case "linux", "darwin", "windows", "freebsd", "netbsd", "openbsd":
		require.True(t, ok, "expected %s/%s to resolve to a known target", runtime.GOOS, runtime.GOARCH)
		require.True(t, target.IsKnown(id))
	default:
		// Test host platforms outside the registry's OS set are allowed to
		// report no match; this keeps the test honest on CI runners such as
		// js/wasm build environments without special-casing them here.
		t.Logf("host os %q not covered by the closed registry: ok=%v id=%q", runtime.GOOS, ok, id)
	}
}

func TestRuntime_Detect_MuslHintForced(t *testing.T) {
	if runtime.GOOS != "linux" || (runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64") {
		t.Skip("musl hint only resolves to a distinct target on linux/amd64 or linux/arm64")
	}

	id, ok := Runtime{MuslHint: true}.Detect()
	require.True(t, ok)
	require.Contains(t, string(id), "-musl")
}
