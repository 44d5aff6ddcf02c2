package checksum

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigest_DeterministicAndDistinct(t *testing.T) {
	a := Digest([]byte("hello"))
	b := Digest([]byte("hello"))
	c := Digest([]byte("world"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestDigestReader_MatchesDigest(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	want := Digest(data)
	got, err := DigestReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHexParseHex_RoundTrip(t *testing.T) {
	digest := Digest([]byte("payload"))
	hexDigest := Hex(digest)
	require.Len(t, hexDigest, HexLen)

	parsed, err := ParseHex(hexDigest)
	require.NoError(t, err)
	require.Equal(t, digest, parsed)
}

func TestParseHex_BadFormat(t *testing.T) {
	t.Run("WrongLength", func(t *testing.T) {
		_, err := ParseHex("deadbeef")
		require.ErrorIs(t, err, ErrBadHexFormat)
	})

	t.Run("NotHex", func(t *testing.T) {
		_, err := ParseHex(string(make([]byte, HexLen)))
		require.ErrorIs(t, err, ErrBadHexFormat)
	})
}

func TestVerify(t *testing.T) {
	data := []byte("verify me")
	hexDigest := Hex(Digest(data))

	t.Run("Match", func(t *testing.T) {
		require.NoError(t, Verify(data, hexDigest))
	})

	t.Run("Mismatch", func(t *testing.T) {
		err := Verify([]byte("tampered"), hexDigest)
		require.ErrorIs(t, err, ErrMismatch)
	})
}
