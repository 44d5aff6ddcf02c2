package header

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	h := Header{
		Version:      CurrentVersion,
		Compression:  CompressionZstd,
		EntryCount:   3,
		ManifestSize: 512,
	}

	encoded := Encode(h)
	require.Len(t, encoded, Size)

	decoded, err := Decode(encoded[:])
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestDecode_Errors(t *testing.T) {
	valid := Encode(Header{Version: CurrentVersion, Compression: CompressionNone, EntryCount: 1, ManifestSize: 10})

	t.Run("ShortHeader", func(t *testing.T) {
		_, err := Decode(valid[:32])
		require.ErrorIs(t, err, ErrShortHeader)
	})

	t.Run("BadMagic", func(t *testing.T) {
		corrupt := valid
		corrupt[0] = 'X'
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		corrupt := Encode(Header{Version: 2, Compression: CompressionNone, EntryCount: 1})
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("InvalidCompressionTag", func(t *testing.T) {
		corrupt := valid
		corrupt[6] = 9
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrInvalidCompressionTag)
	})

	t.Run("EntryCountOutOfRange", func(t *testing.T) {
		corrupt := valid
		corrupt[7] = 0
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrEntryCountOutOfRange)
	})

	t.Run("NonZeroReservedByte", func(t *testing.T) {
		corrupt := valid
		corrupt[20] = 1
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrNonZeroReserved)
	})

	t.Run("NonZeroFlags", func(t *testing.T) {
		corrupt := valid
		corrupt[12] = 1
		_, err := Decode(corrupt[:])
		require.ErrorIs(t, err, ErrNonZeroReserved)
	})
}

func TestCompressionKind_String(t *testing.T) {
	require.Equal(t, "none", CompressionNone.String())
	require.Equal(t, "zstd", CompressionZstd.String())
	require.Equal(t, "lz4", CompressionLz4.String())
	require.Contains(t, CompressionKind(9).String(), "unknown")
}
