// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package header encodes and decodes the fixed 64-byte PBIN header record
// that immediately follows the payload marker.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the on-disk byte length of a Header record.
const Size = 64

// CurrentVersion is the only header version this package accepts.
const CurrentVersion uint16 = 1

// magic is the literal ASCII header tag.
var magic = [4]byte{'P', 'B', 'I', 'N'}

// CompressionKind is the on-disk, file-wide compression algorithm tag.
type CompressionKind uint8

// Defined compression kinds.
const (
	CompressionNone CompressionKind = 0
	CompressionZstd CompressionKind = 1
	CompressionLz4  CompressionKind = 2
)

// String implements fmt.Stringer.
func (k CompressionKind) String() string {
	switch k {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLz4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Header is the fixed 64-byte record described in the format spec.
type Header struct {
	Version      uint16
	Compression  CompressionKind
	EntryCount   uint8
	ManifestSize uint32
	Flags        uint32
}

// Sentinel decode errors.
var (
	ErrBadMagic              = errors.New("pbin: bad header magic")
	ErrUnsupportedVersion    = errors.New("pbin: unsupported header version")
	ErrNonZeroReserved       = errors.New("pbin: header reserved bytes are not zero")
	ErrInvalidCompressionTag = errors.New("pbin: invalid compression tag")
	ErrEntryCountOutOfRange  = errors.New("pbin: entry_count out of range")
	ErrShortHeader           = errors.New("pbin: header shorter than 64 bytes")
)

// Encode serializes h into a 64-byte little-endian record.
func Encode(h Header) [Size]byte {
	var out [Size]byte

	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint16(out[4:6], h.Version)
	out[6] = byte(h.Compression)
	out[7] = h.EntryCount
	binary.LittleEndian.PutUint32(out[8:12], h.ManifestSize)
	binary.LittleEndian.PutUint32(out[12:16], h.Flags)
	// out[16:64] (reserved) is left zero by the zero-value array.

	return out
}

// Decode parses a 64-byte record into a Header, validating every invariant
// from the format spec (magic, version, reserved bytes, compression tag,
// entry_count range).
func Decode(raw []byte) (Header, error) {
	var h Header

	if len(raw) < Size {
		return h, ErrShortHeader
	}

	if raw[0] != magic[0] || raw[1] != magic[1] || raw[2] != magic[2] || raw[3] != magic[3] {
		return h, ErrBadMagic
	}

	version := binary.LittleEndian.Uint16(raw[4:6])
	if version != CurrentVersion {
		return h, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, CurrentVersion)
	}

	compression := CompressionKind(raw[6])
	if compression != CompressionNone && compression != CompressionZstd && compression != CompressionLz4 {
		return h, fmt.Errorf("%w: got %d", ErrInvalidCompressionTag, compression)
	}

	entryCount := raw[7]
	if entryCount == 0 {
		return h, fmt.Errorf("%w: got %d", ErrEntryCountOutOfRange, entryCount)
	}

	for _, b := range raw[16:Size] {
		if b != 0 {
			return h, ErrNonZeroReserved
		}
	}

	flags := binary.LittleEndian.Uint32(raw[12:16])
	if flags != 0 {
		return h, fmt.Errorf("%w: flags must be 0, got %d", ErrNonZeroReserved, flags)
	}

	h.Version = version
	h.Compression = compression
	h.EntryCount = entryCount
	h.ManifestSize = binary.LittleEndian.Uint32(raw[8:12])
	h.Flags = flags

	return h, nil
}
