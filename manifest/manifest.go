// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package manifest encodes and decodes the JSON manifest document that
// follows the fixed header in a PBIN container.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/watchthelight/pbin/checksum"
	"github.com/watchthelight/pbin/target"
)

// offsetFieldWidth is the fixed decimal width every numeric entry field is
// zero-padded to. Padding every offset/size field to a known width makes a
// single serialization pass produce a stable manifest_size, avoiding the
// iterate-until-fixed-point alternative the format spec also allows.
const offsetFieldWidth = 20

// Entry describes one embedded binary for one target.Id.
type Entry struct {
	Target           target.Id
	Offset           uint64
	CompressedSize   uint64
	UncompressedSize uint64
	Checksum         string // lowercase hex, 64 chars (BLAKE3-256)
}

// Manifest is the UTF-8 JSON document recorded after the fixed header.
type Manifest struct {
	Name    string
	Version string
	Entries []Entry
}

// Sentinel validation errors, additive to checksum.ErrBadHexFormat.
var (
	ErrMalformedJSON        = errors.New("manifest: malformed json")
	ErrMissingField         = errors.New("manifest: missing field")
	ErrWrongType            = errors.New("manifest: wrong field type")
	ErrUnknownTarget        = errors.New("manifest: unknown target")
	ErrDuplicateTarget      = errors.New("manifest: duplicate target")
	ErrBadChecksumFormat    = errors.New("manifest: bad checksum format")
	ErrNonContiguousOffsets = errors.New("manifest: non-contiguous offsets")
	ErrSizeMismatch         = errors.New("manifest: compressed/uncompressed size mismatch")
)

// padded renders n as a fixed-width, zero-padded decimal string.
func padded(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) >= offsetFieldWidth {
		return s
	}

	pad := make([]byte, offsetFieldWidth-len(s))
	for i := range pad {
		pad[i] = '0'
	}

	return string(pad) + s
}

// jsonString escapes s as a JSON string literal (manifest fields are plain
// names/versions/targets/hex digests; the escaper only needs to cover quote
// and backslash to stay correct for that domain, but also escapes control
// characters defensively).
func jsonString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c < 0x20:
			fmt.Fprintf(buf, `\u%04x`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

// Encode serializes m as compact, deterministic UTF-8 JSON with no trailing
// newline and the key order fixed by the format spec: name, version,
// entries; inside each entry: target, offset, compressed_size,
// uncompressed_size, checksum. Numeric fields are fixed-width zero-padded
// decimal strings so Offset fields can legally be computed after a single
// serialization pass (see the packer's two-pass offset resolution).
func Encode(m Manifest) []byte {
	var buf bytes.Buffer

	buf.WriteByte('{')
	buf.WriteString(`"name":`)
	jsonString(&buf, m.Name)
	buf.WriteString(`,"version":`)
	jsonString(&buf, m.Version)
	buf.WriteString(`,"entries":[`)

	for i, e := range m.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		buf.WriteString(`"target":`)
		jsonString(&buf, string(e.Target))
		fmt.Fprintf(&buf, `,"offset":%q,"compressed_size":%q,"uncompressed_size":%q`,
			padded(e.Offset), padded(e.CompressedSize), padded(e.UncompressedSize))
		buf.WriteString(`,"checksum":`)
		jsonString(&buf, e.Checksum)
		buf.WriteByte('}')
	}

	buf.WriteString(`]}`)

	return buf.Bytes()
}

// Decode parses and validates a manifest document: offsets are contiguous
// in entry order, targets are known and distinct, and checksums are well
// formed. It does not compare compressed and uncompressed sizes; that
// invariant depends on the header's compression tag and is checked by
// ValidateForKind.
func Decode(data []byte) (Manifest, error) {
	raw, err := parseRawManifest(data)
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{Name: raw.Name, Version: raw.Version}
	m.Entries = make([]Entry, 0, len(raw.Entries))

	seen := make(map[target.Id]struct{}, len(raw.Entries))
	var prevEnd uint64

	for i, re := range raw.Entries {
		tid := target.Id(re.Target)
		if !target.IsKnown(tid) {
			return Manifest{}, fmt.Errorf("%w: entry %d: %q", ErrUnknownTarget, i, re.Target)
		}
		if _, dup := seen[tid]; dup {
			return Manifest{}, fmt.Errorf("%w: %q", ErrDuplicateTarget, tid)
		}
		seen[tid] = struct{}{}

		offset, err := parseUintField(re.Offset, "offset", i)
		if err != nil {
			return Manifest{}, err
		}
		compressedSize, err := parseUintField(re.CompressedSize, "compressed_size", i)
		if err != nil {
			return Manifest{}, err
		}
		uncompressedSize, err := parseUintField(re.UncompressedSize, "uncompressed_size", i)
		if err != nil {
			return Manifest{}, err
		}

		if len(re.Checksum) != checksum.HexLen {
			return Manifest{}, fmt.Errorf("%w: entry %d", ErrBadChecksumFormat, i)
		}
		if _, err := checksum.ParseHex(re.Checksum); err != nil {
			return Manifest{}, fmt.Errorf("%w: entry %d: %w", ErrBadChecksumFormat, i, err)
		}

		if i > 0 && offset != prevEnd {
			return Manifest{}, fmt.Errorf("%w: entry %d starts at %d, want %d", ErrNonContiguousOffsets, i, offset, prevEnd)
		}
		prevEnd = offset + compressedSize

		m.Entries = append(m.Entries, Entry{
			Target:           tid,
			Offset:           offset,
			CompressedSize:   compressedSize,
			UncompressedSize: uncompressedSize,
			Checksum:         re.Checksum,
		})
	}

	return m, nil
}

// ValidateForKind enforces the cross-cutting invariant that is not visible
// to Decode alone: when the file-wide compression kind is None (0), every
// entry's CompressedSize must equal its UncompressedSize (the payload is
// stored literally). kind mirrors header.CompressionKind's numeric tag.
func ValidateForKind(m Manifest, kind uint8) error {
	const compressionNone = 0
	if kind != compressionNone {
		return nil
	}

	for i, e := range m.Entries {
		if e.CompressedSize != e.UncompressedSize {
			return fmt.Errorf("%w: entry %d compressed_size %d != uncompressed_size %d under CompressionNone",
				ErrSizeMismatch, i, e.CompressedSize, e.UncompressedSize)
		}
	}

	return nil
}

// parseUintField converts a manifest numeric string field (which may be
// zero-padded) to uint64, reporting which entry/field failed.
func parseUintField(s, field string, entryIndex int) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: entry %d: %s", ErrMissingField, entryIndex, field)
	}

	n, err := strconv.ParseUint(trimLeadingZeros(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: entry %d: %s: %w", ErrWrongType, entryIndex, field, err)
	}

	return n, nil
}

// trimLeadingZeros strips zero-padding added by Encode so ParseUint doesn't
// choke on e.g. "00000000000000000042" (it wouldn't, decimal ParseUint
// tolerates leading zeros, but an all-zero string must resolve to "0").
func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
