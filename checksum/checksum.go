// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package checksum computes and verifies the BLAKE3-256 digests recorded in
// the PBIN manifest.
package checksum

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes (BLAKE3-256).
const Size = 32

// HexLen is the digest length as lowercase hex (manifest's "checksum" field).
const HexLen = Size * 2

// ErrBadHexFormat means a manifest checksum string is not HexLen lowercase
// hex characters.
var ErrBadHexFormat = errors.New("checksum: malformed hex digest")

// ErrMismatch means a verified digest did not match the expected value.
var ErrMismatch = errors.New("checksum: digest mismatch")

// Digest returns the BLAKE3-256 digest of data.
func Digest(data []byte) [Size]byte {
	return blake3.Sum256(data)
}

// DigestReader streams r through BLAKE3-256 without buffering it whole.
func DigestReader(r io.Reader) ([Size]byte, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return [Size]byte{}, fmt.Errorf("checksum: hash stream: %w", err)
	}

	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Hex lowercases and hex-encodes a digest for the manifest's "checksum" field.
func Hex(digest [Size]byte) string {
	return hex.EncodeToString(digest[:])
}

// ParseHex decodes a manifest "checksum" field into raw digest bytes.
func ParseHex(s string) ([Size]byte, error) {
	var out [Size]byte

	if len(s) != HexLen {
		return out, fmt.Errorf("%w: length %d, want %d", ErrBadHexFormat, len(s), HexLen)
	}

	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'F' {
			return out, fmt.Errorf("%w: uppercase hex at index %d", ErrBadHexFormat, i)
		}
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrBadHexFormat, err)
	}

	copy(out[:], decoded)
	return out, nil
}

// Verify reports whether data's BLAKE3-256 digest equals the lowercase hex
// digest hexDigest, comparing digest bytes in constant time.
func Verify(data []byte, hexDigest string) error {
	want, err := ParseHex(hexDigest)
	if err != nil {
		return err
	}

	got := Digest(data)
	if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
		return fmt.Errorf("%w: got %s, want %s", ErrMismatch, Hex(got), hexDigest)
	}

	return nil
}
