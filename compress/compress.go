// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package compress implements the PBIN compression pipeline: packer-facing
// Profiles (None/Fast/Balanced/Maximum) that select an algorithm and level,
// and the header.CompressionKind-driven decoder every unpacker uses at
// extraction time.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/watchthelight/pbin/header"
)

// Profile is the packer-facing compression preset. It is never serialized;
// the packer collapses it to a header.CompressionKind before writing.
type Profile string

// Defined packer compression profiles.
const (
	ProfileNone     Profile = "none"
	ProfileFast     Profile = "fast"
	ProfileBalanced Profile = "balanced"
	ProfileMaximum  Profile = "maximum"
)

// Sentinel pipeline errors.
var (
	ErrCompressorFailure   = errors.New("compress: compressor failure")
	ErrDecompressorFailure = errors.New("compress: decompressor failure")
	ErrSizeMismatch        = errors.New("compress: decompressed size mismatch")
	ErrUnknownProfile      = errors.New("compress: unknown profile")
	ErrUnsupportedKind     = errors.New("compress: unsupported compression kind for decode")
)

// zstdEncoderPools (one pool per level) and zstdDecoderPool reuse warmed-up zstd codecs between
// calls, the same pattern the corpus's time-series compressor uses for its
// hot path.
var (
	zstdEncoderPools = map[zstd.EncoderLevel]*sync.Pool{}
	zstdEncoderMu    sync.Mutex

	zstdDecoderPool = sync.Pool{
		New: func() any {
			dec, err := zstd.NewReader(nil,
				zstd.WithDecoderConcurrency(1),
				zstd.WithDecoderLowmem(false),
			)
			if err != nil {
				panic(fmt.Sprintf("compress: failed to build pooled zstd decoder: %v", err))
			}
			return dec
		},
	}
)

func zstdEncoderPoolFor(level zstd.EncoderLevel) *sync.Pool {
	zstdEncoderMu.Lock()
	defer zstdEncoderMu.Unlock()

	if p, ok := zstdEncoderPools[level]; ok {
		return p
	}

	p := &sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(level),
				zstd.WithEncoderCRC(false),
			)
			if err != nil {
				panic(fmt.Sprintf("compress: failed to build pooled zstd encoder: %v", err))
			}
			return enc
		},
	}
	zstdEncoderPools[level] = p
	return p
}

// levelFor maps a Profile to a zstd level (3, 11, 19) and resolves it to the
// nearest preset the pure-Go encoder offers; levels 11 and 19 both resolve
// to SpeedBestCompression.
func levelFor(p Profile) (zstd.EncoderLevel, error) {
	switch p {
	case ProfileFast:
		return zstd.EncoderLevelFromZstd(3), nil
	case ProfileBalanced:
		return zstd.EncoderLevelFromZstd(11), nil
	case ProfileMaximum:
		return zstd.EncoderLevelFromZstd(19), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, p)
	}
}

// Compress compresses input under profile and returns the on-disk kind tag
// alongside the produced bytes. ProfileNone returns the input unchanged.
func Compress(profile Profile, input []byte) (header.CompressionKind, []byte, error) {
	if profile == ProfileNone {
		return header.CompressionNone, input, nil
	}

	level, err := levelFor(profile)
	if err != nil {
		return 0, nil, err
	}

	pool := zstdEncoderPoolFor(level)
	enc := pool.Get().(*zstd.Encoder) //nolint:forcetypeassert // pool holds only *zstd.Encoder
	defer pool.Put(enc)

	out := enc.EncodeAll(input, make([]byte, 0, len(input)))
	return header.CompressionZstd, out, nil
}

// Decompress inflates input, previously compressed under kind, and verifies
// the produced length matches expectedUncompressedSize exactly.
func Decompress(kind header.CompressionKind, input []byte, expectedUncompressedSize int64) ([]byte, error) {
	var out []byte

	switch kind {
	case header.CompressionNone:
		out = input
	case header.CompressionZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder) //nolint:forcetypeassert // pool holds only *zstd.Decoder
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(input, make([]byte, 0, expectedUncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompressorFailure, err)
		}
		out = decoded
	case header.CompressionLz4:
		decoded, err := decompressLz4(input, expectedUncompressedSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecompressorFailure, err)
		}
		out = decoded
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnsupportedKind, kind)
	}

	if int64(len(out)) != expectedUncompressedSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(out), expectedUncompressedSize)
	}

	return out, nil
}

// decompressLz4 decodes an LZ4 block into a buffer of exactly expectedSize
// bytes (the buffer is not grown), grounded on the corpus's block-level
// decompressor (no LZ4 encoder is wired; per
// the format spec the tag is decode-only for forward compatibility).
func decompressLz4(data []byte, expectedSize int64) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if expectedSize <= 0 || expectedSize > 1<<32 {
		return nil, fmt.Errorf("lz4: implausible expected size %d", expectedSize)
	}

	dst := make([]byte, expectedSize)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}
