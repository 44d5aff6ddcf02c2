// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package unpacker provides read-only access to a parsed PBIN container:
// locating the marker, reading the header and manifest, and extracting
// individual entries with BLAKE3 verification.
package unpacker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/watchthelight/pbin/checksum"
	"github.com/watchthelight/pbin/compress"
	"github.com/watchthelight/pbin/header"
	"github.com/watchthelight/pbin/manifest"
	"github.com/watchthelight/pbin/stub"
	"github.com/watchthelight/pbin/target"
)

// Sentinel errors additive to header/manifest/checksum/compress errors.
var (
	ErrMarkerNotFound  = errors.New("unpacker: marker not found")
	ErrTruncatedInput  = errors.New("unpacker: truncated input")
	ErrIntegrityFailed = errors.New("unpacker: integrity check failed")
	ErrNilReader       = errors.New("unpacker: reader is nil")
	ErrEntryNotFound   = errors.New("unpacker: entry not found")
	ErrClosed          = errors.New("unpacker: already closed")
)

// Reader gives read-only access to one parsed PBIN container.
type Reader struct {
	ra       io.ReaderAt
	file     *os.File
	size     int64
	header   header.Header
	manifest manifest.Manifest
	dataBase int64 // absolute offset where entry offsets in the manifest are measured from
	closed   bool
}

// Open opens the PBIN file at path and parses its header and manifest.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unpacker: open: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("unpacker: stat: %w", err)
	}

	r, err := NewReaderFromReaderAt(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f

	return r, nil
}

// NewReaderFromReaderAt parses a PBIN container from an arbitrary
// io.ReaderAt of the given total size, without taking ownership of any
// underlying *os.File.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	markerEnd, err := locateMarker(ra, size)
	if err != nil {
		return nil, err
	}

	if markerEnd+int64(header.Size) > size {
		return nil, fmt.Errorf("%w: header runs past end of file", ErrTruncatedInput)
	}

	hdrBuf := make([]byte, header.Size)
	if _, err := ra.ReadAt(hdrBuf, markerEnd); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrTruncatedInput, err)
	}

	hdr, err := header.Decode(hdrBuf)
	if err != nil {
		return nil, err
	}

	manifestOff := markerEnd + int64(header.Size)
	if manifestOff+int64(hdr.ManifestSize) > size {
		return nil, fmt.Errorf("%w: manifest runs past end of file", ErrTruncatedInput)
	}

	manifestBuf := make([]byte, hdr.ManifestSize)
	if _, err := ra.ReadAt(manifestBuf, manifestOff); err != nil {
		return nil, fmt.Errorf("%w: reading manifest: %w", ErrTruncatedInput, err)
	}

	m, err := manifest.Decode(manifestBuf)
	if err != nil {
		return nil, err
	}
	if err := manifest.ValidateForKind(m, uint8(hdr.Compression)); err != nil {
		return nil, err
	}
	if len(m.Entries) != int(hdr.EntryCount) {
		return nil, fmt.Errorf("%w: header entry_count %d does not match manifest entries %d",
			ErrTruncatedInput, hdr.EntryCount, len(m.Entries))
	}

	return &Reader{
		ra:       ra,
		size:     size,
		header:   hdr,
		manifest: m,
		dataBase: 0,
	}, nil
}

// locateMarker finds the last occurrence of the marker, per the format
// spec's defensive "last, not first" rule (a stub's shell/batch prose may
// legitimately echo the marker bytes in a comment or error string).
func locateMarker(ra io.ReaderAt, size int64) (int64, error) {
	if size < int64(len(stub.Marker)) {
		return 0, fmt.Errorf("%w: file too small to contain marker", ErrTruncatedInput)
	}

	buf := make([]byte, size)
	if _, err := ra.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %w", ErrTruncatedInput, err)
	}

	idx := bytes.LastIndex(buf, []byte(stub.Marker))
	if idx < 0 {
		return 0, ErrMarkerNotFound
	}

	return int64(idx + len(stub.Marker)), nil
}

// Header returns the decoded fixed header.
func (r *Reader) Header() header.Header {
	return r.header
}

// Manifest returns the decoded manifest metadata without materializing any
// payload (the format spec's inspect() operation).
func (r *Reader) Manifest() manifest.Manifest {
	return r.manifest
}

// Entry looks up one manifest entry by target.
func (r *Reader) Entry(id target.Id) (manifest.Entry, error) {
	for _, e := range r.manifest.Entries {
		if e.Target == id {
			return e, nil
		}
	}
	return manifest.Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, id)
}

// Slice returns the raw, still-compressed byte range for one entry.
func (r *Reader) Slice(e manifest.Entry) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	start := r.dataBase + int64(e.Offset)
	end := start + int64(e.CompressedSize)
	if end > r.size {
		return nil, fmt.Errorf("%w: entry %q slice runs past end of file", ErrTruncatedInput, e.Target)
	}

	buf := make([]byte, e.CompressedSize)
	if _, err := r.ra.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("%w: reading entry %q: %w", ErrTruncatedInput, e.Target, err)
	}

	return buf, nil
}

// Extract decompresses the entry identified by id into sink, verifying its
// BLAKE3 digest against the manifest's recorded checksum before returning.
func (r *Reader) Extract(id target.Id, sink io.Writer) error {
	e, err := r.Entry(id)
	if err != nil {
		return err
	}

	raw, err := r.Slice(e)
	if err != nil {
		return err
	}

	plain, err := compress.Decompress(r.header.Compression, raw, int64(e.UncompressedSize))
	if err != nil {
		return err
	}

	digest := checksum.Digest(plain)
	if err := checksum.Verify(plain, e.Checksum); err != nil {
		return fmt.Errorf("%w: entry %q: got %s, want %s: %w",
			ErrIntegrityFailed, e.Target, checksum.Hex(digest), e.Checksum, err)
	}

	if _, err := sink.Write(plain); err != nil {
		return fmt.Errorf("unpacker: write extracted payload: %w", err)
	}

	return nil
}

// VerifyAll decompresses and checksum-verifies every entry without writing
// any payload to disk (the format spec's `verify` unpacker subcommand).
func (r *Reader) VerifyAll() error {
	for _, e := range r.manifest.Entries {
		if err := r.Extract(e.Target, io.Discard); err != nil {
			return err
		}
	}
	return nil
}

// Close releases any *os.File this Reader owns. Safe to call more than
// once and safe to call on a Reader built from NewReaderFromReaderAt (where
// it is a no-op beyond marking closed).
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
