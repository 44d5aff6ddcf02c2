// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package packer assembles a PBIN container: stub bytes, marker, fixed
// header, manifest, and concatenated compressed payload blobs, written
// atomically to an output path.
package packer

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/watchthelight/pbin/checksum"
	"github.com/watchthelight/pbin/compress"
	"github.com/watchthelight/pbin/header"
	"github.com/watchthelight/pbin/internal/atomicfile"
	"github.com/watchthelight/pbin/manifest"
	"github.com/watchthelight/pbin/stub"
	"github.com/watchthelight/pbin/target"
)

// Input describes one source binary destined for one target slot.
type Input struct {
	Target target.Id
	Path   string
}

// Options configures a Pack call.
type Options struct {
	Name       string
	Version    string
	Profile    compress.Profile
	Inputs     []Input
	Output     string
	Force      bool
	MaxWorkers int // zero means GOMAXPROCS
}

// Result reports what Pack wrote.
type Result struct {
	EntryCount   int
	PayloadBytes int64
	TotalBytes   int64
}

// Sentinel errors additive to header/manifest/compress/checksum/stub errors.
var (
	ErrNoInputs         = fmt.Errorf("packer: no inputs provided")
	ErrDuplicateTarget  = fmt.Errorf("packer: duplicate target")
	ErrUnknownTarget    = fmt.Errorf("packer: unknown target")
	ErrInputReadFailed  = fmt.Errorf("packer: input read failed")
	ErrCompressorFailed = fmt.Errorf("packer: compressor failure")
	ErrWriteFailed      = fmt.Errorf("packer: write failed")
)

// digestedInput holds one input's fully read, compressed, digested form.
type digestedInput struct {
	target           target.Id
	compressed       []byte
	compressedSize   uint64
	uncompressedSize uint64
	checksumHex      string
	kind             header.CompressionKind
}

// Pack runs the two-pass offset-resolution algorithm: read and compress
// every input concurrently (each entry is independent), generate the stub
// for the resulting target set, then serialize a manifest whose fixed-width
// zero-padded numeric fields let true offsets be substituted without
// changing manifest_size, and finally writes stub‖marker‖header‖manifest‖
// payloads to Options.Output atomically.
func Pack(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}

	seen := make(map[target.Id]struct{}, len(opts.Inputs))
	for _, in := range opts.Inputs {
		if !target.IsKnown(in.Target) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, in.Target)
		}
		if _, dup := seen[in.Target]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTarget, in.Target)
		}
		seen[in.Target] = struct{}{}
	}

	digested, err := digestAndCompressAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	sort.Slice(digested, func(i, j int) bool { return digested[i].target < digested[j].target })

	fileKind := digested[0].kind
	targets := make([]target.Id, len(digested))
	for i, d := range digested {
		targets[i] = d.target
	}

	stubBytes, err := stub.Generate(targets, fileKind)
	if err != nil {
		return nil, err
	}

	m := manifest.Manifest{
		Name:    opts.Name,
		Version: opts.Version,
		Entries: make([]manifest.Entry, len(digested)),
	}
	for i, d := range digested {
		m.Entries[i] = manifest.Entry{
			Target:           d.target,
			CompressedSize:   d.compressedSize,
			UncompressedSize: d.uncompressedSize,
			Checksum:         d.checksumHex,
		}
	}

	manifestSize := len(manifest.Encode(m))

	base := uint64(len(stubBytes) + len(stub.Marker) + header.Size + manifestSize)
	offset := base
	for i := range m.Entries {
		m.Entries[i].Offset = offset
		offset += m.Entries[i].CompressedSize
	}

	encodedManifest := manifest.Encode(m)
	if len(encodedManifest) != manifestSize {
		return nil, fmt.Errorf("%w: manifest size drifted after offset substitution (%d -> %d)",
			ErrWriteFailed, manifestSize, len(encodedManifest))
	}

	hdr := header.Header{
		Version:      header.CurrentVersion,
		Compression:  fileKind,
		EntryCount:   uint8(len(digested)),
		ManifestSize: uint32(manifestSize),
	}
	encodedHeader := header.Encode(hdr)

	var payloadBytes int64
	err = atomicfile.Write(opts.Output, 0o755, opts.Force, func(f *os.File) error {
		if _, werr := f.Write(stubBytes); werr != nil {
			return werr
		}
		if _, werr := f.Write([]byte(stub.Marker)); werr != nil {
			return werr
		}
		if _, werr := f.Write(encodedHeader[:]); werr != nil {
			return werr
		}
		if _, werr := f.Write(encodedManifest); werr != nil {
			return werr
		}
		for _, d := range digested {
			n, werr := f.Write(d.compressed)
			if werr != nil {
				return werr
			}
			payloadBytes += int64(n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return &Result{
		EntryCount:   len(digested),
		PayloadBytes: payloadBytes,
		TotalBytes:   int64(base) + payloadBytes,
	}, nil
}

// digestAndCompressAll reads, digests, and compresses every input. Each
// input is independent (§5 of the format spec permits parallel per-entry
// compression), so work fans out across a bounded worker pool; the strictly
// serial step is everything Pack does afterward (offset resolution, write).
func digestAndCompressAll(ctx context.Context, opts Options) ([]digestedInput, error) {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(opts.Inputs) {
		workers = len(opts.Inputs)
	}

	results := make([]digestedInput, len(opts.Inputs))
	errs := make([]error, len(opts.Inputs))

	taskCh := make(chan int, len(opts.Inputs))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				select {
				case <-ctx.Done():
					errs[i] = ctx.Err()
					continue
				default:
				}
				d, err := digestAndCompressOne(opts.Inputs[i], opts.Profile)
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = d
			}
		}()
	}

	for i := range opts.Inputs {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// digestAndCompressOne reads one input fully, computes its BLAKE3 digest
// over the uncompressed bytes, then compresses it under profile.
func digestAndCompressOne(in Input, profile compress.Profile) (digestedInput, error) {
	raw, err := os.ReadFile(in.Path)
	if err != nil {
		return digestedInput{}, fmt.Errorf("%w: %s: %w", ErrInputReadFailed, in.Path, err)
	}

	digest := checksum.Digest(raw)

	kind, compressed, err := compress.Compress(profile, raw)
	if err != nil {
		return digestedInput{}, fmt.Errorf("%w: %s: %w", ErrCompressorFailed, in.Path, err)
	}

	return digestedInput{
		target:           in.Target,
		compressed:       compressed,
		compressedSize:   uint64(len(compressed)),
		uncompressedSize: uint64(len(raw)),
		checksumHex:      checksum.Hex(digest),
		kind:             kind,
	}, nil
}
