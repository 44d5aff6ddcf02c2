// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package atomicfile writes a file's full contents to a temp file in the
// destination directory, then renames it into place, so a crash or
// interrupted write never leaves a partially written PBIN at the
// destination path (grounded on the teacher's write-then-rename PackFile
// flow, made genuinely atomic here via os.Rename).
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write calls fn with a *os.File positioned at offset 0 in a temp file
// sitting next to path, then renames that temp file onto path on success.
// mode sets the final file's permission bits (applied via os.Chmod before
// rename, since O_CREATE respects umask). On any failure the temp file is
// removed and path is left untouched.
func Write(path string, mode os.FileMode, force bool, fn func(f *os.File) error) (err error) {
	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("atomicfile: %s already exists (force not set)", path)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pbin-*.tmp")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if ferr := fn(tmp); ferr != nil {
		return fmt.Errorf("atomicfile: write: %w", ferr)
	}

	if serr := tmp.Sync(); serr != nil {
		return fmt.Errorf("atomicfile: sync: %w", serr)
	}

	if cerr := tmp.Chmod(mode); cerr != nil {
		return fmt.Errorf("atomicfile: chmod: %w", cerr)
	}

	if cerr := tmp.Close(); cerr != nil {
		return fmt.Errorf("atomicfile: close: %w", cerr)
	}

	if rerr := os.Rename(tmpPath, path); rerr != nil {
		return fmt.Errorf("atomicfile: rename into place: %w", rerr)
	}

	return nil
}
