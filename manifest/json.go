// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawEntry mirrors one manifest entry's wire shape. Numeric fields are
// decoded as strings because Encode emits them as fixed-width zero-padded
// decimal strings, not JSON numbers (see offsetFieldWidth).
type rawEntry struct {
	Target           string `json:"target"`
	Offset           string `json:"offset"`
	CompressedSize   string `json:"compressed_size"`
	UncompressedSize string `json:"uncompressed_size"`
	Checksum         string `json:"checksum"`
}

// rawDoc mirrors the manifest's top-level wire shape. Name/Version are
// pointers so a missing key (as opposed to an empty string) is detectable.
type rawDoc struct {
	Name    *string    `json:"name"`
	Version *string    `json:"version"`
	Entries []rawEntry `json:"entries"`
}

// rawManifest is the validated, dereferenced top-level shape Decode works
// with after parseRawManifest confirms required fields are present.
type rawManifest struct {
	Name    string
	Version string
	Entries []rawEntry
}

// parseRawManifest unmarshals data and checks for required top-level fields
// before Decode moves on to per-entry validation.
func parseRawManifest(data []byte) (rawManifest, error) {
	var doc rawDoc

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return rawManifest{}, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	if doc.Name == nil {
		return rawManifest{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if doc.Version == nil {
		return rawManifest{}, fmt.Errorf("%w: version", ErrMissingField)
	}
	if doc.Entries == nil {
		return rawManifest{}, fmt.Errorf("%w: entries", ErrMissingField)
	}

	return rawManifest{Name: *doc.Name, Version: *doc.Version, Entries: doc.Entries}, nil
}
