// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Command pbinunpack inspects, extracts from, and verifies PBIN containers.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/watchthelight/pbin/container/unpacker"
	"github.com/watchthelight/pbin/target"
)

var log = logrus.New()

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	switch args[0] {
	case "inspect":
		return runInspect(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "verify":
		return runVerify(args[1:])
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pbinunpack <inspect|extract|verify> <file> [options]")
}

// manifestEntryJSON is the stdout shape for `inspect`; it mirrors the wire
// manifest's entry fields but renders sizes/offsets as JSON numbers instead
// of the on-disk fixed-width decimal strings, since this is a CLI-facing
// convenience view, not a re-serialization of the wire manifest.
type manifestEntryJSON struct {
	Target           string `json:"target"`
	Offset           uint64 `json:"offset"`
	CompressedSize   uint64 `json:"compressed_size"`
	UncompressedSize uint64 `json:"uncompressed_size"`
	Checksum         string `json:"checksum"`
}

type manifestJSON struct {
	Name    string              `json:"name"`
	Version string              `json:"version"`
	Entries []manifestEntryJSON `json:"entries"`
}

func runInspect(args []string) int {
	fs := pflag.NewFlagSet("pbinunpack inspect", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pbinunpack inspect <file>")
		return 2
	}

	r, err := unpacker.Open(fs.Arg(0))
	if err != nil {
		log.WithError(err).Error("inspect failed")
		return 1
	}
	defer r.Close()

	m := r.Manifest()
	out := manifestJSON{Name: m.Name, Version: m.Version}
	for _, e := range m.Entries {
		out.Entries = append(out.Entries, manifestEntryJSON{
			Target:           string(e.Target),
			Offset:           e.Offset,
			CompressedSize:   e.CompressedSize,
			UncompressedSize: e.UncompressedSize,
			Checksum:         e.Checksum,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.WithError(err).Error("encode manifest")
		return 1
	}

	return 0
}

func runExtract(args []string) int {
	fs := pflag.NewFlagSet("pbinunpack extract", pflag.ContinueOnError)
	targetID := fs.String("target", "", "target id to extract (required)")
	output := fs.String("output", "", "output file path (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *targetID == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: pbinunpack extract <file> --target <id> --output <path>")
		return 2
	}

	r, err := unpacker.Open(fs.Arg(0))
	if err != nil {
		log.WithError(err).Error("extract failed")
		return 1
	}
	defer r.Close()

	f, err := os.OpenFile(*output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		log.WithError(err).Error("open output file")
		return 1
	}
	defer f.Close()

	if err := r.Extract(target.Id(*targetID), f); err != nil {
		log.WithError(err).Error("extract failed")
		return 1
	}

	log.WithFields(logrus.Fields{"target": *targetID, "output": *output}).Info("extracted")
	return 0
}

func runVerify(args []string) int {
	fs := pflag.NewFlagSet("pbinunpack verify", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pbinunpack verify <file>")
		return 2
	}

	r, err := unpacker.Open(fs.Arg(0))
	if err != nil {
		log.WithError(err).Error("verify failed")
		return 1
	}
	defer r.Close()

	if err := r.VerifyAll(); err != nil {
		log.WithError(err).Error("verification failed")
		return 1
	}

	log.WithField("entries", len(r.Manifest().Entries)).Info("all entries verified")
	return 0
}
