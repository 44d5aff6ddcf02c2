// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Command pbinpack assembles a PBIN container from one or more per-target
// binaries.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/woozymasta/pathrules"

	"github.com/watchthelight/pbin/compress"
	"github.com/watchthelight/pbin/container/packer"
	"github.com/watchthelight/pbin/target"
)

var log = logrus.New()

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is separated from main so exit codes can be asserted in tests without
// actually terminating the process.
func run(args []string) int {
	fs := pflag.NewFlagSet("pbinpack", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pbinpack --name <s> --output <path> [--<target-id> <path>]... [options]")
		fs.PrintDefaults()
	}

	name := fs.String("name", "", "manifest name (required)")
	version := fs.String("version", "0.0.0", "manifest version")
	output := fs.String("output", "", "output file path (required)")
	force := fs.Bool("force", false, "overwrite output if it exists")
	compressFlag := fs.String("compress", "balanced", "compression profile: fast, balanced, maximum")
	noCompress := fs.Bool("no-compress", false, "force CompressionKind=None")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	inputDir := fs.String("input-dir", "", "discover inputs from a directory of <target-id>[.ext] files instead of --<target-id> flags")
	excludeGlobs := fs.StringSlice("exclude-target", nil, "glob pattern(s) of target ids to exclude when using --input-dir (e.g. \"windows-*\")")

	targetFlags := make(map[target.Id]*string, len(target.All()))
	for _, id := range target.All() {
		targetFlags[id] = fs.String(string(id), "", fmt.Sprintf("path to the %s binary", id))
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *name == "" || *output == "" {
		fs.Usage()
		return 2
	}

	profile := compress.Profile(*compressFlag)
	if *noCompress {
		profile = compress.ProfileNone
	}

	var inputs []packer.Input
	seen := make(map[target.Id]bool)
	for id, path := range targetFlags {
		if *path == "" {
			continue
		}
		inputs = append(inputs, packer.Input{Target: id, Path: *path})
		seen[id] = true
	}

	if *inputDir != "" {
		var rules []pathrules.Rule
		for _, g := range *excludeGlobs {
			rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: g})
		}
		discovered, err := packer.DiscoverInputs(*inputDir, rules, pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude})
		if err != nil {
			log.WithError(err).Error("discover inputs failed")
			return 1
		}
		for _, in := range discovered {
			if seen[in.Target] {
				// an explicit --<target-id> flag wins over a directory discovery match
				continue
			}
			inputs = append(inputs, in)
			seen[in.Target] = true
		}
	}

	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "pbinpack: at least one --<target-id> <path> option or --input-dir match is required")
		fs.Usage()
		return 2
	}

	opts := packer.Options{
		Name:    *name,
		Version: *version,
		Profile: profile,
		Inputs:  inputs,
		Output:  *output,
		Force:   *force,
	}

	log.WithFields(logrus.Fields{
		"name":    opts.Name,
		"version": opts.Version,
		"entries": len(opts.Inputs),
		"profile": string(opts.Profile),
		"output":  opts.Output,
	}).Info("packing PBIN container")

	result, err := packer.Pack(context.Background(), opts)
	if err != nil {
		log.WithError(err).Error("pack failed")
		return 1
	}

	log.WithFields(logrus.Fields{
		"entries":       result.EntryCount,
		"payload_bytes": result.PayloadBytes,
		"total_bytes":   result.TotalBytes,
	}).Info("pack complete")

	return 0
}
