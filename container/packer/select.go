// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

package packer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/woozymasta/pathrules"

	"github.com/watchthelight/pbin/target"
)

// DiscoverInputs scans dir for files named after a known TargetId (an
// optional extension is stripped, e.g. "windows-x86_64.exe"), and returns
// one Input per match that rules selects. rules is the same allow/deny glob
// engine the teacher used to gate compression candidates by archive path
// (compression.go's newCompressMatcher); here it gates which discovered
// TargetIds make it into the pack, e.g. a rule of {Exclude, "windows-*"} to
// pack every non-Windows target found in dir. A nil or empty rule set
// selects every TargetId discovered.
func DiscoverInputs(dir string, rules []pathrules.Rule, opts pathrules.MatcherOptions) ([]Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("packer: read dir %s: %w", dir, err)
	}

	var matcher *pathrules.Matcher
	if len(rules) > 0 {
		matcher, err = pathrules.NewMatcher(rules, opts)
		if err != nil {
			return nil, fmt.Errorf("packer: compile target selection rules: %w", err)
		}
	}

	var inputs []Input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		id := target.Id(stripExt(e.Name()))
		if !target.IsKnown(id) {
			continue
		}
		if matcher != nil && !matcher.Included(string(id), false) {
			continue
		}

		inputs = append(inputs, Input{Target: id, Path: filepath.Join(dir, e.Name())})
	}

	return inputs, nil
}

// stripExt removes a single trailing extension, if any, from name.
func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
