// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package hostdetect declares the interface the stub's runtime extraction
// logic relies on conceptually, and provides a Go-side default
// implementation that classifies the running host. No other package in
// this module imports it.
package hostdetect

import (
	"os"
	"runtime"

	"github.com/watchthelight/pbin/target"
)

// Detector classifies the running host into a registry TargetId.
type Detector interface {
	// Detect returns the TargetId for the current host, or false if the
	// host's (os, arch) pair has no entry in the closed registry.
	Detect() (target.Id, bool)
}

// Runtime is the default Detector, backed by runtime.GOOS/runtime.GOARCH.
type Runtime struct {
	// MuslHint forces musl-variant resolution on Linux hosts where the
	// caller knows (from /etc/os-release or ldd probing) that the host
	// uses musl libc rather than glibc.
	MuslHint bool
}

// Detect implements Detector.
func (r Runtime) Detect() (target.Id, bool) {
	goarch := runtime.GOARCH
	switch goarch {
	case "arm":
		goarch = "armv7"
	case "arm64":
		goarch = "aarch64"
	case "amd64":
		goarch = "x86_64"
	case "386":
		goarch = "x86"
	case "ppc64le":
		goarch = "ppc64le"
	case "mips64":
		goarch = "mips64"
	case "wasm":
		goarch = "wasm32"
	}

	return target.DetectHost(runtime.GOOS, goarch, r.MuslHint || isProbablyMusl())
}

// isProbablyMusl does a cheap, best-effort probe for musl libc on Linux by
// checking for the presence of the x86_64 or aarch64 musl dynamic loader. It never
// errors; a failed probe simply returns false and lets the caller fall back
// to the glibc target.
func isProbablyMusl() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	for _, p := range []string{
		"/lib/ld-musl-x86_64.so.1",
		"/lib/ld-musl-aarch64.so.1",
	} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}

	return false
}
