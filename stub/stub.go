// SPDX-License-Identifier: MIT
// Copyright (c) 2026 watchthelight
// Source: github.com/watchthelight/pbin

// Package stub generates the polyglot prologue: a byte sequence that parses
// as both a POSIX shell script and a cmd.exe batch file, and which locates
// and launches the matching embedded payload at runtime.
//
// The generator never shells out and never touches a filesystem; it only
// assembles deterministic text from the target set and compression kind,
// exactly as the format spec's determinism property requires. Membership in
// the manifest's own entry list is the single source of truth for "does
// this container carry my target" — the stub never duplicates the target
// set into a second whitelist; it simply tries the lookup and reports
// ExitNoMatchingTarget if the manifest has no entry for the detected host.
package stub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/watchthelight/pbin/header"
	"github.com/watchthelight/pbin/target"
)

// Marker is the literal ASCII sequence separating stub bytes from the
// structured container. It is 16 bytes; the format spec's prose text
// claims 17, but the authoritative value (and the one every implementation
// MUST use) is this 16-byte literal.
const Marker = "__PBIN_PAYLOAD__"

// MaxLen is the stub length budget from the format spec (requirement 2).
const MaxLen = 4096

func init() {
	if len(Marker) != 16 {
		panic("stub: marker literal must be exactly 16 bytes")
	}
}

// Generate emits the dual-interpreter prologue for the given target set and
// file-wide compression kind. Output is byte-identical across calls with
// the same (targets, kind) pair — targets is sorted internally so caller
// order never affects the result. The target set itself never appears in
// the generated text; it only gates which targets Generate accepts.
func Generate(targets []target.Id, kind header.CompressionKind) ([]byte, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("stub: target set must not be empty")
	}

	sorted := make([]target.Id, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, t := range sorted {
		if !target.IsKnown(t) {
			return nil, fmt.Errorf("stub: unknown target %q", t)
		}
	}

	var b strings.Builder
	writeShellSection(&b, kind)
	writeBatchSection(&b, kind)

	out := []byte(b.String())
	if len(out) >= MaxLen {
		return nil, fmt.Errorf("stub: generated stub is %d bytes, must be under %d", len(out), MaxLen)
	}

	return out, nil
}

// writeShellSection emits the POSIX-sh-visible half of the stub. Every
// line after the shebang begins with ":;" so a cmd.exe parser sees a label
// declaration ("goto"-skippable) while sh sees a no-op ':' builtin followed
// by a ';' statement separator and the real command. Variable names are
// kept short (P_*) since every byte here counts against MaxLen.
func writeShellSection(b *strings.Builder, kind header.CompressionKind) {
	decompressCmd := shellDecompressCmd(kind)

	fmt.Fprintf(b, "#!/bin/sh\n")
	fmt.Fprintf(b, ":; set -e\n")
	fmt.Fprintf(b, ":; P_SELF=\"$0\"\n")
	fmt.Fprintf(b, ":; P_MARK=%q\n", Marker)
	fmt.Fprintf(b, ":; P_ARCH=\"$(uname -m)\"\n")
	fmt.Fprintf(b, ":; P_OS=\"$(uname -s | tr '[:upper:]' '[:lower:]')\"\n")
	fmt.Fprintf(b, ":; case \"$P_OS\" in darwin*) P_OS=darwin ;; linux*) P_OS=linux ;; freebsd*) P_OS=freebsd ;; netbsd*) P_OS=netbsd ;; openbsd*) P_OS=openbsd ;; esac\n")
	fmt.Fprintf(b, ":; case \"$P_ARCH\" in x86_64|amd64) P_ARCH=x86_64 ;; arm64|aarch64) P_ARCH=aarch64 ;; armv7*) P_ARCH=armv7 ;; riscv64) P_ARCH=riscv64 ;; ppc64le) P_ARCH=ppc64le ;; s390x) P_ARCH=s390x ;; esac\n")
	fmt.Fprintf(b, ":; P_TGT=\"$P_OS-$P_ARCH\"\n")
	fmt.Fprintf(b, ":; P_TMP=\"$(mktemp -d \"${TMPDIR:-/tmp}/pbin.XXXXXX\")\" || { echo \"pbin: mktemp failed\" >&2; exit 115; }\n")
	fmt.Fprintf(b, ":; chmod 0700 \"$P_TMP\"\n")
	fmt.Fprintf(b, ":; trap 'rm -rf \"$P_TMP\"' EXIT INT TERM HUP\n")
	fmt.Fprintf(b, ":; P_MOFF=\"$(grep -abo \"$P_MARK\" \"$P_SELF\" | tail -n 1 | cut -d: -f1)\"\n")
	fmt.Fprintf(b, ":; if [ -z \"$P_MOFF\" ]; then echo \"pbin: marker not found\" >&2; exit 110; fi\n")
	fmt.Fprintf(b, ":; P_HOFF=$((P_MOFF + %d))\n", len(Marker))
	fmt.Fprintf(b, ":; P_MSIZE=\"$(dd if=\"$P_SELF\" bs=1 skip=$((P_HOFF+8)) count=4 2>/dev/null | od -An -tu4 --endian=little | tr -d ' ')\"\n")
	fmt.Fprintf(b, ":; if [ -z \"$P_MSIZE\" ]; then echo \"pbin: bad header\" >&2; exit 111; fi\n")
	fmt.Fprintf(b, ":; P_MAN=\"$(dd if=\"$P_SELF\" bs=1 skip=$((P_HOFF+64)) count=\"$P_MSIZE\" 2>/dev/null)\"\n")
	fmt.Fprintf(b, ":; if [ -z \"$P_MAN\" ]; then echo \"pbin: bad manifest\" >&2; exit 112; fi\n")
	fmt.Fprintf(b, ":; P_OFF=\"$(printf '%%s' \"$P_MAN\" | grep -o \"\\\"target\\\":\\\"$P_TGT\\\"[^}]*\\\"offset\\\":\\\"[0-9]*\\\"\" | grep -o '[0-9]*\"$' | tr -d '\"')\"\n")
	fmt.Fprintf(b, ":; P_CSZ=\"$(printf '%%s' \"$P_MAN\" | grep -o \"\\\"target\\\":\\\"$P_TGT\\\"[^}]*\\\"compressed_size\\\":\\\"[0-9]*\\\"\" | grep -o '[0-9]*\"$' | tr -d '\"')\"\n")
	fmt.Fprintf(b, ":; if [ -z \"$P_OFF\" ] || [ -z \"$P_CSZ\" ]; then echo \"pbin: no entry for $P_TGT\" >&2; exit 113; fi\n")
	fmt.Fprintf(b, ":; P_OUT=\"$P_TMP/payload\"\n")
	fmt.Fprintf(b, ":; dd if=\"$P_SELF\" of=\"$P_OUT\" bs=1 skip=\"$P_OFF\" count=\"$P_CSZ\" 2>/dev/null || { echo \"pbin: extract failed\" >&2; exit 115; }\n")
	if decompressCmd != "" {
		fmt.Fprintf(b, ":; %s || { echo \"pbin: decompress failed\" >&2; exit 115; }\n", decompressCmd)
	}
	fmt.Fprintf(b, ":; chmod 0700 \"$P_OUT\"\n")
	fmt.Fprintf(b, ":; \"$P_OUT\" \"$@\"\n")
	fmt.Fprintf(b, ":; P_RC=$?\n")
	fmt.Fprintf(b, ":; exit \"$P_RC\"\n")
	fmt.Fprintf(b, ":; goto :EOF\n")
}

// shellDecompressCmd returns the shell command line that decompresses the
// extracted payload in place, or "" for header.CompressionNone. Relying on
// the system zstd/lz4 binary for the compressed case, and on no external
// tool at all for the uncompressed case, is the deliberate zero-dependency
// stance the format spec calls for.
func shellDecompressCmd(kind header.CompressionKind) string {
	switch kind {
	case header.CompressionZstd:
		return `zstd -d -f --rm "$P_OUT" -o "$P_OUT.d" && mv "$P_OUT.d" "$P_OUT"`
	case header.CompressionLz4:
		return `lz4 -d -f "$P_OUT" "$P_OUT.d" && mv "$P_OUT.d" "$P_OUT"`
	default:
		return ""
	}
}

// writeBatchSection emits the cmd.exe-visible half of the stub. It follows
// the shell section: sh never reaches this text because the shell section
// ends with "exit", and cmd.exe reads every ":"-prefixed shell line
// (including ":; goto :EOF") as a label and runs on to these lines.
func writeBatchSection(b *strings.Builder, kind header.CompressionKind) {
	fmt.Fprintf(b, "@echo off\r\n")
	fmt.Fprintf(b, "setlocal enabledelayedexpansion\r\n")
	fmt.Fprintf(b, "set \"P_SELF=%%~f0\"\r\n")
	fmt.Fprintf(b, "set \"P_ARCH=%%PROCESSOR_ARCHITECTURE%%\"\r\n")
	fmt.Fprintf(b, "if /i \"%%P_ARCH%%\"==\"AMD64\" set \"P_ARCH=x86_64\"\r\n")
	fmt.Fprintf(b, "if /i \"%%P_ARCH%%\"==\"ARM64\" set \"P_ARCH=aarch64\"\r\n")
	fmt.Fprintf(b, "set \"P_TGT=windows-%%P_ARCH%%\"\r\n")
	fmt.Fprintf(b, "set \"P_KIND=%d\"\r\n", int(kind))
	fmt.Fprintf(b, "powershell -NoProfile -ExecutionPolicy Bypass -Command \"& { %s }\" \"%%P_TGT%%\" \"%%P_KIND%%\" %%*\r\n",
		powershellExtractor(kind))
	fmt.Fprintf(b, "exit /b %%ERRORLEVEL%%\r\n")
}

// powershellExtractor returns the single-line PowerShell script the batch
// section invokes to perform the same byte-slice + decompress + run +
// cleanup sequence the shell section performs natively. Like the shell
// section, it finds the entry by parsing the manifest at runtime, and it
// carries a decompress step only for the given kind. Identifier names are
// kept to a few letters for the same budget reason as the shell section
// above.
func powershellExtractor(kind header.CompressionKind) string {
	decompress := ""
	switch kind {
	case header.CompressionZstd:
		decompress = `&zstd -d -f --rm $out -o "$out.d";Move-Item -Force "$out.d" $out;`
	case header.CompressionLz4:
		decompress = `&lz4 -d -f $out "$out.d";Move-Item -Force "$out.d" $out;`
	}

	script := `` +
		`$s=[Environment]::GetCommandLineArgs()[0];$a=$args;$w=$a[0];$k=[int]$a[1];$r=$a[2..($a.Length-1)];` +
		`$m=[Text.Encoding]::ASCII.GetBytes('` + Marker + `');` +
		`$b=[IO.File]::ReadAllBytes($s);` +
		`$i=-1;for($x=$b.Length-$m.Length;$x -ge 0;$x--){$ok=$true;for($j=0;$j -lt $m.Length;$j++){if($b[$x+$j]-ne $m[$j]){$ok=$false;break}};if($ok){$i=$x;break}};` +
		`if($i -lt 0){exit 110};` +
		`$h=$i+$m.Length;$ms=[BitConverter]::ToUInt32($b,$h+8);` +
		`$mt=[Text.Encoding]::UTF8.GetString($b,$h+64,$ms);$man=ConvertFrom-Json $mt;` +
		`$e=$man.entries|?{$_.target -eq $w};if(-not $e){exit 113};` +
		`$o=[long]$e.offset;$c=[long]$e.compressed_size;` +
		`$t=Join-Path $env:TEMP ("pbin."+[Guid]::NewGuid().ToString("N"));New-Item -ItemType Directory -Path $t|Out-Null;` +
		`$out=Join-Path $t "p.exe";` +
		`[IO.File]::WriteAllBytes($out,$b[$o..($o+$c-1)]);` +
		decompress +
		`$p=Start-Process $out -ArgumentList $r -Wait -PassThru -NoNewWindow;` +
		`Remove-Item -Recurse -Force $t;exit $p.ExitCode`

	return script
}
