// Copyright 2026 The Bincmp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package render turns a diff.Diff into human-readable text or markdown.
// Both renderers are pure functions of their input: no I/O, no global
// state, nothing that would make the same Diff print differently twice.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/bincmp/internal/buildctx"
	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/internal/diff"
)

const (
	maxCrateRows  = 10
	maxSymbolRows = 20
	maxIRRows     = 20
)

// Text renders diff as a plain-text report suitable for a terminal.
func Text(d *diff.Diff) string {
	var b strings.Builder
	writeHeader(&b, d)
	writeCrateTable(&b, d)
	writeSymbolTable(&b, d)
	writeIRTable(&b, d)
	writeTotals(&b, d)
	return b.String()
}

// Markdown renders diff as a GitHub-flavored-markdown report.
func Markdown(d *diff.Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Binary size comparison\n\n")
	fmt.Fprintf(&b, "Baseline: `%s` (%s)  \nCurrent: `%s` (%s)\n\n",
		valueOr(d.Meta.BaselineTriple, "unknown"), valueOr(d.Meta.BaselineToolchain, "unknown"),
		valueOr(d.Meta.CurrentTriple, "unknown"), valueOr(d.Meta.CurrentToolchain, "unknown"))

	fmt.Fprintf(&b, "## Totals\n\n")
	fmt.Fprintf(&b, "| | Before | After | Delta |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| Crates | %s | %s | %s |\n", humanize.Comma(int64(d.Totals.CrateCountBefore)), humanize.Comma(int64(d.Totals.CrateCountAfter)), signedCount(d.Totals.CrateCountDelta()))
	fmt.Fprintf(&b, "| Symbols | %s | %s | %s |\n", humanize.Comma(int64(d.Totals.SymbolCountBefore)), humanize.Comma(int64(d.Totals.SymbolCountAfter)), signedCount(d.Totals.SymbolCountDelta()))
	fmt.Fprintf(&b, "| Text size | %s | %s | %s |\n", formatBytes(d.Totals.TextSizeBefore), formatBytes(d.Totals.TextSizeAfter), signedBytes(d.Totals.TextSizeDelta()))
	fmt.Fprintf(&b, "| IR lines | %s | %s | %s |\n", humanize.Comma(int64(d.Totals.IRLineCountBefore)), humanize.Comma(int64(d.Totals.IRLineCountAfter)), signedCount(d.Totals.IRLineCountDelta()))
	fmt.Fprintf(&b, "| Wall time | %s | %s | %s |\n\n", formatDuration(d.Totals.WallDurationBefore), formatDuration(d.Totals.WallDurationAfter), signedDuration(d.Totals.WallDurationDelta()))

	fmt.Fprintf(&b, "## Crates\n\n")
	fmt.Fprintf(&b, "| Crate | Before | After | Delta |\n|---|---|---|---|\n")
	unknown, restCrates := splitUnknownCrate(d.CrateDeltas)
	rows, remaining := truncate(len(restCrates), maxCrateRows)
	for _, cd := range restCrates[:rows] {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cd.Name, optionalByteSize(cd.Before), optionalByteSize(cd.After), signedBytes(cd.Diff))
	}
	if unknown != nil {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", unknown.Name, optionalByteSize(unknown.Before), optionalByteSize(unknown.After), signedBytes(unknown.Diff))
	}
	if remaining > 0 {
		writeMarkdownRemainingCrateRow(&b, restCrates[rows:])
	}
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "## Symbols\n\n")
	fmt.Fprintf(&b, "| Symbol | Before | After | Delta |\n|---|---|---|---|\n")
	rows, remaining = truncate(len(d.SymbolDeltas), maxSymbolRows)
	for _, sd := range d.SymbolDeltas[:rows] {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", sd.Name, optionalSymbolSize(sd.Before), optionalSymbolSize(sd.After), signedBytes(sd.Diff))
	}
	if remaining > 0 {
		writeMarkdownRemainingSymbolRow(&b, d.SymbolDeltas[rows:])
	}
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "## IR functions\n\n")
	fmt.Fprintf(&b, "| Function | Before (lines) | After (lines) | Delta |\n|---|---|---|---|\n")
	rows, remaining = truncate(len(d.IRFunctionDeltas), maxIRRows)
	for _, fd := range d.IRFunctionDeltas[:rows] {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", fd.Name, optionalIRLines(fd.Before), optionalIRLines(fd.After), signedCount(int(fd.Diff)))
	}
	if remaining > 0 {
		writeMarkdownRemainingIRRow(&b, d.IRFunctionDeltas[rows:])
	}
	return b.String()
}

// Debug writes an untruncated diagnostic dump of d to w: every delta list
// in full, with its length, rather than the top-N tables Text and Markdown
// print. Wired to --verbose.
func Debug(w io.Writer, d *diff.Diff) {
	fmt.Fprintln(w, "=== DEBUG: Diff Data ===")

	fmt.Fprintf(w, "\nMeta:\n")
	fmt.Fprintf(w, "  baseline: %s (%s)\n", valueOr(d.Meta.BaselineTriple, "unknown"), valueOr(d.Meta.BaselineToolchain, "unknown"))
	fmt.Fprintf(w, "  current:  %s (%s)\n", valueOr(d.Meta.CurrentTriple, "unknown"), valueOr(d.Meta.CurrentToolchain, "unknown"))

	fmt.Fprintf(w, "\nTotals:\n")
	fmt.Fprintf(w, "  crates:    %d -> %d\n", d.Totals.CrateCountBefore, d.Totals.CrateCountAfter)
	fmt.Fprintf(w, "  symbols:   %d -> %d\n", d.Totals.SymbolCountBefore, d.Totals.SymbolCountAfter)
	fmt.Fprintf(w, "  text size: %d -> %d bytes\n", d.Totals.TextSizeBefore, d.Totals.TextSizeAfter)
	fmt.Fprintf(w, "  IR lines:  %d -> %d\n", d.Totals.IRLineCountBefore, d.Totals.IRLineCountAfter)
	fmt.Fprintf(w, "  wall time: %s -> %s\n", d.Totals.WallDurationBefore, d.Totals.WallDurationAfter)

	fmt.Fprintf(w, "\ncrate_deltas: %d entries\n", len(d.CrateDeltas))
	for _, cd := range d.CrateDeltas {
		fmt.Fprintf(w, "  %s before=%s after=%s diff=%d\n", cd.Name, optionalByteSize(cd.Before), optionalByteSize(cd.After), cd.Diff)
	}

	fmt.Fprintf(w, "\nsymbol_deltas: %d entries\n", len(d.SymbolDeltas))
	for _, sd := range d.SymbolDeltas {
		fmt.Fprintf(w, "  %s before=%s after=%s diff=%d\n", sd.Name, optionalSymbolSize(sd.Before), optionalSymbolSize(sd.After), sd.Diff)
	}

	fmt.Fprintf(w, "\nir_function_deltas: %d entries\n", len(d.IRFunctionDeltas))
	for _, fd := range d.IRFunctionDeltas {
		fmt.Fprintf(w, "  %s before=%s after=%s diff=%d\n", fd.Name, optionalIRLines(fd.Before), optionalIRLines(fd.After), fd.Diff)
	}

	fmt.Fprintln(w, "\n========================")
}

func writeHeader(b *strings.Builder, d *diff.Diff) {
	fmt.Fprintf(b, "Binary size comparison\n")
	fmt.Fprintf(b, "  baseline: %s (%s)\n", valueOr(d.Meta.BaselineTriple, "unknown"), valueOr(d.Meta.BaselineToolchain, "unknown"))
	fmt.Fprintf(b, "  current:  %s (%s)\n\n", valueOr(d.Meta.CurrentTriple, "unknown"), valueOr(d.Meta.CurrentToolchain, "unknown"))
}

func writeTotals(b *strings.Builder, d *diff.Diff) {
	fmt.Fprintf(b, "\nTotals\n")
	fmt.Fprintf(b, "  crates:     %s -> %s (%s)\n", humanize.Comma(int64(d.Totals.CrateCountBefore)), humanize.Comma(int64(d.Totals.CrateCountAfter)), signedCount(d.Totals.CrateCountDelta()))
	fmt.Fprintf(b, "  symbols:    %s -> %s (%s)\n", humanize.Comma(int64(d.Totals.SymbolCountBefore)), humanize.Comma(int64(d.Totals.SymbolCountAfter)), signedCount(d.Totals.SymbolCountDelta()))
	fmt.Fprintf(b, "  text size:  %s -> %s (%s)\n", formatBytes(d.Totals.TextSizeBefore), formatBytes(d.Totals.TextSizeAfter), signedBytes(d.Totals.TextSizeDelta()))
	fmt.Fprintf(b, "  IR lines:   %s -> %s (%s)\n", humanize.Comma(int64(d.Totals.IRLineCountBefore)), humanize.Comma(int64(d.Totals.IRLineCountAfter)), signedCount(d.Totals.IRLineCountDelta()))
	fmt.Fprintf(b, "  wall time:  %s -> %s (%s)\n", formatDuration(d.Totals.WallDurationBefore), formatDuration(d.Totals.WallDurationAfter), signedDuration(d.Totals.WallDurationDelta()))
}

func writeCrateTable(b *strings.Builder, d *diff.Diff) {
	fmt.Fprintf(b, "Crates\n")
	unknown, rest := splitUnknownCrate(d.CrateDeltas)
	rows, remaining := truncate(len(rest), maxCrateRows)
	for _, cd := range rest[:rows] {
		fmt.Fprintf(b, "  %-40s %10s -> %10s (%s)\n", cd.Name, optionalByteSize(cd.Before), optionalByteSize(cd.After), signedBytes(cd.Diff))
	}
	if unknown != nil {
		fmt.Fprintf(b, "  %-40s %10s -> %10s (%s)\n", unknown.Name, optionalByteSize(unknown.Before), optionalByteSize(unknown.After), signedBytes(unknown.Diff))
	}
	if remaining > 0 {
		tail := rest[rows:]
		var sumDiff int64
		for _, cd := range tail {
			sumDiff += cd.Diff
		}
		fmt.Fprintf(b, "  ... %d more crates (%s)\n", remaining, signedBytes(sumDiff))
	}
}

// splitUnknownCrate pulls the "[unknown]" bucket (if present) out of deltas
// so it can always be rendered on its own line, never folded into a
// truncation table's summed "remaining" row.
func splitUnknownCrate(deltas []diff.CrateDelta) (unknown *diff.CrateDelta, rest []diff.CrateDelta) {
	rest = make([]diff.CrateDelta, 0, len(deltas))
	for i, cd := range deltas {
		if cd.Name == crate.UnknownName {
			u := deltas[i]
			unknown = &u
			continue
		}
		rest = append(rest, cd)
	}
	return unknown, rest
}

func writeSymbolTable(b *strings.Builder, d *diff.Diff) {
	fmt.Fprintf(b, "\nSymbols\n")
	rows, remaining := truncate(len(d.SymbolDeltas), maxSymbolRows)
	for _, sd := range d.SymbolDeltas[:rows] {
		fmt.Fprintf(b, "  %-60s %10s -> %10s (%s)\n", sd.Name, optionalSymbolSize(sd.Before), optionalSymbolSize(sd.After), signedBytes(sd.Diff))
	}
	if remaining > 0 {
		tail := d.SymbolDeltas[rows:]
		var sumDiff int64
		for _, sd := range tail {
			sumDiff += sd.Diff
		}
		fmt.Fprintf(b, "  ... %d more symbols (%s)\n", remaining, signedBytes(sumDiff))
	}
}

func writeIRTable(b *strings.Builder, d *diff.Diff) {
	fmt.Fprintf(b, "\nIR functions\n")
	rows, remaining := truncate(len(d.IRFunctionDeltas), maxIRRows)
	for _, fd := range d.IRFunctionDeltas[:rows] {
		fmt.Fprintf(b, "  %-60s %10s -> %10s (%s)\n", fd.Name, optionalIRLines(fd.Before), optionalIRLines(fd.After), signedCount(int(fd.Diff)))
	}
	if remaining > 0 {
		tail := d.IRFunctionDeltas[rows:]
		var sumDiff int64
		for _, fd := range tail {
			sumDiff += fd.Diff
		}
		fmt.Fprintf(b, "  ... %d more functions (%s)\n", remaining, signedCount(int(sumDiff)))
	}
}

func writeMarkdownRemainingCrateRow(b *strings.Builder, tail []diff.CrateDelta) {
	var before, after crate.ByteSize
	var sumDiff int64
	for _, cd := range tail {
		if cd.Before != nil {
			before += *cd.Before
		}
		if cd.After != nil {
			after += *cd.After
		}
		sumDiff += cd.Diff
	}
	fmt.Fprintf(b, "| _%d more_ | %s | %s | %s |\n", len(tail), formatBytes(before), formatBytes(after), signedBytes(sumDiff))
}

func writeMarkdownRemainingSymbolRow(b *strings.Builder, tail []diff.SymbolDelta) {
	var before, after crate.ByteSize
	var sumDiff int64
	for _, sd := range tail {
		if sd.Before != nil {
			before += sd.Before.TotalSize
		}
		if sd.After != nil {
			after += sd.After.TotalSize
		}
		sumDiff += sd.Diff
	}
	fmt.Fprintf(b, "| _%d more_ | %s | %s | %s |\n", len(tail), formatBytes(before), formatBytes(after), signedBytes(sumDiff))
}

func writeMarkdownRemainingIRRow(b *strings.Builder, tail []diff.IRFunctionDelta) {
	var beforeLines, afterLines int64
	var sumDiff int64
	for _, fd := range tail {
		if fd.Before != nil {
			beforeLines += int64(fd.Before.TotalLines)
		}
		if fd.After != nil {
			afterLines += int64(fd.After.TotalLines)
		}
		sumDiff += fd.Diff
	}
	fmt.Fprintf(b, "| _%d more_ | %s | %s | %s |\n", len(tail), humanize.Comma(beforeLines), humanize.Comma(afterLines), signedCount(int(sumDiff)))
}

func truncate(n, max int) (rows, remaining int) {
	if n <= max {
		return n, 0
	}
	return max, n - max
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func formatBytes(n crate.ByteSize) string {
	return humanize.IBytes(uint64(n))
}

func signedBytes(delta int64) string {
	if delta == 0 {
		return "no change"
	}
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return sign + humanize.IBytes(uint64(delta))
}

func signedCount(delta int) string {
	if delta == 0 {
		return "no change"
	}
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return sign + humanize.Comma(int64(delta))
}

func signedDuration(delta time.Duration) string {
	if delta == 0 {
		return "no change"
	}
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return sign + formatDuration(delta)
}

// formatDuration follows the banded rule: seconds with two decimals under a
// minute, minutes+seconds under an hour, hours+minutes+seconds above.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		m := int(d / time.Minute)
		s := d - time.Duration(m)*time.Minute
		return fmt.Sprintf("%dm%.2fs", m, s.Seconds())
	default:
		h := int(d / time.Hour)
		m := int((d - time.Duration(h)*time.Hour) / time.Minute)
		s := d - time.Duration(h)*time.Hour - time.Duration(m)*time.Minute
		return fmt.Sprintf("%dh%dm%.2fs", h, m, s.Seconds())
	}
}

func optionalByteSize(v *crate.ByteSize) string {
	if v == nil {
		return "-"
	}
	return formatBytes(*v)
}

func optionalSymbolSize(s *buildctx.AggregateSymbol) string {
	if s == nil {
		return "-"
	}
	return formatBytes(s.TotalSize)
}

func optionalIRLines(f *buildctx.AggregateIRFunction) string {
	if f == nil {
		return "-"
	}
	return humanize.Comma(int64(f.TotalLines))
}
