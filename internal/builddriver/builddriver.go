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

// Package builddriver invokes cargo on a build manifest, forcing release
// optimization, build timing and IR emission, and streams its JSON message
// protocol into the artifact/timing/dependency data the rest of the
// pipeline needs.
package builddriver

import (
	"bufio"
	"bytes"
	"context"
	"debug/elf"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/bincmp/internal/arread"
	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/log"
	"github.com/google/uuid"
	"github.com/rust-secure-code/go-rustaudit"
)

// rustFlagsEnv keeps debuginfo on (IR function names mirror DWARF linkage
// names) and forces LTO/codegen-units=1 so each rlib holds a single
// compilation unit, simplifying rlib symbol extraction.
const rustFlagsEnv = "RUSTFLAGS=-C opt-level=3 -C debuginfo=1 -C lto -C codegen-units=1 -C strip=none --emit=llvm-ir"

// BuildFailedError wraps a nonzero cargo exit with the accumulated stderr.
type BuildFailedError struct {
	Stderr string
	Err    error
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("cargo build failed: %v\n%s", e.Err, e.Stderr)
}
func (e *BuildFailedError) Unwrap() error { return e.Err }

// Artifact is one compiler-artifact message's relevant fields.
type Artifact struct {
	CrateName string
	Kind      string // "bin", "rlib", "dylib", ...
	Path      string
}

// Output is everything the driver extracts from one cargo invocation.
type Output struct {
	Artifacts        []Artifact
	Timings          map[string]time.Duration // crate name -> build duration
	DepsSymbols      map[string]crate.Name    // mangled symbol name -> owning dependency crate
	DepCrates        crate.Set                // declared dependency crate names
	BinaryPath       string                   // the chosen binary artifact
	IRDir            string                   // directory cargo wrote *.ll files under
	ScratchDir       string                   // the --target-dir passed to cargo; caller removes it once done reading
	WallDuration     time.Duration
	TargetTriple     string
	ToolchainVersion string
}

// cargoMessage mirrors the subset of cargo's --message-format=json schema
// this driver classifies.
type cargoMessage struct {
	Reason string `json:"reason"`
	Target struct {
		Name       string   `json:"name"`
		Kind       []string `json:"kind"`
		CrateTypes []string `json:"crate_types"`
	} `json:"target"`
	Filenames   []string `json:"filenames"`
	PackageID   string   `json:"package_id"`
	CrateName   string   `json:"crate_name,omitempty"`
	DurationSec float64  `json:"duration,omitempty"`
	Message     struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"message"`
}

// Build runs `cargo build --release --message-format=json` against the
// manifest at manifestPath, streaming and classifying its JSON message
// protocol, and returns the produced artifacts, per-crate timings and the
// dependency symbol/crate sets.
func Build(ctx context.Context, manifestPath, binName string) (*Output, error) {
	manifestDir := filepath.Dir(manifestPath)
	targetDir, err := os.MkdirTemp("", "bincmp-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("creating scratch target dir: %w", err)
	}

	cleanup := func() {
		if rerr := os.RemoveAll(targetDir); rerr != nil {
			log.Warnf("failed to remove scratch target dir %s: %v", targetDir, rerr)
		}
	}

	cmd := exec.CommandContext(ctx, "cargo", "build", "--release",
		"--manifest-path", manifestPath,
		"--target-dir", targetDir,
		"--message-format=json",
	)
	cmd.Env = append(cmd.Environ(), rustFlagsEnv)
	cmd.Dir = manifestDir
	if errors.Is(cmd.Err, exec.ErrDot) {
		cmd.Err = nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("piping cargo stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("starting cargo: %w", err)
	}

	out := &Output{Timings: map[string]time.Duration{}, DepsSymbols: map[string]crate.Name{}, DepCrates: crate.Set{}}
	var buildErr error

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var msg cargoMessage
		if jerr := json.Unmarshal(line, &msg); jerr != nil {
			// Not every line cargo prints is a JSON message when cargo
			// itself writes human text on a parse error path; skip lines
			// we can't decode rather than aborting the whole stream.
			log.Debugf("skipping undecodable cargo output line: %v", jerr)
			continue
		}
		classifyMessage(msg, out, &buildErr)
	}
	if serr := scanner.Err(); serr != nil {
		cmd.Wait()
		cleanup()
		return nil, fmt.Errorf("reading cargo output: %w", serr)
	}

	waitErr := cmd.Wait()
	out.WallDuration = time.Since(start)

	if waitErr != nil || buildErr != nil {
		cleanup()
		msg := stderr.String()
		if buildErr != nil {
			return nil, &BuildFailedError{Stderr: msg, Err: buildErr}
		}
		return nil, &BuildFailedError{Stderr: msg, Err: waitErr}
	}

	for _, a := range out.Artifacts {
		if a.Kind == "bin" && (binName == "" || filepath.Base(a.Path) == binName) {
			out.BinaryPath = a.Path
			break
		}
	}
	if out.BinaryPath == "" {
		cleanup()
		return nil, fmt.Errorf("no binary artifact named %q among %d artifacts", binName, len(out.Artifacts))
	}

	out.IRDir = filepath.Join(targetDir, "release", "deps")
	out.ScratchDir = targetDir
	out.TargetTriple, out.ToolchainVersion = rustcVersionInfo()

	enrichDepsFromBinary(out)
	enrichDepsFromRlibs(out)

	return out, nil
}

func classifyMessage(msg cargoMessage, out *Output, buildErr *error) {
	switch msg.Reason {
	case "compiler-artifact":
		kind := ""
		if len(msg.Target.CrateTypes) > 0 {
			kind = msg.Target.CrateTypes[0]
		} else if len(msg.Target.Kind) > 0 {
			kind = msg.Target.Kind[0]
		}
		for _, f := range msg.Filenames {
			a := Artifact{CrateName: msg.Target.Name, Kind: kind, Path: f}
			out.Artifacts = append(out.Artifacts, a)
			out.DepCrates.Add(crate.New(msg.Target.Name))
		}
	case "build-script-executed":
		// Build scripts don't contribute code to the final binary.
	case "timing-info":
		out.Timings[msg.CrateName] = time.Duration(msg.DurationSec * float64(time.Second))
	case "compiler-message":
		if msg.Message.Level == "error" {
			if *buildErr == nil {
				*buildErr = fmt.Errorf("compiler error: %s", msg.Message.Message)
			}
		}
	}
}

// enrichDepsFromBinary reads the cargo-auditable dependency manifest
// embedded in the produced binary's .dep-v0 ELF section (when present) to
// fill in DepCrates beyond what the JSON message stream named. Non-fatal:
// absence of this section is normal for binaries not built with
// -C link-args=-Wl,--emit-relocs/cargo-auditable support.
func enrichDepsFromBinary(out *Output) {
	f, err := os.Open(out.BinaryPath)
	if err != nil {
		log.Debugf("cannot open %s for dependency enrichment: %v", out.BinaryPath, err)
		return
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Debugf("%s is not ELF; skipping rustaudit dependency enrichment", out.BinaryPath)
		return
	}
	defer ef.Close()

	info, err := rustaudit.GetDependencyInfo(ef)
	if err != nil {
		log.Debugf("no embedded cargo-auditable metadata in %s: %v", out.BinaryPath, err)
		return
	}

	for _, pkg := range info.Packages {
		out.DepCrates.Add(crate.New(pkg.Name))
	}
}

// enrichDepsFromRlibs opens every rlib artifact cargo produced and reads the
// defined symbol names out of its single member object file (reliable only
// under codegen-units=1, which rustFlagsEnv forces), recording each name
// against the crate that declared it. This is the same archive a linker
// would pull object code from, catching symbols a dependency defines that
// cargo's own JSON stream never names and whose demangled form doesn't
// start with that crate's own path segment (re-exports, generated glue).
func enrichDepsFromRlibs(out *Output) {
	for _, a := range out.Artifacts {
		// Library targets usually report crate type "lib" while still
		// producing a .rlib, so select by file extension rather than Kind.
		if !strings.HasSuffix(a.Path, ".rlib") {
			continue
		}
		names, err := rlibDefinedSymbols(a.Path)
		if err != nil {
			log.Debugf("skipping rlib symbol enrichment for %s: %v", a.Path, err)
			continue
		}
		owner := crate.New(a.CrateName)
		for _, n := range names {
			out.DepsSymbols[n] = owner
		}
	}
}

func rlibDefinedSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ar, err := arread.NewReader(f)
	if err != nil {
		return nil, err
	}

	var names []string
	for {
		hdr, err := ar.Next()
		if err != nil {
			break
		}
		if !strings.HasSuffix(hdr.Name, ".o") {
			continue
		}
		buf := make([]byte, hdr.Size)
		if _, err := io.ReadFull(ar, buf); err != nil {
			continue
		}
		ef, err := elf.NewFile(bytes.NewReader(buf))
		if err != nil {
			continue
		}
		syms, _ := ef.Symbols()
		for _, s := range syms {
			if s.Name != "" && elf.ST_TYPE(s.Info) == elf.STT_FUNC {
				names = append(names, s.Name)
			}
		}
		ef.Close()
	}
	return names, nil
}

// rustcVersionInfo restores the per-run toolchain/target header that a
// crate-size-only report would otherwise omit, grounded on
// original_source/limpid/src/facet_specific.rs's banner.
func rustcVersionInfo() (triple, version string) {
	cmd := exec.Command("rustc", "-vV")
	outBytes, err := cmd.Output()
	if err != nil {
		return "", ""
	}
	for _, line := range strings.Split(string(outBytes), "\n") {
		switch {
		case strings.HasPrefix(line, "host: "):
			triple = strings.TrimPrefix(line, "host: ")
		case strings.HasPrefix(line, "release: "):
			version = strings.TrimPrefix(line, "release: ")
		}
	}
	return triple, version
}
