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

// Package pipeline wires the driver, readers, aggregator and differ into
// the single straight-line operation the CLI invokes: build both sides,
// read and attribute each, and diff the two resulting BuildContexts. It
// owns the two permitted points of concurrency: binary/IR reading within
// one build, and the baseline/current builds against each other.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/google/bincmp/internal/binaryread"
	"github.com/google/bincmp/internal/buildctx"
	"github.com/google/bincmp/internal/builddriver"
	"github.com/google/bincmp/internal/diff"
	"github.com/google/bincmp/internal/irread"
	"github.com/google/bincmp/log"
	"golang.org/x/sync/errgroup"
)

// Config names the two manifests to build and compare.
type Config struct {
	BaselineManifest string
	CurrentManifest  string
	BinName          string
}

// The three seams below are package variables rather than an injected
// interface, matching how small the surface is: each is replaced wholesale
// in tests to exercise buildOne/Run's merge and error-propagation logic
// without invoking a real cargo/rustc toolchain.
var (
	driverBuild = builddriver.Build
	readBinary  = binaryread.Read
	readIR      = irread.Read
)

// Run executes both builds concurrently and attributes each into a
// BuildContext, then returns their Diff. A failure on either side cancels
// the errgroup's derived context, which cargo's still-running
// exec.CommandContext on the other side observes and aborts on, rather
// than letting it finish a build whose result will be discarded.
func Run(ctx context.Context, cfg Config) (*diff.Diff, error) {
	g, ctx := errgroup.WithContext(ctx)
	var baseline, current *buildctx.BuildContext

	g.Go(func() error {
		bc, err := buildOne(ctx, cfg.BaselineManifest, cfg.BinName)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		baseline = bc
		return nil
	})
	g.Go(func() error {
		bc, err := buildOne(ctx, cfg.CurrentManifest, cfg.BinName)
		if err != nil {
			return fmt.Errorf("current: %w", err)
		}
		current = bc
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return diff.Compute(baseline, current), nil
}

// buildOne drives one build to completion and folds its binary and IR
// output into a single BuildContext, then removes the scratch directory
// cargo wrote its artifacts under.
func buildOne(ctx context.Context, manifestPath, binName string) (*buildctx.BuildContext, error) {
	out, err := driverBuild(ctx, manifestPath, binName)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(out.ScratchDir); rerr != nil {
			log.Warnf("failed to remove scratch dir %s: %v", out.ScratchDir, rerr)
		}
	}()

	var binResult *binaryread.Result
	var irFuncs map[string]*irread.RawFunction

	var g errgroup.Group
	g.Go(func() error {
		r, err := readBinary(out.BinaryPath)
		if err != nil {
			return fmt.Errorf("reading binary: %w", err)
		}
		binResult = r
		return nil
	})
	g.Go(func() error {
		fns, err := readIR(out.IRDir)
		if err != nil {
			return fmt.Errorf("reading IR: %w", err)
		}
		irFuncs = fns
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bc := buildctx.Aggregate(binResult, irFuncs, out.DepCrates, out.DepsSymbols, out.WallDuration, out.TargetTriple)
	bc.ToolchainVersion = out.ToolchainVersion
	return bc, nil
}
