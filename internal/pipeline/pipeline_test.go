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

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/bincmp/internal/binaryread"
	"github.com/google/bincmp/internal/builddriver"
	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/internal/irread"
)

func fakeOutput(triple string, textSize uint64) *builddriver.Output {
	return &builddriver.Output{
		BinaryPath:       "/fake/bin",
		IRDir:            "/fake/ir",
		ScratchDir:       "",
		WallDuration:     time.Second,
		TargetTriple:     triple,
		ToolchainVersion: "1.80.0",
		DepCrates:        crate.Set{},
		DepsSymbols:      map[string]crate.Name{},
	}
}

func withFakes(t *testing.T, build func(ctx context.Context, manifestPath, binName string) (*builddriver.Output, error),
	readBin func(path string) (*binaryread.Result, error),
	readIRDir func(dir string) (map[string]*irread.RawFunction, error)) {
	t.Helper()
	origBuild, origBin, origIR := driverBuild, readBinary, readIR
	driverBuild, readBinary, readIR = build, readBin, readIRDir
	t.Cleanup(func() { driverBuild, readBinary, readIR = origBuild, origBin, origIR })
}

func TestRun_ComputesDiffFromBothSides(t *testing.T) {
	withFakes(t,
		func(ctx context.Context, manifestPath, binName string) (*builddriver.Output, error) {
			if manifestPath == "baseline.toml" {
				return fakeOutput("x86_64-unknown-linux-gnu", 1000), nil
			}
			return fakeOutput("x86_64-unknown-linux-gnu", 1200), nil
		},
		func(path string) (*binaryread.Result, error) {
			return &binaryread.Result{
				Symbols:  []binaryread.RawSymbol{{MangledName: "_ZN3foo3barE", Address: 0, Size: 100}},
				TextSize: 100,
			}, nil
		},
		func(dir string) (map[string]*irread.RawFunction, error) {
			return map[string]*irread.RawFunction{}, nil
		},
	)

	d, err := Run(context.Background(), Config{BaselineManifest: "baseline.toml", CurrentManifest: "current.toml"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if d.Meta.BaselineTriple != "x86_64-unknown-linux-gnu" {
		t.Errorf("Meta.BaselineTriple = %q", d.Meta.BaselineTriple)
	}
}

func TestRun_PropagatesBaselineBuildFailure(t *testing.T) {
	wantErr := errors.New("cargo exited 101")
	withFakes(t,
		func(ctx context.Context, manifestPath, binName string) (*builddriver.Output, error) {
			if manifestPath == "baseline.toml" {
				return nil, wantErr
			}
			return fakeOutput("x86_64-unknown-linux-gnu", 1000), nil
		},
		func(path string) (*binaryread.Result, error) { return &binaryread.Result{}, nil },
		func(dir string) (map[string]*irread.RawFunction, error) { return map[string]*irread.RawFunction{}, nil },
	)

	_, err := Run(context.Background(), Config{BaselineManifest: "baseline.toml", CurrentManifest: "current.toml"})
	if err == nil {
		t.Fatal("expected Run to propagate the baseline build failure")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error %v does not wrap %v", err, wantErr)
	}
}

func TestRun_PropagatesIRReadFailure(t *testing.T) {
	wantErr := errors.New("permission denied")
	withFakes(t,
		func(ctx context.Context, manifestPath, binName string) (*builddriver.Output, error) {
			return fakeOutput("x86_64-unknown-linux-gnu", 1000), nil
		},
		func(path string) (*binaryread.Result, error) { return &binaryread.Result{}, nil },
		func(dir string) (map[string]*irread.RawFunction, error) { return nil, wantErr },
	)

	_, err := Run(context.Background(), Config{BaselineManifest: "baseline.toml", CurrentManifest: "current.toml"})
	if err == nil {
		t.Fatal("expected Run to propagate the IR read failure")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error %v does not wrap %v", err, wantErr)
	}
}
