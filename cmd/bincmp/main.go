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

// Command bincmp builds a baseline and a current version of the same Rust
// binary crate, attributes every byte of code and every line of emitted IR
// to the crate that produced it, and prints what grew, what shrank, what
// appeared, and what disappeared between the two builds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/bincmp/internal/builddriver"
	"github.com/google/bincmp/internal/pipeline"
	"github.com/google/bincmp/internal/render"
	"github.com/google/bincmp/log"
)

const (
	exitSuccess = 0
	exitBuild   = 1
	exitAnalyze = 2
	exitUsage   = 3
)

// flags holds the parsed command-line configuration for one invocation.
type flags struct {
	baseline     string
	current      string
	binName      string
	markdownPath string
	verbose      bool
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("bincmp", flag.ContinueOnError)
	f := &flags{}
	fs.StringVar(&f.baseline, "baseline", "", "path to the baseline crate's Cargo.toml")
	fs.StringVar(&f.current, "current", "", "path to the current crate's Cargo.toml")
	fs.StringVar(&f.binName, "bin", "", "name of the binary artifact to compare (default: the first bin artifact cargo reports)")
	fs.StringVar(&f.markdownPath, "markdown", "", "optional path to also write a markdown report to")
	fs.BoolVar(&f.verbose, "verbose", false, "enable debug logging and an untruncated diagnostic data dump")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.baseline == "" || f.current == "" {
		return nil, errors.New("both --baseline and --current manifest paths are required")
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bincmp: %v\n", err)
		os.Exit(exitUsage)
	}

	if f.verbose {
		log.SetLogger(&log.DefaultLogger{Verbose: true})
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "bincmp: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(f *flags) error {
	d, err := pipeline.Run(context.Background(), pipeline.Config{
		BaselineManifest: f.baseline,
		CurrentManifest:  f.current,
		BinName:          f.binName,
	})
	if err != nil {
		return err
	}

	if f.verbose {
		render.Debug(os.Stderr, d)
	}

	fmt.Print(render.Text(d))

	if f.markdownPath != "" {
		log.Infof("writing markdown report to %s", f.markdownPath)
		if err := os.WriteFile(f.markdownPath, []byte(render.Markdown(d)), 0o644); err != nil {
			return fmt.Errorf("writing markdown report: %w", err)
		}
	}
	return nil
}

// exitCodeFor classifies a pipeline error into one of the non-success exit
// codes: a cargo build that exits nonzero or reports a compiler error is a
// build failure; every other error (including failing to start cargo) is an
// analysis failure.
func exitCodeFor(err error) int {
	var buildErr *builddriver.BuildFailedError
	if errors.As(err, &buildErr) {
		return exitBuild
	}
	return exitAnalyze
}
