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

// Package irread scans a directory tree of per-compilation-unit LLVM IR
// text files and counts lines per function definition, tagged by how many
// distinct compilation units emitted each one.
package irread

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/bincmp/log"
)

// RawFunction is one function definition merged across every IR file it
// appeared in.
type RawFunction struct {
	MangledName string
	LineCount   int
	CopyCount   int
}

// autocfgPrefix marks build-time probing helpers emitted by build
// configuration scripts; these are never application code.
const autocfgPrefix = "autocfg_"

// definePrefix is the IR textual marker for a function definition
// boundary (LLVM IR's "define" keyword convention).
const definePrefix = "define "

// Read walks dir and returns every function definition found, merged by
// name. A missing directory is non-fatal: it
// yields an empty, non-nil map and a nil error.
func Read(dir string) (map[string]*RawFunction, error) {
	out := map[string]*RawFunction{}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("IR directory %s absent; IR portion of BuildContext will be empty", dir)
			return out, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("walking %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".ll") {
			return nil
		}
		funcs, ferr := readFile(path)
		if ferr != nil {
			// Individual malformed files are logged and skipped; partial
			// analysis is preferable to failure.
			log.Warnf("skipping malformed IR file %s: %v", path, ferr)
			return nil
		}
		for name, f := range funcs {
			existing, ok := out[name]
			if !ok {
				out[name] = f
				continue
			}
			existing.LineCount += f.LineCount
			existing.CopyCount += f.CopyCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking IR directory %s: %w", dir, err)
	}

	return out, nil
}

// readFile extracts one function-name -> (line count, 1 copy) entry per
// "define" block found in a single IR file.
func readFile(path string) (map[string]*RawFunction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]*RawFunction{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var currentName string
	var currentLines int
	inBody := false

	flush := func() {
		if currentName == "" {
			return
		}
		if strings.HasPrefix(currentName, autocfgPrefix) {
			currentName, currentLines = "", 0
			return
		}
		out[currentName] = &RawFunction{MangledName: currentName, LineCount: currentLines, CopyCount: 1}
		currentName, currentLines = "", 0
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inBody {
			if strings.HasPrefix(trimmed, definePrefix) {
				if name, ok := parseDefineName(trimmed); ok {
					currentName = name
					currentLines = 0
					inBody = true
				}
			}
			continue
		}

		currentLines++
		if trimmed == "}" {
			inBody = false
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	// An unterminated define block at EOF is a malformed file; surface it
	// rather than silently dropping a partial function.
	if inBody {
		return nil, fmt.Errorf("%s: unterminated function definition %q", path, currentName)
	}

	return out, nil
}

// parseDefineName extracts the mangled function name from an LLVM IR
// "define" line, e.g.:
//
//	define internal void @_ZN8smallvec8SmallVec3new17h1234E() unnamed_addr #0 {
//
// returning "_ZN8smallvec8SmallVec3new17h1234E".
func parseDefineName(line string) (string, bool) {
	at := strings.IndexByte(line, '@')
	if at == -1 {
		return "", false
	}
	rest := line[at+1:]
	end := strings.IndexAny(rest, "( \t")
	if end == -1 {
		return "", false
	}
	name := strings.Trim(rest[:end], `"`)
	if name == "" {
		return "", false
	}
	return name, true
}
