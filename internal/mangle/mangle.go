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

// Package mangle demangles linker-level symbol names and attributes them to
// the crate that owns them. It is pure: no I/O, no shared state.
package mangle

import (
	"regexp"
	"strings"

	"github.com/google/bincmp/internal/crate"
	"github.com/ianlancetaylor/demangle"
)

// traitImplPattern recognizes the generic trait-implementation form
// `<T as Trait>::method`, capturing T so rule 1 can extract its owning
// crate.
var traitImplPattern = regexp.MustCompile(`^<(.+) as .+>::`)

// Result is the outcome of attributing one mangled symbol name.
type Result struct {
	// Demangled is the human-readable form. If demangling failed, this is
	// the original mangled name.
	Demangled string
	// Crate is the resolved owner, or the "[unknown]" bucket.
	Crate crate.Name
}

// Attribute demangles name and resolves its owning crate against the set of
// known dependency crates, per five ordered rules. When none of those
// rules resolve a crate, a last-resort lookup of the raw mangled name
// against depsSymbols (symbols a dependency's rlib archive was observed to
// define) catches names whose demangled first segment doesn't identify
// their owning crate at all, before falling to the unknown bucket.
func Attribute(name string, deps crate.Set, depsSymbols map[string]crate.Name) Result {
	demangled, err := demangle.ToString(name, demangle.NoClones)
	if err != nil {
		// Demangling failure is not fatal: proceed on the raw string.
		demangled = name
	}

	segment := firstSegment(demangled)

	// Rule 1: <T as Trait>::method — attribute to T's declaring crate.
	if m := traitImplPattern.FindStringSubmatch(demangled); m != nil {
		segment = firstSegment(m[1])
	}

	segment = strings.TrimPrefix(segment, "<")

	// Rule 3 before rule 4: stdlib wins over a same-named dependency.
	if crate.StdNames[segment] {
		return Result{Demangled: demangled, Crate: crate.Name{Value: segment, IsStd: true}}
	}
	if n, ok := deps.Get(segment); ok {
		return Result{Demangled: demangled, Crate: n}
	}
	if n, ok := depsSymbols[name]; ok {
		return Result{Demangled: demangled, Crate: n}
	}

	return Result{Demangled: demangled, Crate: crate.Unknown()}
}

// firstSegment returns the first "::"-separated path segment of a demangled
// name (rule 2).
func firstSegment(demangled string) string {
	if i := strings.Index(demangled, "::"); i >= 0 {
		return demangled[:i]
	}
	return demangled
}
