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

package mangle_test

import (
	"testing"

	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/internal/mangle"
)

func TestAttribute(t *testing.T) {
	deps := crate.NewSet(crate.New("smallvec"), crate.New("serde"), crate.New("core"))

	tests := []struct {
		name      string
		mangled   string
		wantCrate string
		wantStd   bool
	}{
		{
			name:      "plain dependency path",
			mangled:   "_ZN8smallvec8SmallVec3new17h1234567890abcdefE",
			wantCrate: "smallvec",
		},
		{
			name:      "stdlib wins over same-named dependency",
			mangled:   "_ZN4core3fmt5Write9write_fmt17h1234567890abcdefE",
			wantCrate: "core",
			wantStd:   true,
		},
		{
			name:      "unresolvable falls to unknown bucket",
			mangled:   "not_a_mangled_name_at_all",
			wantCrate: crate.UnknownName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mangle.Attribute(tt.mangled, deps, nil)
			if got.Crate.Value != tt.wantCrate {
				t.Errorf("Attribute(%q).Crate = %q, want %q", tt.mangled, got.Crate.Value, tt.wantCrate)
			}
			if got.Crate.IsStd != tt.wantStd {
				t.Errorf("Attribute(%q).Crate.IsStd = %v, want %v", tt.mangled, got.Crate.IsStd, tt.wantStd)
			}
		})
	}
}

func TestAttribute_TraitImplExtractsOwningType(t *testing.T) {
	deps := crate.NewSet(crate.New("libflate"))

	// Demangled form would resemble: <libflate::gzip::MultiDecoder as std::io::Read>::read
	// We can't control demangle's exact output for a synthetic mangled string
	// here without a real compiler-produced symbol, so this test exercises
	// the regex-driven extraction directly via the rule-1 shape by checking
	// that a name already in demangled form (simulating a demangle failure
	// that still contains the infix pattern) resolves to the owning type's
	// crate rather than "std".
	got := mangle.Attribute("<libflate::gzip::MultiDecoder as std::io::Read>::read", deps, nil)
	if got.Crate.Value != "libflate" {
		t.Errorf("got crate %q, want libflate", got.Crate.Value)
	}
}

func TestAttribute_DemangleFailurePreservesRawName(t *testing.T) {
	got := mangle.Attribute("$$$not valid$$$", crate.Set{}, nil)
	if got.Demangled != "$$$not valid$$$" {
		t.Errorf("Demangled = %q, want original raw string preserved", got.Demangled)
	}
	if got.Crate.Value != crate.UnknownName {
		t.Errorf("Crate = %q, want unknown bucket", got.Crate.Value)
	}
}

func TestAttribute_FallsBackToRlibSymbolOwnerBeforeUnknown(t *testing.T) {
	depsSymbols := map[string]crate.Name{
		"_ZN10regex_auto7helper17h1234567890abcdefE": crate.New("regex-automata"),
	}

	got := mangle.Attribute("_ZN10regex_auto7helper17h1234567890abcdefE", crate.Set{}, depsSymbols)
	if got.Crate.Value != "regex-automata" {
		t.Errorf("Crate = %q, want regex-automata", got.Crate.Value)
	}
}

func TestAttribute_DepsCrateNameWinsOverRlibSymbolFallback(t *testing.T) {
	deps := crate.NewSet(crate.New("smallvec"))
	depsSymbols := map[string]crate.Name{
		"_ZN8smallvec8SmallVec3new17h1234567890abcdefE": crate.New("some-other-crate"),
	}

	got := mangle.Attribute("_ZN8smallvec8SmallVec3new17h1234567890abcdefE", deps, depsSymbols)
	if got.Crate.Value != "smallvec" {
		t.Errorf("Crate = %q, want smallvec (segment match should win)", got.Crate.Value)
	}
}
