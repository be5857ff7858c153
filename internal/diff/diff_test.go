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

package diff_test

import (
	"testing"

	"github.com/google/bincmp/internal/buildctx"
	"github.com/google/bincmp/internal/crate"
	"github.com/google/bincmp/internal/diff"
	"github.com/google/go-cmp/cmp"
)

func crateCtx(entries map[string]crate.ByteSize) *buildctx.BuildContext {
	var crates []*buildctx.Crate
	for name, size := range entries {
		crates = append(crates, &buildctx.Crate{
			Name: crate.New(name),
			Symbols: map[string]*buildctx.Symbol{
				name + "::a": {MangledName: name + "::a", DemangledName: name + "::a", Size: size, Crate: crate.New(name)},
			},
			IRFunctions: map[string]*buildctx.IRFunction{},
		})
	}
	return &buildctx.BuildContext{Crates: crates}
}

// Growth in one crate shows up as a single crate delta and elides the
// unchanged symbol.
func TestCompute_PureCrateGrowth(t *testing.T) {
	baseline := &buildctx.BuildContext{Crates: []*buildctx.Crate{{
		Name: crate.New("foo"),
		Symbols: map[string]*buildctx.Symbol{
			"foo::a": {MangledName: "foo::a", DemangledName: "foo::a", Size: 100, Crate: crate.New("foo")},
		},
		IRFunctions: map[string]*buildctx.IRFunction{},
	}}}
	current := &buildctx.BuildContext{Crates: []*buildctx.Crate{{
		Name: crate.New("foo"),
		Symbols: map[string]*buildctx.Symbol{
			"foo::a": {MangledName: "foo::a", DemangledName: "foo::a", Size: 100, Crate: crate.New("foo")},
			"foo::b": {MangledName: "foo::b", DemangledName: "foo::b", Size: 40, Crate: crate.New("foo")},
		},
		IRFunctions: map[string]*buildctx.IRFunction{},
	}}}

	d := diff.Compute(baseline, current)

	if len(d.CrateDeltas) != 1 || d.CrateDeltas[0].Name != "foo" || d.CrateDeltas[0].Diff != 40 {
		t.Fatalf("crate_deltas = %+v, want single foo +40", d.CrateDeltas)
	}
	if len(d.SymbolDeltas) != 1 || d.SymbolDeltas[0].Name != "foo::b" || d.SymbolDeltas[0].Diff != 40 {
		t.Fatalf("symbol_deltas = %+v, want single foo::b +40 (foo::a elided)", d.SymbolDeltas)
	}
}

// A crate present only in the baseline appears as a negative-only delta
// with a nil After.
func TestCompute_CrateRemoved(t *testing.T) {
	baseline := crateCtx(map[string]crate.ByteSize{"foo": 100, "bar": 50})
	current := crateCtx(map[string]crate.ByteSize{"foo": 100})

	d := diff.Compute(baseline, current)

	if len(d.CrateDeltas) != 1 || d.CrateDeltas[0].Name != "bar" || d.CrateDeltas[0].Diff != -50 {
		t.Fatalf("crate_deltas = %+v, want single bar -50", d.CrateDeltas)
	}
	if d.CrateDeltas[0].After != nil {
		t.Errorf("removed crate's After should be nil")
	}
	if d.Totals.CrateCountDelta() != -1 {
		t.Errorf("CrateCountDelta = %d, want -1", d.Totals.CrateCountDelta())
	}
}

// A symbol migrating between crates at constant size elides from the
// aggregate symbol deltas but still shows up as an equal and opposite pair
// of crate deltas.
func TestCompute_SymbolMigratesBetweenCrates(t *testing.T) {
	baseline := &buildctx.BuildContext{Crates: []*buildctx.Crate{
		{Name: crate.New("alpha"), Symbols: map[string]*buildctx.Symbol{
			"m": {MangledName: "m", DemangledName: "X::method", Size: 200, Crate: crate.New("alpha")},
		}, IRFunctions: map[string]*buildctx.IRFunction{}},
	}}
	current := &buildctx.BuildContext{Crates: []*buildctx.Crate{
		{Name: crate.New("beta"), Symbols: map[string]*buildctx.Symbol{
			"m": {MangledName: "m", DemangledName: "X::method", Size: 200, Crate: crate.New("beta")},
		}, IRFunctions: map[string]*buildctx.IRFunction{}},
	}}

	d := diff.Compute(baseline, current)

	for _, sd := range d.SymbolDeltas {
		if sd.Name == "X::method" {
			t.Errorf("X::method should be elided from symbol_deltas (zero aggregate diff), found %+v", sd)
		}
	}

	wantCrateDeltas := map[string]int64{"alpha": -200, "beta": 200}
	if len(d.CrateDeltas) != 2 {
		t.Fatalf("crate_deltas = %+v, want 2 entries", d.CrateDeltas)
	}
	for _, cd := range d.CrateDeltas {
		if want, ok := wantCrateDeltas[cd.Name]; !ok || cd.Diff != want {
			t.Errorf("crate delta %+v unexpected", cd)
		}
	}
}

// A change to IR line count alone, with unchanged binary size, produces
// an IR function delta but no symbol or text-size delta.
func TestCompute_IROnlyChange(t *testing.T) {
	mkCtx := func(lines int) *buildctx.BuildContext {
		return &buildctx.BuildContext{
			TextSize: 1000,
			Crates: []*buildctx.Crate{{
				Name:    crate.New("foo"),
				Symbols: map[string]*buildctx.Symbol{},
				IRFunctions: map[string]*buildctx.IRFunction{
					"f": {MangledName: "f", DemangledName: "foo::generic", LineCount: lines, CopyCount: 1, Crate: crate.New("foo")},
				},
			}},
		}
	}
	baseline := mkCtx(100)
	current := mkCtx(400)

	d := diff.Compute(baseline, current)

	if len(d.SymbolDeltas) != 0 {
		t.Errorf("symbol_deltas should be empty, got %+v", d.SymbolDeltas)
	}
	if len(d.IRFunctionDeltas) != 1 || d.IRFunctionDeltas[0].Diff != 300 {
		t.Fatalf("ir_function_deltas = %+v, want single +300", d.IRFunctionDeltas)
	}
	if d.Totals.TextSizeDelta() != 0 {
		t.Errorf("TextSizeDelta = %d, want 0", d.Totals.TextSizeDelta())
	}
}

// Diffing a build context against itself has empty delta lists and
// zero totals-delta.
func TestCompute_Reflexivity(t *testing.T) {
	ctx := crateCtx(map[string]crate.ByteSize{"foo": 100, "bar": 50})
	d := diff.Compute(ctx, ctx)

	if len(d.CrateDeltas) != 0 || len(d.SymbolDeltas) != 0 || len(d.IRFunctionDeltas) != 0 {
		t.Fatalf("diff(B,B) should have empty delta lists, got %+v", d)
	}
	if d.Totals.TextSizeDelta() != 0 || d.Totals.CrateCountDelta() != 0 {
		t.Errorf("diff(B,B) totals should be zero-delta")
	}
}

// Swapping baseline and current negates every signed delta.
func TestCompute_AntiSymmetry(t *testing.T) {
	a := crateCtx(map[string]crate.ByteSize{"foo": 100})
	b := crateCtx(map[string]crate.ByteSize{"foo": 140})

	ab := diff.Compute(a, b)
	ba := diff.Compute(b, a)

	if ab.Totals.TextSizeDelta() != -ba.Totals.TextSizeDelta() {
		t.Errorf("text size delta not anti-symmetric: %d vs %d", ab.Totals.TextSizeDelta(), ba.Totals.TextSizeDelta())
	}
	if ab.Totals.CrateCountDelta() != -ba.Totals.CrateCountDelta() {
		t.Errorf("crate count delta not anti-symmetric")
	}
}

// Every delta entry has |diff| > 0, and lists are sorted by |diff|
// descending, breaking ties by name ascending.
func TestCompute_DeltaListsAreNonZeroAndSorted(t *testing.T) {
	baseline := crateCtx(map[string]crate.ByteSize{"a": 10, "b": 10, "c": 100})
	current := crateCtx(map[string]crate.ByteSize{"a": 10, "b": 30, "c": 50})

	d := diff.Compute(baseline, current)
	for _, cd := range d.CrateDeltas {
		if cd.Diff == 0 {
			t.Errorf("zero-diff entry should have been elided: %+v", cd)
		}
	}
	for i := 1; i < len(d.CrateDeltas); i++ {
		prev, cur := d.CrateDeltas[i-1], d.CrateDeltas[i]
		prevAbs, curAbs := abs(prev.Diff), abs(cur.Diff)
		if prevAbs < curAbs {
			t.Errorf("not sorted by |diff| desc: %+v before %+v", prev, cur)
		}
		if prevAbs == curAbs && prev.Name > cur.Name {
			t.Errorf("tie not broken by name asc: %+v before %+v", prev, cur)
		}
	}
}

// Running Compute twice on identical inputs yields byte-identical
// results.
func TestCompute_Deterministic(t *testing.T) {
	baseline := crateCtx(map[string]crate.ByteSize{"foo": 100, "bar": 50})
	current := crateCtx(map[string]crate.ByteSize{"foo": 140})

	d1 := diff.Compute(baseline, current)
	d2 := diff.Compute(baseline, current)

	if diffStr := cmp.Diff(d1, d2); diffStr != "" {
		t.Errorf("Compute is not deterministic (-first +second):\n%s", diffStr)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
