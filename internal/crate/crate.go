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

// Package crate defines the smallest shared value types of the bincmp data
// model: byte counts and crate identity.
package crate

import "sort"

// UnknownName is the bucket every symbol that the attributor (package
// mangle) could not resolve to a known crate is filed under.
const UnknownName = "[unknown]"

// StdNames enumerates the standard-library crates recognized by the
// attributor. Order does not matter; membership does.
var StdNames = map[string]bool{
	"core":       true,
	"alloc":      true,
	"std":        true,
	"proc_macro": true,
	"test":       true,
}

// ByteSize is a non-negative byte count.
type ByteSize uint64

// Sub returns the signed delta b - other.
func (b ByteSize) Sub(other ByteSize) int64 {
	return int64(b) - int64(other)
}

// Name identifies one library in the dependency graph: the attribution unit.
// Equality is by string; ordering is lexicographic.
type Name struct {
	Value string
	IsStd bool
}

// New returns a Name, marking it standard-library if it matches StdNames.
func New(value string) Name {
	return Name{Value: value, IsStd: StdNames[value]}
}

// Unknown returns the well-known "[unknown]" bucket name.
func Unknown() Name {
	return Name{Value: UnknownName, IsStd: false}
}

// String implements fmt.Stringer.
func (n Name) String() string { return n.Value }

// Less orders Names lexicographically by Value.
func (n Name) Less(other Name) bool { return n.Value < other.Value }

// Equal reports whether two Names share the same string identity.
func (n Name) Equal(other Name) bool { return n.Value == other.Value }

// Set is a set of crate Names, used for BuildContext.DepsSymbols-adjacent
// bookkeeping (the set of known dependency crate *names*, as opposed to
// symbols) and for AggregateSymbol/AggregateIRFunction's "crates" field.
type Set map[string]Name

// NewSet builds a Set from a list of Names.
func NewSet(names ...Name) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n.Value] = n
	}
	return s
}

// Add inserts n into the set.
func (s Set) Add(n Name) { s[n.Value] = n }

// Has reports whether value is present in the set.
func (s Set) Has(value string) bool {
	_, ok := s[value]
	return ok
}

// Get returns the Name for value, if present.
func (s Set) Get(value string) (Name, bool) {
	n, ok := s[value]
	return n, ok
}

// SortedValues returns the set's string values in ascending order.
func (s Set) SortedValues() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
