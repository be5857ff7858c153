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

// Package binaryread opens a platform-native executable and enumerates the
// defined symbols in its code section. It supports ELF, Mach-O and PE.
package binaryread

import (
	"debug/elf"
	"debug/macho"
	"fmt"
	"os"
	"sort"

	"github.com/google/bincmp/internal/crate"
	"github.com/saferwall/pe"
)

// RawSymbol is one defined text-section symbol as read straight off the
// binary, before demangling/attribution.
type RawSymbol struct {
	MangledName string
	Address     uint64
	Size        crate.ByteSize
}

// Result is the complete output of reading one binary.
type Result struct {
	Symbols  []RawSymbol
	TextSize crate.ByteSize
}

// IOError wraps a failure to read the file at all.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// FormatError wraps a failure to parse the file as a recognized executable
// format, or a malformed symbol table within an otherwise-recognized file.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e *FormatError) Unwrap() error { return e.Err }

// Read opens path and enumerates its code section's defined, nonzero-size
// text symbols.
func Read(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	switch {
	case isELFMagic(magic):
		return readELF(path, f)
	case isMachOMagic(magic):
		return readMachO(path, f)
	case isPEMagic(magic):
		return readPE(path)
	default:
		return nil, &FormatError{Path: path, Err: fmt.Errorf("unrecognized executable format")}
	}
}

func isELFMagic(b []byte) bool { return len(b) >= 4 && string(b[:4]) == "\x7fELF" }

func isMachOMagic(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	magics := [][4]byte{
		{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe},
		{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe},
	}
	for _, m := range magics {
		if b[0] == m[0] && b[1] == m[1] && b[2] == m[2] && b[3] == m[3] {
			return true
		}
	}
	return false
}

func isPEMagic(b []byte) bool { return len(b) >= 2 && b[0] == 'M' && b[1] == 'Z' }

// addrSym is a symbol known by address but possibly missing a recorded
// size, as can happen for some ELF local symbols.
type addrSym struct {
	name string
	addr uint64
	size uint64
}

// deriveSizes sorts syms by address and fills in any missing (zero) size as
// next_symbol_address - this_symbol_address within the section, clamping to
// sectionEnd for the last symbol. Zero-size symbols that
// remain after derivation (e.g. the final symbol abutting the section end)
// are left out of the returned slice.
func deriveSizes(syms []addrSym, sectionEnd uint64) []RawSymbol {
	sort.Slice(syms, func(i, j int) bool { return syms[i].addr < syms[j].addr })

	out := make([]RawSymbol, 0, len(syms))
	for i, s := range syms {
		size := s.size
		if size == 0 {
			var end uint64
			if i+1 < len(syms) {
				end = syms[i+1].addr
			} else {
				end = sectionEnd
			}
			if end > s.addr {
				size = end - s.addr
			}
		}
		if size == 0 {
			continue
		}
		out = append(out, RawSymbol{MangledName: s.name, Address: s.addr, Size: crate.ByteSize(size)})
	}
	return out
}

func readELF(path string, f *os.File) (*Result, error) {
	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	defer ef.Close()

	var textIdx int = -1
	for i, sec := range ef.Sections {
		if sec.Name == ".text" {
			textIdx = i
			break
		}
	}
	if textIdx == -1 {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("no .text section")}
	}
	text := ef.Sections[textIdx]

	syms, err := ef.Symbols()
	if err != nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("reading symbol table: %w", err)}
	}

	var inText []addrSym
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		bind := elf.ST_BIND(s.Info)
		if bind != elf.STB_GLOBAL && bind != elf.STB_LOCAL && bind != elf.STB_WEAK {
			continue
		}
		if int(s.Section) != textIdx {
			continue
		}
		inText = append(inText, addrSym{name: s.Name, addr: s.Value, size: s.Size})
	}

	return &Result{
		TextSize: crate.ByteSize(text.Size),
		Symbols:  deriveSizes(inText, text.Addr+text.Size),
	}, nil
}

func readMachO(path string, f *os.File) (*Result, error) {
	mf, err := macho.NewFile(f)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	defer mf.Close()

	var text *macho.Section
	for _, sec := range mf.Sections {
		if sec.Name == "__text" {
			text = sec
			break
		}
	}
	if text == nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("no __text section")}
	}
	if mf.Symtab == nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("no symbol table")}
	}

	var inText []addrSym
	for _, s := range mf.Symtab.Syms {
		if s.Value < text.Addr || s.Value >= text.Addr+text.Size {
			continue
		}
		if s.Name == "" {
			continue
		}
		inText = append(inText, addrSym{name: s.Name, addr: s.Value})
	}

	return &Result{
		TextSize: crate.ByteSize(text.Size),
		Symbols:  deriveSizes(inText, text.Addr+text.Size),
	}, nil
}

// readPE uses saferwall/pe rather than the standard library's debug/pe,
// which does not expose the COFF symbol table entries this reader needs;
// debug/pe only surfaces section headers and the export/import directories.
func readPE(path string) (*Result, error) {
	pf, err := pe.New(path, &pe.Options{})
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer pf.CloseFile()

	if err := pf.Parse(); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	var text *pe.Section
	for i := range pf.Sections {
		if sectionName(&pf.Sections[i]) == ".text" {
			text = &pf.Sections[i]
			break
		}
	}
	if text == nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("no .text section")}
	}

	var inText []addrSym
	for _, sym := range pf.Symbols {
		if int(sym.SectionNumber) != textSectionNumber(pf, text) {
			continue
		}
		if sym.StorageClass != pe.ImageSymClassExternal && sym.StorageClass != pe.ImageSymClassStatic {
			continue
		}
		name := pf.GetStringFromCOFFSymbolTable(sym)
		if name == "" {
			continue
		}
		inText = append(inText, addrSym{name: name, addr: uint64(text.Header.VirtualAddress) + uint64(sym.Value)})
	}

	sectionEnd := uint64(text.Header.VirtualAddress) + uint64(text.Header.VirtualSize)
	return &Result{
		TextSize: crate.ByteSize(text.Header.VirtualSize),
		Symbols:  deriveSizes(inText, sectionEnd),
	}, nil
}

func sectionName(s *pe.Section) string {
	n := s.Header.Name
	end := 0
	for end < len(n) && n[end] != 0 {
		end++
	}
	return string(n[:end])
}

func textSectionNumber(pf *pe.File, text *pe.Section) int {
	for i := range pf.Sections {
		if &pf.Sections[i] == text {
			return i + 1 // COFF section numbers are 1-based.
		}
	}
	return -1
}
