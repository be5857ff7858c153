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

// Package arread reads the common (GNU/SysV) "ar" archive format used by
// .rlib static library artifacts, just enough to locate the object files
// each .rlib contains.
package arread

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	globalHeader = "!<arch>\n"
	headerSize   = 60
)

// Header is one archive member's metadata.
type Header struct {
	Name string
	Size int64
}

// Reader reads successive members of an ar archive.
type Reader struct {
	r         *bufio.Reader
	longNames string // the GNU "//" long-filename table, once seen
	remaining int64  // bytes left to read in the current member
	pad       bool   // whether a padding byte follows the current member
}

// NewReader validates the global header and returns a Reader positioned at
// the first member.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(globalHeader))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("reading ar global header: %w", err)
	}
	if string(magic) != globalHeader {
		return nil, errors.New("not an ar archive: bad global header")
	}
	return &Reader{r: br}, nil
}

// Next advances to the next member and returns its header. It
// transparently resolves GNU long names (the "//" member and "/N"
// references into it).
func (r *Reader) Next() (*Header, error) {
	if r.remaining > 0 {
		if _, err := io.CopyN(io.Discard, r.r, r.remaining); err != nil {
			return nil, err
		}
		r.remaining = 0
	}
	if r.pad {
		if _, err := r.r.Discard(1); err != nil && err != io.EOF {
			return nil, err
		}
		r.pad = false
	}

	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r.r, raw); err != nil {
		return nil, err
	}

	name := strings.TrimRight(string(raw[0:16]), " ")
	sizeField := strings.TrimSpace(string(raw[48:58]))
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad ar member size field %q: %w", sizeField, err)
	}

	r.remaining = size
	r.pad = size%2 == 1

	if name == "//" {
		// The GNU long-filename store itself: slurp it and recurse to the
		// next real member.
		buf := make([]byte, size)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return nil, err
		}
		r.remaining = 0
		if r.pad {
			r.r.Discard(1)
			r.pad = false
		}
		r.longNames = string(buf)
		return r.Next()
	}

	if strings.HasPrefix(name, "/") && name != "/" {
		if idx, err := strconv.Atoi(name[1:]); err == nil {
			name = longNameAt(r.longNames, idx)
		}
	}

	return &Header{Name: name, Size: size}, nil
}

// Read reads from the current member's body.
func (r *Reader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.r.Read(p)
	r.remaining -= int64(n)
	return n, err
}

// longNameAt extracts the "/"-terminated entry at byte offset idx within
// the GNU long-filename table.
func longNameAt(table string, idx int) string {
	if idx < 0 || idx >= len(table) {
		return ""
	}
	rest := table[idx:]
	if end := strings.IndexByte(rest, '\n'); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSuffix(rest, "/")
}
