package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

const (
	msgMissing = "missing columns: "
	msgExtra   = "extra columns: "
	msgOrder   = "column order does not match the expected schema"
	msgError   = "validation error: "
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ValidateSchema reads the header row of r and compares it with the required
// columns, by set and by order. It never returns an error: failures are
// reported as ok=false with a readable message. r is rewound to offset 0
// afterwards so the caller can load the full file.
func ValidateSchema(r io.ReadSeeker, f Format) (ok bool, message string) {
	header, err := readHeader(r, f)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil && err == nil {
		err = seekErr
	}
	if err != nil {
		return false, msgError + err.Error()
	}
	return CompareColumns(header, f.RequiredColumns)
}

// CompareColumns reports missing and extra columns, and an order mismatch
// when both sides hold the same set. Parts are joined with " | ".
func CompareColumns(observed, expected []string) (bool, string) {
	seen := make(map[string]bool, len(observed))
	for _, c := range observed {
		seen[c] = true
	}
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
	}

	var missing, extra []string
	for c := range want {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	for c := range seen {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, msgMissing+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, msgExtra+strings.Join(extra, ", "))
	}
	if len(parts) == 0 && !sameOrder(observed, expected) {
		parts = append(parts, msgOrder)
	}
	if len(parts) > 0 {
		return false, strings.Join(parts, " | ")
	}
	return true, ""
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// readHeader decodes just enough of r to return the first CSV record.
func readHeader(r io.Reader, f Format) ([]string, error) {
	enc, err := f.encoding()
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	var src io.Reader = br
	utf8Input := f.isUTF8()
	if utf8Input {
		if b, _ := br.Peek(len(utf8BOM)); bytes.Equal(b, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
	} else {
		src = transform.NewReader(src, enc.NewDecoder())
	}
	cr := newCSVReader(src, f)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyData
	}
	if err != nil {
		return nil, err
	}
	if utf8Input {
		for _, col := range header {
			if !utf8.ValidString(col) {
				return nil, fmt.Errorf("%w: header is not valid utf-8", ErrEncoding)
			}
		}
	}
	return header, nil
}

func newCSVReader(r io.Reader, f Format) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = f.Separator
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	return cr
}
