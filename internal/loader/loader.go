package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

var (
	// ErrNotFound is returned when the operations file does not exist.
	ErrNotFound = errors.New("operations file not found")
	// ErrEmptyData is returned for a file with no bytes or no header row.
	ErrEmptyData = errors.New("operations file is empty")
	// ErrMissingColumn is wrapped by ParseError when a mapped column is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrEncoding is returned when bytes do not decode with the configured encoding.
	ErrEncoding = errors.New("invalid encoding")
)

// ParseError is the generic load failure. Line is 0 when the failure is not
// tied to a row.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("parse error at line %d, column %q: %v", e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("parse error in column %q: %v", e.Column, e.Err)
	default:
		return fmt.Sprintf("parse error: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader turns raw export bytes into an aggregated operation table.
type Loader struct {
	format Format
}

// New creates a Loader for the given format.
func New(f Format) *Loader {
	return &Loader{format: f}
}

// Format returns the loader's format.
func (l *Loader) Format() Format {
	return l.format
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(path string) (core.OperationTable, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.OperationTable{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return core.OperationTable{}, &ParseError{Err: err}
	}
	defer file.Close()
	return l.Load(file)
}

// groupKey identifies an output operation. badDate holds the trimmed text of
// a date that did not parse; such groups are dropped.
type groupKey struct {
	category, subcategory, label string
	date                         core.Date
	badDate                      string
}

// Load reads every row, computes amount = debit + credit with blanks as zero,
// sums amounts per (category, subcategory, label, date) in first-seen order
// and stable-sorts the groups by category. Groups whose date does not parse
// are dropped and counted.
func (l *Loader) Load(r io.Reader) (core.OperationTable, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return core.OperationTable{}, &ParseError{Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return core.OperationTable{}, ErrEmptyData
	}
	text, err := l.decode(raw)
	if err != nil {
		return core.OperationTable{}, &ParseError{Err: err}
	}

	cr := newCSVReader(bytes.NewReader(text), l.format)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.OperationTable{}, ErrEmptyData
	}
	if err != nil {
		return core.OperationTable{}, &ParseError{Line: 1, Err: err}
	}

	idx, err := l.columnIndexes(header)
	if err != nil {
		return core.OperationTable{}, err
	}

	sums := make(map[groupKey]decimal.Decimal)
	var order []groupKey
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError already carries the line.
			return core.OperationTable{}, &ParseError{Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return core.OperationTable{}, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", len(header), len(rec))}
		}

		amount := decimal.Zero
		for _, field := range []string{FieldDebit, FieldCredit} {
			v, _, err := core.ParseAmount(cell(rec, idx[field]), l.format.Decimal)
			if err != nil {
				return core.OperationTable{}, &ParseError{Line: line, Column: header[idx[field]], Err: err}
			}
			amount = amount.Add(v)
		}

		key := groupKey{
			category:    cell(rec, idx[FieldCategory]),
			subcategory: cell(rec, idx[FieldSubcategory]),
			label:       cell(rec, idx[FieldLabel]),
		}
		rawDate := strings.TrimSpace(cell(rec, idx[FieldDate]))
		if d, err := core.ParseDate(l.format.DateLayout, rawDate); err == nil {
			key.date = d
		} else {
			key.badDate = rawDate
		}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] = sums[key].Add(amount)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].category < order[j].category
	})

	table := core.OperationTable{Operations: make([]core.Operation, 0, len(order))}
	for _, key := range order {
		if key.date.IsZero() {
			table.DroppedDates++
			continue
		}
		table.Operations = append(table.Operations, core.Operation{
			Category:    key.category,
			Subcategory: key.subcategory,
			Label:       key.label,
			Date:        key.date,
			Amount:      sums[key],
		})
	}
	if table.DroppedDates > 0 {
		slog.Warn("Dropped operations with unparseable dates",
			"dropped", table.DroppedDates,
			"kept", len(table.Operations),
			"layout", l.format.DateLayout)
	}
	return table, nil
}

func (l *Loader) columnIndexes(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	idx := make(map[string]int, len(canonicalFields))
	for _, field := range canonicalFields {
		src, ok := l.format.sourceColumn(field)
		if !ok {
			return nil, &ParseError{Column: field, Err: fmt.Errorf("%w: no mapping for %s", ErrMissingColumn, field)}
		}
		i, ok := pos[src]
		if !ok {
			return nil, &ParseError{Column: src, Err: ErrMissingColumn}
		}
		idx[field] = i
	}
	return idx, nil
}

func (l *Loader) decode(raw []byte) ([]byte, error) {
	if l.format.isUTF8() {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return nil, ErrEncoding
		}
		return raw, nil
	}
	enc, err := l.format.encoding()
	if err != nil {
		return nil, err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return out, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
