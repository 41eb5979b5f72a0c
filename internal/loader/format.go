// Package loader reads bank operation exports: it checks the header against
// the expected schema and normalizes rows into core.Operation values.
package loader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Canonical fields the column mapping must cover.
const (
	FieldCategory    = "category"
	FieldSubcategory = "subcategory"
	FieldLabel       = "label"
	FieldDebit       = "debit"
	FieldCredit      = "credit"
	FieldDate        = "date"
)

var canonicalFields = []string{FieldCategory, FieldSubcategory, FieldLabel, FieldDebit, FieldCredit, FieldDate}

// Format describes how an export is encoded and which columns it carries.
type Format struct {
	Separator       rune
	Decimal         string
	Encoding        string
	DateLayout      string
	ColumnMapping   map[string]string // source header -> canonical field
	RequiredColumns []string
}

// DefaultColumnMapping maps the bank export headers to canonical fields.
func DefaultColumnMapping() map[string]string {
	return map[string]string{
		"Categorie":         FieldCategory,
		"Sous categorie":    FieldSubcategory,
		"Libelle operation": FieldLabel,
		"Debit":             FieldDebit,
		"Credit":            FieldCredit,
		"Date operation":    FieldDate,
	}
}

// DefaultRequiredColumns is the exact header of a bank export, in order.
func DefaultRequiredColumns() []string {
	return []string{
		"Date de comptabilisation",
		"Libelle simplifie",
		"Libelle operation",
		"Reference",
		"Informations complementaires",
		"Type operation",
		"Categorie",
		"Sous categorie",
		"Debit",
		"Credit",
		"Date operation",
		"Date de valeur",
		"Pointage operation",
	}
}

// DefaultFormat returns the settings of the French bank export.
func DefaultFormat() Format {
	return Format{
		Separator:       ';',
		Decimal:         ",",
		Encoding:        "utf-8",
		DateLayout:      "02/01/2006",
		ColumnMapping:   DefaultColumnMapping(),
		RequiredColumns: DefaultRequiredColumns(),
	}
}

// NewFormat builds a Format from string settings, as read from configuration.
func NewFormat(separator, decimalMark, enc, dateLayout string, mapping map[string]string, required []string) (Format, error) {
	sep, size := utf8.DecodeRuneInString(separator)
	if sep == utf8.RuneError || size != len(separator) {
		return Format{}, fmt.Errorf("invalid separator %q", separator)
	}
	f := Format{
		Separator:       sep,
		Decimal:         decimalMark,
		Encoding:        enc,
		DateLayout:      dateLayout,
		ColumnMapping:   mapping,
		RequiredColumns: required,
	}
	if _, err := f.encoding(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// sourceColumn returns the header mapped to a canonical field.
func (f Format) sourceColumn(field string) (string, bool) {
	for src, dst := range f.ColumnMapping {
		if dst == field {
			return src, true
		}
	}
	return "", false
}

func (f Format) encoding() (encoding.Encoding, error) {
	name := strings.TrimSpace(f.Encoding)
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", f.Encoding, err)
	}
	return enc, nil
}

func (f Format) isUTF8() bool {
	enc, err := f.encoding()
	if err != nil {
		return false
	}
	n, err := htmlindex.Name(enc)
	return err == nil && n == "utf-8"
}
