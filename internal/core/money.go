// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts as they appear in
// bank exports and formatting them back for display.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a bank-export amount to a decimal.
//
// decimalMark is the configured decimal separator ("," for French exports).
// Blank cells are reported with ok=false and a zero value so that callers can
// treat them as missing. Spaces used as thousands separators are ignored.
//
// Examples:
//
//	ParseAmount("-12,34", ",") -> -12.34, true, nil
//	ParseAmount("1 250,00", ",") -> 1250, true, nil
//	ParseAmount("", ",") -> 0, false, nil
func ParseAmount(s, decimalMark string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if decimalMark != "" && decimalMark != "." {
		if strings.Contains(s, ".") {
			return decimal.Zero, false, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, decimalMark, ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, ErrInvalidAmount
	}
	return d, true, nil
}

// FormatEuros renders an amount with two decimals and a euro sign.
func FormatEuros(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}
