package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the wire layout used for dates in JSON and query strings.
	DateLayout = "2006-01-02"
	// MonthLayout is the key layout of pivot columns.
	MonthLayout = "2006-01"
)

type (
	Date struct {
		time.Time
	}

	// Operation is one normalized bank operation after deduplication on
	// (Category, Subcategory, Label, Date).
	Operation struct {
		Category    string
		Subcategory string
		Label       string
		Date        Date
		Amount      decimal.Decimal // credit + debit, debit is negative
	}

	// OperationTable is the loader output.
	OperationTable struct {
		Operations   []Operation
		DroppedDates int // groups dropped because their date did not parse
	}

	// Expense is a negative operation that survived the quantile filter.
	Expense struct {
		Operation
		AmountAbs decimal.Decimal
	}
)

var (
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyLabel    = errors.New("empty label")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s with layout and truncates to a UTC calendar day.
func ParseDate(layout, s string) (Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// MonthKey returns the YYYY-MM bucket of the date.
func (d Date) MonthKey() string {
	return d.Format(MonthLayout)
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(DateLayout, s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (o Operation) Validate() error {
	if strings.TrimSpace(o.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(o.Label) == "" {
		return ErrEmptyLabel
	}
	return o.Date.Validate()
}

// IsExpense reports whether the operation is an outflow.
func (o Operation) IsExpense() bool {
	return o.Amount.IsNegative()
}

// NewExpense derives the absolute amount from a negative operation.
func NewExpense(o Operation) Expense {
	return Expense{Operation: o, AmountAbs: o.Amount.Neg()}
}
