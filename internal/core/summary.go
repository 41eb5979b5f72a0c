package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statistics summarizes the absolute amounts of an expense set.
// Mean, Min and Max are null when the set is empty.
type Statistics struct {
	Count int                 `json:"count"`
	Total decimal.Decimal     `json:"total"`
	Mean  decimal.NullDecimal `json:"mean"`
	Min   decimal.NullDecimal `json:"min"`
	Max   decimal.NullDecimal `json:"max"`
}

// ChartPoint is one (category, subcategory) slice of a hierarchical chart.
type ChartPoint struct {
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	AmountAbs   decimal.Decimal `json:"amount_abs"`
}

// CategoryTotal represents an absolute amount aggregated by category name.
type CategoryTotal struct {
	Category  string          `json:"category"`
	AmountAbs decimal.Decimal `json:"amount_abs"`
}

// SummaryRow is one line of the drill-down table. Totals are signed; ratios
// are percentages rounded to one decimal and null when the parent is zero.
type SummaryRow struct {
	Category         string              `json:"category"`
	Subcategory      string              `json:"subcategory"`
	Label            string              `json:"label"`
	Date             Date                `json:"date,omitempty"`
	Total            decimal.Decimal     `json:"total"`
	SubcategoryTotal decimal.Decimal     `json:"subcategory_total"`
	CategoryTotal    decimal.Decimal     `json:"category_total"`
	GlobalTotal      decimal.Decimal     `json:"global_total"`
	DetailRatio      decimal.NullDecimal `json:"detail_ratio"`
	SubcategoryRatio decimal.NullDecimal `json:"subcategory_ratio"`
	CategoryRatio    decimal.NullDecimal `json:"category_ratio"`
}

// PivotRow holds one category across the pivot months.
type PivotRow struct {
	Category string            `json:"category"`
	Cells    []decimal.Decimal `json:"cells"` // aligned with Pivot.Months
	Total    decimal.Decimal   `json:"total"`
}

// Pivot is a category x month matrix of signed amounts.
type Pivot struct {
	Months []string   `json:"months"`
	Rows   []PivotRow `json:"rows"`
}

// IsEmpty reports whether the pivot has no rows.
func (p Pivot) IsEmpty() bool {
	return len(p.Rows) == 0
}

// Page is one slice of the summary table.
type Page struct {
	Number     int          `json:"number"`
	Size       int          `json:"size"`
	TotalRows  int          `json:"total_rows"`
	TotalPages int          `json:"total_pages"`
	Rows       []SummaryRow `json:"rows"`
}

// FilterOptions lists the values a client can narrow on.
type FilterOptions struct {
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
	MinDate       Date     `json:"min_date"`
	MaxDate       Date     `json:"max_date"`
}

// Analysis is the full pipeline output for one source and parameter set.
type Analysis struct {
	Source            string          `json:"source"`
	QuantileThreshold float64         `json:"quantile_threshold"`
	DroppedDates      int             `json:"dropped_dates"`
	Operations        int             `json:"operations"`
	Statistics        Statistics      `json:"statistics"`
	Chart             []ChartPoint    `json:"chart"`
	CategoryTotals    []CategoryTotal `json:"category_totals"`
	Summary           Page            `json:"summary"`
	Pivot             Pivot           `json:"pivot"`
	Options           FilterOptions   `json:"options"`
	Duration          time.Duration   `json:"-"`
}

// Upload is a stored operations file, addressed by the SHA-256 of its bytes.
type Upload struct {
	Hash         string    `json:"hash"`
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	Rows         int       `json:"rows"`
	DroppedDates int       `json:"dropped_dates"`
	CreatedAt    time.Time `json:"created_at"`
}

// Calculation is an entry of the calculator history.
type Calculation struct {
	ID        int64     `json:"id"`
	Operand1  float64   `json:"operand1"`
	Operand2  float64   `json:"operand2"`
	Result    float64   `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Greeting is an entry of the greeting history.
type Greeting struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is what gets exported to an external sheet.
type Report struct {
	UploadHash        string
	QuantileThreshold float64
	GeneratedAt       time.Time
	Statistics        Statistics
	Pivot             Pivot
	Summary           []SummaryRow
}

// GreetingMessage is the text shown for a greeting.
func GreetingMessage(name string) string {
	return "Hello, " + name + "!"
}
