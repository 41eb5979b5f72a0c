package sheets

import (
	"time"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

// TabTitle names the tab a report is written to: the base name followed by
// the first 8 characters of the upload hash.
func TabTitle(base string, r core.Report) string {
	hash := r.UploadHash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	if hash == "" {
		return base
	}
	return base + " " + hash
}

// ReportRows lays a report out as a grid: a header block with the
// statistics, the category x month pivot, then the summary table. Blank
// rows separate the blocks. Null ratios are written as empty cells.
func ReportRows(r core.Report) [][]any {
	rows := [][]any{
		{"Generated at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Upload", r.UploadHash},
		{"Quantile threshold", r.QuantileThreshold},
		{"Operations", r.Statistics.Count},
		{"Total", number(r.Statistics.Total)},
		{"Mean", nullNumber(r.Statistics.Mean)},
		{"Min", nullNumber(r.Statistics.Min)},
		{"Max", nullNumber(r.Statistics.Max)},
		{},
	}

	header := []any{"Category"}
	for _, m := range r.Pivot.Months {
		header = append(header, m)
	}
	header = append(header, "Total")
	rows = append(rows, header)
	for _, pr := range r.Pivot.Rows {
		line := []any{pr.Category}
		for _, c := range pr.Cells {
			line = append(line, number(c))
		}
		line = append(line, number(pr.Total))
		rows = append(rows, line)
	}
	rows = append(rows, []any{})

	rows = append(rows, []any{
		"Category", "Subcategory", "Label", "Date", "Total",
		"Subcategory total", "Category total", "% of subcategory", "% of category", "% of total",
	})
	for _, sr := range r.Summary {
		date := ""
		if !sr.Date.IsZero() {
			date = sr.Date.String()
		}
		rows = append(rows, []any{
			sr.Category, sr.Subcategory, sr.Label, date,
			number(sr.Total), number(sr.SubcategoryTotal), number(sr.CategoryTotal),
			nullNumber(sr.DetailRatio), nullNumber(sr.SubcategoryRatio), nullNumber(sr.CategoryRatio),
		})
	}
	return rows
}

// Width is the number of columns of the widest row.
func Width(rows [][]any) int {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// ColumnLetter converts a 1-based column index to A1 notation.
func ColumnLetter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func nullNumber(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}
