package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

// CategoryMonthPivot sums signed amounts per category and YYYY-MM month.
// Months are ascending; missing cells are zero. Rows are ordered by Total
// descending on the signed value, so the smallest outflow comes first; ties
// fall back to the category name.
func CategoryMonthPivot(exp []core.Expense) core.Pivot {
	if len(exp) == 0 {
		return core.Pivot{Months: []string{}, Rows: []core.PivotRow{}}
	}

	monthSet := make(map[string]struct{})
	cells := make(map[string]map[string]decimal.Decimal)
	for _, e := range exp {
		m := e.Date.MonthKey()
		monthSet[m] = struct{}{}
		if cells[e.Category] == nil {
			cells[e.Category] = make(map[string]decimal.Decimal)
		}
		cells[e.Category][m] = cells[e.Category][m].Add(e.Amount)
	}

	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)

	rows := make([]core.PivotRow, 0, len(cells))
	for cat, byMonth := range cells {
		row := core.PivotRow{Category: cat, Cells: make([]decimal.Decimal, len(months)), Total: decimal.Zero}
		for i, m := range months {
			row.Cells[i] = byMonth[m]
			row.Total = row.Total.Add(byMonth[m])
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})

	return core.Pivot{Months: months, Rows: rows}
}
