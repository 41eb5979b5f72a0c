// Package margin computes income, cost and margin views over monthly
// ledger lines, and generates demo data for the margin dashboard.
package margin

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	Income Kind = "income"
	Cost   Kind = "cost"
)

// Line is one monthly amount for a category.
type Line struct {
	Month    string          `json:"month"` // YYYY-MM
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Kind     Kind            `json:"kind"`
}

type Totals struct {
	Income    decimal.Decimal `json:"total_income"`
	Costs     decimal.Decimal `json:"total_costs"`
	NetMargin decimal.Decimal `json:"net_margin"`
}

// MonthMargin is one month of the outer join between incomes and costs.
// A month present on one side only counts zero on the other.
type MonthMargin struct {
	Month     string              `json:"month"`
	Income    decimal.Decimal     `json:"income"`
	Costs     decimal.Decimal     `json:"costs"`
	Margin    decimal.Decimal     `json:"margin"`
	MarginPct decimal.NullDecimal `json:"margin_pct"` // null when income is zero
}

type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type CategoryBreakdown struct {
	Income []CategoryAmount `json:"income_by_category"`
	Costs  []CategoryAmount `json:"costs_by_category"`
}

func CalculateTotals(incomes, costs []Line) Totals {
	in, out := sum(incomes), sum(costs)
	return Totals{Income: in, Costs: out, NetMargin: in.Sub(out)}
}

// ByMonth returns margins per month, ordered by month.
func ByMonth(incomes, costs []Line) []MonthMargin {
	inc := groupBy(incomes, func(l Line) string { return l.Month })
	cst := groupBy(costs, func(l Line) string { return l.Month })

	months := make(map[string]struct{}, len(inc)+len(cst))
	for m := range inc {
		months[m] = struct{}{}
	}
	for m := range cst {
		months[m] = struct{}{}
	}

	out := make([]MonthMargin, 0, len(months))
	for m := range months {
		mm := MonthMargin{Month: m, Income: inc[m], Costs: cst[m]}
		mm.Margin = mm.Income.Sub(mm.Costs)
		if !mm.Income.IsZero() {
			mm.MarginPct = decimal.NewNullDecimal(mm.Margin.Div(mm.Income).Mul(decimal.NewFromInt(100)).Round(2))
		}
		out = append(out, mm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func ByCategory(incomes, costs []Line) CategoryBreakdown {
	return CategoryBreakdown{
		Income: sortedAmounts(groupBy(incomes, func(l Line) string { return l.Category })),
		Costs:  sortedAmounts(groupBy(costs, func(l Line) string { return l.Category })),
	}
}

func sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func groupBy(lines []Line, key func(Line) string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, l := range lines {
		k := key(l)
		out[k] = out[k].Add(l.Amount)
	}
	return out
}

func sortedAmounts(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for k, v := range m {
		out = append(out, CategoryAmount{Category: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
