package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

var hundred = decimal.NewFromInt(100)

// ComputeStatistics summarizes AmountAbs. Mean, Min and Max are null for an
// empty set.
func ComputeStatistics(exp []core.Expense) core.Statistics {
	stats := core.Statistics{Count: len(exp), Total: decimal.Zero}
	if len(exp) == 0 {
		return stats
	}
	minV, maxV := exp[0].AmountAbs, exp[0].AmountAbs
	for _, e := range exp {
		stats.Total = stats.Total.Add(e.AmountAbs)
		if e.AmountAbs.LessThan(minV) {
			minV = e.AmountAbs
		}
		if e.AmountAbs.GreaterThan(maxV) {
			maxV = e.AmountAbs
		}
	}
	stats.Mean = decimal.NewNullDecimal(stats.Total.Div(decimal.NewFromInt(int64(len(exp)))))
	stats.Min = decimal.NewNullDecimal(minV)
	stats.Max = decimal.NewNullDecimal(maxV)
	return stats
}

type pair struct {
	category, subcategory string
}

// ChartData sums AmountAbs per (category, subcategory), ordered by key.
func ChartData(exp []core.Expense) []core.ChartPoint {
	sums := make(map[pair]decimal.Decimal)
	for _, e := range exp {
		k := pair{e.Category, e.Subcategory}
		sums[k] = sums[k].Add(e.AmountAbs)
	}
	out := make([]core.ChartPoint, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.ChartPoint{Category: k.category, Subcategory: k.subcategory, AmountAbs: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out
}

// CategoryTotals sums AmountAbs per category, ordered by category.
func CategoryTotals(exp []core.Expense) []core.CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, e := range exp {
		sums[e.Category] = sums[e.Category].Add(e.AmountAbs)
	}
	out := make([]core.CategoryTotal, 0, len(sums))
	for c, v := range sums {
		out = append(out, core.CategoryTotal{Category: c, AmountAbs: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// SummaryOptions controls the grain of the summary table.
type SummaryOptions struct {
	ByDate bool // add the operation date to the grouping key
}

type summaryKey struct {
	category, subcategory, label string
	date                         int64
}

// SummaryTable builds the drill-down rows. Row, subcategory and category
// totals come from filtered; the global total comes from all, which is the
// expense set before category narrowing. Totals are signed.
func SummaryTable(filtered, all []core.Expense, opts SummaryOptions) []core.SummaryRow {
	rows := make(map[summaryKey]decimal.Decimal)
	dates := make(map[summaryKey]core.Date)
	subTotals := make(map[pair]decimal.Decimal)
	catTotals := make(map[string]decimal.Decimal)

	for _, e := range filtered {
		k := summaryKey{category: e.Category, subcategory: e.Subcategory, label: e.Label}
		if opts.ByDate {
			k.date = e.Date.Unix()
			dates[k] = e.Date
		}
		rows[k] = rows[k].Add(e.Amount)
		sp := pair{e.Category, e.Subcategory}
		subTotals[sp] = subTotals[sp].Add(e.Amount)
		catTotals[e.Category] = catTotals[e.Category].Add(e.Amount)
	}

	global := decimal.Zero
	for _, e := range all {
		global = global.Add(e.Amount)
	}

	keys := make([]summaryKey, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.category != b.category:
			return a.category < b.category
		case a.subcategory != b.subcategory:
			return a.subcategory < b.subcategory
		case a.label != b.label:
			return a.label < b.label
		default:
			return a.date < b.date
		}
	})

	out := make([]core.SummaryRow, 0, len(keys))
	for _, k := range keys {
		total := rows[k]
		sub := subTotals[pair{k.category, k.subcategory}]
		cat := catTotals[k.category]
		out = append(out, core.SummaryRow{
			Category:         k.category,
			Subcategory:      k.subcategory,
			Label:            k.label,
			Date:             dates[k],
			Total:            total.Round(2),
			SubcategoryTotal: sub.Round(2),
			CategoryTotal:    cat.Round(2),
			GlobalTotal:      global.Round(2),
			DetailRatio:      Ratio(total, sub),
			SubcategoryRatio: Ratio(sub, cat),
			CategoryRatio:    Ratio(cat, global),
		})
	}
	return out
}

// Ratio returns child/parent as a percentage rounded to one decimal, or null
// when parent is zero.
func Ratio(child, parent decimal.Decimal) decimal.NullDecimal {
	if parent.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(child.Div(parent).Mul(hundred).Round(1))
}

// Paginate returns page number (1-based) of rows. Out-of-range pages are
// clamped.
func Paginate(rows []core.SummaryRow, number, size int) core.Page {
	if size < 1 {
		size = len(rows)
		if size == 0 {
			size = 1
		}
	}
	pages := (len(rows) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}
	start := (number - 1) * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return core.Page{
		Number:     number,
		Size:       size,
		TotalRows:  len(rows),
		TotalPages: pages,
		Rows:       append(make([]core.SummaryRow, 0, end-start), rows[start:end]...),
	}
}
