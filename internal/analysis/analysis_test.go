package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func op(cat, sub, label, amount string, date core.Date) core.Operation {
	return core.Operation{Category: cat, Subcategory: sub, Label: label, Date: date, Amount: d(amount)}
}

func exp(cat, sub, label, amount string, date core.Date) core.Expense {
	return core.NewExpense(op(cat, sub, label, amount, date))
}

func TestQuantile(t *testing.T) {
	values := []decimal.Decimal{d("-30"), d("-800"), d("-50"), d("-120"), d("-60")}
	cases := []struct {
		t    float64
		want string
	}{
		{0, "-800"},
		{1, "-30"},
		{0.2, "-256"},
		{0.5, "-60"},
		{0.75, "-50"},
	}
	for _, tc := range cases {
		if got := Quantile(values, tc.t); !got.Equal(d(tc.want)) {
			t.Fatalf("quantile(%v) = %s, want %s", tc.t, got, tc.want)
		}
	}
	if !values[0].Equal(d("-30")) {
		t.Fatalf("input was reordered")
	}
}

func TestFilterExpenses_DropsLargestOutlier(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	ops := []core.Operation{
		op("A", "a", "w", "-800", day),
		op("A", "a", "x", "-120", day),
		op("A", "a", "y", "-60", day),
		op("A", "a", "z", "-50", day),
		op("A", "a", "v", "-30", day),
		op("I", "i", "salary", "2000", day),
	}
	got, err := FilterExpenses(ops, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"-120", "-60", "-50", "-30"}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i, w := range want {
		if !got[i].Amount.Equal(d(w)) {
			t.Fatalf("row %d amount %s want %s", i, got[i].Amount, w)
		}
		if !got[i].AmountAbs.Equal(got[i].Amount.Neg()) {
			t.Fatalf("row %d amount_abs %s", i, got[i].AmountAbs)
		}
	}
}

func TestFilterExpenses_Properties(t *testing.T) {
	day := core.NewDate(2024, 2, 1)
	ops := []core.Operation{
		op("A", "a", "1", "-5", day),
		op("A", "a", "2", "-15", day),
		op("B", "b", "3", "-25", day),
		op("B", "b", "4", "-100", day),
		op("C", "c", "5", "0", day),
		op("C", "c", "6", "12", day),
	}

	prev := -1
	for _, th := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1} {
		got, err := FilterExpenses(ops, th)
		if err != nil {
			t.Fatalf("threshold %v: %v", th, err)
		}
		for i, e := range got {
			if !e.Amount.IsNegative() || e.AmountAbs.IsNegative() {
				t.Fatalf("threshold %v: non-expense row %+v", th, e)
			}
			if i > 0 && got[i-1].Amount.GreaterThan(e.Amount) {
				t.Fatalf("threshold %v: not sorted ascending", th)
			}
		}
		if prev >= 0 && len(got) > prev {
			t.Fatalf("threshold %v added rows back: %d > %d", th, len(got), prev)
		}
		prev = len(got)
	}

	all, _ := FilterExpenses(ops, 0)
	if len(all) != 4 {
		t.Fatalf("threshold 0 keeps every negative row, got %d", len(all))
	}
}

func TestFilterExpenses_EdgeCases(t *testing.T) {
	got, err := FilterExpenses(nil, 0.1)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty input: %v %v", got, err)
	}

	single := []core.Operation{op("A", "a", "x", "-42", core.NewDate(2024, 1, 1))}
	for _, th := range []float64{0, 0.5, 1} {
		got, err := FilterExpenses(single, th)
		if err != nil || len(got) != 1 {
			t.Fatalf("single row at %v: %v %v", th, got, err)
		}
	}

	onlyIncome := []core.Operation{op("I", "i", "x", "10", core.NewDate(2024, 1, 1))}
	if got, _ := FilterExpenses(onlyIncome, 0.1); len(got) != 0 {
		t.Fatalf("expected no expenses")
	}

	for _, th := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := FilterExpenses(single, th); !errors.Is(err, ErrInvalidThreshold) {
			t.Fatalf("threshold %v: expected ErrInvalidThreshold, got %v", th, err)
		}
	}
}

func TestComputeStatistics(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	stats := ComputeStatistics([]core.Expense{
		exp("A", "a", "x", "-10", day),
		exp("A", "a", "y", "-30", day),
		exp("B", "b", "z", "-20", day),
	})
	if stats.Count != 3 || !stats.Total.Equal(d("60")) {
		t.Fatalf("count/total %d %s", stats.Count, stats.Total)
	}
	if !stats.Mean.Valid || !stats.Mean.Decimal.Equal(d("20")) {
		t.Fatalf("mean %+v", stats.Mean)
	}
	if !stats.Min.Decimal.Equal(d("10")) || !stats.Max.Decimal.Equal(d("30")) {
		t.Fatalf("min/max %s %s", stats.Min.Decimal, stats.Max.Decimal)
	}

	empty := ComputeStatistics(nil)
	if empty.Count != 0 || !empty.Total.IsZero() {
		t.Fatalf("empty count/total %d %s", empty.Count, empty.Total)
	}
	if empty.Mean.Valid || empty.Min.Valid || empty.Max.Valid {
		t.Fatalf("empty stats must be null: %+v", empty)
	}
}

func TestChartDataAndCategoryTotals(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	set := []core.Expense{
		exp("Food", "Resto", "c", "-60", day),
		exp("Food", "Market", "a", "-30", day),
		exp("Food", "Market", "b", "-10", day),
		exp("Car", "Fuel", "d", "-45.5", day),
	}

	chart := ChartData(set)
	if len(chart) != 3 {
		t.Fatalf("chart rows %d", len(chart))
	}
	if chart[0].Category != "Car" || chart[1].Subcategory != "Market" || !chart[1].AmountAbs.Equal(d("40")) {
		t.Fatalf("unexpected chart %+v", chart)
	}

	totals := CategoryTotals(set)
	if len(totals) != 2 || totals[0].Category != "Car" || !totals[1].AmountAbs.Equal(d("100")) {
		t.Fatalf("unexpected totals %+v", totals)
	}

	sum := decimal.Zero
	for _, p := range chart {
		sum = sum.Add(p.AmountAbs)
	}
	if !sum.Equal(ComputeStatistics(set).Total) {
		t.Fatalf("chart sum %s differs from statistics total", sum)
	}
}

func TestSummaryTable_Ratios(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	set := []core.Expense{
		exp("Food", "Market", "A", "-30", day),
		exp("Food", "Market", "B", "-10", day),
		exp("Food", "Resto", "C", "-60", day),
	}
	rows := SummaryTable(set, set, SummaryOptions{})
	if len(rows) != 3 {
		t.Fatalf("rows %d", len(rows))
	}
	a := rows[0]
	if a.Label != "A" {
		t.Fatalf("first row %q", a.Label)
	}
	if !a.Total.Equal(d("-30")) || !a.SubcategoryTotal.Equal(d("-40")) || !a.CategoryTotal.Equal(d("-100")) || !a.GlobalTotal.Equal(d("-100")) {
		t.Fatalf("totals %+v", a)
	}
	checks := []struct {
		name string
		got  decimal.NullDecimal
		want string
	}{
		{"detail", a.DetailRatio, "75"},
		{"subcategory", a.SubcategoryRatio, "40"},
		{"category", a.CategoryRatio, "100"},
	}
	for _, c := range checks {
		if !c.got.Valid || !c.got.Decimal.Equal(d(c.want)) {
			t.Fatalf("%s ratio %+v want %s", c.name, c.got, c.want)
		}
	}

	sum := decimal.Zero
	for _, r := range rows {
		if r.Subcategory == "Market" {
			sum = sum.Add(r.Total)
		}
	}
	if !sum.Equal(a.SubcategoryTotal) {
		t.Fatalf("subcategory rows sum %s != %s", sum, a.SubcategoryTotal)
	}
}

func TestSummaryTable_RatiosReconcile(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	set := []core.Expense{
		exp("Food", "Market", "A", "-1", day),
		exp("Food", "Market", "B", "-1", day),
		exp("Food", "Market", "C", "-1", day),
		exp("Food", "Resto", "D", "-1", day),
		exp("Food", "Resto", "E", "-1", day),
		exp("Food", "Resto", "F", "-1", day),
		exp("Food", "Bar", "G", "-1", day),
		exp("Food", "Bar", "H", "-1", day),
		exp("Food", "Bar", "I", "-1", day),
		exp("Transport", "Fuel", "J", "-1", day),
		exp("Transport", "Fuel", "K", "-2", day),
		exp("Transport", "Fuel", "L", "-4", day),
		exp("Transport", "Train", "M", "-3", day),
	}
	rows := SummaryTable(set, set, SummaryOptions{})
	if len(rows) != len(set) {
		t.Fatalf("rows %d, want %d", len(rows), len(set))
	}

	detail := map[string]decimal.Decimal{}
	subShare := map[string]map[string]decimal.Decimal{}
	for _, r := range rows {
		if !r.DetailRatio.Valid || !r.SubcategoryRatio.Valid {
			t.Fatalf("null ratio in %+v", r)
		}
		key := r.Category + "|" + r.Subcategory
		detail[key] = detail[key].Add(r.DetailRatio.Decimal)
		if subShare[r.Category] == nil {
			subShare[r.Category] = map[string]decimal.Decimal{}
		}
		subShare[r.Category][r.Subcategory] = r.SubcategoryRatio.Decimal
	}

	tolerance := d("0.1")
	hundred := d("100")
	for key, sum := range detail {
		if sum.Sub(hundred).Abs().GreaterThan(tolerance) {
			t.Errorf("detail ratios of %s sum to %s", key, sum)
		}
	}
	for cat, subs := range subShare {
		sum := decimal.Zero
		for _, share := range subs {
			sum = sum.Add(share)
		}
		if sum.Sub(hundred).Abs().GreaterThan(tolerance) {
			t.Errorf("subcategory ratios of %s sum to %s", cat, sum)
		}
	}
}

func TestSummaryTable_GlobalFromUnnarrowedSet(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	all := []core.Expense{
		exp("Food", "Market", "A", "-25", day),
		exp("Car", "Fuel", "B", "-75", day),
	}
	narrowed := Selection{Categories: []string{"Food"}}.ByCategory(all)
	rows := SummaryTable(narrowed, all, SummaryOptions{})
	if len(rows) != 1 {
		t.Fatalf("rows %d", len(rows))
	}
	if !rows[0].GlobalTotal.Equal(d("-100")) || !rows[0].CategoryRatio.Decimal.Equal(d("25")) {
		t.Fatalf("unexpected %+v", rows[0])
	}
}

func TestSummaryTable_ByDateAndRounding(t *testing.T) {
	set := []core.Expense{
		exp("Food", "Market", "A", "-1", core.NewDate(2024, 1, 2)),
		exp("Food", "Market", "A", "-2", core.NewDate(2024, 1, 1)),
	}
	rows := SummaryTable(set, set, SummaryOptions{ByDate: true})
	if len(rows) != 2 {
		t.Fatalf("rows %d", len(rows))
	}
	if rows[0].Date.Day() != 1 || rows[1].Date.Day() != 2 {
		t.Fatalf("rows not ordered by date")
	}
	if !rows[0].DetailRatio.Decimal.Equal(d("66.7")) || !rows[1].DetailRatio.Decimal.Equal(d("33.3")) {
		t.Fatalf("ratios %s %s", rows[0].DetailRatio.Decimal, rows[1].DetailRatio.Decimal)
	}

	byLabel := SummaryTable(set, set, SummaryOptions{})
	if len(byLabel) != 1 || !byLabel[0].Total.Equal(d("-3")) {
		t.Fatalf("label grain %+v", byLabel)
	}
}

func TestSummaryTable_ZeroDenominator(t *testing.T) {
	day := core.NewDate(2024, 1, 1)
	set := []core.Expense{exp("Food", "Market", "A", "-10", day)}
	rows := SummaryTable(set, nil, SummaryOptions{})
	if rows[0].CategoryRatio.Valid {
		t.Fatalf("category ratio must be null with empty global set")
	}
	if !rows[0].DetailRatio.Valid {
		t.Fatalf("detail ratio should stay defined")
	}
	if Ratio(d("5"), decimal.Zero).Valid {
		t.Fatalf("zero parent must give null")
	}
	if len(SummaryTable(nil, nil, SummaryOptions{})) != 0 {
		t.Fatalf("empty input must give no rows")
	}
}

func TestCategoryMonthPivot(t *testing.T) {
	set := []core.Expense{
		exp("Food", "Market", "a", "-100", core.NewDate(2024, 1, 5)),
		exp("Food", "Market", "b", "-20", core.NewDate(2024, 2, 5)),
		exp("Car", "Fuel", "c", "-10", core.NewDate(2024, 2, 7)),
		exp("Home", "Rent", "d", "-500", core.NewDate(2024, 1, 1)),
	}
	p := CategoryMonthPivot(set)
	if len(p.Months) != 2 || p.Months[0] != "2024-01" || p.Months[1] != "2024-02" {
		t.Fatalf("months %v", p.Months)
	}
	order := []string{"Car", "Food", "Home"}
	for i, c := range order {
		if p.Rows[i].Category != c {
			t.Fatalf("row %d is %s, want %s", i, p.Rows[i].Category, c)
		}
	}
	car := p.Rows[0]
	if !car.Cells[0].IsZero() || !car.Cells[1].Equal(d("-10")) {
		t.Fatalf("car cells %v", car.Cells)
	}

	grand := decimal.Zero
	for _, r := range p.Rows {
		rowSum := decimal.Zero
		for _, c := range r.Cells {
			rowSum = rowSum.Add(c)
		}
		if !rowSum.Equal(r.Total) {
			t.Fatalf("%s total %s != cells %s", r.Category, r.Total, rowSum)
		}
		grand = grand.Add(r.Total)
	}
	if !grand.Equal(d("-630")) {
		t.Fatalf("grand total %s", grand)
	}

	empty := CategoryMonthPivot(nil)
	if !empty.IsEmpty() || len(empty.Months) != 0 {
		t.Fatalf("expected empty pivot")
	}
}

func TestSelection(t *testing.T) {
	ops := []core.Operation{
		op("Food", "Market", "a", "-1", core.NewDate(2024, 1, 1)),
		op("Food", "Resto", "b", "-2", core.NewDate(2024, 1, 15)),
		op("Car", "Fuel", "c", "-3", core.NewDate(2024, 1, 31)),
	}
	sel := Selection{From: core.NewDate(2024, 1, 15), To: core.NewDate(2024, 1, 31)}
	if got := sel.ByDate(ops); len(got) != 2 {
		t.Fatalf("inclusive range kept %d", len(got))
	}
	if got := (Selection{}).ByDate(ops); len(got) != 3 {
		t.Fatalf("open range kept %d", len(got))
	}

	bad := Selection{From: core.NewDate(2024, 2, 1), To: core.NewDate(2024, 1, 1)}
	if !errors.Is(bad.Validate(), ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange")
	}

	set, _ := FilterExpenses(ops, 0)
	narrow := Selection{Categories: []string{"Food"}, Subcategories: []string{"Resto"}}
	if got := narrow.ByCategory(set); len(got) != 1 || got[0].Label != "b" {
		t.Fatalf("narrowed %+v", got)
	}

	opts := Selection{Categories: []string{"Food"}}.Options(ops, set)
	if len(opts.Categories) != 2 || opts.Categories[0] != "Car" {
		t.Fatalf("categories %v", opts.Categories)
	}
	if len(opts.Subcategories) != 2 || opts.Subcategories[0] != "Market" {
		t.Fatalf("subcategories %v", opts.Subcategories)
	}
	if opts.MinDate.Day() != 1 || opts.MaxDate.Day() != 31 {
		t.Fatalf("date span %v %v", opts.MinDate, opts.MaxDate)
	}
}

func TestPaginate(t *testing.T) {
	rows := make([]core.SummaryRow, 7)
	p := Paginate(rows, 2, 3)
	if p.TotalPages != 3 || len(p.Rows) != 3 || p.Number != 2 {
		t.Fatalf("page %+v", p)
	}
	last := Paginate(rows, 9, 3)
	if last.Number != 3 || len(last.Rows) != 1 {
		t.Fatalf("clamped page %+v", last)
	}
	empty := Paginate(nil, 1, 25)
	if empty.TotalPages != 1 || len(empty.Rows) != 0 {
		t.Fatalf("empty page %+v", empty)
	}
}
