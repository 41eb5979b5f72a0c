package margin

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

type amountRange struct {
	category string
	min, max float64
}

var incomeRanges = []amountRange{
	{"Product Sales", 50000, 80000},
	{"Service Revenue", 30000, 50000},
	{"Consulting", 20000, 40000},
	{"Subscriptions", 15000, 25000},
	{"Licensing", 10000, 20000},
}

var costRanges = []amountRange{
	{"Salaries", 40000, 45000},
	{"Office Rent", 8000, 8500},
	{"Marketing", 5000, 15000},
	{"Software & Tools", 3000, 6000},
	{"Utilities", 2000, 3000},
	{"Travel", 1000, 5000},
	{"Supplies", 1000, 3000},
	{"Insurance", 2000, 2500},
}

const (
	generatedMonths = 12
	incomeTrend     = 0.02 // growth per month
	costTrend       = 0.01
)

// Dataset is a generated set of income and cost lines.
type Dataset struct {
	Incomes []Line `json:"incomes"`
	Costs   []Line `json:"costs"`
}

// Generate produces twelve months of demo lines ending with the month of now.
// Amounts are uniform within each category range, scaled by a monthly trend
// and rounded to cents.
func Generate(rng *rand.Rand, now time.Time) Dataset {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(generatedMonths - 1), 0)

	var ds Dataset
	for i := 0; i < generatedMonths; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		ds.Incomes = append(ds.Incomes, generateMonth(rng, month, i, incomeRanges, incomeTrend, Income)...)
		ds.Costs = append(ds.Costs, generateMonth(rng, month, i, costRanges, costTrend, Cost)...)
	}
	return ds
}

func generateMonth(rng *rand.Rand, month string, index int, ranges []amountRange, trend float64, kind Kind) []Line {
	factor := 1 + float64(index)*trend
	lines := make([]Line, 0, len(ranges))
	for _, r := range ranges {
		amount := (r.min + rng.Float64()*(r.max-r.min)) * factor
		lines = append(lines, Line{
			Month:    month,
			Category: r.category,
			Amount:   decimal.NewFromFloat(amount).Round(2),
			Kind:     kind,
		})
	}
	return lines
}
