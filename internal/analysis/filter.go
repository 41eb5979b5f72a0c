// Package analysis turns a normalized operation table into expense views:
// quantile outlier filtering, statistics, chart aggregates, the drill-down
// summary table with ratios, and the category by month pivot.
//
// Every function returns fresh slices and never mutates its input, so results
// can be shared from a cache.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
)

var ErrInvalidThreshold = errors.New("quantile threshold must be between 0 and 1")

// FilterExpenses keeps the negative operations whose amount is at least the
// threshold quantile of all negative amounts, so the largest outflows below
// the quantile are dropped. The result is sorted ascending by amount (largest
// expense first) and carries AmountAbs.
func FilterExpenses(ops []core.Operation, threshold float64) ([]core.Expense, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	negatives := make([]core.Operation, 0, len(ops))
	for _, op := range ops {
		if op.IsExpense() {
			negatives = append(negatives, op)
		}
	}
	if len(negatives) == 0 {
		return []core.Expense{}, nil
	}

	amounts := make([]decimal.Decimal, len(negatives))
	for i, op := range negatives {
		amounts[i] = op.Amount
	}
	q := Quantile(amounts, threshold)

	out := make([]core.Expense, 0, len(negatives))
	for _, op := range negatives {
		if op.Amount.GreaterThanOrEqual(q) {
			out = append(out, core.NewExpense(op))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.LessThan(out[j].Amount)
	})
	return out, nil
}

// Quantile returns the t-quantile of values using linear interpolation
// between the closest ranks. values must not be empty; it is not modified.
func Quantile(values []decimal.Decimal, t float64) decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := decimal.NewFromFloat(t).Mul(decimal.NewFromInt(int64(n - 1)))
	floor := pos.Floor()
	lo := int(floor.IntPart())
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos.Sub(floor)
	return sorted[lo].Add(sorted[lo+1].Sub(sorted[lo]).Mul(frac))
}
