package analysis

import (
	"errors"
	"sort"

	"bankops/internal/core"
)

var ErrInvalidDateRange = errors.New("start date is after end date")

// Selection narrows the working set. Zero dates and empty lists mean no
// restriction.
type Selection struct {
	From          core.Date
	To            core.Date
	Categories    []string
	Subcategories []string
}

func (s Selection) Validate() error {
	if !s.From.IsZero() && !s.To.IsZero() && s.From.After(s.To.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

// HasDateRange reports whether a bound is set.
func (s Selection) HasDateRange() bool {
	return !s.From.IsZero() || !s.To.IsZero()
}

// ByDate keeps operations dated within [From, To], both inclusive.
func (s Selection) ByDate(ops []core.Operation) []core.Operation {
	out := make([]core.Operation, 0, len(ops))
	for _, op := range ops {
		if !s.From.IsZero() && op.Date.Before(s.From.Time) {
			continue
		}
		if !s.To.IsZero() && op.Date.After(s.To.Time) {
			continue
		}
		out = append(out, op)
	}
	return out
}

// ByCategory keeps expenses in the selected categories, then in the selected
// subcategories.
func (s Selection) ByCategory(exp []core.Expense) []core.Expense {
	cats := toSet(s.Categories)
	subs := toSet(s.Subcategories)
	out := make([]core.Expense, 0, len(exp))
	for _, e := range exp {
		if len(cats) > 0 && !cats[e.Category] {
			continue
		}
		if len(subs) > 0 && !subs[e.Subcategory] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Options lists the categories present in exp, the subcategories left after
// category narrowing, and the date span of ops.
func (s Selection) Options(ops []core.Operation, exp []core.Expense) core.FilterOptions {
	cats := toSet(s.Categories)
	catSeen := make(map[string]bool)
	subSeen := make(map[string]bool)
	for _, e := range exp {
		catSeen[e.Category] = true
		if len(cats) == 0 || cats[e.Category] {
			subSeen[e.Subcategory] = true
		}
	}

	opts := core.FilterOptions{Categories: sortedKeys(catSeen), Subcategories: sortedKeys(subSeen)}
	for i, op := range ops {
		if i == 0 || op.Date.Before(opts.MinDate.Time) {
			opts.MinDate = op.Date
		}
		if i == 0 || op.Date.After(opts.MaxDate.Time) {
			opts.MaxDate = op.Date
		}
	}
	return opts
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
