package agenda

import (
	"cmp"
	"slices"

	"planner/internal/model"
)

var typeRank = map[model.Type]int{
	model.TypeDeadline: 1,
	model.TypePeriod:   2,
	model.TypeEvent:    3,
	model.TypeRoutine:  4,
	model.TypeTodo:     5,
}

const (
	unknownRank    = 999
	checkedPenalty = 10
)

// Priority is the display rank of it; lower comes first. Checked todos and
// routines sink below every unchecked item.
func Priority(it model.Item) int {
	p, ok := typeRank[it.Type]
	if !ok {
		p = unknownRank
	}
	if it.Type.Checkable() && it.IsChecked() {
		p += checkedPenalty
	}
	return p
}

// SortByPriority returns items ordered by Priority. Periods of equal
// priority are ordered by start date; other ties keep input order.
func SortByPriority(items []model.Item) []model.Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b model.Item) int {
		pa, pb := Priority(a), Priority(b)
		if pa == pb && a.Type == model.TypePeriod && b.Type == model.TypePeriod {
			return compareStart(a, b)
		}
		return cmp.Compare(pa, pb)
	})
	return out
}

// SortPeriodFirstByStart puts periods first, by start date, followed by the
// remaining items in SortByPriority order.
func SortPeriodFirstByStart(items []model.Item) []model.Item {
	periods := make([]model.Item, 0)
	rest := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Type == model.TypePeriod {
			periods = append(periods, it)
		} else {
			rest = append(rest, it)
		}
	}
	slices.SortStableFunc(periods, compareStart)
	return append(periods, SortByPriority(rest)...)
}

// compareStart orders by start date; items without one go last.
func compareStart(a, b model.Item) int {
	switch {
	case a.StartDate.IsZero() && b.StartDate.IsZero():
		return 0
	case a.StartDate.IsZero():
		return 1
	case b.StartDate.IsZero():
		return -1
	}
	return a.StartDate.Compare(b.StartDate)
}
