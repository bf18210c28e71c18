// Package recur expands routine definitions into concrete dated occurrences.
package recur

import (
	"fmt"
	"iter"

	"github.com/teambition/rrule-go"

	appLog "planner/internal/log"
	"planner/internal/model"
)

var horizons = map[model.Repeat]int{
	model.RepeatDaily:   30, // ~1 month
	model.RepeatWeekly:  12, // ~3 months
	model.RepeatMonthly: 6,
	model.RepeatYearly:  2,
}

// Horizon returns the maximum number of occurrences generated for cycle.
func Horizon(cycle model.Repeat) (int, bool) {
	n, ok := horizons[cycle]
	return n, ok
}

// Dates yields the occurrence days of a routine starting at start, bounded
// by the cycle's horizon and, when set, by until (inclusive).
//
// Monthly routines starting on day 29-31 fall on the last day of shorter
// months (Jan 31 gives Feb 29, then Mar 31) and never roll over into the
// following month. Yearly Feb 29 routines fall on Feb 28 in common years.
//
// An unknown cycle yields only start.
func Dates(start model.Date, cycle model.Repeat, until model.Date) iter.Seq[model.Date] {
	return func(yield func(model.Date) bool) {
		if start.IsZero() {
			return
		}
		if !until.IsZero() && start.After(until) {
			return
		}

		r, err := ruleFor(start, cycle)
		if err != nil {
			appLog.Warn("recur: stopping after first occurrence", "repeat", string(cycle), "start", start.String(), "reason", err.Error())
			yield(start)
			return
		}

		next := r.Iterator()
		for {
			t, ok := next()
			if !ok {
				return
			}
			day := model.DateOf(t)
			if !until.IsZero() && day.After(until) {
				return
			}
			if !yield(day) {
				return
			}
		}
	}
}

func ruleFor(start model.Date, cycle model.Repeat) (*rrule.RRule, error) {
	count, ok := horizons[cycle]
	if !ok {
		return nil, fmt.Errorf("unknown repeat cycle %q", cycle)
	}

	opt := rrule.ROption{
		Dtstart: start.Time(),
		Count:   count,
	}

	switch cycle {
	case model.RepeatDaily:
		opt.Freq = rrule.DAILY
	case model.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
	case model.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
		// Days 29-31 land on the last day of shorter months.
		if day := start.Day(); day > 28 {
			opt.Bymonthday = daysUpTo(day)
			opt.Bysetpos = []int{-1}
		}
	case model.RepeatYearly:
		opt.Freq = rrule.YEARLY
		// Feb 29 lands on Feb 28 outside leap years.
		if start.Month() == 2 && start.Day() == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	}

	return rrule.NewRRule(opt)
}

func daysUpTo(day int) []int {
	out := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		out = append(out, d)
	}
	return out
}

// Expand turns a draft into the items it creates. Routines with a repeat
// cycle and a start date become one occurrence per date, all sharing a new
// routine group id; anything else becomes a single item.
func Expand(d model.Draft) []model.Item {
	if d.Type != model.TypeRoutine || d.Repeat == "" || d.StartDate.IsZero() {
		return []model.Item{model.NewItem(d)}
	}

	groupID := model.NewID()
	items := make([]model.Item, 0)

	for day := range Dates(d.StartDate, d.Repeat, d.EndDate) {
		occ := d
		occ.StartDate = day
		occ.EndDate = model.Date{}

		it := model.NewItem(occ)
		it.RoutineGroupID = groupID
		items = append(items, it)
	}

	appLog.Debug("recur: expanded routine",
		"title", d.Title,
		"repeat", string(d.Repeat),
		"start", d.StartDate.String(),
		"end", d.EndDate.String(),
		"occurrences", len(items),
	)
	return items
}
