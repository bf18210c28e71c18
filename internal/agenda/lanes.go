package agenda

import (
	"slices"
	"time"

	"planner/internal/model"
)

// LaneCount is the number of period bars a week row can stack.
const LaneCount = 3

// Lanes holds the period item drawn in each lane of a week, nil when empty.
type Lanes [LaneCount]*model.Item

// LaneSlots assigns the period items overlapping the week starting at
// weekStart to lanes, earliest start first. Items past the last lane are
// not shown in that week.
//
// Lanes are recomputed per week, so an item may sit in different lanes in
// adjacent weeks.
func LaneSlots(weekStart model.Date, items []model.Item) Lanes {
	var lanes Lanes
	if weekStart.IsZero() {
		return lanes
	}
	weekEnd := weekStart.AddDays(6)

	candidates := filter(items, func(it model.Item) bool {
		if it.Type != model.TypePeriod || !it.Interval() {
			return false
		}
		return !it.StartDate.After(weekEnd) && !it.EndDate.Before(weekStart)
	})
	slices.SortStableFunc(candidates, compareStart)

	for _, it := range candidates {
		free := slices.Index(lanes[:], nil)
		if free < 0 {
			break
		}
		lanes[free] = &it
	}
	return lanes
}

// DayBars keeps only the lanes whose item is on day.
func DayBars(lanes Lanes, day model.Date) Lanes {
	var out Lanes
	for i, it := range lanes {
		if it != nil && OnDate(*it, day) {
			out[i] = it
		}
	}
	return out
}

// PeriodItemsOnDate returns the period items drawn on day, in lane order.
func PeriodItemsOnDate(items []model.Item, day model.Date, firstWeekday time.Weekday) []model.Item {
	return DayBars(LaneSlots(WeekStart(day, firstWeekday), items), day).Items()
}

// Items returns the occupied lanes' items in lane order.
func (l Lanes) Items() []model.Item {
	out := make([]model.Item, 0, LaneCount)
	for _, it := range l {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}
