// Package agenda decides which items show on a given day or week and in
// which order.
package agenda

import "planner/internal/model"

// OnDate reports whether it is shown on day: it starts or ends that day, or
// it has both dates and day falls inside them (both ends inclusive).
func OnDate(it model.Item, day model.Date) bool {
	if day.IsZero() || it.Someday() {
		return false
	}
	if it.StartDate.Equal(day) || it.EndDate.Equal(day) {
		return true
	}
	if it.Interval() {
		return !day.Before(it.StartDate) && !day.After(it.EndDate)
	}
	return false
}

// ItemsOnDate returns the items on day in display order.
func ItemsOnDate(items []model.Item, day model.Date) []model.Item {
	return SortByPriority(filter(items, func(it model.Item) bool {
		return OnDate(it, day)
	}))
}

// CalendarItemsOnDate is ItemsOnDate for calendar cells, which never show
// todos or routines.
func CalendarItemsOnDate(items []model.Item, day model.Date) []model.Item {
	return SortByPriority(filter(items, func(it model.Item) bool {
		if it.Type == model.TypeTodo || it.Type == model.TypeRoutine {
			return false
		}
		return OnDate(it, day)
	}))
}

// Somedays returns the undated items in input order.
func Somedays(items []model.Item) []model.Item {
	return filter(items, model.Item.Someday)
}

func filter(items []model.Item, keep func(model.Item) bool) []model.Item {
	out := make([]model.Item, 0)
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
