package agenda

import (
	"time"

	"planner/internal/model"
)

// WeekStart returns the first day of the week containing day.
func WeekStart(day model.Date, firstWeekday time.Weekday) model.Date {
	offset := (int(day.Weekday()) - int(firstWeekday) + 7) % 7
	return day.AddDays(-offset)
}

// MonthGrid returns the whole weeks covering the given month, one slice of
// seven days per week.
func MonthGrid(year int, month time.Month, firstWeekday time.Weekday) [][]model.Date {
	first := model.NewDate(year, month, 1)
	last := first.AddMonths(1).AddDays(-1)

	weeks := make([][]model.Date, 0, 6)
	for start := WeekStart(first, firstWeekday); !start.After(last); start = start.AddDays(7) {
		week := make([]model.Date, 7)
		for i := range week {
			week[i] = start.AddDays(i)
		}
		weeks = append(weeks, week)
	}
	return weeks
}
