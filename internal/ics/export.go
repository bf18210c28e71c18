// Package ics converts planner items to and from iCalendar.
package ics

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "planner/internal/log"
	"planner/internal/model"
)

const (
	productID = "-//planner//planner//EN"

	// PropRoutineGroup ties exported routine occurrences together.
	PropRoutineGroup = ical.ComponentProperty("X-PLANNER-ROUTINE-GROUP")
	// PropChecked carries the checked flag of todos and routines.
	PropChecked = ical.ComponentProperty("X-PLANNER-CHECKED")

	floatingLayout = "20060102T150405"
)

// Export renders every dated item as a VEVENT. Items without dates have no
// place in a calendar and are skipped.
//
// Items without a start time become all-day events whose DTEND is the day
// after the last day. Timed items use floating local date-times.
func Export(items []model.Item, name string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	exported := 0
	for _, it := range items {
		if it.Someday() {
			continue
		}
		addEvent(cal, it, stamp)
		exported++
	}

	appLog.Debug("ics export completed", "items", len(items), "event_count", exported)
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, it model.Item, stamp time.Time) {
	ev := cal.AddEvent(it.ID)
	ev.SetDtStampTime(stamp)
	if !it.CreatedAt.IsZero() {
		ev.SetCreatedTime(it.CreatedAt)
	}
	ev.SetSummary(it.Title)
	if it.Note != "" {
		ev.SetDescription(it.Note)
	}
	ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(it.Type)))

	first, last := it.StartDate, it.EndDate
	if first.IsZero() {
		first = last
	}
	if last.IsZero() {
		last = first
	}

	if it.StartTime.IsZero() {
		ev.SetAllDayStartAt(first.Time())
		ev.SetAllDayEndAt(last.AddDays(1).Time())
	} else {
		ev.SetProperty(ical.ComponentPropertyDtStart, it.StartTime.On(first).Format(floatingLayout))
		end := it.EndTime
		if end.IsZero() && !last.Equal(first) {
			end = it.StartTime
		}
		if !end.IsZero() {
			ev.SetProperty(ical.ComponentPropertyDtEnd, end.On(last).Format(floatingLayout))
		}
	}

	if it.RoutineGroupID != "" {
		ev.SetProperty(PropRoutineGroup, it.RoutineGroupID)
	}
	if it.Checked != nil {
		ev.SetProperty(PropChecked, strings.ToUpper(strconv.FormatBool(*it.Checked)))
	}
}
