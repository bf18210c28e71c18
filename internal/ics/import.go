package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "planner/internal/log"
	"planner/internal/model"
)

// Import reads a calendar and returns one draft per usable VEVENT. Events
// that cannot be read are logged and skipped.
//
// Date-times with a TZID or a trailing Z are converted to loc before their
// date and clock time are taken; floating ones are used as written. A nil
// loc means time.Local.
func Import(r io.Reader, loc *time.Location) ([]model.Draft, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	drafts := make([]model.Draft, 0)
	for _, ve := range cal.Events() {
		d, err := draftFromEvent(ve, loc)
		if err != nil {
			appLog.Warn("ics vevent skipped", "uid", ve.Id(), "err", err)
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Info("ics import completed", "event_count", len(drafts))
	return drafts, nil
}

func draftFromEvent(ve *ical.VEvent, loc *time.Location) (model.Draft, error) {
	var d model.Draft

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		d.Title = strings.TrimSpace(p.Value)
	}
	if d.Title == "" {
		return d, errors.New("missing SUMMARY")
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		d.Note = p.Value
	}

	d.Type = model.TypeEvent
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		for _, c := range strings.Split(p.Value, ",") {
			if t := model.Type(strings.ToLower(strings.TrimSpace(c))); t.Valid() {
				d.Type = t
				break
			}
		}
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return d, errors.New("missing DTSTART")
	}
	start, startTimed, err := parseICSTime(startProp, loc)
	if err != nil {
		return d, fmt.Errorf("DTSTART: %w", err)
	}
	d.StartDate = model.DateOf(start)

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, endTimed, err := parseICSTime(endProp, loc)
		if err != nil {
			return d, fmt.Errorf("DTEND: %w", err)
		}
		last := model.DateOf(end)
		if !endTimed {
			// All-day DTEND is exclusive.
			last = last.AddDays(-1)
		}
		if last.Before(d.StartDate) {
			last = d.StartDate
		}
		if !last.Equal(d.StartDate) || d.Type == model.TypePeriod {
			d.EndDate = last
		}
		if startTimed && endTimed {
			// A multi-day item without an end time is exported with its
			// start time on the last day.
			if et := clockOf(end); et != clockOf(start) || d.EndDate.IsZero() {
				d.EndTime = et
			}
		}
	} else if d.Type == model.TypePeriod {
		d.EndDate = d.StartDate
	}
	if startTimed {
		d.StartTime = clockOf(start)
	}

	if p := ve.GetProperty(PropChecked); p != nil && d.Type.Checkable() {
		if v, err := strconv.ParseBool(strings.TrimSpace(p.Value)); err == nil {
			d.Checked = &v
		}
	}

	return d, nil
}

func clockOf(t time.Time) model.ClockTime {
	return model.NewClockTime(t.Hour(), t.Minute())
}

// parseICSTime reads a DATE or DATE-TIME property. timed is false for
// date-only values.
func parseICSTime(p *ical.IANAProperty, loc *time.Location) (t time.Time, timed bool, err error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	var tzid string
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		tzid = tzs[0]
	}

	switch {
	case strings.HasSuffix(v, "Z"):
		// UTC form, e.g. 20250101T090000Z
		t, err = time.Parse("20060102T150405Z", v)
		return t.In(loc), true, err
	case strings.Contains(v, "T"):
		if tzid == "" {
			// Floating: take the wall clock as written.
			t, err = time.Parse(floatingLayout, v)
			return t, true, err
		}
		src, lerr := time.LoadLocation(tzid)
		if lerr != nil {
			return time.Time{}, false, fmt.Errorf("unknown TZID %q: %w", tzid, lerr)
		}
		t, err = time.ParseInLocation(floatingLayout, v, src)
		return t.In(loc), true, err
	}

	// Date-only (all-day), e.g. 20250101
	t, err = time.Parse("20060102", v)
	return t, false, err
}
