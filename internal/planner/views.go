package planner

import (
	"time"

	"planner/internal/agenda"
	"planner/internal/model"
	"planner/internal/palette"
)

// cellItemLimit is how many non-period items a month cell lists.
const cellItemLimit = 3

// Entry is an item together with the color it is drawn in.
type Entry struct {
	model.Item
	Color palette.Color `json:"color"`
}

type DayView struct {
	Date  model.Date `json:"date"`
	Items []Entry    `json:"items"`
}

type Cell struct {
	Date    model.Date               `json:"date"`
	InMonth bool                     `json:"inMonth"`
	Today   bool                     `json:"today"`
	Past    bool                     `json:"past"`
	Bars    [agenda.LaneCount]*Entry `json:"bars"`
	Items   []Entry                  `json:"items"`
	More    int                      `json:"more"`
}

type MonthView struct {
	Year         int          `json:"year"`
	Month        time.Month   `json:"month"`
	FirstWeekday time.Weekday `json:"firstWeekday"`
	Weeks        [][]Cell     `json:"weeks"`
}

// Today is the current day in the planner's location.
func (p *Planner) Today() model.Date {
	return model.DateOf(p.opts.Now().In(p.opts.Location))
}

func (p *Planner) FirstWeekday() time.Weekday {
	return p.opts.FirstWeekday
}

// Day lists everything on day, periods first.
func (p *Planner) Day(day model.Date) DayView {
	items := p.Items()
	list := agenda.SortPeriodFirstByStart(agenda.ItemsOnDate(items, day))
	return DayView{Date: day, Items: p.entries(list, items)}
}

// Somedays lists undated items.
func (p *Planner) Somedays() []Entry {
	items := p.Items()
	return p.entries(agenda.Somedays(items), items)
}

// Month lays out the calendar grid of a month: period bars per lane and up
// to cellItemLimit other items per day.
func (p *Planner) Month(year int, month time.Month) MonthView {
	items := p.Items()
	today := p.Today()

	view := MonthView{Year: year, Month: month, FirstWeekday: p.opts.FirstWeekday}
	for _, week := range agenda.MonthGrid(year, month, p.opts.FirstWeekday) {
		lanes := agenda.LaneSlots(week[0], items)

		row := make([]Cell, 0, len(week))
		for _, day := range week {
			cell := Cell{
				Date:    day,
				InMonth: day.Month() == month,
				Today:   day.Equal(today),
				Past:    day.Before(today),
			}
			for i, it := range agenda.DayBars(lanes, day) {
				if it != nil {
					e := p.entry(*it, items)
					cell.Bars[i] = &e
				}
			}

			others := make([]model.Item, 0)
			for _, it := range agenda.CalendarItemsOnDate(items, day) {
				if it.Type != model.TypePeriod {
					others = append(others, it)
				}
			}
			if len(others) > cellItemLimit {
				cell.More = len(others) - cellItemLimit
				others = others[:cellItemLimit]
			}
			cell.Items = p.entries(others, items)

			row = append(row, cell)
		}
		view.Weeks = append(view.Weeks, row)
	}
	return view
}

func (p *Planner) entries(list, all []model.Item) []Entry {
	out := make([]Entry, 0, len(list))
	for _, it := range list {
		out = append(out, p.entry(it, all))
	}
	return out
}

func (p *Planner) entry(it model.Item, all []model.Item) Entry {
	return Entry{Item: it, Color: p.ColorOf(it, all)}
}

// ColorOf is the display color of it: a leased palette color for periods,
// the type color otherwise.
func (p *Planner) ColorOf(it model.Item, all []model.Item) palette.Color {
	if it.Type == model.TypePeriod {
		return p.leases.ColorFor(it.ID, it.EndDate, all)
	}
	return palette.TypeColor(it.Type)
}
