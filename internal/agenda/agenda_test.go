package agenda

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/model"
)

func d(s string) model.Date { return model.MustParseDate(s) }

func item(id string, typ model.Type, start, end string) model.Item {
	return model.Build(model.Draft{Title: id, Type: typ, StartDate: d(start), EndDate: d(end)}, id, time.Time{})
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestOnDate_Inclusive(t *testing.T) {
	p := item("p", model.TypePeriod, "2024-03-01", "2024-03-05")

	tests := map[string]bool{
		"2024-02-28": false,
		"2024-03-01": true,
		"2024-03-03": true,
		"2024-03-05": true,
		"2024-03-06": false,
	}
	for day, want := range tests {
		assert.Equal(t, want, OnDate(p, d(day)), day)
	}
}

func TestOnDate_PointItems(t *testing.T) {
	startOnly := item("s", model.TypeEvent, "2024-03-01", "")
	endOnly := item("e", model.TypeDeadline, "", "2024-03-09")
	someday := item("x", model.TypeTodo, "", "")

	assert.True(t, OnDate(startOnly, d("2024-03-01")))
	assert.False(t, OnDate(startOnly, d("2024-03-02")))
	assert.True(t, OnDate(endOnly, d("2024-03-09")))
	assert.False(t, OnDate(endOnly, d("2024-03-08")))
	assert.False(t, OnDate(someday, d("2024-03-01")))
	assert.False(t, OnDate(someday, model.Date{}))
}

func TestItemsOnDate_SortedAndCalendarVariant(t *testing.T) {
	items := []model.Item{
		item("todo", model.TypeTodo, "2024-03-03", ""),
		item("event", model.TypeEvent, "2024-03-03", ""),
		item("period", model.TypePeriod, "2024-03-01", "2024-03-05"),
		item("routine", model.TypeRoutine, "2024-03-03", ""),
		item("deadline", model.TypeDeadline, "", "2024-03-03"),
		item("other-day", model.TypeEvent, "2024-03-04", ""),
	}

	assert.Equal(t, []string{"deadline", "period", "event", "routine", "todo"}, ids(ItemsOnDate(items, d("2024-03-03"))))
	assert.Equal(t, []string{"deadline", "period", "event"}, ids(CalendarItemsOnDate(items, d("2024-03-03"))))
}

func TestSomedays(t *testing.T) {
	items := []model.Item{
		item("a", model.TypeTodo, "", ""),
		item("b", model.TypeEvent, "2024-01-01", ""),
		item("c", model.TypeRoutine, "", ""),
	}

	assert.Equal(t, []string{"a", "c"}, ids(Somedays(items)))
}

func TestSortByPriority(t *testing.T) {
	checked := true
	done := item("todo-done", model.TypeTodo, "", "")
	done.Checked = &checked

	items := []model.Item{
		done,
		item("todo", model.TypeTodo, "", ""),
		item("routine", model.TypeRoutine, "", ""),
		item("event", model.TypeEvent, "", ""),
		item("period", model.TypePeriod, "2024-01-01", "2024-01-02"),
		item("deadline", model.TypeDeadline, "", ""),
	}

	got := SortByPriority(items)

	assert.Equal(t, []string{"deadline", "period", "event", "routine", "todo", "todo-done"}, ids(got))
	assert.Equal(t, "todo-done", items[0].ID, "input is not reordered")
}

func TestSortByPriority_CheckedRoutineSinks(t *testing.T) {
	checked := true
	r := item("routine-done", model.TypeRoutine, "", "")
	r.Checked = &checked

	got := SortByPriority([]model.Item{r, item("todo", model.TypeTodo, "", ""), item("event", model.TypeEvent, "", "")})

	assert.Equal(t, []string{"event", "todo", "routine-done"}, ids(got))
	assert.Equal(t, 14, Priority(r))
}

func TestSortByPriority_PeriodTieBreakAndStability(t *testing.T) {
	items := []model.Item{
		item("p-late", model.TypePeriod, "2024-03-10", "2024-03-12"),
		item("e1", model.TypeEvent, "2024-03-01", ""),
		item("p-early", model.TypePeriod, "2024-03-01", "2024-03-20"),
		item("e2", model.TypeEvent, "2024-02-01", ""),
	}

	assert.Equal(t, []string{"p-early", "p-late", "e1", "e2"}, ids(SortByPriority(items)))
}

func TestSortPeriodFirstByStart(t *testing.T) {
	items := []model.Item{
		item("deadline", model.TypeDeadline, "2024-03-03", ""),
		item("p2", model.TypePeriod, "2024-03-02", "2024-03-04"),
		item("todo", model.TypeTodo, "2024-03-03", ""),
		item("p1", model.TypePeriod, "2024-02-27", "2024-03-03"),
		item("event", model.TypeEvent, "2024-03-03", ""),
	}

	assert.Equal(t, []string{"p1", "p2", "deadline", "event", "todo"}, ids(SortPeriodFirstByStart(items)))
}

func TestLaneSlots_Capacity(t *testing.T) {
	week := d("2024-03-03")
	items := []model.Item{
		item("p4", model.TypePeriod, "2024-03-06", "2024-03-08"),
		item("p1", model.TypePeriod, "2024-02-20", "2024-03-04"),
		item("p3", model.TypePeriod, "2024-03-05", "2024-03-30"),
		item("p2", model.TypePeriod, "2024-03-03", "2024-03-03"),
	}

	lanes := LaneSlots(week, items)

	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(lanes.Items()))
	for _, l := range lanes {
		require.NotNil(t, l)
		assert.NotEqual(t, "p4", l.ID)
	}
}

func TestLaneSlots_Filtering(t *testing.T) {
	week := d("2024-03-03")
	items := []model.Item{
		item("before", model.TypePeriod, "2024-02-01", "2024-03-02"),
		item("after", model.TypePeriod, "2024-03-10", "2024-03-12"),
		item("touches-end", model.TypePeriod, "2024-03-09", "2024-03-15"),
		item("event", model.TypeEvent, "2024-03-04", "2024-03-05"),
		item("open", model.TypePeriod, "2024-03-04", ""),
	}

	lanes := LaneSlots(week, items)

	assert.Equal(t, []string{"touches-end"}, ids(lanes.Items()))
	assert.Nil(t, lanes[1])
	assert.Nil(t, lanes[2])
}

func TestDayBarsAndPeriodItemsOnDate(t *testing.T) {
	items := []model.Item{
		item("a", model.TypePeriod, "2024-03-03", "2024-03-04"),
		item("b", model.TypePeriod, "2024-03-05", "2024-03-09"),
	}

	lanes := LaneSlots(d("2024-03-03"), items)
	bars := DayBars(lanes, d("2024-03-05"))

	assert.Nil(t, bars[0])
	require.NotNil(t, bars[1])
	assert.Equal(t, "b", bars[1].ID)

	assert.Equal(t, []string{"a"}, ids(PeriodItemsOnDate(items, d("2024-03-04"), time.Sunday)))
	assert.Empty(t, PeriodItemsOnDate(items, d("2024-03-10"), time.Sunday))
}

// Randomized check: an item never shares a lane with an overlapping item,
// every lane item overlaps the week, and at most LaneCount are placed.
func TestLaneSlots_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := d("2024-01-01")

	for round := 0; round < 500; round++ {
		n := rng.Intn(8)
		items := make([]model.Item, 0, n)
		for i := 0; i < n; i++ {
			start := base.AddDays(rng.Intn(60))
			end := start.AddDays(rng.Intn(20))
			items = append(items, model.Build(model.Draft{Type: model.TypePeriod, StartDate: start, EndDate: end}, model.NewID(), time.Time{}))
		}
		week := base.AddDays(rng.Intn(70))
		weekEnd := week.AddDays(6)

		lanes := LaneSlots(week, items)

		seen := map[string]bool{}
		placed := 0
		for _, l := range lanes {
			if l == nil {
				continue
			}
			placed++
			assert.False(t, seen[l.ID], "item placed twice")
			seen[l.ID] = true
			assert.False(t, l.StartDate.After(weekEnd))
			assert.False(t, l.EndDate.Before(week))
		}

		overlapping := 0
		for _, it := range items {
			if !it.StartDate.After(weekEnd) && !it.EndDate.Before(week) {
				overlapping++
			}
		}
		assert.Equal(t, min(overlapping, LaneCount), placed)

		// Occupied lanes are packed from lane 0.
		for i := 1; i < LaneCount; i++ {
			if lanes[i] != nil {
				assert.NotNil(t, lanes[i-1])
			}
		}
	}
}

func TestWeekStartAndMonthGrid(t *testing.T) {
	assert.Equal(t, "2024-03-03", WeekStart(d("2024-03-06"), time.Sunday).String())
	assert.Equal(t, "2024-03-04", WeekStart(d("2024-03-06"), time.Monday).String())
	assert.Equal(t, "2024-03-03", WeekStart(d("2024-03-03"), time.Sunday).String())

	grid := MonthGrid(2024, time.March, time.Sunday)
	require.Len(t, grid, 6)
	assert.Equal(t, "2024-02-25", grid[0][0].String())
	assert.Equal(t, "2024-04-06", grid[5][6].String())

	feb := MonthGrid(2026, time.February, time.Sunday)
	assert.Len(t, feb, 4)
}
