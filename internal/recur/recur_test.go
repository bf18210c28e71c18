package recur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/model"
)

func routine(repeat model.Repeat, start, end string) model.Draft {
	return model.Draft{
		Title:     "stretch",
		Type:      model.TypeRoutine,
		Repeat:    repeat,
		StartDate: model.MustParseDate(start),
		EndDate:   model.MustParseDate(end),
		Groups:    []model.GroupLink{{GroupID: "g1", Type: model.GroupRelated}},
	}
}

func dates(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.StartDate.String()
	}
	return out
}

func TestExpand_HorizonPerCycle(t *testing.T) {
	tests := []struct {
		repeat model.Repeat
		want   int
		last   string
	}{
		{model.RepeatDaily, 30, "2024-01-30"},
		{model.RepeatWeekly, 12, "2024-03-18"},
		{model.RepeatMonthly, 6, "2024-06-01"},
		{model.RepeatYearly, 2, "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(string(tt.repeat), func(t *testing.T) {
			items := Expand(routine(tt.repeat, "2024-01-01", ""))

			require.Len(t, items, tt.want)
			assert.Equal(t, "2024-01-01", items[0].StartDate.String())
			assert.Equal(t, tt.last, items[len(items)-1].StartDate.String())
		})
	}
}

func TestExpand_EndDateClamp(t *testing.T) {
	items := Expand(routine(model.RepeatDaily, "2024-01-01", "2024-01-05"))

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, dates(items))
}

func TestExpand_EndBeforeStartYieldsNothing(t *testing.T) {
	items := Expand(routine(model.RepeatWeekly, "2024-01-10", "2024-01-01"))

	assert.Empty(t, items)
}

func TestExpand_OccurrenceShape(t *testing.T) {
	items := Expand(routine(model.RepeatWeekly, "2024-01-01", "2024-02-01"))
	require.Len(t, items, 5)

	groupID := items[0].RoutineGroupID
	require.NotEmpty(t, groupID)

	ids := map[string]bool{}
	for _, it := range items {
		assert.Equal(t, groupID, it.RoutineGroupID)
		assert.True(t, it.EndDate.IsZero())
		assert.Equal(t, model.TypeRoutine, it.Type)
		require.NotNil(t, it.Checked)
		assert.False(t, *it.Checked)
		ids[it.ID] = true
	}
	assert.Len(t, ids, len(items))

	items[0].Groups[0].GroupID = "mutated"
	assert.Equal(t, "g1", items[1].Groups[0].GroupID)
}

func TestExpand_GroupIDsDistinctAcrossCalls(t *testing.T) {
	a := Expand(routine(model.RepeatDaily, "2024-01-01", "2024-01-02"))
	b := Expand(routine(model.RepeatDaily, "2024-01-01", "2024-01-02"))

	assert.NotEqual(t, a[0].RoutineGroupID, b[0].RoutineGroupID)
}

func TestExpand_PassThrough(t *testing.T) {
	tests := []struct {
		name  string
		draft model.Draft
	}{
		{"not a routine", model.Draft{Type: model.TypeEvent, Repeat: model.RepeatDaily, StartDate: model.MustParseDate("2024-01-01")}},
		{"no repeat", model.Draft{Type: model.TypeRoutine, StartDate: model.MustParseDate("2024-01-01")}},
		{"no start date", model.Draft{Type: model.TypeRoutine, Repeat: model.RepeatDaily}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Expand(tt.draft)

			require.Len(t, items, 1)
			assert.Empty(t, items[0].RoutineGroupID)
			assert.Equal(t, tt.draft.StartDate, items[0].StartDate)
		})
	}
}

func TestExpand_UnknownCycleStopsAfterFirst(t *testing.T) {
	items := Expand(routine("fortnightly", "2024-01-01", ""))

	require.Len(t, items, 1)
	assert.Equal(t, "2024-01-01", items[0].StartDate.String())
	assert.NotEmpty(t, items[0].RoutineGroupID)
}

func TestDates_MonthEndClamp(t *testing.T) {
	var got []string
	for d := range Dates(model.MustParseDate("2024-01-31"), model.RepeatMonthly, model.Date{}) {
		got = append(got, d.String())
	}

	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30"}, got)
}

func TestDates_LeapDayYearly(t *testing.T) {
	var got []string
	for d := range Dates(model.MustParseDate("2024-02-29"), model.RepeatYearly, model.Date{}) {
		got = append(got, d.String())
	}

	assert.Equal(t, []string{"2024-02-29", "2025-02-28"}, got)
}

func TestDates_StopsWhenConsumerStops(t *testing.T) {
	n := 0
	for range Dates(model.MustParseDate("2024-01-01"), model.RepeatDaily, model.Date{}) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestHorizon(t *testing.T) {
	n, ok := Horizon(model.RepeatMonthly)
	assert.True(t, ok)
	assert.Equal(t, 6, n)

	_, ok = Horizon("hourly")
	assert.False(t, ok)
}
