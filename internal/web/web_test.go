package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/model"
	"planner/internal/planner"
	"planner/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (http.Handler, *planner.Planner) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "calendar.png")
	if mutate != nil {
		mutate(cfg)
	}
	p := planner.New(store.NewMemory(), nil, planner.Options{
		FirstWeekday: cfg.FirstWeekday(),
		Location:     time.UTC,
		Now:          func() time.Time { return time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC) },
	})
	return NewServer(cfg, p).Handler(), p
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestItemsLifecycle(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/items", `{"title":"milk","type":"todo","startDate":"2024-03-06"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]model.Item](t, rec)
	require.Len(t, created, 1)
	id := created[0].ID
	require.NotNil(t, created[0].Checked)
	assert.False(t, *created[0].Checked)

	rec = do(t, h, http.MethodPost, "/api/items/"+id+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Item](t, rec).IsChecked())

	rec = do(t, h, http.MethodPatch, "/api/items/"+id, `{"title":"oat milk","startDate":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Item](t, rec)
	assert.Equal(t, "oat milk", updated.Title)
	assert.True(t, updated.StartDate.IsZero())

	rec = do(t, h, http.MethodGet, "/api/somedays", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]planner.Entry](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/items/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/items/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateItem_BadRequests(t *testing.T) {
	h, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"unknown type", `{"title":"x","type":"chore"}`},
		{"period without end", `{"title":"x","type":"period","startDate":"2024-03-01"}`},
		{"end before start", `{"title":"x","type":"event","startDate":"2024-03-02","endDate":"2024-03-01"}`},
		{"bad date", `{"title":"x","type":"event","startDate":"03/01/2024"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRoutineEndpoints(t *testing.T) {
	h, p := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/items", `{"title":"stretch","type":"routine","repeat":"daily","startDate":"2024-03-01","endDate":"2024-03-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[[]model.Item](t, rec)
	require.Len(t, created, 10)

	rec = do(t, h, http.MethodDelete, "/api/routines/"+created[0].RoutineGroupID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":10}`, rec.Body.String())
	assert.Empty(t, p.Items())

	rec = do(t, h, http.MethodPost, "/api/items", `{"title":"a","type":"event"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())
}

func TestDayAndMonthViews(t *testing.T) {
	h, p := newTestServer(t, nil)
	ctx := context.Background()
	_, err := p.AddItem(ctx, model.Draft{Title: "trip", Type: model.TypePeriod, StartDate: model.MustParseDate("2024-03-05"), EndDate: model.MustParseDate("2024-03-07")})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/day", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[planner.DayView](t, rec)
	assert.Equal(t, "2024-03-06", day.Date.String())
	require.Len(t, day.Items, 1)
	assert.Equal(t, "#06b6d4", string(day.Items[0].Color))

	rec = do(t, h, http.MethodGet, "/api/day?date=2024-03-08", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[planner.DayView](t, rec).Items)

	rec = do(t, h, http.MethodGet, "/api/day?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/month?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	month := decode[planner.MonthView](t, rec)
	assert.Equal(t, time.March, month.Month)
	require.Len(t, month.Weeks, 6)
	require.NotNil(t, month.Weeks[1][2].Bars[0])
	assert.Equal(t, "trip", month.Weeks[1][2].Bars[0].Title)

	rec = do(t, h, http.MethodGet, "/api/month?month=March", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupEndpoints(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/groups", `{"title":"Move","type":"flow"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	g := decode[model.Group](t, rec)

	rec = do(t, h, http.MethodPost, "/api/groups", `{"title":"Move","type":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/groups/"+g.ID, `{"description":"new flat"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new flat", decode[model.Group](t, rec).Description)

	rec = do(t, h, http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Group](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/groups/"+g.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodPatch, "/api/groups/"+g.ID, `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarPageAndICS(t *testing.T) {
	h, p := newTestServer(t, func(c *config.Config) { c.WeekStart = "monday" })
	_, err := p.AddItem(context.Background(), model.Draft{Title: "Dentist <3pm>", Type: model.TypeEvent, StartDate: model.MustParseDate("2024-03-12")})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/calendar?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "March 2024")
	assert.Contains(t, body, "Dentist &lt;3pm&gt;")
	assert.Contains(t, body, `href="/calendar?month=2024-04"`)
	assert.Less(t, strings.Index(body, "<th>Mon</th>"), strings.Index(body, "<th>Sun</th>"))

	rec = do(t, h, http.MethodGet, "/calendar?month=2024-13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Dentist <3pm>")

	rec = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestPreview(t *testing.T) {
	var path string
	h, _ := newTestServer(t, func(c *config.Config) { path = c.Snapshot.Path })

	rec := do(t, h, http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(path, []byte("\x89PNG"), 0o600))
	rec = do(t, h, http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigEndpointHidesCredentials(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[configResponse](t, rec)
	assert.Equal(t, "UTC", resp.Timezone)
	assert.Equal(t, "sunday", resp.WeekStart)
	assert.Equal(t, "2024-03-06", resp.Today)
	assert.Len(t, resp.PeriodPalette, 5)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestBasicAuth(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/items", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.SetBasicAuth("me", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}
