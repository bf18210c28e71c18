package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"planner/internal/config"
	"planner/internal/ics"
	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/planner"
)

const (
	monthLayout  = "2006-01"
	maxBodyBytes = 1 << 20
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarPage = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

// Server exposes the planner over a JSON API plus a printable month page.
type Server struct {
	cfg     *config.Config
	planner *planner.Planner
	mux     *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, p *planner.Planner) *Server {
	s := &Server{
		cfg:     cfg,
		planner: p,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Planner", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, p *planner.Planner) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, p).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/items", s.handleListItems)
	s.mux.HandleFunc("POST /api/items", s.handleCreateItem)
	s.mux.HandleFunc("DELETE /api/items", s.handleDeleteAllItems)
	s.mux.HandleFunc("PATCH /api/items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("POST /api/items/{id}/toggle", s.handleToggleItem)
	s.mux.HandleFunc("DELETE /api/routines/{groupId}", s.handleDeleteRoutine)

	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/somedays", s.handleSomedays)

	s.mux.HandleFunc("GET /api/groups", s.handleListGroups)
	s.mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	s.mux.HandleFunc("PATCH /api/groups/{id}", s.handleUpdateGroup)
	s.mux.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)

	s.mux.HandleFunc("GET /api/config", s.handleConfig)

	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Items())
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if !decodeBody(w, r, &d) {
		return
	}
	created, err := s.planner.AddItem(r.Context(), d)
	if err != nil {
		writeFailure(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteAllItems(w http.ResponseWriter, r *http.Request) {
	n, err := s.planner.DeleteAllItems(r.Context())
	if err != nil {
		writeFailure(w, "delete all items", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var p model.Patch
	if !decodeBody(w, r, &p) {
		return
	}
	it, err := s.planner.UpdateItem(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeFailure(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.planner.ToggleChecked(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, "toggle item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	n, err := s.planner.DeleteRoutineGroup(r.Context(), r.PathValue("groupId"))
	if err != nil {
		writeFailure(w, "delete routine", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

// handleDay returns everything on one day.
//
// GET /api/day?date=2024-03-06 (default: today)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day := s.planner.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	writeJSON(w, http.StatusOK, s.planner.Day(day))
}

// handleMonth returns the month grid with lane bars.
//
// GET /api/month?month=2024-03 (default: current month)
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	writeJSON(w, http.StatusOK, s.planner.Month(year, month))
}

func (s *Server) handleSomedays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Somedays())
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Groups())
}

type groupRequest struct {
	Title       string          `json:"title"`
	Type        model.GroupType `json:"type"`
	Description string          `json:"description"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	g, err := s.planner.AddGroup(r.Context(), req.Title, req.Type, req.Description)
	if err != nil {
		writeFailure(w, "create group", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var p model.GroupPatch
	if !decodeBody(w, r, &p) {
		return
	}
	g, err := s.planner.UpdateGroup(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeFailure(w, "update group", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// configResponse is the part of the config a UI needs. Credentials are never
// echoed.
type configResponse struct {
	Timezone      string   `json:"timezone"`
	WeekStart     string   `json:"week_start"`
	PeriodPalette []string `json:"period_palette"`
	Today         string   `json:"today"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Timezone:      s.cfg.Location().String(),
		WeekStart:     s.cfg.WeekStart,
		PeriodPalette: s.cfg.PeriodPalette,
		Today:         s.planner.Today().String(),
	})
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="planner.ics"`)
	_, _ = w.Write([]byte(ics.Export(s.planner.Items(), "Planner")))
}

type pageData struct {
	Title    string
	Prev     string
	Next     string
	Weekdays []string
	View     planner.MonthView
}

// handleCalendarPage renders the month grid as a static HTML page. The root
// element carries data-ready="true" so headless captures know it is done.
//
// GET /calendar?month=2024-03 (default: current month)
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	weekdays := make([]string, 0, 7)
	for i := range 7 {
		weekdays = append(weekdays, time.Weekday((int(s.planner.FirstWeekday()) + i) % 7).String()[:3])
	}
	data := pageData{
		Title:    first.Format("January 2006"),
		Prev:     first.AddDate(0, -1, 0).Format(monthLayout),
		Next:     first.AddDate(0, 1, 0).Format(monthLayout),
		Weekdays: weekdays,
		View:     s.planner.Month(year, month),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarPage.Execute(w, data); err != nil {
		appLog.Error("calendar page render failed", err, "month", first.Format(monthLayout))
	}
}

// handlePreview serves the last snapshot written by the snapshot command.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Snapshot.Path)
}

// parseMonth reads YYYY-MM, defaulting to the current month.
func (s *Server) parseMonth(v string) (int, time.Month, error) {
	if v == "" {
		today := s.planner.Today()
		return today.Year(), today.Month(), nil
	}
	t, err := time.Parse(monthLayout, v)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// writeFailure maps planner errors onto status codes. Only unexpected
// failures are logged.
func writeFailure(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("api: "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
