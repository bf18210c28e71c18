package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"planner/internal/capture"
	"planner/internal/ics"
	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/planner"
	"planner/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, closeStore, err := a.openPlanner(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			appLog.Info("effective config",
				"listen", a.cfg.Listen,
				"data_path", a.cfg.DataPath,
				"memory", a.memory,
				"timezone", a.cfg.Location().String(),
				"week_start", a.cfg.WeekStart,
				"lease_prune", a.cfg.LeasePrune,
			)

			sched := cron.New()
			if _, err := sched.AddFunc(a.cfg.LeasePrune, func() { p.PruneLeases() }); err != nil {
				return writeErr(cmd, fmt.Errorf("lease_prune %q: %w", a.cfg.LeasePrune, err))
			}
			sched.Start()
			defer sched.Stop()

			if err := web.StartServer(ctx, a.cfg, p); err != nil {
				return writeErr(cmd, err)
			}
			appLog.Info("planner exiting")
			return nil
		},
	}
	return cmd
}

func newAgendaCmd(a *app) *cobra.Command {
	var somedays bool
	cmd := &cobra.Command{
		Use:   "agenda [YYYY-MM-DD]",
		Short: "List everything on a day (default: today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeStore, err := a.openPlanner(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			day := p.Today()
			if len(args) == 1 {
				if day, err = model.ParseDate(args[0]); err != nil {
					return writeErr(cmd, err)
				}
			}

			out := cmd.OutOrStdout()
			view := p.Day(day)
			fmt.Fprintf(out, "%s %s\n", view.Date, view.Date.Weekday())
			if len(view.Items) == 0 {
				fmt.Fprintln(out, "  nothing planned")
			}
			for _, e := range view.Items {
				fmt.Fprintln(out, "  "+entryLine(e))
			}

			if somedays {
				fmt.Fprintln(out, "someday")
				for _, e := range p.Somedays() {
					fmt.Fprintln(out, "  "+entryLine(e))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&somedays, "somedays", false, "Also list items without dates")
	return cmd
}

func newMonthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Print a month: period lanes and other items per day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeStore, err := a.openPlanner(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			year, month := p.Today().Year(), p.Today().Month()
			if len(args) == 1 {
				t, err := time.Parse("2006-01", args[0])
				if err != nil {
					return writeErr(cmd, fmt.Errorf("month must be YYYY-MM: %w", err))
				}
				year, month = t.Year(), t.Month()
			}

			writeMonth(cmd.OutOrStdout(), p.Month(year, month))
			return nil
		},
	}
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write dated items as iCalendar (default: stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeStore, err := a.openPlanner(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			body := ics.Export(p.Items(), name)
			if len(args) == 0 || args[0] == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(args[0], []byte(body), 0o600); err != nil {
				return writeErr(cmd, err)
			}
			appLog.Info("export written", "path", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Planner", "Calendar name")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Add the events of an iCalendar file or URL as items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			body, err := readSource(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}

			p, closeStore, err := a.openPlanner(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			drafts, err := ics.Import(bytes.NewReader(body), a.cfg.Location())
			if err != nil {
				return writeErr(cmd, err)
			}
			added := 0
			for _, d := range drafts {
				created, err := p.AddItem(ctx, d)
				if err != nil {
					appLog.Warn("import: item skipped", "title", d.Title, "err", err)
					continue
				}
				added += len(created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d events\n", added, len(drafts))
			return nil
		},
	}
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		month string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the month page to PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, closeStore, err := a.openPlanner(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeStore()

			base, stopServer, err := capture.ServeLocal(web.NewServer(a.cfg, p).Handler())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer stopServer()

			if out == "" {
				out = a.cfg.Snapshot.Path
			}
			opts := capture.CaptureOptions{
				URL:        capture.CalendarURL(base, month),
				OutputPath: out,
				Width:      a.cfg.Snapshot.Width,
				Height:     a.cfg.Snapshot.Height,
			}
			if err := capture.CaptureCalendarPNG(ctx, opts); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month to render, YYYY-MM (default: current)")
	cmd.Flags().StringVar(&out, "out", "", "Output PNG path (default: snapshot.path)")
	return cmd
}

// readSource reads a local file, or fetches http(s) URLs.
func readSource(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return ics.NewFetcher(nil).Fetch(ctx, src)
	}
	return os.ReadFile(src)
}

func entryLine(e planner.Entry) string {
	var b strings.Builder
	switch {
	case e.Type.Checkable() && e.IsChecked():
		b.WriteString("[x] ")
	case e.Type.Checkable():
		b.WriteString("[ ] ")
	default:
		b.WriteString("    ")
	}
	if !e.StartTime.IsZero() {
		b.WriteString(e.StartTime.String())
		if !e.EndTime.IsZero() {
			b.WriteString("-" + e.EndTime.String())
		}
		b.WriteString(" ")
	}
	b.WriteString(e.Title)
	fmt.Fprintf(&b, " (%s", e.Type)
	if e.Interval() {
		fmt.Fprintf(&b, " %s..%s", e.StartDate, e.EndDate)
	}
	b.WriteString(")")
	return b.String()
}

// writeMonth prints one line per day of the month that has anything on it.
// Lane slots print as the first letter of the period title, or a space.
func writeMonth(w io.Writer, view planner.MonthView) {
	fmt.Fprintf(w, "%s %d\n", view.Month, view.Year)
	for _, week := range view.Weeks {
		for _, cell := range week {
			if !cell.InMonth {
				continue
			}
			var lanes strings.Builder
			busy := false
			for _, bar := range cell.Bars {
				if bar == nil {
					lanes.WriteString(" ")
					continue
				}
				busy = true
				lanes.WriteString(initial(bar.Title))
			}
			if !busy && len(cell.Items) == 0 {
				continue
			}

			marker := " "
			if cell.Today {
				marker = "*"
			}
			titles := make([]string, 0, len(cell.Items)+1)
			for _, bar := range cell.Bars {
				if bar != nil && bar.StartDate.Equal(cell.Date) {
					titles = append(titles, bar.Title+" begins")
				}
			}
			for _, e := range cell.Items {
				titles = append(titles, e.Title)
			}
			if cell.More > 0 {
				titles = append(titles, fmt.Sprintf("+%d more", cell.More))
			}
			fmt.Fprintf(w, "%s%s %s [%s] %s\n", marker, cell.Date, cell.Date.Weekday().String()[:3], lanes.String(), strings.Join(titles, ", "))
		}
	}
}

func initial(title string) string {
	for _, r := range strings.TrimSpace(title) {
		return strings.ToUpper(string(r))
	}
	return "#"
}
