package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"planner/internal/config"
	appLog "planner/internal/log"
	"planner/internal/palette"
	"planner/internal/planner"
	"planner/internal/store"
)

const defaultConfigPath = "./planner.yaml"

// app carries what every subcommand shares.
type app struct {
	configPath string
	memory     bool

	cfg *config.Config
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "planner",
		Short:        "Personal planner: todos, events, routines, deadlines and periods",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the web UI and API
  planner serve

  # What is on today, and on a given day
  planner agenda
  planner agenda 2024-03-06

  # Month overview, iCalendar export/import and a PNG snapshot
  planner month 2024-03
  planner export planner.ics
  planner import https://example.com/holidays.ics
  planner snapshot --month 2024-03
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("load config %s: %w", a.configPath, err))
		}
		cfg.ApplyEnv()
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
		a.cfg = cfg
		return nil
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", envOr(config.EnvConfigPath, defaultConfigPath), "Path to config file")
	cmd.PersistentFlags().BoolVar(&a.memory, "memory", false, "Keep state in memory only (nothing is saved)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newAgendaCmd(a))
	cmd.AddCommand(newMonthCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newSnapshotCmd(a))

	return cmd
}

// openPlanner builds a planner on the configured store and loads its state.
// The returned close func releases the store.
func (a *app) openPlanner(ctx context.Context) (*planner.Planner, func(), error) {
	var (
		kv      store.Blob
		closeFn = func() {}
	)
	if a.memory {
		kv = store.NewMemory()
	} else {
		sq, err := store.OpenSQLite(ctx, a.cfg.DataPath)
		if err != nil {
			return nil, nil, err
		}
		kv = sq
		closeFn = func() {
			if err := sq.Close(); err != nil {
				appLog.Error("close store failed", err)
			}
		}
	}

	loc := a.cfg.Location()
	leases := palette.NewManager(a.cfg.Palette(), palette.WithLocation(loc))
	p := planner.New(kv, leases, planner.Options{
		FirstWeekday: a.cfg.FirstWeekday(),
		Location:     loc,
	})
	if err := p.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
