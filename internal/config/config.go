package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "planner/internal/log"
	"planner/internal/palette"
)

// Environment variables read by the CLI. EnvListen and EnvDataPath override
// the values in the file.
const (
	EnvConfigPath = "PLANNER_CONFIG"
	EnvListen     = "PLANNER_LISTEN"
	EnvDataPath   = "PLANNER_DATA"
)

const (
	defaultListen     = "127.0.0.1:8080"
	defaultDataPath   = "./data/planner.db"
	defaultWeekStart  = "sunday"
	defaultLogLevel   = "info"
	defaultLeasePrune = "@hourly"

	defaultSnapshotPath   = "./data/calendar.png"
	defaultSnapshotWidth  = 1200
	defaultSnapshotHeight = 900
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SnapshotConfig controls the headless browser capture of the month page.
type SnapshotConfig struct {
	Path   string `yaml:"path" json:"path"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// DataPath is the SQLite file holding planner state.
	DataPath string `yaml:"data_path" json:"data_path"`

	// Timezone is the IANA zone that decides which day is "today". Empty
	// means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// PeriodPalette lists the colors leased to period items, "#rrggbb".
	PeriodPalette []string `yaml:"period_palette" json:"period_palette"`

	// LeasePrune is the cron schedule for dropping color leases of deleted
	// items.
	LeasePrune string `yaml:"lease_prune" json:"lease_prune"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	colors := make([]string, 0, len(palette.DefaultPeriodColors))
	for _, c := range palette.DefaultPeriodColors {
		colors = append(colors, string(c))
	}
	return &Config{
		Listen:        defaultListen,
		DataPath:      defaultDataPath,
		WeekStart:     defaultWeekStart,
		LogLevel:      defaultLogLevel,
		PeriodPalette: colors,
		LeasePrune:    defaultLeasePrune,
		Snapshot: SnapshotConfig{
			Path:   defaultSnapshotPath,
			Width:  defaultSnapshotWidth,
			Height: defaultSnapshotHeight,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataPath == "" {
		c.DataPath = def.DataPath
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			appLog.Warn("config: unknown timezone, using host zone", "timezone", c.Timezone)
			c.Timezone = ""
		}
	}

	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = def.WeekStart
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = def.LogLevel
	}

	colors := make([]string, 0, len(c.PeriodPalette))
	for _, col := range c.PeriodPalette {
		if hexColor.MatchString(col) {
			colors = append(colors, strings.ToLower(col))
		} else {
			appLog.Warn("config: ignoring palette entry", "color", col)
		}
	}
	if len(colors) == 0 {
		colors = def.PeriodPalette
	}
	c.PeriodPalette = colors

	if c.LeasePrune == "" {
		c.LeasePrune = def.LeasePrune
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = def.Snapshot.Path
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = def.Snapshot.Width
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = def.Snapshot.Height
	}
}

// ApplyEnv overrides fields from PLANNER_LISTEN and PLANNER_DATA.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDataPath); v != "" {
		c.DataPath = v
	}
}

// FirstWeekday is the weekday calendar weeks start on.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Palette returns PeriodPalette as lease colors.
func (c *Config) Palette() []palette.Color {
	out := make([]palette.Color, 0, len(c.PeriodPalette))
	for _, col := range c.PeriodPalette {
		out = append(out, palette.Color(col))
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("config: wrote defaults", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename. The final
// file has 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planner-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
