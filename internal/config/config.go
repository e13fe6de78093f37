package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
)

// ICSConfig describes one local iCalendar file whose events are overlaid on
// the grid.
type ICSConfig struct {
	// ID is an internal identifier used in logs and API payloads.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Path is the .ics file on disk. Relative paths resolve against the
	// directory of the config file.
	Path string `yaml:"path" json:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which "today" is evaluated.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday at column 0 of every week row, e.g. "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// InitialWeeks is the number of week rows in a full calendar page.
	InitialWeeks int `yaml:"initial_weeks" json:"initial_weeks"`

	// ExtendDays is how many days one "load more" request appends. Must be a
	// multiple of 7.
	ExtendDays int `yaml:"extend_days" json:"extend_days"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is the cron schedule for reloading ICS files.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays and BackfillDays bound the window of expanded
	// occurrences around today.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultWeekStart    = "monday"
	defaultExtendDays   = 28
	defaultLogLevel     = "info"
	defaultRefreshCron  = "*/15 * * * *"
	defaultHorizonDays  = 180
	defaultBackfillDays = 90
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    defaultWeekStart,
		InitialWeeks: calendar.DefaultWeeks,
		ExtendDays:   defaultExtendDays,
		LogLevel:     defaultLogLevel,
		RefreshCron:  defaultRefreshCron,
		HorizonDays:  defaultHorizonDays,
		BackfillDays: defaultBackfillDays,
		ICS:          []ICSConfig{},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.WeekStart == "" {
		c.WeekStart = defaultWeekStart
	}
	if c.InitialWeeks <= 0 {
		c.InitialWeeks = calendar.DefaultWeeks
	}
	if c.ExtendDays <= 0 {
		c.ExtendDays = defaultExtendDays
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].Path
			}
		}
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := calendar.ParseWeekday(c.WeekStart); err != nil {
		errs = append(errs, fmt.Errorf("week_start: %w", err))
	}
	if c.ExtendDays%calendar.DaysPerWeek != 0 {
		errs = append(errs, fmt.Errorf("extend_days: %d is not a multiple of %d", c.ExtendDays, calendar.DaysPerWeek))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}
	for i, src := range c.ICS {
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("ics[%d]: path is empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// WeekStartDay returns the parsed WeekStart, falling back to Monday.
func (c *Config) WeekStartDay() time.Weekday {
	wd, err := calendar.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Monday
	}
	return wd
}

// Location returns the parsed Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// ResolvePaths makes relative ICS paths absolute against the directory of
// the config file at configPath.
func (c *Config) ResolvePaths(configPath string) {
	base := filepath.Dir(configPath)
	for i := range c.ICS {
		if c.ICS[i].Path != "" && !filepath.IsAbs(c.ICS[i].Path) {
			c.ICS[i].Path = filepath.Join(base, c.ICS[i].Path)
		}
	}
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with the defaults (0600) and the defaults are
// returned. An existing file is decoded, normalized and validated.
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
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ResolvePaths(path)

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions and a 0700 parent directory.
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

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
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

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
