// Package config loads, validates, and hot-reloads the daemon's TOML
// configuration: engine tuning, per-session quota schedules, and notifier
// transport credentials (§2.1, §6 Config surface). The core engine never
// imports this package — callers parse a config.File here and hand the
// already-validated engine.Config to engine.New.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/watchloop/monitor/internal/engine"
)

// File is the parsed, defaulted, and validated shape of the on-disk TOML
// config.
type File struct {
	Engine         EngineConfig          `toml:"engine"`
	QuotaSchedules []QuotaScheduleConfig `toml:"quota_schedules"`
	Notify         NotifyConfig          `toml:"notify"`
	Logging        LoggingConfig         `toml:"logging"`
}

// EngineConfig mirrors engine.Config in TOML-friendly units (milliseconds
// rather than time.Duration, which the toml package cannot decode
// directly).
type EngineConfig struct {
	PollIntervalMS int  `toml:"poll_interval_ms"`
	MaxRetries     int  `toml:"max_retries"`
	AutoRestart    bool `toml:"auto_restart"`
}

// QuotaScheduleConfig names the session a schedule applies to by its
// registry Name (resolved to an ID by the caller via registry.FindByName),
// since TOML is authored by hand before any session exists.
type QuotaScheduleConfig struct {
	Session   string `toml:"session"`
	TimeOfDay string `toml:"time_of_day"`
	Command   string `toml:"command"`
}

// NotifyConfig holds transport credentials for the two notify drivers.
type NotifyConfig struct {
	WebPush WebPushConfig `toml:"webpush"`
	Chat    ChatConfig    `toml:"chat"`
}

// WebPushConfig configures internal/webpushnotify.NewDriver.
type WebPushConfig struct {
	Enabled bool   `toml:"enabled"`
	DataDir string `toml:"data_dir"`
	Subject string `toml:"subject"`
}

// ChatConfig configures internal/chatnotify.NewDriver.
type ChatConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Token   string `toml:"token"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	LogDir string `toml:"log_dir"`
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Debug  bool   `toml:"debug"`
}

// Default returns the documented defaults (§6), matching engine.DefaultConfig.
func Default() *File {
	return &File{
		Engine: EngineConfig{
			PollIntervalMS: 2000,
			MaxRetries:     3,
			AutoRestart:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses the TOML file at path, applies defaults for any
// zero-valued fields, and validates it.
func Load(path string) (*File, error) {
	f := Default()
	if _, err := toml.DecodeFile(path, f); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(f)
	if err := validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes raw TOML bytes the same way Load does, for use by the
// fsnotify-driven reload path and by tests.
func Parse(raw []byte) (*File, error) {
	f := Default()
	if _, err := toml.Decode(string(raw), f); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	applyDefaults(f)
	if err := validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

func applyDefaults(f *File) {
	if f.Engine.PollIntervalMS <= 0 {
		f.Engine.PollIntervalMS = 2000
	}
	if f.Engine.MaxRetries <= 0 {
		f.Engine.MaxRetries = 3
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Logging.Format == "" {
		f.Logging.Format = "json"
	}
}

func validate(f *File) error {
	if f.Engine.PollIntervalMS < 250 {
		return fmt.Errorf("config: engine.poll_interval_ms must be >= 250, got %d", f.Engine.PollIntervalMS)
	}
	if f.Engine.MaxRetries < 1 {
		return fmt.Errorf("config: engine.max_retries must be >= 1, got %d", f.Engine.MaxRetries)
	}
	for i, q := range f.QuotaSchedules {
		if q.Session == "" {
			return fmt.Errorf("config: quota_schedules[%d].session is required", i)
		}
		if q.Command == "" {
			return fmt.Errorf("config: quota_schedules[%d].command is required", i)
		}
	}
	if f.Notify.Chat.Enabled && f.Notify.Chat.URL == "" {
		return fmt.Errorf("config: notify.chat.url is required when notify.chat.enabled is true")
	}
	return nil
}

// EngineConfig converts the TOML-friendly shape into engine.Config.
func (f *File) EngineConfig() engine.Config {
	return engine.Config{
		PollInterval: time.Duration(f.Engine.PollIntervalMS) * time.Millisecond,
		MaxRetries:   f.Engine.MaxRetries,
		AutoRestart:  f.Engine.AutoRestart,
	}
}
