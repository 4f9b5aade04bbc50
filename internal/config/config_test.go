package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Engine.PollIntervalMS != 2000 {
		t.Errorf("expected default poll interval 2000, got %d", f.Engine.PollIntervalMS)
	}
	if f.Engine.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", f.Engine.MaxRetries)
	}
}

func TestLoadParsesEngineAndQuotaSchedules(t *testing.T) {
	path := writeTempConfig(t, `
[engine]
poll_interval_ms = 500
max_retries = 5
auto_restart = false

[[quota_schedules]]
session = "build-session"
time_of_day = "09:00"
command = "usage report"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Engine.PollIntervalMS != 500 || f.Engine.MaxRetries != 5 || f.Engine.AutoRestart {
		t.Errorf("unexpected engine config: %+v", f.Engine)
	}
	if len(f.QuotaSchedules) != 1 || f.QuotaSchedules[0].Session != "build-session" {
		t.Errorf("unexpected quota schedules: %+v", f.QuotaSchedules)
	}
}

func TestLoadRejectsPollIntervalBelowMinimum(t *testing.T) {
	path := writeTempConfig(t, "[engine]\npoll_interval_ms = 100\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for poll_interval_ms below 250")
	}
}

func TestLoadRejectsQuotaScheduleMissingCommand(t *testing.T) {
	path := writeTempConfig(t, `
[[quota_schedules]]
session = "build-session"
time_of_day = "09:00"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for quota schedule missing command")
	}
}

func TestLoadRejectsChatEnabledWithoutURL(t *testing.T) {
	path := writeTempConfig(t, "[notify.chat]\nenabled = true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error when chat notifier enabled without a url")
	}
}

func TestEngineConfigConvertsMillisecondsToDuration(t *testing.T) {
	f := Default()
	f.Engine.PollIntervalMS = 750
	cfg := f.EngineConfig()
	if cfg.PollInterval != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.PollInterval)
	}
}
