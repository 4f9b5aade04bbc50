package chatnotify

import (
	"context"
	"testing"
	"time"

	"github.com/watchloop/monitor/internal/registry"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line    string
		wantErr bool
		kind    commandKind
	}{
		{"/continue build-session", false, cmdContinue},
		{"/snooze build-session 4pm", false, cmdSnooze},
		{"/quota build-session 9:00 usage report", false, cmdQuota},
		{"not a command", true, ""},
		{"/continue", true, ""},
		{"/snooze build-session", true, ""},
		{"/quota build-session 9:00", true, ""},
		{"/bogus build-session", true, ""},
	}

	for _, c := range cases {
		cmd, err := parseCommand(c.line)
		if c.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got none", c.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.line, err)
		}
		if cmd.kind != c.kind {
			t.Errorf("%q: expected kind %s, got %s", c.line, c.kind, cmd.kind)
		}
	}
}

func TestParseCommandQuotaCapturesRestAsCommand(t *testing.T) {
	cmd, err := parseCommand("/quota build-session 9:00 usage report weekly")
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if cmd.rest != "usage report weekly" {
		t.Errorf("expected rest 'usage report weekly', got %q", cmd.rest)
	}
	if cmd.timeOfDay != "9:00" {
		t.Errorf("expected timeOfDay 9:00, got %q", cmd.timeOfDay)
	}
}

type fakeRegistry struct {
	records []*registry.Record
}

func (f *fakeRegistry) Get(_ context.Context, sessionID string) (*registry.Record, error) {
	for _, r := range f.records {
		if r.ID == sessionID {
			return r, nil
		}
	}
	return nil, registry.ErrNotFound
}

func (f *fakeRegistry) Update(context.Context, string, registry.Update) error { return nil }

func (f *fakeRegistry) List(context.Context) ([]*registry.Record, error) { return f.records, nil }

func TestResolveSession(t *testing.T) {
	reg := &fakeRegistry{records: []*registry.Record{
		{ID: "1", Name: "build-session", Status: registry.StatusActive},
	}}

	id, err := resolveSession(context.Background(), reg, "build-session")
	if err != nil {
		t.Fatalf("resolveSession: %v", err)
	}
	if id != "1" {
		t.Errorf("expected id 1, got %s", id)
	}
}

func TestResolveSessionNoMatch(t *testing.T) {
	reg := &fakeRegistry{}
	if _, err := resolveSession(context.Background(), reg, "anything"); err == nil {
		t.Fatal("expected error when registry is empty")
	}
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	got, err := nextOccurrence(now, "4pm")
	if err != nil {
		t.Fatalf("nextOccurrence: %v", err)
	}
	if got.Hour() != 16 || got.Day() != now.Day() {
		t.Errorf("expected today at 16:00, got %v", got)
	}

	if _, err := nextOccurrence(now, "not a time"); err == nil {
		t.Fatal("expected error for unparseable time")
	}
}
