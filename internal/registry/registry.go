// Package registry defines the narrow collaborator interface the engine
// uses to look up and update session records, and the Record/Status/
// QuotaSchedule value types that flow across that boundary. Persistence
// itself (file or database backed) lives in driver packages such as
// internal/sqliteregistry — this package only fixes the contract.
package registry

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a monitored session.
type Status string

const (
	StatusActive           Status = "active"
	StatusWaiting          Status = "waiting"
	StatusWaitingApproval  Status = "waiting_approval"
	StatusEnded            Status = "ended"
)

// QuotaSchedule describes a recurring daily command the quota scheduler
// stages and fires inside the pane to align usage accounting.
type QuotaSchedule struct {
	TimeOfDay     string    // "HH:MM", 24-hour
	Command       string    // literal text to stage via sendRaw
	NextExecution time.Time // wall-clock deadline for the fire phase
}

// Record is the durable session record the registry owns. The engine reads
// it and requests field-level updates; it never writes the backing store
// directly.
type Record struct {
	ID            string
	Name          string
	PaneID        string
	Created       time.Time
	Status        Status
	QuotaSchedule *QuotaSchedule
}

// Update is a field-level partial update. Nil fields are left untouched;
// QuotaScheduleCleared distinguishes "don't touch" from "set to nil"
// because QuotaSchedule itself being nil is ambiguous otherwise.
type Update struct {
	Status               *Status
	QuotaSchedule         *QuotaSchedule
	QuotaScheduleCleared bool
}

// ErrNotFound is returned by Get when no record exists for the given ID.
var ErrNotFound = errors.New("registry: record not found")

// Registry is the collaborator interface §4.C of the monitoring engine.
type Registry interface {
	// Get returns the record for sessionID, or ErrNotFound if missing.
	Get(ctx context.Context, sessionID string) (*Record, error)

	// Update atomically merges a partial update into the stored record.
	Update(ctx context.Context, sessionID string, upd Update) error

	// List returns all known records, for CLI/chat lookups. The engine
	// itself never calls List — it always addresses sessions by ID.
	List(ctx context.Context) ([]*Record, error)
}
