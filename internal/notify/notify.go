// Package notify defines the Notifier collaborator interface (§4.D): a
// fire-and-forget typed notification keyed by session. Drivers own their
// own retry/transport policy; internal/notify.Guarded adds a uniform
// throttle and bounded-retry wrapper any driver can be run through before
// being handed to the engine.
package notify

import "context"

// Type enumerates the notification kinds the engine emits.
type Type string

const (
	TypeLimit         Type = "limit"
	TypeContinued     Type = "continued"
	TypeApproval      Type = "approval"
	TypeTaskCompleted Type = "task_completed"
	TypeError         Type = "error"
)

// Notification is the value the engine hands to a Notifier.
type Notification struct {
	Type        Type
	SessionID   string
	SessionName string
	Message     string
	Metadata    map[string]string
}

// Notifier is the collaborator interface §4.D of the monitoring engine.
type Notifier interface {
	// Notify delivers n. The engine treats this as fire-and-forget: any
	// error returned here is logged and swallowed by the caller, never
	// propagated back into the poll loop.
	Notify(ctx context.Context, n Notification) error
}
