package engine

import "errors"

// Sentinel errors forming the taxonomy of §7. Driver-specific errors
// (e.g. a tmux capture timeout) are expected to be wrapped with %w so
// errors.Is continues to work through the paneio.Adapter interface
// boundary.
var (
	// ErrSessionMissing means the registry has no record for a session
	// that startMonitoring or a poll cycle tried to address. Fatal to
	// that session's monitoring; no event is emitted.
	ErrSessionMissing = errors.New("engine: session record not found")

	// ErrPaneGone means PaneExists returned false. Monitoring stops
	// silently; the supervisor outside the core decides final status.
	ErrPaneGone = errors.New("engine: pane no longer exists")

	// ErrRetryBudgetExhausted means consecutive transient pane errors hit
	// maxRetries. Monitoring stops and an error event/notification fires.
	ErrRetryBudgetExhausted = errors.New("engine: polling retry budget exhausted")
)
