// Package paneio defines the Pane Adapter collaborator interface (§4.B):
// reading pane text, plain or with color escapes, and writing keystrokes,
// cooked or raw. Concrete drivers (tmux, a local pty) live in sibling
// packages; nothing in here talks to a real terminal.
package paneio

import (
	"context"
	"errors"
)

// ErrPaneGone is returned by driver operations when the underlying pane no
// longer exists (killed window, dead session).
var ErrPaneGone = errors.New("paneio: pane does not exist")

// Adapter is the collaborator interface §4.B of the monitoring engine.
// All operations are suspension points (§5) and must not be called
// concurrently for the same paneID by more than one poll cycle.
type Adapter interface {
	// CapturePlain returns the full visible pane content with escape
	// sequences stripped.
	CapturePlain(ctx context.Context, paneID string) (string, error)

	// CaptureColored returns the same content with escape sequences
	// preserved, used by the approval arbiter's interactivity check.
	CaptureColored(ctx context.Context, paneID string) (string, error)

	// PaneExists reports whether the pane is still alive. Implementations
	// must apply a hard timeout (~5s) and treat a timeout as false.
	PaneExists(ctx context.Context, paneID string) bool

	// SendCooked types text followed by a submit key (e.g. Enter).
	SendCooked(ctx context.Context, paneID, text string) error

	// SendRaw types literal keys/tokens (e.g. "1", "Enter", "C-u") without
	// appending a submit key.
	SendRaw(ctx context.Context, paneID, token string) error

	// SendContinueSequence clears the input line, waits briefly, types
	// "continue", waits briefly, and submits — the scripted recovery
	// keystrokes used after a usage-limit notice.
	SendContinueSequence(ctx context.Context, paneID string) error
}
