package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/watchloop/monitor/internal/registry"
)

// remoteCommandKind distinguishes the handful of operations §4.K exposes
// to callers outside the session's own poll goroutine.
type remoteCommandKind int

const (
	cmdKindForceContinue remoteCommandKind = iota
	cmdKindSnooze
)

// remoteCommand is queued on a sessionHandle's commands channel and
// applied by that session's own run goroutine, never by the caller's —
// this is what keeps ForceContinue/Snooze from racing a concurrent poll
// cycle over sessionState (§5).
type remoteCommand struct {
	kind  remoteCommandKind
	until time.Time
	resp  chan error
}

// ForceContinue bypasses the cooldown and immediately runs the continue
// sequence for a session currently awaitingContinuation (§4.K).
func (e *Engine) ForceContinue(ctx context.Context, sessionID string) error {
	h, ok := e.handle(sessionID)
	if !ok {
		return fmt.Errorf("engine: %s is not monitored: %w", sessionID, ErrSessionMissing)
	}
	return e.dispatchCommand(ctx, h, &remoteCommand{kind: cmdKindForceContinue, resp: make(chan error, 1)})
}

// Snooze reschedules scheduledResetTime without re-detecting the limit
// text (§4.K).
func (e *Engine) Snooze(sessionID string, until time.Time) error {
	h, ok := e.handle(sessionID)
	if !ok {
		return fmt.Errorf("engine: %s is not monitored: %w", sessionID, ErrSessionMissing)
	}
	return e.dispatchCommand(context.Background(), h, &remoteCommand{kind: cmdKindSnooze, until: until, resp: make(chan error, 1)})
}

// dispatchCommand hands cmd to h's run goroutine and waits for it to be
// applied. It gives up if ctx is cancelled or the session stops first, so
// a caller can never block forever on a session that just ended.
func (e *Engine) dispatchCommand(ctx context.Context, h *sessionHandle, cmd *remoteCommand) error {
	select {
	case h.commands <- cmd:
	case <-h.done:
		return fmt.Errorf("engine: session %s stopped before the command was applied", h.sessionID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.resp:
		return err
	case <-h.done:
		return fmt.Errorf("engine: session %s stopped before the command was applied", h.sessionID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyRemoteCommand runs inside h's own run goroutine (called from run's
// select loop), so it may touch h.state exactly as a poll cycle would.
func (e *Engine) applyRemoteCommand(ctx context.Context, h *sessionHandle, cmd *remoteCommand) {
	switch cmd.kind {
	case cmdKindForceContinue:
		cmd.resp <- e.applyForceContinue(ctx, h)
	case cmdKindSnooze:
		h.state.scheduledResetTime = cmd.until
		h.state.awaitingContinuation = true
		cmd.resp <- nil
	default:
		cmd.resp <- fmt.Errorf("engine: unknown remote command")
	}
}

func (e *Engine) applyForceContinue(ctx context.Context, h *sessionHandle) error {
	if !h.state.awaitingContinuation {
		return fmt.Errorf("engine: session %s is not awaiting continuation", h.sessionID)
	}
	rec, err := e.reg.Get(ctx, h.sessionID)
	if err != nil {
		return err
	}
	h.state.scheduledResetTime = time.Time{}
	e.performContinuation(ctx, h, rec)
	return nil
}

// SetQuotaSchedule validates and writes a new quota schedule through the
// registry (§4.K).
func (e *Engine) SetQuotaSchedule(ctx context.Context, sessionID string, schedule registry.QuotaSchedule) error {
	if schedule.Command == "" {
		return fmt.Errorf("engine: quota schedule requires a non-empty command")
	}
	if schedule.NextExecution.IsZero() {
		return fmt.Errorf("engine: quota schedule requires a non-zero nextExecution")
	}
	return e.reg.Update(ctx, sessionID, registry.Update{QuotaSchedule: &schedule})
}

// Reconfigure applies a new Config to a running Engine. Only future poll
// cycles observe the change; a running session keeps its prior interval
// until its next tick, after which its ticker is reset to the new one.
func (e *Engine) Reconfigure(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.normalized()
}
