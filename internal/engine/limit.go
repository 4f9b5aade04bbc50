package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/registry"
)

var limitLog = logging.ForComponent(logging.CompLimit)

const (
	limitCooldown        = 5 * time.Minute
	immediateTrySettle   = 3 * time.Second
	immediateTryMinDelta = 50
	tailLineCount        = 15
	sanityCap            = 5 * time.Hour

	sentinelResetText = "Monitoring for availability"
)

// detectLimit implements §4.G's entry + immediate-try + schedule logic over
// the new slice of a poll cycle. It returns true when the limit machine
// claimed this cycle (so the approval arbiter is skipped per the §4.F
// tie-break: limit recovery outranks approval).
func (e *Engine) detectLimit(ctx context.Context, h *sessionHandle, rec *registry.Record, slice string) bool {
	st := h.state

	if st.awaitingContinuation {
		return true
	}
	if !patterns.LimitPresent(slice) || !patterns.ActiveTerminalState(slice) {
		return false
	}
	if !st.lastContinuationTime.IsZero() && e.clock.Now().Sub(st.lastContinuationTime) <= limitCooldown {
		return false
	}

	now := e.clock.Now()
	st.limitDetectedAt = now
	st.awaitingContinuation = true
	e.publish(Event{Type: EventLimitDetected, SessionID: h.sessionID})

	e.runImmediateTry(ctx, h, rec, slice)
	return true
}

// runImmediateTry implements §4.G's "immediate-try" classification.
func (e *Engine) runImmediateTry(ctx context.Context, h *sessionHandle, rec *registry.Record, before string) {
	st := h.state
	if st.immediateContinueAttempted {
		e.schedule(ctx, h, rec, before)
		return
	}
	st.immediateContinueAttempted = true

	if err := e.pane.SendContinueSequence(ctx, rec.PaneID); err != nil {
		limitLog.Warn("continue_sequence_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
		e.schedule(ctx, h, rec, before)
		return
	}
	e.clock.Sleep(immediateTrySettle)

	after, err := e.pane.CapturePlain(ctx, rec.PaneID)
	if err != nil {
		limitLog.Warn("immediate_try_capture_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
		e.schedule(ctx, h, rec, before)
		return
	}

	if !patterns.LimitPresent(after) {
		e.resolve(ctx, h, rec)
		return
	}

	if len(after)-len(before) < immediateTryMinDelta {
		e.schedule(ctx, h, rec, after)
		return
	}

	if patterns.LimitPresent(tail(after, tailLineCount)) && patterns.ActiveTerminalState(tail(after, tailLineCount)) {
		e.schedule(ctx, h, rec, after)
		return
	}
	e.resolve(ctx, h, rec)
}

// resolve implements §4.G's "resolved" transition: no notification.
func (e *Engine) resolve(ctx context.Context, h *sessionHandle, rec *registry.Record) {
	st := h.state
	st.lastContinuationTime = e.clock.Now()
	st.awaitingContinuation = false
	st.immediateContinueAttempted = false
	e.updateStatus(ctx, rec.ID, registry.StatusActive)
}

// schedule implements §4.G's "schedule" transition: idempotent, emits
// exactly one limit notification per episode.
func (e *Engine) schedule(ctx context.Context, h *sessionHandle, rec *registry.Record, richText string) {
	st := h.state
	if !st.scheduledResetTime.IsZero() {
		return
	}

	resetText, found := patterns.ResetTimeText(richText)
	displayText := sentinelResetText
	if found {
		displayText = resetText
		if parsed, err := patterns.ParseTimeOfDay(resetText); err == nil {
			now := e.clock.Now()
			deadline := patterns.NextOccurrence(now, parsed)
			if patterns.WithinSanityCap(now, deadline, sanityCap) {
				st.scheduledResetTime = deadline
			}
		}
	}

	e.updateStatus(ctx, rec.ID, registry.StatusWaiting)
	e.publish(Event{
		Type:      EventLimitDetected,
		SessionID: h.sessionID,
		Data:      map[string]any{"resetTime": displayText},
	})
	e.notifyAsync(ctx, notify.Notification{
		Type:        notify.TypeLimit,
		SessionID:   h.sessionID,
		SessionName: rec.Name,
		Message:     displayText,
		Metadata:    map[string]string{"resetTime": displayText},
	})
}

// performContinuation implements §4.G's "perform continuation" transition,
// invoked from the scheduled-continuation gate in poll.go.
func (e *Engine) performContinuation(ctx context.Context, h *sessionHandle, rec *registry.Record) {
	st := h.state
	if err := e.pane.SendContinueSequence(ctx, rec.PaneID); err != nil {
		limitLog.Warn("scheduled_continue_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
		return
	}
	st.lastContinuationTime = e.clock.Now()
	st.awaitingContinuation = false
	st.immediateContinueAttempted = false
	e.updateStatus(ctx, rec.ID, registry.StatusActive)
	e.notifyAsync(ctx, notify.Notification{
		Type:        notify.TypeContinued,
		SessionID:   h.sessionID,
		SessionName: rec.Name,
		Message:     "Session resumed after scheduled limit reset.",
	})
}

func (e *Engine) updateStatus(ctx context.Context, sessionID string, status registry.Status) {
	if err := e.reg.Update(ctx, sessionID, registry.Update{Status: &status}); err != nil {
		limitLog.Warn("status_update_failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
}

// tail returns the last n lines of text, joined back with newlines.
func tail(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
