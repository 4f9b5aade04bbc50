package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/registry"
)

var pollLog = logging.ForComponent(logging.CompPoll)

// pollOnce runs a single cycle (§4.F) for h and returns whether monitoring
// should continue. A non-nil error is always logged by the caller; it is
// returned purely for observability, never propagated past the engine.
func (e *Engine) pollOnce(ctx context.Context, h *sessionHandle) (bool, error) {
	rec, err := e.reg.Get(ctx, h.sessionID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return false, ErrSessionMissing
		}
		return e.handleTransientError(ctx, h, "", err)
	}
	if rec == nil {
		return false, ErrSessionMissing
	}

	if !e.pane.PaneExists(ctx, rec.PaneID) {
		// Session-ended path: stop monitoring, no notification — the
		// supervisor outside the core decides the final visible status.
		return false, nil
	}

	st := h.state
	logging.Aggregate(logging.CompPoll, h.sessionID, "poll_cycle")

	// Scheduled-continuation gate (§4.F step 3).
	if !st.scheduledResetTime.IsZero() && !e.clock.Now().Before(st.scheduledResetTime) {
		st.scheduledResetTime = time.Time{}
		e.performContinuation(ctx, h, rec)
		return true, nil
	}

	// Quota gate (§4.F step 4, §4.J).
	if rec.QuotaSchedule != nil {
		e.applyQuotaSchedule(ctx, h, rec)
	}

	// Capture plain text, diff against lastOutput (§4.F step 5).
	current, err := e.pane.CapturePlain(ctx, rec.PaneID)
	if err != nil {
		return e.handleTransientError(ctx, h, rec.Name, err)
	}

	if current != st.lastOutput {
		st.lastOutputChangeTime = e.clock.Now()
		slice := newSlice(st.lastOutput, current)
		st.lastOutput = current

		// Tie-break: limit recovery outranks approval (§4.F).
		limitHandled := e.detectLimit(ctx, h, rec, slice)
		if !limitHandled {
			e.detectApproval(ctx, h, rec, slice)
		}
	}

	// Idle detector always runs against the current snapshot, but is
	// suppressed while awaitingContinuation (§4.F, §4.I precondition).
	if !st.awaitingContinuation {
		e.detectIdle(ctx, h, rec, current)
	}

	st.retryCount = 0
	return true, nil
}

// handleTransientError implements the retry-budget logic of §4.F step 6 /
// §7: increment retryCount; stop and emit an error event/notification once
// the budget is exhausted, otherwise log and keep going.
func (e *Engine) handleTransientError(ctx context.Context, h *sessionHandle, sessionName string, cause error) (bool, error) {
	st := h.state
	st.retryCount++
	pollLog.Warn("transient_pane_error",
		slog.String("session_id", h.sessionID),
		slog.Int("retry_count", st.retryCount),
		slog.String("error", cause.Error()))

	if st.retryCount < e.config().MaxRetries {
		return true, cause
	}

	e.publish(Event{
		Type:      EventError,
		SessionID: h.sessionID,
		Data:      map[string]any{"message": cause.Error()},
	})
	e.notifyAsync(ctx, notify.Notification{
		Type:        notify.TypeError,
		SessionID:   h.sessionID,
		SessionName: sessionName,
		Message:     cause.Error(),
	})
	return false, ErrRetryBudgetExhausted
}

// newSlice implements §4.F step 5's "new slice" computation: if current
// includes the previous snapshot, return only the suffix after it;
// otherwise the screen changed shape entirely (e.g. cleared) and the whole
// current snapshot is the slice.
func newSlice(last, current string) string {
	if last == "" {
		return current
	}
	if idx := strings.Index(current, last); idx >= 0 {
		return current[idx+len(last):]
	}
	return current
}
