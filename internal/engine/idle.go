package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/registry"
)

var idleLog = logging.ForComponent(logging.CompIdle)

const (
	idleWindow       = 10 * time.Second
	idleNotifyCooldown = 5 * time.Minute
)

// detectIdle implements §4.I, called unconditionally each cycle (the
// awaitingContinuation suppression happens at the call site in poll.go).
func (e *Engine) detectIdle(ctx context.Context, h *sessionHandle, rec *registry.Record, snapshot string) {
	st := h.state
	if st.lastOutputChangeTime.IsZero() {
		return
	}

	now := e.clock.Now()
	idleFor := now.Sub(st.lastOutputChangeTime)
	if idleFor <= idleWindow {
		return
	}
	if !patterns.WaitingForInput(snapshot) || !patterns.NotProcessing(snapshot) {
		return
	}
	if !st.lastTaskCompletionNotification.IsZero() && now.Sub(st.lastTaskCompletionNotification) <= idleNotifyCooldown {
		return
	}

	st.lastTaskCompletionNotification = now
	idleLog.Debug("task_completed",
		slog.String("session_id", h.sessionID),
		slog.Int("idle_seconds", int(idleFor.Seconds())))

	e.publish(Event{
		Type:      EventTaskCompleted,
		SessionID: h.sessionID,
		Data:      map[string]any{"idleDurationSeconds": int(idleFor.Seconds())},
	})
	e.notifyAsync(ctx, notify.Notification{
		Type:        notify.TypeTaskCompleted,
		SessionID:   h.sessionID,
		SessionName: rec.Name,
		Message:     notify.FormatIdleMessage(idleFor),
		Metadata:    map[string]string{"idleDurationSeconds": strconv.Itoa(int(idleFor.Seconds()))},
	})
}
