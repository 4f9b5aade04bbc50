package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/registry"
)

var approvalLog = logging.ForComponent(logging.CompApproval)

// detectApproval implements §4.H over the new slice of a poll cycle.
func (e *Engine) detectApproval(ctx context.Context, h *sessionHandle, rec *registry.Record, slice string) {
	if !patterns.ApprovalDialogPresent(slice) {
		return
	}

	colored, err := e.pane.CaptureColored(ctx, rec.PaneID)
	if err != nil {
		approvalLog.Warn("colored_capture_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
		return
	}
	if !patterns.InteractiveApproval(colored) {
		approvalLog.Debug("approval_dialog_not_interactive", slog.String("session_id", h.sessionID))
		return
	}

	info := patterns.ExtractApprovalInfo(colored)

	st := h.state
	if info.Question != "" && info.Question == st.lastApprovalQuestion {
		return
	}
	st.lastApprovalQuestion = info.Question

	e.publish(Event{
		Type:      EventApprovalNeeded,
		SessionID: h.sessionID,
		Data: map[string]any{
			"tool":     info.Tool,
			"action":   info.Action,
			"question": info.Question,
		},
	})
	e.notifyAsync(ctx, notify.Notification{
		Type:        notify.TypeApproval,
		SessionID:   h.sessionID,
		SessionName: rec.Name,
		Message:     formatApprovalOptions(info),
		Metadata: map[string]string{
			"tool":   info.Tool,
			"action": info.Action,
		},
	})
	e.updateStatus(ctx, rec.ID, registry.StatusWaitingApproval)
}

// formatApprovalOptions renders the parsed options list for the
// notification body, one option per line as "**N.** text *(shortcut)*".
func formatApprovalOptions(info patterns.ApprovalInfo) string {
	var b strings.Builder
	if info.Question != "" {
		b.WriteString(info.Question)
		b.WriteString("\n")
	}
	for _, opt := range info.Options {
		if opt.Shortcut != "" {
			fmt.Fprintf(&b, "**%d.** %s *(%s)*\n", opt.Number, opt.Text, opt.Shortcut)
		} else {
			fmt.Fprintf(&b, "**%d.** %s\n", opt.Number, opt.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
