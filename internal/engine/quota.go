package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/registry"
)

var quotaLog = logging.ForComponent(logging.CompQuota)

const quotaStageMinAge = 5 * time.Second

// applyQuotaSchedule implements §4.J's two-phase stage/fire logic.
func (e *Engine) applyQuotaSchedule(ctx context.Context, h *sessionHandle, rec *registry.Record) {
	st := h.state
	now := e.clock.Now()
	sched := rec.QuotaSchedule

	if now.Sub(st.startedAt) >= quotaStageMinAge && !st.quotaCommandSent {
		if err := e.pane.SendRaw(ctx, rec.PaneID, sched.Command); err != nil {
			quotaLog.Warn("quota_stage_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
			return
		}
		st.quotaCommandSent = true
		return
	}

	if !now.Before(sched.NextExecution) && st.quotaCommandSent {
		if err := e.pane.SendRaw(ctx, rec.PaneID, "Enter"); err != nil {
			quotaLog.Warn("quota_fire_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
			return
		}

		parsed, err := patterns.ParseTimeOfDay(sched.TimeOfDay)
		if err != nil {
			quotaLog.Warn("quota_timeofday_unparseable", slog.String("session_id", h.sessionID), slog.String("time_of_day", sched.TimeOfDay))
			return
		}
		// §4.J: "always roll to tomorrow" — unlike §4.G's reset-time
		// parsing, the fire phase never lands on today since today's
		// window has, by definition, just fired.
		tomorrow := now.AddDate(0, 0, 1)
		next := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), parsed.Hour, parsed.Minute, 0, 0, now.Location())

		refreshed := registry.QuotaSchedule{
			TimeOfDay:     sched.TimeOfDay,
			Command:       regenerateQuotaCommand(sched.Command, next),
			NextExecution: next,
		}
		if err := e.reg.Update(ctx, rec.ID, registry.Update{QuotaSchedule: &refreshed}); err != nil {
			quotaLog.Warn("quota_update_failed", slog.String("session_id", h.sessionID), slog.String("error", err.Error()))
			return
		}
		st.quotaCommandSent = false

		e.notifyAsync(ctx, notify.Notification{
			Type:        notify.TypeContinued,
			SessionID:   h.sessionID,
			SessionName: rec.Name,
			Message:     "Daily quota command fired; rescheduled for tomorrow.",
		})
	}
}

// quotaDateRe matches a trailing ISO date token a previously generated
// quota command carries, so regenerateQuotaCommand can swap it in place
// rather than accumulating duplicate dates across days.
var quotaDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}$`)

// regenerateQuotaCommand produces the command text for the next quota
// window, replacing any trailing date token with next's date (or
// appending one if the command never carried one).
func regenerateQuotaCommand(command string, next time.Time) string {
	dateStr := next.Format("2006-01-02")
	if quotaDateRe.MatchString(command) {
		return quotaDateRe.ReplaceAllString(command, dateStr)
	}
	return fmt.Sprintf("%s %s", command, dateStr)
}
