package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatIdleMessage builds the human-readable body for a task_completed
// notification, e.g. "Task completed — idle for 12 seconds.". idle is
// rendered relative to a fixed reference point rather than a process-global
// now, so callers stay testable with an injected clock.
func FormatIdleMessage(idle time.Duration) string {
	reference := time.Unix(0, 0).UTC()
	return fmt.Sprintf("Task completed — idle for %s.", strings.TrimSpace(humanize.RelTime(reference.Add(-idle), reference, "", "")))
}
