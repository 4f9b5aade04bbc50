package chatnotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/registry"
)

// commandKind enumerates the remote-control verbs a chat operator can send
// (§4.K).
type commandKind string

const (
	cmdContinue commandKind = "continue"
	cmdSnooze   commandKind = "snooze"
	cmdQuota    commandKind = "quota"
)

// command is a parsed operator instruction, not yet resolved against the
// registry.
type command struct {
	kind       commandKind
	sessionRaw string
	timeOfDay  string
	rest       string
}

// parseCommand parses a raw chat line of the form "/verb session args...".
// Lines not starting with "/" are not commands.
func parseCommand(line string) (*command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return nil, fmt.Errorf("chatnotify: not a command: %q", line)
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, fmt.Errorf("chatnotify: empty command")
	}

	verb := strings.ToLower(fields[0])
	switch commandKind(verb) {
	case cmdContinue:
		if len(fields) < 2 {
			return nil, fmt.Errorf("chatnotify: usage: /continue <session>")
		}
		return &command{kind: cmdContinue, sessionRaw: fields[1]}, nil
	case cmdSnooze:
		if len(fields) < 3 {
			return nil, fmt.Errorf("chatnotify: usage: /snooze <session> <time>")
		}
		return &command{kind: cmdSnooze, sessionRaw: fields[1], timeOfDay: fields[2]}, nil
	case cmdQuota:
		if len(fields) < 4 {
			return nil, fmt.Errorf("chatnotify: usage: /quota <session> <time> <command...>")
		}
		return &command{
			kind:       cmdQuota,
			sessionRaw: fields[1],
			timeOfDay:  fields[2],
			rest:       strings.Join(fields[3:], " "),
		}, nil
	default:
		return nil, fmt.Errorf("chatnotify: unknown command %q", verb)
	}
}

// resolveSession looks up the command's fuzzy session name against reg,
// returning the record's ID.
func resolveSession(ctx context.Context, reg registry.Registry, query string) (string, error) {
	rec, err := registry.FindByName(ctx, reg, query)
	if err != nil {
		return "", fmt.Errorf("chatnotify: resolve session %q: %w", query, err)
	}
	return rec.ID, nil
}

// nextOccurrence parses a "4pm"/"16:00"-style time-of-day string into the
// next absolute instant strictly after now.
func nextOccurrence(now time.Time, raw string) (time.Time, error) {
	pt, err := patterns.ParseTimeOfDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("chatnotify: %w", err)
	}
	return patterns.NextOccurrence(now, pt), nil
}
