package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitPresent(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"5-hour limit reached. Your limit resets at 3:45pm\n> ", true},
		{"USAGE LIMIT exceeded for this session", true},
		{"your limit will reset soon", false},
		{"everything is fine here", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LimitPresent(c.text), c.text)
	}
}

func TestActiveTerminalState(t *testing.T) {
	assert.True(t, ActiveTerminalState("some output\n> "))
	assert.True(t, ActiveTerminalState("│ prompt > here │"))
	assert.True(t, ActiveTerminalState("you can continue whenever you like"))
	assert.False(t, ActiveTerminalState("no affordance on this screen at all"))
}

func TestApprovalDialogPresent(t *testing.T) {
	text := "Do you want to make this edit to tmux.ts?\n❯ 1. Yes\n2. Yes, allow all edits during this session (shift+tab)\n3. No, and tell Claude what to do differently (esc)"
	assert.True(t, ApprovalDialogPresent(text))

	assert.False(t, ApprovalDialogPresent("Do you want to make this edit to tmux.ts?\nno options here"))
	assert.False(t, ApprovalDialogPresent("1. Yes\n❯ selection but no question"))
}

func TestInteractiveApproval(t *testing.T) {
	// Non-dim color on the question line: interactive.
	colored := "\x1b[32mDo you want to make this edit to tmux.ts?\x1b[0m\n❯ 1. Yes\n"
	assert.True(t, InteractiveApproval(colored))

	// Dim/grey rendering: pasted, non-interactive.
	dim := "\x1b[2mDo you want to make this edit to tmux.ts?\x1b[0m\n\x1b[90m❯ 1. Yes\x1b[0m\n"
	assert.False(t, InteractiveApproval(dim))

	// No escapes at all: assume interactive.
	plain := "Do you want to make this edit to tmux.ts?\n❯ 1. Yes\n"
	assert.True(t, InteractiveApproval(plain))
}

func TestResetTimeText(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Session limit reached ∙ resets 8pm", "8pm", true},
		{"Your limit resets at 3:45pm", "3:45pm", true},
		{"available again at 4am", "4am", true},
		{"ready at 9:15", "9:15", true},
		{"nothing about resets here", "", false},
	}
	for _, c := range cases {
		got, ok := ResetTimeText(c.text)
		assert.Equal(t, c.ok, ok, c.text)
		if ok {
			assert.Equal(t, c.want, got, c.text)
		}
	}
}

func TestExtractApprovalInfoEdit(t *testing.T) {
	text := "Do you want to make this edit to tmux.ts?\n" +
		"❯ 1. Yes\n" +
		"2. Yes, allow all edits during this session (shift+tab)\n" +
		"3. No, and tell Claude what to do differently (esc)\n"

	info := ExtractApprovalInfo(text)
	assert.Equal(t, "Edit", info.Tool)
	assert.Equal(t, "Edit tmux.ts", info.Action)
	require.Len(t, info.Options, 3)
	assert.Equal(t, 1, info.Options[0].Number)
	assert.Equal(t, "Yes", info.Options[0].Text)
	assert.Equal(t, "shift+tab", info.Options[1].Shortcut)
	assert.Equal(t, "esc", info.Options[2].Shortcut)
}

func TestExtractApprovalInfoBash(t *testing.T) {
	text := "Bash command\nDo you want to proceed?\nrm -rf /tmp/scratch\n❯ 1. Yes\n2. No (esc)\n"
	info := ExtractApprovalInfo(text)
	assert.Equal(t, "Bash", info.Tool)
	assert.Equal(t, "Bash: rm -rf /tmp/scratch", info.Action)
}

func TestWaitingForInput(t *testing.T) {
	assert.True(t, WaitingForInput("some text\n> \n"))
	assert.True(t, WaitingForInput("> type here ↵ send"))
	assert.False(t, WaitingForInput("no prompt line at all"))
}

func TestNotProcessing(t *testing.T) {
	assert.True(t, NotProcessing("Task finished\n> "))
	assert.False(t, NotProcessing("⠋ processing the request"))
	assert.False(t, NotProcessing("still working on it"))
	// Only the LAST non-empty line governs, even if an earlier line
	// mentions "running" — see the preserved ambiguity documented in
	// SPEC_FULL.md §9.
	assert.True(t, NotProcessing("running tests earlier\n> "))
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		raw  string
		hour int
		min  int
	}{
		{"4am", 4, 0},
		{"4pm", 16, 0},
		{"12am", 0, 0},
		{"12pm", 12, 0},
		{"3:45pm", 15, 45},
		{"9:05am", 9, 5},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.raw)
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.hour, got.Hour, c.raw)
		assert.Equal(t, c.min, got.Minute, c.raw)
	}

	_, err := ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("not a time")
	assert.Error(t, err)
}

func TestParseTimeOfDayRoundTrip(t *testing.T) {
	// Round-trip: parsing "4am" at wall time t then formatting the deadline
	// back yields the same hour/minute.
	now := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	pt, err := ParseTimeOfDay("4am")
	require.NoError(t, err)
	deadline := NextOccurrence(now, pt)
	assert.Equal(t, 4, deadline.Hour())
	assert.Equal(t, 0, deadline.Minute())
	// 4am has already passed relative to 10am today, so it rolls to tomorrow.
	assert.Equal(t, now.Day()+1, deadline.Day())
}

func TestNextOccurrenceFutureToday(t *testing.T) {
	now := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	pt := ParsedTime{Hour: 15, Minute: 45}
	deadline := NextOccurrence(now, pt)
	assert.Equal(t, now.Day(), deadline.Day())
	assert.Equal(t, 15, deadline.Hour())
}

func TestWithinSanityCap(t *testing.T) {
	now := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	cap := 5 * time.Hour

	assert.True(t, WithinSanityCap(now, now.Add(4*time.Hour+59*time.Minute), cap))
	// Exactly at the cap: rejected (boundary test from the spec).
	assert.False(t, WithinSanityCap(now, now.Add(5*time.Hour), cap))
	assert.False(t, WithinSanityCap(now, now.Add(-time.Minute), cap))
	assert.False(t, WithinSanityCap(now, now, cap))
}
