// Package patterns holds pure, side-effect free predicates and extractors
// over captured terminal pane text. Nothing in this package reads the
// clock, touches a pane, or retains state between calls — every function
// here is a deterministic function of its input, grounded in the teacher
// repo's tmux/patterns.go and tmux/detector.go pattern libraries.
package patterns

import (
	"regexp"
	"strings"
)

// ansiEscapeRe strips ANSI/VT escape sequences from captured text.
var ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes escape sequences, leaving plain text.
func StripANSI(s string) string {
	return ansiEscapeRe.ReplaceAllString(s, "")
}

var (
	limitPresentRe = regexp.MustCompile(`(?i)limit reached|usage limit|limit.*resets`)

	activeBarePromptRe = regexp.MustCompile(`(?m)^\s*>\s*$`)
	activeBoxPromptRe   = regexp.MustCompile(`(?m)^.*│.*>.*│.*$`)
	activePhraseRe      = regexp.MustCompile(`(?i)continue this conversation|you can continue|your limit \(?will\)? ?reset`)

	approvalQuestionRe = regexp.MustCompile(`(?i)Do you want to (make this edit to|create|proceed)`)
	approvalOptionRe   = regexp.MustCompile(`(?m)^\s*\d+\.\s*Yes`)
	selectionMarker    = "❯"

	waitingBareRe  = regexp.MustCompile(`(?m)^>\s*$`)
	waitingSendRe  = regexp.MustCompile(`(?m)^>.*↵\s*send`)

	resetTimeRe = regexp.MustCompile(`(?i)resets (?:at )?(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)|available again at (\d{1,2}(?::\d{2})?\s*(?:am|pm)?)|ready at (\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)

	numberedOptionRe = regexp.MustCompile(`(?m)^\s*(\d+)\.\s*(.+?)(?:\s*\(([^)]+)\))?\s*$`)
)

// processingWords are the spinner/activity markers the "not processing"
// heuristic looks for on the last non-empty line. Matches spec §4.A: a
// bare prompt on that line, or absence of any of these words/glyphs, is
// read as "not processing" — last line only, not all lines (see
// SPEC_FULL.md §9 for the preserved ambiguity this implementation keeps).
var processingWords = []string{
	"◐", "◑", "◒", "◓", "⠋", "⠙", "⠹", "⠸",
	"processing", "analyzing", "running", "executing", "working", "loading",
}

// LimitPresent reports whether text contains any usage-limit phrasing,
// case-insensitively.
func LimitPresent(text string) bool {
	return limitPresentRe.MatchString(text)
}

// ActiveTerminalState reports whether the captured screen shows an input
// affordance: a bare ">" at line start, a box-drawn input frame containing
// ">", or one of the continuation phrases.
func ActiveTerminalState(text string) bool {
	if activeBarePromptRe.MatchString(text) {
		return true
	}
	if activeBoxPromptRe.MatchString(text) {
		return true
	}
	return activePhraseRe.MatchString(text)
}

// ApprovalDialogPresent reports whether the screen carries all three parts
// of an approval dialog: a question line, a numbered "N. Yes" option, and
// the selection marker glyph. Detection short-circuits (logically) as soon
// as all three are present, but since all three are plain regex tests over
// the full text, no explicit early-exit is needed for correctness.
func ApprovalDialogPresent(text string) bool {
	if !approvalQuestionRe.MatchString(text) {
		return false
	}
	if !approvalOptionRe.MatchString(text) {
		return false
	}
	return strings.Contains(text, selectionMarker)
}

// dimColorCodes are SGR codes that signal dim/grey rendering — these mark
// pasted/inert dialog text rather than a live, interactive one.
var dimColorCodes = map[string]bool{"2": true, "8": true, "90": true}

var sgrCodeRe = regexp.MustCompile(`\x1b\[([0-9;]+)m`)

// InteractiveApproval inspects a color-annotated capture and decides
// whether the approval dialog lines are live (interactive) or merely
// pasted text. A dialog is interactive iff at least one approval-carrying
// line has a non-dim color escape and none of them has a dim/grey escape
// (codes 2, 8, 90). A capture with no escapes at all is assumed
// interactive (can't prove otherwise, so don't block on it).
func InteractiveApproval(coloredText string) bool {
	if !strings.Contains(coloredText, "\x1b[") {
		return true
	}

	lines := strings.Split(coloredText, "\n")
	sawNonDim := false
	for _, line := range lines {
		if !isApprovalCarryingLine(line) {
			continue
		}
		codes := sgrCodeRe.FindAllStringSubmatch(line, -1)
		if len(codes) == 0 {
			continue
		}
		lineIsDim := false
		lineHasColor := false
		for _, m := range codes {
			for _, part := range strings.Split(m[1], ";") {
				if part == "" {
					continue
				}
				lineHasColor = true
				if dimColorCodes[part] {
					lineIsDim = true
				}
			}
		}
		if lineIsDim {
			return false
		}
		if lineHasColor {
			sawNonDim = true
		}
	}
	return sawNonDim
}

func isApprovalCarryingLine(line string) bool {
	plain := StripANSI(line)
	if approvalQuestionRe.MatchString(plain) {
		return true
	}
	if approvalOptionRe.MatchString(plain) {
		return true
	}
	return strings.Contains(plain, selectionMarker)
}

// ResetTimeText returns the first raw reset-time string matched in text
// (e.g. "3:45pm"), and whether a match was found at all.
func ResetTimeText(text string) (string, bool) {
	m := resetTimeRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g), true
		}
	}
	return "", false
}

// ApprovalOption is one parsed numbered choice from an approval dialog.
type ApprovalOption struct {
	Number   int
	Text     string
	Shortcut string
}

// ApprovalInfo is the fully classified content of an approval dialog.
type ApprovalInfo struct {
	Tool     string
	Action   string
	Question string
	Options  []ApprovalOption
}

// deboxRe strips leading/trailing box-drawing glyphs from a line so numbered
// options and the question line can be matched regardless of whether the
// TUI drew them inside a bordered panel.
var deboxRe = regexp.MustCompile(`^[│├└┌┐┘┤┬┴┼╭╰╮╯─\s]+|[│├└┌┐┘┤┬┴┼╭╰╮╯─\s]+$`)

func deboxLine(line string) string {
	return deboxRe.ReplaceAllString(StripANSI(line), "")
}

// ExtractApprovalInfo parses the de-boxed text of an approval dialog into
// tool/action classification, the question line, and the numbered options.
func ExtractApprovalInfo(text string) ApprovalInfo {
	lines := strings.Split(text, "\n")
	info := ApprovalInfo{}

	var questionLine string
	for _, raw := range lines {
		line := deboxLine(raw)
		if m := approvalQuestionRe.FindStringSubmatch(line); m != nil {
			questionLine = strings.TrimSpace(line)
			info.Question = questionLine
		}
	}

	for _, raw := range lines {
		line := deboxLine(raw)
		line = strings.TrimPrefix(strings.TrimSpace(line), selectionMarker)
		line = strings.TrimSpace(line)
		m := numberedOptionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		info.Options = append(info.Options, ApprovalOption{
			Number:   atoiPrefix(m[1]),
			Text:     strings.TrimSpace(m[2]),
			Shortcut: strings.TrimSpace(m[3]),
		})
	}

	info.Tool, info.Action = classifyApprovalAction(questionLine, text)
	return info
}

func atoiPrefix(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

var (
	editFileRe  = regexp.MustCompile(`(?i)make this edit to (\S+)`)
	createFileRe = regexp.MustCompile(`(?i)create (\S+)`)
	bashContextRe = regexp.MustCompile(`(?i)bash command`)
)

func classifyApprovalAction(questionLine, fullText string) (tool, action string) {
	if m := editFileRe.FindStringSubmatch(questionLine); m != nil {
		file := strings.TrimSuffix(m[1], "?")
		return "Edit", "Edit " + file
	}
	if m := createFileRe.FindStringSubmatch(questionLine); m != nil {
		file := strings.TrimSuffix(m[1], "?")
		return "Write", "Write " + file
	}
	if strings.Contains(strings.ToLower(questionLine), "proceed") && bashContextRe.MatchString(fullText) {
		cmd := firstNonChromeLine(fullText)
		return "Bash", "Bash: " + cmd
	}
	return "Tool", "Proceed with operation"
}

// firstNonChromeLine returns the first line of text that isn't blank, isn't
// a question/option/box-drawing line — a best-effort guess at the command
// text shown inside a Bash-approval dialog.
func firstNonChromeLine(text string) string {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(deboxLine(raw))
		if line == "" {
			continue
		}
		if approvalQuestionRe.MatchString(line) {
			continue
		}
		if numberedOptionRe.MatchString(line) {
			continue
		}
		if bashContextRe.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// WaitingForInput reports whether a line matches the bare ">" prompt or the
// "> ... ↵ send" hint used by chat-style input boxes.
func WaitingForInput(text string) bool {
	if waitingBareRe.MatchString(text) {
		return true
	}
	return waitingSendRe.MatchString(text)
}

// NotProcessing implements the spec's "last non-empty line lacks a
// processing marker" heuristic: only the last non-empty line is checked,
// so earlier lines may still carry markers — see SPEC_FULL.md §9 for why
// that reading is kept rather than tightened to "all lines are quiet".
func NotProcessing(text string) bool {
	lines := strings.Split(text, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(StripANSI(lines[i]))
		if trimmed != "" {
			last = trimmed
			break
		}
	}
	if last == "" {
		return true
	}
	lower := strings.ToLower(last)
	for _, w := range processingWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return false
		}
	}
	return true
}
