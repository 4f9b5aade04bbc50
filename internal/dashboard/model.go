package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/watchloop/monitor/internal/engine"
	"github.com/watchloop/monitor/internal/registry"
)

const (
	pollInterval  = 2 * time.Second
	minTermWidth  = 60
	minTermHeight = 10
)

// EventSource is the subset of engine.Engine the dashboard depends on. It
// never sees anything beyond the public event-subscription surface,
// matching the core's "no UI" non-goal.
type EventSource interface {
	Subscribe() (<-chan engine.Event, func())
}

type row struct {
	id        string
	name      string
	status    registry.Status
	lastEvent string
	lastSeen  time.Time
	idleSince time.Time
}

// Model is a read-only bubbletea program: it renders whatever the engine's
// event stream and the registry's List report, and never writes to either.
type Model struct {
	engine EventSource
	reg    registry.Registry

	ctx    context.Context
	cancel context.CancelFunc

	unsubscribe func()
	events      <-chan engine.Event

	theme *themeWatcher

	rows    map[string]*row
	width   int
	height  int
	lastErr error
	clock   func() time.Time

	dark  bool
	alert bool
}

// New builds a dashboard model. clock defaults to time.Now when nil, and
// exists only so tests can control idle-duration rendering.
func New(eng EventSource, reg registry.Registry, clock func() time.Time) *Model {
	if clock == nil {
		clock = time.Now
	}
	return &Model{
		engine: eng,
		reg:    reg,
		rows:   make(map[string]*row),
		clock:  clock,
		dark:   true,
	}
}

type tickMsg struct{}

type registryMsg struct {
	records []*registry.Record
	err     error
}

type eventMsg struct {
	ev engine.Event
	ok bool
}

type themeMsg struct{ state PaletteState }

func (m *Model) Init() tea.Cmd {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.events, m.unsubscribe = m.engine.Subscribe()
	m.theme = newThemeWatcher(m.ctx)

	cmds := []tea.Cmd{m.loadRegistry, m.waitForEvent, m.tick()}
	if m.theme != nil {
		cmds = append(cmds, m.waitForTheme)
	}
	return tea.Batch(cmds...)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) loadRegistry() tea.Msg {
	records, err := m.reg.List(m.ctx)
	return registryMsg{records: records, err: err}
}

func (m *Model) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	return eventMsg{ev: ev, ok: ok}
}

func (m *Model) waitForTheme() tea.Msg {
	state, ok := <-m.theme.ChangeChannel()
	if !ok {
		return nil
	}
	return themeMsg{state: state}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadRegistry, m.tick())

	case registryMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.applyRegistry(msg.records)
		m.recomputeAlert()
		return m, nil

	case eventMsg:
		if !msg.ok {
			return m, nil
		}
		m.applyEvent(msg.ev)
		m.recomputeAlert()
		return m, m.waitForEvent

	case themeMsg:
		m.dark = msg.state.Dark
		m.alert = msg.state.Alert
		m.applyTheme()
		return m, m.waitForTheme
	}
	return m, nil
}

func (m *Model) applyRegistry(records []*registry.Record) {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.ID] = true
		r, ok := m.rows[rec.ID]
		if !ok {
			r = &row{id: rec.ID}
			m.rows[rec.ID] = r
		}
		r.name = rec.Name
		r.status = rec.Status
		if r.idleSince.IsZero() {
			r.idleSince = rec.Created
		}
	}
	for id := range m.rows {
		if !seen[id] {
			delete(m.rows, id)
		}
	}
}

func (m *Model) applyEvent(ev engine.Event) {
	r, ok := m.rows[ev.SessionID]
	if !ok {
		r = &row{id: ev.SessionID}
		m.rows[ev.SessionID] = r
	}
	r.lastEvent = eventLabel(ev.Type)
	r.lastSeen = ev.Timestamp
	if ev.Type == engine.EventTaskCompleted {
		r.idleSince = ev.Timestamp
	}
}

// recomputeAlert flags the palette for attention whenever a session is
// waiting on a quota reset or an approval, and clears it once none are.
// Pushed into the theme watcher so the next OS appearance change carries
// the current alert state forward, and applied locally right away so the
// title doesn't wait on that round trip.
func (m *Model) recomputeAlert() {
	alert := false
	for _, r := range m.rows {
		if r.status == registry.StatusWaiting || r.status == registry.StatusWaitingApproval {
			alert = true
			break
		}
	}
	if alert == m.alert {
		return
	}
	m.alert = alert
	if m.theme != nil {
		m.theme.SetAlert(alert)
	}
	m.applyTheme()
}

func (m *Model) applyTheme() {
	theme := ThemeDark
	if !m.dark {
		theme = ThemeLight
	}
	InitTheme(theme, m.alert)
}

func eventLabel(t engine.EventType) string {
	switch t {
	case engine.EventLimitDetected:
		return "usage limit"
	case engine.EventApprovalNeeded:
		return "needs approval"
	case engine.EventTaskCompleted:
		return "task completed"
	case engine.EventError:
		return "error"
	default:
		return string(t)
	}
}

func statusLabel(s registry.Status) (string, lipgloss.Style) {
	switch s {
	case registry.StatusActive:
		return "active", StatusActiveStyle
	case registry.StatusWaiting:
		return "waiting", StatusWaitingStyle
	case registry.StatusWaitingApproval:
		return "approval", StatusWaitingStyle
	case registry.StatusEnded:
		return "ended", StatusEndedStyle
	default:
		return string(s), StatusErrorStyle
	}
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.width < minTermWidth || m.height < minTermHeight {
		return DimStyle.Render(fmt.Sprintf("terminal too small (%dx%d)", m.width, m.height))
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("monitor dashboard"))
	b.WriteString("\n\n")

	header := fmt.Sprintf("%-20s %-12s %-18s %s", "SESSION", "STATUS", "LAST EVENT", "IDLE")
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n")

	rows := make([]*row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	now := m.clock()
	for _, r := range rows {
		name := runewidth.Truncate(r.name, 20, "...")
		name = name + strings.Repeat(" ", max0(20-runewidth.StringWidth(name)))

		label, style := statusLabel(r.status)
		status := style.Render(fmt.Sprintf("%-12s", label))

		lastEvent := "-"
		if r.lastEvent != "" {
			lastEvent = r.lastEvent
			if !r.lastSeen.IsZero() {
				lastEvent = fmt.Sprintf("%s (%s)", lastEvent, humanize.RelTime(r.lastSeen, now, "ago", ""))
			}
		}
		lastEvent = runewidth.Truncate(lastEvent, 18, "...")
		lastEvent = lastEvent + strings.Repeat(" ", max0(18-runewidth.StringWidth(lastEvent)))

		idle := "-"
		if !r.idleSince.IsZero() && r.status != registry.StatusEnded {
			idle = humanize.RelTime(r.idleSince, now, "", "")
		}

		b.WriteString(fmt.Sprintf("%s %s %s %s\n", name, status, lastEvent, idle))
	}

	if len(rows) == 0 {
		b.WriteString(DimStyle.Render("no sessions"))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(StatusErrorStyle.Render("registry error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DimStyle.Render("q to quit"))
	return b.String()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Close releases the engine subscription and theme watcher. Call after the
// bubbletea program exits.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.theme != nil {
		m.theme.Close()
	}
}
