// Package ptypane implements the paneio.Adapter interface (§4.B) against a
// locally spawned pseudo-terminal running a shell, for development and
// testing without a tmux server.
package ptypane

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/watchloop/monitor/internal/paneio"
	"github.com/watchloop/monitor/internal/patterns"
)

// ErrPaneGone is returned once a Session's shell process has exited.
var ErrPaneGone = errors.New("ptypane: shell process has exited")

const (
	maxBufferSize      = 5 * 1024 * 1024
	continueLineClear  = 100 * time.Millisecond
	continueTypeSettle = 100 * time.Millisecond
)

// Session is a single local pseudo-terminal running a shell. One Session
// backs exactly one paneID; a Manager maps paneIDs to Sessions.
type Session struct {
	id  string
	ptm *os.File
	cmd *exec.Cmd

	mu     sync.Mutex
	buf    []byte
	exited bool
}

// Manager is a paneio.Adapter backed by in-process pseudo-terminals, keyed
// by paneID (an arbitrary caller-chosen string, analogous to a tmux pane
// id but requiring no tmux server).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	shell    string
}

// New returns a Manager that spawns $SHELL (or /bin/bash) for a paneID when
// Spawn is called; other methods on a paneID never spawned return
// ErrPaneGone (PaneExists returns false).
func New() *Manager {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return &Manager{sessions: make(map[string]*Session), shell: shell}
}

// Spawn creates a new pseudo-terminal session for paneID. Calling it twice
// for the same paneID replaces the prior session, killing its process.
func (m *Manager) Spawn(paneID string) error {
	cmd := exec.Command(m.shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return fmt.Errorf("ptypane: spawn %s: %w", paneID, err)
	}

	s := &Session{id: paneID, ptm: ptm, cmd: cmd}
	go s.readLoop()

	m.mu.Lock()
	if old, ok := m.sessions[paneID]; ok {
		_ = old.kill()
	}
	m.sessions[paneID] = s
	m.mu.Unlock()

	return nil
}

func (s *Session) readLoop() {
	chunk := make([]byte, 4096)
	for {
		n, err := s.ptm.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			if len(s.buf) > maxBufferSize {
				s.buf = s.buf[len(s.buf)-maxBufferSize:]
			}
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.exited = true
			s.mu.Unlock()
			return
		}
	}
}

func (s *Session) kill() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_, _ = s.cmd.Process.Wait()
	}
	return s.ptm.Close()
}

func (m *Manager) session(paneID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[paneID]
	return s, ok
}

// CapturePlain implements paneio.Adapter. Color/escape sequences are
// stripped so detectors see plain text, matching tmux capture-pane -p's
// default behavior.
func (m *Manager) CapturePlain(_ context.Context, paneID string) (string, error) {
	s, ok := m.session(paneID)
	if !ok {
		return "", ErrPaneGone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return patterns.StripANSI(string(s.buf)), nil
}

// CaptureColored implements paneio.Adapter, preserving escape sequences.
func (m *Manager) CaptureColored(_ context.Context, paneID string) (string, error) {
	s, ok := m.session(paneID)
	if !ok {
		return "", ErrPaneGone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf), nil
}

// PaneExists implements paneio.Adapter.
func (m *Manager) PaneExists(_ context.Context, paneID string) bool {
	s, ok := m.session(paneID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.exited
}

// SendCooked implements paneio.Adapter: literal text followed by a carriage
// return, mirroring how a user would type into a shell.
func (m *Manager) SendCooked(ctx context.Context, paneID, text string) error {
	s, ok := m.session(paneID)
	if !ok {
		return ErrPaneGone
	}
	if _, err := s.ptm.WriteString(text); err != nil {
		return fmt.Errorf("ptypane: write %s: %w", paneID, err)
	}
	sleep(ctx, continueTypeSettle)
	_, err := s.ptm.WriteString("\r")
	return err
}

// SendRaw implements paneio.Adapter: a single literal byte sequence, with
// a small set of named keys translated to their control byte.
func (m *Manager) SendRaw(_ context.Context, paneID, token string) error {
	s, ok := m.session(paneID)
	if !ok {
		return ErrPaneGone
	}
	_, err := s.ptm.WriteString(rawToken(token))
	return err
}

// SendContinueSequence implements paneio.Adapter's scripted recovery
// keystrokes: clear the input line (Ctrl-U), type "continue", submit.
func (m *Manager) SendContinueSequence(ctx context.Context, paneID string) error {
	s, ok := m.session(paneID)
	if !ok {
		return ErrPaneGone
	}
	if _, err := s.ptm.WriteString("\x15"); err != nil {
		return fmt.Errorf("ptypane: clear line %s: %w", paneID, err)
	}
	sleep(ctx, continueLineClear)
	if _, err := s.ptm.WriteString("continue"); err != nil {
		return fmt.Errorf("ptypane: write continue %s: %w", paneID, err)
	}
	sleep(ctx, continueTypeSettle)
	_, err := s.ptm.WriteString("\r")
	return err
}

func rawToken(token string) string {
	switch token {
	case "Enter":
		return "\r"
	case "Escape":
		return "\x1b"
	case "Tab":
		return "\t"
	case "C-u":
		return "\x15"
	case "C-c":
		return "\x03"
	default:
		return token
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

var _ paneio.Adapter = (*Manager)(nil)
