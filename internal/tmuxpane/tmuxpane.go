// Package tmuxpane implements the paneio.Adapter interface (§4.B) against a
// real tmux pane, using tmux's capture-pane and send-keys subcommands.
package tmuxpane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/paneio"
)

var paneLog = logging.ForComponent(logging.CompPane)

// ErrCaptureTimeout is returned when a capture-pane invocation exceeds its
// deadline, most often because the tmux server itself is wedged.
var ErrCaptureTimeout = errors.New("tmuxpane: capture-pane timed out")

const (
	captureTimeout     = 3 * time.Second
	existsTimeout      = 5 * time.Second
	sendTimeout        = 3 * time.Second
	cacheWindow        = 500 * time.Millisecond
	continueLineClear  = 100 * time.Millisecond
	continueTypeSettle = 100 * time.Millisecond
)

// paneCache holds a short-lived capture result for one pane so that a poll
// cycle's plain and colored reads of the same unchanged pane don't both pay
// for a subprocess.
type paneCache struct {
	mu      sync.RWMutex
	content string
	at      time.Time
}

func (c *paneCache) get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.content == "" || time.Since(c.at) >= cacheWindow {
		return "", false
	}
	return c.content, true
}

func (c *paneCache) set(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = content
	c.at = time.Now()
}

func (c *paneCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = ""
	c.at = time.Time{}
}

// Session is a tmux-backed paneio.Adapter. One Session serves every pane the
// engine monitors; captures for distinct paneIDs are deduplicated and cached
// independently.
type Session struct {
	sf singleflight.Group

	mu      sync.Mutex
	plain   map[string]*paneCache
	colored map[string]*paneCache
}

// New returns a tmux-backed Session. It issues no subprocesses until a
// method is called.
func New() *Session {
	return &Session{
		plain:   make(map[string]*paneCache),
		colored: make(map[string]*paneCache),
	}
}

func (s *Session) cacheFor(m map[string]*paneCache, paneID string) *paneCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := m[paneID]
	if !ok {
		c = &paneCache{}
		m[paneID] = c
	}
	return c
}

func (s *Session) invalidate(paneID string) {
	s.mu.Lock()
	plainCache, hasPlain := s.plain[paneID]
	coloredCache, hasColored := s.colored[paneID]
	s.mu.Unlock()
	if hasPlain {
		plainCache.invalidate()
	}
	if hasColored {
		coloredCache.invalidate()
	}
}

// CapturePlain implements paneio.Adapter.
func (s *Session) CapturePlain(ctx context.Context, paneID string) (string, error) {
	return s.capture(ctx, paneID, s.cacheFor(s.plain, paneID), "plain:"+paneID, false)
}

// CaptureColored implements paneio.Adapter. It preserves SGR escape
// sequences (tmux's -e flag) so the approval arbiter can tell a dimmed
// option from an active one.
func (s *Session) CaptureColored(ctx context.Context, paneID string) (string, error) {
	return s.capture(ctx, paneID, s.cacheFor(s.colored, paneID), "colored:"+paneID, true)
}

func (s *Session) capture(ctx context.Context, paneID string, cache *paneCache, sfKey string, colored bool) (string, error) {
	if content, ok := cache.get(); ok {
		return content, nil
	}

	v, err, _ := s.sf.Do(sfKey, func() (interface{}, error) {
		if content, ok := cache.get(); ok {
			return content, nil
		}

		cctx, cancel := context.WithTimeout(ctx, captureTimeout)
		defer cancel()

		args := []string{"capture-pane", "-t", paneID, "-p", "-J"}
		if colored {
			args = append(args, "-e")
		}
		cmd := exec.CommandContext(cctx, "tmux", args...)
		out, err := cmd.Output()
		if err != nil {
			if errors.Is(cctx.Err(), context.DeadlineExceeded) {
				return nil, ErrCaptureTimeout
			}
			return nil, fmt.Errorf("tmuxpane: capture-pane %s: %w", paneID, err)
		}

		content := strings.TrimRight(string(out), "\n")
		cache.set(content)
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PaneExists implements paneio.Adapter.
func (s *Session) PaneExists(ctx context.Context, paneID string) bool {
	cctx, cancel := context.WithTimeout(ctx, existsTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "tmux", "has-session", "-t", paneID)
	return cmd.Run() == nil
}

// SendCooked implements paneio.Adapter: literal text followed by Enter, sent
// as two separate tmux calls with a settle delay between them. tmux 3.2+
// wraps send-keys -l in bracketed paste sequences; without the delay, Enter
// can arrive in the same read as the paste-end marker and get swallowed by
// async TUI frameworks.
func (s *Session) SendCooked(ctx context.Context, paneID, text string) error {
	s.invalidate(paneID)
	if err := s.sendLiteral(ctx, paneID, text); err != nil {
		return err
	}
	sleep(ctx, continueTypeSettle)
	return s.sendEnter(ctx, paneID)
}

// SendRaw implements paneio.Adapter: a single literal token or key name
// (e.g. "1", "Enter", "C-u") with no trailing submit key appended.
func (s *Session) SendRaw(ctx context.Context, paneID, token string) error {
	s.invalidate(paneID)
	if isKeyName(token) {
		return s.run(ctx, "send-keys", "-t", paneID, token)
	}
	return s.sendLiteral(ctx, paneID, token)
}

// SendContinueSequence implements paneio.Adapter's scripted recovery
// keystrokes: clear the input line, wait briefly, type "continue", wait
// briefly, submit.
func (s *Session) SendContinueSequence(ctx context.Context, paneID string) error {
	s.invalidate(paneID)
	if err := s.run(ctx, "send-keys", "-t", paneID, "C-u"); err != nil {
		paneLog.Warn("continue_clear_failed", slog.String("pane_id", paneID), slog.String("error", err.Error()))
	}
	sleep(ctx, continueLineClear)
	if err := s.sendLiteral(ctx, paneID, "continue"); err != nil {
		return err
	}
	sleep(ctx, continueTypeSettle)
	return s.sendEnter(ctx, paneID)
}

func (s *Session) sendLiteral(ctx context.Context, paneID, text string) error {
	return s.run(ctx, "send-keys", "-l", "-t", paneID, "--", text)
}

func (s *Session) sendEnter(ctx context.Context, paneID string) error {
	return s.run(ctx, "send-keys", "-t", paneID, "Enter")
}

func (s *Session) run(ctx context.Context, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "tmux", args...)
	if err := cmd.Run(); err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("tmuxpane: %s: %w", strings.Join(args, " "), context.DeadlineExceeded)
		}
		return fmt.Errorf("tmuxpane: %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// isKeyName reports whether token names a tmux key rather than literal text
// that happens to share a name with one (e.g. the literal word "Enter" typed
// by a user would never reach SendRaw — only the engine's own token
// constants do, and those are always key names).
func isKeyName(token string) bool {
	switch token {
	case "Enter", "Escape", "Tab", "Up", "Down", "Left", "Right", "Space":
		return true
	}
	if strings.HasPrefix(token, "C-") || strings.HasPrefix(token, "M-") {
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

var _ paneio.Adapter = (*Session)(nil)
