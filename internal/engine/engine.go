package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/paneio"
	"github.com/watchloop/monitor/internal/registry"
)

var engineLog = logging.ForComponent(logging.CompEngine)

// Config is the construction-time configuration surface (§6): no
// environment variables are consumed by the core itself — this struct is
// the only input, built and validated by internal/config outside the
// core.
type Config struct {
	PollInterval time.Duration // default 2000ms, must be >= 250ms
	MaxRetries   int           // default 3, must be >= 1
	AutoRestart  bool          // accepted, defaulted true, not consulted by the core (§9)
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2000 * time.Millisecond,
		MaxRetries:   3,
		AutoRestart:  true,
	}
}

func (c Config) normalized() Config {
	if c.PollInterval < 250*time.Millisecond {
		c.PollInterval = 2000 * time.Millisecond
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	return c
}

// sessionHandle owns one session's dedicated poll goroutine and runtime
// state. Only the goroutine it spawns ever touches state — remote
// commands (§4.K) are never applied directly by the caller's goroutine;
// they're queued on commands and drained inside run's select loop, so the
// single-writer-per-session guarantee (§5) holds for ForceContinue and
// Snooze exactly as it does for a regular poll cycle.
type sessionHandle struct {
	sessionID string
	state     *sessionState
	cancel    context.CancelFunc
	done      chan struct{}
	commands  chan *remoteCommand
}

const commandQueueSize = 8

// Engine is the Session Monitoring Engine: the public contract of §4.F,
// wired to its three collaborators (Pane Adapter, Session Registry,
// Notifier) and an injected clock.
type Engine struct {
	cfg Config

	pane     paneio.Adapter
	reg      registry.Registry
	notifier notify.Notifier
	clock    Clock

	bus *Bus

	mu       sync.RWMutex
	sessions map[string]*sessionHandle
}

// New constructs an Engine. cfg is normalized against the defaults
// described in §4.F.
func New(cfg Config, pane paneio.Adapter, reg registry.Registry, notifier notify.Notifier, clock Clock) *Engine {
	if clock == nil {
		clock = RealClock()
	}
	return &Engine{
		cfg:      cfg.normalized(),
		pane:     pane,
		reg:      reg,
		notifier: notifier,
		clock:    clock,
		bus:      NewBus(),
		sessions: make(map[string]*sessionHandle),
	}
}

// Subscribe registers an in-process consumer of engine events (§6 Event
// stream). The returned channel is non-blocking from the engine's
// perspective; slow consumers lose their oldest undelivered event.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.bus.Subscribe()
}

// StartMonitoring begins polling sessionID on its own ticker. Starting an
// already-monitored session is a no-op.
func (e *Engine) StartMonitoring(ctx context.Context, sessionID string) {
	e.mu.Lock()
	if _, exists := e.sessions[sessionID]; exists {
		e.mu.Unlock()
		return
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	handle := &sessionHandle{
		sessionID: sessionID,
		state:     newSessionState(e.clock.Now()),
		cancel:    cancel,
		done:      make(chan struct{}),
		commands:  make(chan *remoteCommand, commandQueueSize),
	}
	e.sessions[sessionID] = handle
	e.mu.Unlock()

	go e.run(cycleCtx, handle)
}

// StopMonitoring cancels sessionID's next tick immediately. A cycle
// already in flight is permitted to complete and its side effects may
// still fire (§5 Cancellation and timeouts).
func (e *Engine) StopMonitoring(sessionID string) {
	e.mu.Lock()
	handle, exists := e.sessions[sessionID]
	if exists {
		delete(e.sessions, sessionID)
	}
	e.mu.Unlock()
	if !exists {
		return
	}
	handle.cancel()
}

// StopAll cancels every monitored session.
func (e *Engine) StopAll() {
	e.mu.Lock()
	handles := make([]*sessionHandle, 0, len(e.sessions))
	for _, h := range e.sessions {
		handles = append(handles, h)
	}
	e.sessions = make(map[string]*sessionHandle)
	e.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
}

// ActiveSessions returns the IDs currently being monitored.
func (e *Engine) ActiveSessions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

// stopMonitoringInternal is called from within a poll cycle (self-stop on
// missing session / pane gone / retry exhaustion) — it must not re-cancel
// a context it's already running inside, just remove the bookkeeping.
func (e *Engine) stopMonitoringInternal(sessionID string) {
	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()
}

// run drives one session's adaptive polling loop until its context is
// cancelled (§4.F, §5 Scheduling model: exactly one in-flight cycle per
// session, driven by a dedicated timer).
func (e *Engine) run(ctx context.Context, h *sessionHandle) {
	defer close(h.done)

	interval := e.config().PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if !e.runCycle(ctx, h) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			e.applyRemoteCommand(ctx, h, cmd)
		case <-ticker.C:
			if !e.runCycle(ctx, h) {
				return
			}
			if iv := e.config().PollInterval; iv != interval {
				interval = iv
				ticker.Reset(iv)
			}
		}
	}
}

// handle returns the sessionHandle for sessionID, if it's currently
// monitored.
func (e *Engine) handle(sessionID string) (*sessionHandle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.sessions[sessionID]
	return h, ok
}

// runCycle executes one poll cycle and returns false if monitoring for
// this session should stop (self-stop conditions).
func (e *Engine) runCycle(ctx context.Context, h *sessionHandle) bool {
	keepGoing, err := e.pollOnce(ctx, h)
	if err != nil {
		engineLog.Warn("poll_cycle_error",
			slog.String("session_id", h.sessionID),
			slog.String("error", err.Error()))
	}
	if !keepGoing {
		e.stopMonitoringInternal(h.sessionID)
	}
	return keepGoing
}

// notifyAsync delivers a notification without ever erroring the poll loop
// (§4.D: "the engine wraps calls so that any error is logged and
// swallowed"). Notify runs synchronously on the session's goroutine, so the
// cycle waits for it to return.
func (e *Engine) notifyAsync(ctx context.Context, n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		engineLog.Warn("notify_failed",
			slog.String("session_id", n.SessionID),
			slog.String("type", string(n.Type)),
			slog.String("error", err.Error()))
	}
}

// config returns a copy of the current Config under the session-map lock,
// since Reconfigure may mutate it concurrently with a running poll loop.
func (e *Engine) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Engine) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock.Now()
	}
	e.bus.Publish(ev)
}
