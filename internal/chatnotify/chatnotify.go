// Package chatnotify implements the notify.Notifier interface (§4.D) over
// a persistent websocket bridge to a chat-bot relay process. Unlike
// internal/webpushnotify, this driver is bidirectional: besides pushing
// outbound notifications, it parses inbound chat commands ("/continue",
// "/snooze", "/quota") and applies them through the engine's public remote
// command surface (§4.K).
package chatnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/registry"
)

const (
	reconnectDelayMin = 1 * time.Second
	reconnectDelayMax = 30 * time.Second
	writeTimeout      = 5 * time.Second
	pingInterval      = 30 * time.Second
)

// RemoteCommander is the subset of internal/engine.Engine's remote
// command surface (§4.K) chatnotify needs to apply inbound chat commands.
// A local interface, rather than importing *engine.Engine directly, keeps
// this package testable without a real Engine.
type RemoteCommander interface {
	ForceContinue(ctx context.Context, sessionID string) error
	Snooze(sessionID string, until time.Time) error
	SetQuotaSchedule(ctx context.Context, sessionID string, schedule registry.QuotaSchedule) error
}

// outboundMessage is what Notify sends over the bridge.
type outboundMessage struct {
	Type        string            `json:"type"`
	NotifyType  string            `json:"notifyType"`
	SessionID   string            `json:"sessionId"`
	SessionName string            `json:"sessionName"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Time        time.Time         `json:"time"`
}

// inboundMessage is what the relay sends back: a chat line typed by an
// operator.
type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ackMessage is sent back to the relay after handling a command, so the
// chat-bot can echo success/failure to the operator.
type ackMessage struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
	Command string `json:"command,omitempty"`
}

// Driver bridges the engine's notify.Notifier contract to a websocket
// connection, reconnecting with backoff whenever the relay drops.
type Driver struct {
	url      string
	token    string
	reg      registry.Registry
	commands RemoteCommander
	log      *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewDriver returns a Driver that dials url (with token as a bearer
// Authorization header) and applies inbound commands through commands,
// resolving session names via reg.
func NewDriver(url, token string, reg registry.Registry, commands RemoteCommander) *Driver {
	return &Driver{
		url:      url,
		token:    token,
		reg:      reg,
		commands: commands,
		log:      logging.ForComponent(logging.CompNotify),
	}
}

// Run dials the relay and services it until ctx is cancelled, reconnecting
// with exponential backoff on any disconnect. Intended to run in its own
// goroutine for the lifetime of the process.
func (d *Driver) Run(ctx context.Context) {
	delay := reconnectDelayMin
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := d.dial(ctx)
		if err != nil {
			d.log.Warn("chat_bridge_dial_failed", slog.String("error", err.Error()), slog.Duration("retry_in", delay))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextBackoff(delay)
			continue
		}

		delay = reconnectDelayMin
		d.setConn(conn)
		d.serve(ctx, conn)
		d.setConn(nil)
	}
}

func (d *Driver) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, d.url, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("chatnotify: dial: %w", err)
	}
	return conn, nil
}

// serve reads inbound messages until the connection closes or ctx is
// cancelled, dispatching each parsed command.
func (d *Driver) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = conn.Close()
		close(done)
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.mu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				d.mu.Unlock()
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in inboundMessage
		if err := json.Unmarshal(payload, &in); err != nil {
			d.log.Warn("chat_bridge_invalid_payload", slog.String("error", err.Error()))
			continue
		}
		if in.Type != "chat_message" {
			continue
		}
		d.handleLine(ctx, conn, in.Text)
	}
}

func (d *Driver) handleLine(ctx context.Context, conn *websocket.Conn, line string) {
	cmd, err := parseCommand(line)
	if err != nil {
		return
	}

	ack := d.apply(ctx, cmd)
	d.mu.Lock()
	_ = conn.WriteJSON(ack)
	d.mu.Unlock()
}

func (d *Driver) apply(ctx context.Context, cmd *command) ackMessage {
	sessionID, err := resolveSession(ctx, d.reg, cmd.sessionRaw)
	if err != nil {
		return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
	}

	switch cmd.kind {
	case cmdContinue:
		if err := d.commands.ForceContinue(ctx, sessionID); err != nil {
			return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
		}
		return ackMessage{Type: "ack", OK: true, Command: string(cmd.kind)}

	case cmdSnooze:
		until, err := nextOccurrence(time.Now(), cmd.timeOfDay)
		if err != nil {
			return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
		}
		if err := d.commands.Snooze(sessionID, until); err != nil {
			return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
		}
		return ackMessage{Type: "ack", OK: true, Command: string(cmd.kind)}

	case cmdQuota:
		next, err := nextOccurrence(time.Now(), cmd.timeOfDay)
		if err != nil {
			return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
		}
		sched := registry.QuotaSchedule{TimeOfDay: cmd.timeOfDay, Command: cmd.rest, NextExecution: next}
		if err := d.commands.SetQuotaSchedule(ctx, sessionID, sched); err != nil {
			return ackMessage{Type: "ack", OK: false, Command: string(cmd.kind), Detail: err.Error()}
		}
		return ackMessage{Type: "ack", OK: true, Command: string(cmd.kind)}

	default:
		return ackMessage{Type: "ack", OK: false, Detail: "unknown command"}
	}
}

// Notify implements notify.Notifier, pushing n over the current websocket
// connection. Returns an error (logged and swallowed by notify.Guarded)
// when no connection is currently established.
func (d *Driver) Notify(ctx context.Context, n notify.Notification) error {
	conn := d.getConn()
	if conn == nil {
		return fmt.Errorf("chatnotify: not connected to chat bridge")
	}

	msg := outboundMessage{
		Type:        "notification",
		NotifyType:  string(n.Type),
		SessionID:   n.SessionID,
		SessionName: n.SessionName,
		Message:     n.Message,
		Metadata:    n.Metadata,
		Time:        time.Now().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("chatnotify: set write deadline: %w", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("chatnotify: write notification: %w", err)
	}
	return nil
}

func (d *Driver) setConn(conn *websocket.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = conn
}

func (d *Driver) getConn() *websocket.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectDelayMax {
		return reconnectDelayMax
	}
	return d
}

var _ notify.Notifier = (*Driver)(nil)
