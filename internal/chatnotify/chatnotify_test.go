package chatnotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/registry"
)

func wsURL(baseURL, path string) string {
	return "ws://" + strings.TrimPrefix(baseURL, "http://") + path
}

var testUpgrader = websocket.Upgrader{}

// fakeRelay is a minimal chat-bot relay: it upgrades one connection,
// records every message it receives, and can push inbound chat lines on
// demand.
type fakeRelay struct {
	mu       sync.Mutex
	received []outboundMessage
	conn     *websocket.Conn
	connCh   chan struct{}
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{connCh: make(chan struct{}, 1)}
}

func (r *fakeRelay) handler(w http.ResponseWriter, req *http.Request) {
	conn, err := testUpgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	select {
	case r.connCh <- struct{}{}:
	default:
	}

	for {
		var msg outboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		r.mu.Lock()
		r.received = append(r.received, msg)
		r.mu.Unlock()
	}
}

func (r *fakeRelay) waitConnected(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case <-r.connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chatnotify to connect")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func (r *fakeRelay) messages() []outboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]outboundMessage, len(r.received))
	copy(out, r.received)
	return out
}

type fakeCommander struct {
	mu             sync.Mutex
	forceContinued []string
	snoozed        map[string]time.Time
	quotaScheduled map[string]registry.QuotaSchedule
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{snoozed: map[string]time.Time{}, quotaScheduled: map[string]registry.QuotaSchedule{}}
}

func (f *fakeCommander) ForceContinue(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceContinued = append(f.forceContinued, sessionID)
	return nil
}

func (f *fakeCommander) Snooze(sessionID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snoozed[sessionID] = until
	return nil
}

func (f *fakeCommander) SetQuotaSchedule(_ context.Context, sessionID string, schedule registry.QuotaSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotaScheduled[sessionID] = schedule
	return nil
}

func TestDriver_NotifySendsOverWebsocket(t *testing.T) {
	relay := newFakeRelay()
	srv := httptest.NewServer(http.HandlerFunc(relay.handler))
	defer srv.Close()

	reg := &fakeRegistry{records: []*registry.Record{{ID: "s1", Name: "build", Status: registry.StatusActive}}}
	d := NewDriver(wsURL(srv.URL, "/bridge"), "", reg, newFakeCommander())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	relay.waitConnected(t)

	// Give the driver a moment to record its own connection before Notify.
	waitUntil(t, func() bool { return d.getConn() != nil })

	err := d.Notify(context.Background(), notify.Notification{
		Type: notify.TypeLimit, SessionID: "s1", SessionName: "build", Message: "usage limit hit",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	waitUntil(t, func() bool { return len(relay.messages()) == 1 })
	msgs := relay.messages()
	if msgs[0].SessionID != "s1" || msgs[0].NotifyType != string(notify.TypeLimit) {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
}

func TestDriver_NotifyFailsWhenDisconnected(t *testing.T) {
	d := NewDriver("ws://127.0.0.1:0/unreachable", "", &fakeRegistry{}, newFakeCommander())
	err := d.Notify(context.Background(), notify.Notification{Type: notify.TypeError})
	if err == nil {
		t.Fatal("expected error when no connection is established")
	}
}

func TestDriver_InboundContinueCommandInvokesCommander(t *testing.T) {
	relay := newFakeRelay()
	srv := httptest.NewServer(http.HandlerFunc(relay.handler))
	defer srv.Close()

	reg := &fakeRegistry{records: []*registry.Record{{ID: "s1", Name: "build", Status: registry.StatusActive}}}
	cmds := newFakeCommander()
	d := NewDriver(wsURL(srv.URL, "/bridge"), "", reg, cmds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	conn := relay.waitConnected(t)

	raw, _ := json.Marshal(inboundMessage{Type: "chat_message", Text: "/continue build"})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write inbound: %v", err)
	}

	waitUntil(t, func() bool {
		cmds.mu.Lock()
		defer cmds.mu.Unlock()
		return len(cmds.forceContinued) == 1
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
