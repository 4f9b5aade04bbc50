package webpushnotify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/watchloop/monitor/internal/notify"
)

type fakeSender struct {
	sent    []Subscription
	failFor map[string]int
}

func (f *fakeSender) Send(_ []byte, sub Subscription) (int, error) {
	f.sent = append(f.sent, sub)
	if status, ok := f.failFor[sub.Endpoint]; ok {
		return status, errStatus(status)
	}
	return http.StatusCreated, nil
}

type errStatus int

func (e errStatus) Error() string { return "send failed" }

func newTestDriver(t *testing.T, sender webPushSender) *Driver {
	t.Helper()
	store, err := openSubscriptionStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("openSubscriptionStore: %v", err)
	}
	return &Driver{store: store, sender: sender, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestDriver_NotifyWithNoSubscriptionsIsNoop(t *testing.T) {
	d := newTestDriver(t, &fakeSender{})
	if err := d.Notify(context.Background(), notify.Notification{Type: notify.TypeLimit}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestDriver_NotifySendsToAllSubscriptions(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDriver(t, sender)

	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/a", P256dh: "p1", Auth: "a1"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/b", P256dh: "p2", Auth: "a2"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	err := d.Notify(context.Background(), notify.Notification{
		Type: notify.TypeApproval, SessionID: "s1", SessionName: "my-session", Message: "needs approval",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}
}

func TestDriver_NotifyDropsGoneSubscriptions(t *testing.T) {
	sender := &fakeSender{failFor: map[string]int{"https://push.example/gone": http.StatusGone}}
	d := newTestDriver(t, sender)

	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/gone"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/ok"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := d.Notify(context.Background(), notify.Notification{Type: notify.TypeError}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	remaining := d.store.list()
	if len(remaining) != 1 || remaining[0].Endpoint != "https://push.example/ok" {
		t.Fatalf("expected only the surviving subscription, got %+v", remaining)
	}
}

func TestDriver_NotifyKeepsSubscriptionOnTransientError(t *testing.T) {
	sender := &fakeSender{failFor: map[string]int{"https://push.example/flaky": http.StatusInternalServerError}}
	d := newTestDriver(t, sender)

	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/flaky"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := d.Notify(context.Background(), notify.Notification{Type: notify.TypeLimit}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(d.store.list()) != 1 {
		t.Fatalf("expected subscription to survive a transient error")
	}
}

func TestDriver_UnsubscribeRemovesEndpoint(t *testing.T) {
	d := newTestDriver(t, &fakeSender{})
	if err := d.Subscribe(Subscription{Endpoint: "https://push.example/a"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := d.Unsubscribe("https://push.example/a"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if len(d.store.list()) != 0 {
		t.Fatalf("expected no subscriptions after unsubscribe")
	}
}

func TestMessageFor_FallsBackToTypeWhenMessageEmpty(t *testing.T) {
	msg := messageFor(notify.Notification{Type: notify.TypeTaskCompleted, SessionName: "build"})
	if msg.Title != "Task completed" {
		t.Errorf("unexpected title: %s", msg.Title)
	}
	if msg.Tag != "task_completed" {
		t.Errorf("unexpected tag: %s", msg.Tag)
	}
	if msg.Body != "build: task_completed" {
		t.Errorf("unexpected body: %s", msg.Body)
	}
}
