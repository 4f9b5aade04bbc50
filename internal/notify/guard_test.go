package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingNotifier struct {
	mu       sync.Mutex
	calls    int
	failFor  int
	lastNote Notification
}

func (c *countingNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastNote = n
	if c.calls <= c.failFor {
		return errors.New("transport unavailable")
	}
	return nil
}

func (c *countingNotifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestGuarded_RetriesThenSucceeds(t *testing.T) {
	inner := &countingNotifier{failFor: 2}
	g := NewGuarded(inner, 100, 10, 3, time.Millisecond)

	err := g.Notify(context.Background(), Notification{Type: TypeLimit, SessionID: "s1"})
	if err != nil {
		t.Fatalf("Notify returned an error, want nil (errors are swallowed): %v", err)
	}
	if inner.callCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.callCount())
	}
}

func TestGuarded_DropsAfterExhaustingRetries(t *testing.T) {
	inner := &countingNotifier{failFor: 100}
	g := NewGuarded(inner, 100, 10, 2, time.Millisecond)

	err := g.Notify(context.Background(), Notification{Type: TypeError, SessionID: "s1"})
	if err != nil {
		t.Fatalf("Notify returned an error, want nil: %v", err)
	}
	if inner.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.callCount())
	}
}

func TestGuarded_ThrottlesBeyondBurst(t *testing.T) {
	inner := &countingNotifier{}
	g := NewGuarded(inner, 0.001, 1, 1, time.Millisecond)

	if err := g.Notify(context.Background(), Notification{SessionID: "s1"}); err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	if err := g.Notify(context.Background(), Notification{SessionID: "s1"}); err != nil {
		t.Fatalf("second Notify: %v", err)
	}

	if inner.callCount() != 1 {
		t.Errorf("expected the second call to be throttled (1 delivered), got %d", inner.callCount())
	}
}

func TestGuarded_StopsRetryingOnContextCancel(t *testing.T) {
	inner := &countingNotifier{failFor: 100}
	g := NewGuarded(inner, 100, 10, 5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := g.Notify(ctx, Notification{SessionID: "s1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if inner.callCount() >= 5 {
		t.Errorf("expected cancellation to cut retries short, got %d attempts", inner.callCount())
	}
}

func TestNewGuarded_AppliesDefaults(t *testing.T) {
	g := NewGuarded(&countingNotifier{}, 1, 0, 0, 0)
	if g.maxRetries != 1 {
		t.Errorf("expected default maxRetries 1, got %d", g.maxRetries)
	}
	if g.retryDelay != 500*time.Millisecond {
		t.Errorf("expected default retryDelay 500ms, got %v", g.retryDelay)
	}
}
