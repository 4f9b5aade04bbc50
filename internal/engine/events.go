package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/watchloop/monitor/internal/logging"
)

var eventLog = logging.ForComponent(logging.CompEngine)

// EventType enumerates the in-process event kinds the engine publishes
// (§6 Event stream).
type EventType string

const (
	EventLimitDetected   EventType = "limit_detected"
	EventApprovalNeeded  EventType = "approval_needed"
	EventTaskCompleted   EventType = "task_completed"
	EventError           EventType = "error"
)

// Event is the value published to in-process subscribers.
type Event struct {
	Type      EventType
	SessionID string
	Data      map[string]any
	Timestamp time.Time
}

const subscriberBuffer = 32

// Bus is a bounded-channel fan-out publish/subscribe hub. Each subscriber
// gets its own buffered channel; a full channel drops the oldest pending
// event for that subscriber rather than blocking the publisher — the poll
// loop must never block on a slow consumer (§5 Event subscription).
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	dropped     map[int]int64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int]chan Event),
		dropped:     make(map[int]int64),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch
	eventLog.Debug("event_subscriber_added", slog.Int("subscriber_id", id))

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			close(c)
			delete(b.subscribers, id)
			delete(b.dropped, id)
		}
	}
	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest queued event to make room, then retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
				b.dropped[id]++
				logging.Aggregate(logging.CompEngine, ev.SessionID, "event_dropped", slog.String("event_type", string(ev.Type)))
			}
		}
	}
}
