package logging

import (
	"log/slog"
	"sync"
	"time"
)

// maxAggregateKeys bounds how many distinct (component, session, event)
// combinations the aggregator tracks between flushes. monitord can watch an
// arbitrary number of sessions at once, and a per-session key means a
// daemon watching hundreds of sessions produces hundreds of live entries;
// past this cap, further new keys are folded into a single overflow bucket
// per component so a runaway session count can't make the map grow without
// bound between flushes.
const maxAggregateKeys = 512

// aggregateKey uniquely identifies an event type for batching. SessionID is
// included so a burst from one session doesn't inflate the counts reported
// for every other session sharing the same component/event pair.
type aggregateKey struct {
	Component string
	SessionID string
	Event     string
}

// aggregateEntry tracks a batched event's count and last-seen fields.
type aggregateEntry struct {
	Count  int64
	Fields []slog.Attr
}

// Aggregator batches high-frequency per-session events and emits summaries
// periodically, so a daemon polling dozens of sessions every few seconds
// doesn't log a line per poll.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	entries  map[aggregateKey]*aggregateEntry
	overflow map[string]int64 // component -> dropped-key count, this window

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// If logger is nil, recorded events are silently dropped.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[aggregateKey]*aggregateEntry),
		overflow: make(map[string]int64),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.flushLoop()
}

// Stop flushes remaining entries and stops the background goroutine.
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
	a.flush() // Final flush
}

// Record increments the counter for an event type scoped to sessionID.
// fields are kept from the most recent call (last-writer-wins for context).
// sessionID may be empty for events that aren't tied to a single session.
func (a *Aggregator) Record(component, sessionID, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := aggregateKey{Component: component, SessionID: sessionID, Event: event}
	entry, ok := a.entries[key]
	if !ok {
		if len(a.entries) >= maxAggregateKeys {
			a.overflow[component]++
			return
		}
		entry = &aggregateEntry{}
		a.entries[key] = entry
	}
	entry.Count++
	if len(fields) > 0 {
		entry.Fields = fields
	}
}

func (a *Aggregator) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.entries) == 0 && len(a.overflow) == 0 {
		a.mu.Unlock()
		return
	}
	// Swap out entries under lock
	entries := a.entries
	overflow := a.overflow
	a.entries = make(map[aggregateKey]*aggregateEntry)
	a.overflow = make(map[string]int64)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}

	for key, entry := range entries {
		attrs := []any{
			slog.String("component", key.Component),
			slog.String("event", key.Event),
			slog.Int64("count", entry.Count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		if key.SessionID != "" {
			attrs = append(attrs, slog.String("session_id", key.SessionID))
		}
		for _, f := range entry.Fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}

	for component, dropped := range overflow {
		a.logger.Warn("event_summary_overflow",
			slog.String("component", component),
			slog.Int64("dropped_keys", dropped),
			slog.Int("window_seconds", int(a.interval.Seconds())))
	}
}
