package engine

import (
	"context"
	"sync"
	"time"

	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/paneio"
	"github.com/watchloop/monitor/internal/registry"
)

// fakeClock is a manually advanced Clock for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePane is an in-memory paneio.Adapter driven entirely by test scripts.
type fakePane struct {
	mu sync.Mutex

	plain      map[string]string
	plainQueue map[string][]string
	colored    map[string]string
	exists     map[string]bool

	sentRaw    []string
	sentCooked []string
	continues  int

	captureErr error
}

func newFakePane() *fakePane {
	return &fakePane{
		plain:      make(map[string]string),
		plainQueue: make(map[string][]string),
		colored:    make(map[string]string),
		exists:     make(map[string]bool),
	}
}

func (p *fakePane) setPlain(paneID, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plain[paneID] = text
}

// queuePlain overrides the next len(texts) calls to CapturePlain for
// paneID, one value per call; subsequent calls fall back to the static
// value set via setPlain. Lets a test script a before/after capture
// sequence around an immediate-continue attempt.
func (p *fakePane) queuePlain(paneID string, texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plainQueue[paneID] = append(p.plainQueue[paneID], texts...)
}

func (p *fakePane) setColored(paneID, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colored[paneID] = text
}

func (p *fakePane) setExists(paneID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exists[paneID] = ok
}

func (p *fakePane) CapturePlain(_ context.Context, paneID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return "", p.captureErr
	}
	if q := p.plainQueue[paneID]; len(q) > 0 {
		p.plainQueue[paneID] = q[1:]
		return q[0], nil
	}
	return p.plain[paneID], nil
}

func (p *fakePane) CaptureColored(_ context.Context, paneID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return "", p.captureErr
	}
	if text, ok := p.colored[paneID]; ok {
		return text, nil
	}
	return p.plain[paneID], nil
}

func (p *fakePane) PaneExists(_ context.Context, paneID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, seen := p.exists[paneID]
	if !seen {
		return true
	}
	return ok
}

func (p *fakePane) SendCooked(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentCooked = append(p.sentCooked, text)
	return nil
}

func (p *fakePane) SendRaw(_ context.Context, _ string, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentRaw = append(p.sentRaw, token)
	return nil
}

func (p *fakePane) SendContinueSequence(_ context.Context, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.continues++
	return nil
}

var _ paneio.Adapter = (*fakePane)(nil)

// fakeRegistry is an in-memory registry.Registry.
type fakeRegistry struct {
	mu      sync.Mutex
	records map[string]*registry.Record
}

func newFakeRegistry(recs ...*registry.Record) *fakeRegistry {
	r := &fakeRegistry{records: make(map[string]*registry.Record)}
	for _, rec := range recs {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *fakeRegistry) Get(_ context.Context, sessionID string) (*registry.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[sessionID]
	if !ok {
		return nil, registry.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRegistry) Update(_ context.Context, sessionID string, upd registry.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[sessionID]
	if !ok {
		return registry.ErrNotFound
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.QuotaScheduleCleared {
		rec.QuotaSchedule = nil
	} else if upd.QuotaSchedule != nil {
		rec.QuotaSchedule = upd.QuotaSchedule
	}
	return nil
}

func (r *fakeRegistry) List(_ context.Context) ([]*registry.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*registry.Record, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, sessionID)
}

// fakeNotifier records every notification it receives.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (n *fakeNotifier) Notify(_ context.Context, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *fakeNotifier) countOf(t notify.Type) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, note := range n.sent {
		if note.Type == t {
			c++
		}
	}
	return c
}
