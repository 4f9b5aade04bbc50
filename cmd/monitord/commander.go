package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/watchloop/monitor/internal/chatnotify"
	"github.com/watchloop/monitor/internal/registry"
)

// deferredCommander lets chatnotify.NewDriver be constructed before the
// engine exists: chatnotify needs a RemoteCommander at construction time,
// but the engine needs the (possibly chat-backed) notifier at its own
// construction time. bind plugs in the real *engine.Engine once it's built.
type deferredCommander struct {
	target atomic.Pointer[chatnotify.RemoteCommander]
}

func (d *deferredCommander) bind(target chatnotify.RemoteCommander) {
	d.target.Store(&target)
}

func (d *deferredCommander) get() (chatnotify.RemoteCommander, error) {
	p := d.target.Load()
	if p == nil {
		return nil, errors.New("monitord: engine not yet started")
	}
	return *p, nil
}

func (d *deferredCommander) ForceContinue(ctx context.Context, sessionID string) error {
	target, err := d.get()
	if err != nil {
		return err
	}
	return target.ForceContinue(ctx, sessionID)
}

func (d *deferredCommander) Snooze(sessionID string, until time.Time) error {
	target, err := d.get()
	if err != nil {
		return err
	}
	return target.Snooze(sessionID, until)
}

func (d *deferredCommander) SetQuotaSchedule(ctx context.Context, sessionID string, schedule registry.QuotaSchedule) error {
	target, err := d.get()
	if err != nil {
		return err
	}
	return target.SetQuotaSchedule(ctx, sessionID, schedule)
}

var _ chatnotify.RemoteCommander = (*deferredCommander)(nil)
