package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/watchloop/monitor/internal/logging"
)

var notifyLog = logging.ForComponent(logging.CompNotify)

// Guarded wraps a Notifier with a token-bucket throttle and bounded retry
// with a fixed delay between attempts, so a flapping session cannot flood
// the underlying transport and a transient transport failure gets a few
// chances before being swallowed. All failures are logged, never returned
// to the engine — the engine also logs and swallows any error Notify
// returns (§4.D), but Guarded is the piece that actually implements
// "logged and swallowed".
type Guarded struct {
	inner      Notifier
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewGuarded wraps inner with a limiter allowing ratePerSecond sustained
// notifications and up to burst at once, retrying a failed send up to
// maxRetries times with retryDelay between attempts.
func NewGuarded(inner Notifier, ratePerSecond float64, burst, maxRetries int, retryDelay time.Duration) *Guarded {
	if burst <= 0 {
		burst = 1
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &Guarded{
		inner:      inner,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Notify implements Notifier. It never returns an error: every failure,
// including a throttle-induced skip, is logged and absorbed here so
// callers can call it exactly like the bare interface.
func (g *Guarded) Notify(ctx context.Context, n Notification) error {
	if !g.limiter.Allow() {
		notifyLog.Warn("notification_throttled",
			slog.String("session_id", n.SessionID),
			slog.String("type", string(n.Type)))
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		err := g.inner.Notify(ctx, n)
		if err == nil {
			return nil
		}
		lastErr = err
		notifyLog.Warn("notification_attempt_failed",
			slog.String("session_id", n.SessionID),
			slog.String("type", string(n.Type)),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < g.maxRetries {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(g.retryDelay):
			}
		}
	}
	notifyLog.Error("notification_dropped",
		slog.String("session_id", n.SessionID),
		slog.String("type", string(n.Type)),
		slog.String("error", lastErr.Error()))
	return nil
}
