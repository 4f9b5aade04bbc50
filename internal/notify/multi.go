package notify

import "context"

// Multi fans a single Notify call out to every wrapped Notifier
// concurrently, so a deployment can run the web-push and chat-bridge
// drivers side by side behind one notify.Notifier. Each inner Notifier is
// expected to already swallow and log its own failures (e.g. by being
// wrapped in Guarded); Multi does not add its own retry policy.
type Multi struct {
	notifiers []Notifier
}

// NewMulti combines notifiers into a single fan-out Notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify calls every wrapped Notifier and waits for all of them to return,
// returning the first error received (later errors are dropped). The
// engine treats the result as fire-and-forget regardless (§4.D), but
// returning an error keeps Multi usable standalone in tests.
func (m *Multi) Notify(ctx context.Context, n Notification) error {
	if len(m.notifiers) == 0 {
		return nil
	}

	errCh := make(chan error, len(m.notifiers))
	for _, inner := range m.notifiers {
		inner := inner
		go func() { errCh <- inner.Notify(ctx, n) }()
	}

	var firstErr error
	for range m.notifiers {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Notifier = (*Multi)(nil)
