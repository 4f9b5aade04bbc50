package dashboard

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/watchloop/monitor/internal/logging"
)

var dashLog = logging.ForComponent(logging.CompDash)

// PaletteState is everything themeWatcher multiplexes into a single
// rendering decision: the OS's light/dark appearance, and whether any
// monitored session currently needs the operator's attention.
type PaletteState struct {
	Dark  bool
	Alert bool
}

// themeWatcher merges two independent signals into the palette the
// dashboard renders with: OS appearance changes (via dark-mode-go) and
// monitord's own alert state, pushed in by the model whenever a session
// enters or leaves a status that needs attention (waiting on a limit
// reset or an approval). An alert always overrides the OS's light/dark
// preference for the title bar, on the theory that a limit or approval
// should stay visible no matter what background the terminal is using.
type themeWatcher struct {
	mu    sync.Mutex
	dark  bool
	alert bool

	changeCh  chan PaletteState
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newThemeWatcher(parentCtx context.Context) *themeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		dashLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &themeWatcher{
		changeCh: make(chan PaletteState, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(ctx, cancel, events, errs)
	return tw
}

func (tw *themeWatcher) watchLoop(ctx context.Context, cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			tw.mu.Lock()
			tw.dark = isDark
			tw.mu.Unlock()
			tw.publish()
		case err, ok := <-errs:
			if ok && err != nil {
				dashLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// SetAlert updates the session-attention signal and republishes the
// combined palette if it actually changed. Called from the model's
// update loop, never from watchLoop, so it needs its own locking.
func (tw *themeWatcher) SetAlert(alert bool) {
	tw.mu.Lock()
	changed := tw.alert != alert
	tw.alert = alert
	tw.mu.Unlock()
	if changed {
		tw.publish()
	}
}

func (tw *themeWatcher) publish() {
	tw.mu.Lock()
	state := PaletteState{Dark: tw.dark, Alert: tw.alert}
	tw.mu.Unlock()
	select {
	case tw.changeCh <- state:
	default:
	}
}

func (tw *themeWatcher) ChangeChannel() <-chan PaletteState {
	return tw.changeCh
}

func (tw *themeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
