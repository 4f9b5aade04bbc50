package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/watchloop/monitor/internal/chatnotify"
	"github.com/watchloop/monitor/internal/config"
	"github.com/watchloop/monitor/internal/dashboard"
	"github.com/watchloop/monitor/internal/engine"
	"github.com/watchloop/monitor/internal/logging"
	"github.com/watchloop/monitor/internal/notify"
	"github.com/watchloop/monitor/internal/paneio"
	"github.com/watchloop/monitor/internal/patterns"
	"github.com/watchloop/monitor/internal/ptypane"
	"github.com/watchloop/monitor/internal/registry"
	"github.com/watchloop/monitor/internal/sqliteregistry"
	"github.com/watchloop/monitor/internal/tmuxpane"
	"github.com/watchloop/monitor/internal/webpushnotify"
)

func runDaemon(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to monitor.toml")
	dbPath := fs.String("db", "", "registry database path")
	paneDriver := fs.String("pane-driver", "tmux", "pane adapter: tmux or pty")
	dashboardOn := fs.Bool("dashboard", false, "run the read-only dashboard in the foreground")
	debug := fs.Bool("debug", os.Getenv("MONITORD_DEBUG") != "", "enable debug logging")
	fs.Parse(args)

	dataDir, err := defaultDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord run: %v\n", err)
		os.Exit(1)
	}
	if *configPath == "" {
		*configPath = defaultConfigPath(dataDir)
	}
	if *dbPath == "" {
		*dbPath = defaultDBPath(dataDir)
	}

	cfgFile, err := loadOrInitConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord run: %v\n", err)
		os.Exit(1)
	}

	logDir := dataDir
	if cfgFile.Logging.LogDir != "" {
		logDir = cfgFile.Logging.LogDir
	}
	logging.Init(logging.Config{
		Debug:  *debug || cfgFile.Logging.Debug,
		LogDir: logDir,
		Level:  cfgFile.Logging.Level,
		Format: cfgFile.Logging.Format,
	})
	defer logging.Shutdown()
	runLog := logging.ForComponent("monitord")

	store, err := sqliteregistry.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord run: open registry: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	pane, err := selectPaneAdapter(*paneDriver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord run: %v\n", err)
		os.Exit(1)
	}

	notifier, closeNotifiers, commander, err := buildNotifier(cfgFile, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitord run: %v\n", err)
		os.Exit(1)
	}
	defer closeNotifiers()

	eng := engine.New(cfgFile.EngineConfig(), pane, store, notifier, nil)
	if commander != nil {
		commander.bind(eng)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startConfiguredSessions(ctx, eng, store, cfgFile, runLog)
	logging.SetActiveSessions(eng.ActiveSessions())

	watcher, err := config.NewWatcher(*configPath, func(f *config.File) {
		eng.Reconfigure(f.EngineConfig())
		runLog.Info("config_reloaded_applied")
	})
	if err != nil {
		runLog.Warn("config_watch_failed", slog.String("error", err.Error()))
	} else {
		defer watcher.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	go func() {
		for range usr1Chan {
			dumpPath := filepath.Join(dataDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				runLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				runLog.Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}()

	if *dashboardOn {
		runWithDashboard(ctx, cancel, eng, store, sigChan, runLog)
		return
	}

	runLog.Info("monitord_started")
	<-sigChan
	runLog.Info("monitord_shutting_down")
	eng.StopAll()
}

func runWithDashboard(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine, store *sqliteregistry.Store, sigChan chan os.Signal, runLog *slog.Logger) {
	go func() {
		<-sigChan
		cancel()
	}()

	model := dashboard.New(eng, store, nil)
	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		runLog.Error("dashboard_exited", slog.String("error", err.Error()))
	}
	model.Close()
	eng.StopAll()
}

func loadOrInitConfig(path string) (*config.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := config.Default()
		return f, nil
	}
	return config.Load(path)
}

func selectPaneAdapter(driver string) (paneio.Adapter, error) {
	switch driver {
	case "tmux":
		return tmuxpane.New(), nil
	case "pty":
		return ptypane.New(), nil
	default:
		return nil, fmt.Errorf("unknown pane driver %q (want tmux or pty)", driver)
	}
}

// buildNotifier wires whichever notify drivers the config enables, each
// individually rate-limited and retried by notify.Guarded, fanned out
// through notify.Multi. A deployment with neither enabled gets a Notifier
// that quietly drops everything, which keeps the engine's construction
// unconditional.
func buildNotifier(cfgFile *config.File, reg registry.Registry) (notify.Notifier, func(), *deferredCommander, error) {
	var drivers []notify.Notifier
	var closers []func()
	var commander *deferredCommander

	if cfgFile.Notify.WebPush.Enabled {
		dataDir := cfgFile.Notify.WebPush.DataDir
		if dataDir == "" {
			d, err := defaultDataDir()
			if err != nil {
				return nil, nil, nil, err
			}
			dataDir = d
		}
		wp, err := webpushnotify.NewDriver(dataDir, cfgFile.Notify.WebPush.Subject)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("webpush notifier: %w", err)
		}
		drivers = append(drivers, notify.NewGuarded(wp, 2, 5, 3, time.Second))
	}

	if cfgFile.Notify.Chat.Enabled {
		commander = &deferredCommander{}
		chat := chatnotify.NewDriver(cfgFile.Notify.Chat.URL, cfgFile.Notify.Chat.Token, reg, commander)
		ctx, cancel := context.WithCancel(context.Background())
		go chat.Run(ctx)
		closers = append(closers, cancel)
		drivers = append(drivers, notify.NewGuarded(chat, 2, 5, 3, time.Second))
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return notify.NewMulti(drivers...), closeAll, commander, nil
}

// startConfiguredSessions resumes monitoring every non-ended session
// already in the registry, and stages any quota schedules named in the
// config file by resolving their session name to an ID.
func startConfiguredSessions(ctx context.Context, eng *engine.Engine, reg registry.Registry, cfgFile *config.File, runLog *slog.Logger) {
	records, err := reg.List(ctx)
	if err != nil {
		runLog.Warn("list_sessions_failed", slog.String("error", err.Error()))
		return
	}
	for _, rec := range records {
		if rec.Status == registry.StatusEnded {
			continue
		}
		eng.StartMonitoring(ctx, rec.ID)
		runLog.Info("session_resumed", slog.String("session_id", rec.ID), slog.String("name", rec.Name))
	}

	for _, qs := range cfgFile.QuotaSchedules {
		rec, err := registry.FindByName(ctx, reg, qs.Session)
		if err != nil {
			runLog.Warn("quota_schedule_session_not_found", slog.String("session", qs.Session), slog.String("error", err.Error()))
			continue
		}
		parsed, err := patterns.ParseTimeOfDay(qs.TimeOfDay)
		if err != nil {
			runLog.Warn("quota_schedule_bad_time", slog.String("session", qs.Session), slog.String("error", err.Error()))
			continue
		}
		next := patterns.NextOccurrence(time.Now(), parsed)
		if err := eng.SetQuotaSchedule(ctx, rec.ID, registry.QuotaSchedule{
			TimeOfDay:     qs.TimeOfDay,
			Command:       qs.Command,
			NextExecution: next,
		}); err != nil {
			runLog.Warn("quota_schedule_apply_failed", slog.String("session", qs.Session), slog.String("error", err.Error()))
		}
	}
}
