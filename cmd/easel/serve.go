package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/panel"
	"github.com/easelkit/easel/internal/scheduler"
	"github.com/easelkit/easel/internal/store"
	"github.com/easelkit/easel/internal/validation"
	"github.com/easelkit/easel/pkg/mcp"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenAddr := fs.String("listen-addr", "", "TCP listen address (overrides config)")
	dbPath := fs.String("db-path", "", "database path (overrides config)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	mcpFlag := fs.Bool("mcp", false, "also serve MCP tools over stdin/stdout")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *mcpFlag {
		cfg.MCP = true
	}

	if err := serve(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serve wires the store, editor manager, autosave scheduler, HTTP panel,
// and optional MCP stdio transport, then blocks until SIGINT or SIGTERM.
func serve(cfg Config) error {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	logger := newLogger(level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := writePidFile(); err != nil {
		logger.Warn("cannot write pidfile", "error", err)
	} else {
		defer os.Remove(pidPath())
	}

	sched, err := scheduler.NewScheduler(rt.store, rt.manager, scheduler.Config{
		Schedule: cfg.AutosaveSchedule,
		Retain:   cfg.AutosaveRetain,
	}, logger)
	if err != nil {
		return fmt.Errorf("autosave scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	swapper := newHandlerSwapper(rt.handler(cfg))
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: swapper}

	// SIGHUP re-reads settings.json: panel toggle and log level apply
	// without a restart, anything else is reported as restart-needed.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			next := loadConfig()
			d := diffConfigs(cfg, next)
			if len(d.RestartNeeded) > 0 {
				logger.Warn("config change requires restart", "fields", d.RestartNeeded)
			}
			if d.LogLevelChanged {
				level.Set(parseLevel(next.LogLevel))
				cfg.LogLevel = next.LogLevel
			}
			if d.PanelChanged {
				cfg.Panel = next.Panel
				swapper.Swap(rt.handler(cfg))
			}
			if d.PanelChanged || d.LogLevelChanged {
				logger.Info("configuration reloaded", "panel", cfg.Panel, "log_level", cfg.LogLevel)
			}
		}
	}()

	if cfg.MCP {
		go func() {
			if err := rt.mcp.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio transport stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("easel listening", "addr", cfg.ListenAddr, "panel", cfg.Panel, "mcp", cfg.MCP, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runtime bundles the wired subsystems behind one lifecycle.
type runtime struct {
	store   *store.LibSQLStore
	editLog *store.EditLog
	manager *editor.Manager
	panel   *panel.Server
	mcp     *mcp.EaselServer
}

func buildRuntime(cfg Config, logger *slog.Logger) (*runtime, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewCanvasValidator()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("canvas validator: %w", err)
	}

	editLog := store.NewEditLog(st)
	manager := editor.NewManager(editor.ManagerConfig{
		Store:     st,
		EditLog:   editLog,
		Validator: validator,
		Clipboard: newClipboard(cfg),
		Logger:    logger,
	})

	rt := &runtime{
		store:   st,
		editLog: editLog,
		manager: manager,
		panel: panel.NewServer(panel.Deps{
			Manager: manager,
			Store:   st,
			EditLog: editLog,
			Logger:  logger,
		}),
		mcp: mcp.NewEaselServer(mcp.EaselServerDeps{
			Manager: manager,
			Store:   st,
			EditLog: editLog,
			Logger:  logger,
		}),
	}
	return rt, nil
}

func (rt *runtime) Close() {
	_ = rt.store.Close()
}

// handler builds the HTTP surface for the current config. The health probe
// is always served; the panel API only when enabled.
func (rt *runtime) handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	if cfg.Panel {
		mux.Handle("/", rt.panel.Handler())
	}
	return mux
}

func openStore(cfg Config) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

func newClipboard(cfg Config) editor.ClipboardPort {
	if cfg.ClipboardBackend == "file" {
		return editor.NewFileClipboard(cfg.ClipboardPath)
	}
	return editor.NewMemoryClipboard()
}

func newLogger(level slog.Leveler) *slog.Logger {
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writePidFile() error {
	if err := os.MkdirAll(easelDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
