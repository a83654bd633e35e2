package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/tiletree/internal/config"
	"github.com/1broseidon/tiletree/internal/daemon"
	"github.com/1broseidon/tiletree/internal/hotkeys"
	"github.com/1broseidon/tiletree/internal/ipc"
	"github.com/1broseidon/tiletree/internal/metrics"
	"github.com/1broseidon/tiletree/internal/platform"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/tiletree/config.yaml)")
	debug := fs.Bool("debug", false, "Log at debug level regardless of log_level")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tiletree daemon [--path PATH] [--debug]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	load := func() (*config.Config, error) {
		res, err := loadResult(*path)
		if err != nil {
			return nil, err
		}
		return res.Config, nil
	}

	level := new(slog.LevelVar)
	logger := InitLogger(level)

	cfg, err := load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return 1
	}
	level.Set(cfg.SlogLevel())
	if *debug {
		level.Set(slog.LevelDebug)
	}
	logger.Info("Configuration loaded", "gap", cfg.InnerGapPx, "orientation", cfg.DefaultOrientation, "workspaces", cfg.Workspaces)

	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		logger.Error("Failed to connect to display", "error", err)
		return 1
	}
	defer backend.Disconnect()

	m := metrics.New()
	d := daemon.New(daemon.Options{
		Config:     cfg,
		Backend:    backend,
		Logger:     logger,
		Level:      level,
		LoadConfig: load,
		Observers:  []daemon.Registrar{m},
	})

	// Bindings are grabbed once; reload does not rebind keys.
	if len(cfg.Keybindings) > 0 {
		keys := hotkeys.NewHandler(backend, d, logger)
		if err := keys.Bind(cfg.Keybindings); err != nil {
			logger.Warn("Some hotkeys could not be bound", "error", err)
		}
	}

	ipcServer, err := ipc.NewServer(d, logger)
	if err != nil {
		logger.Error("Failed to create IPC server", "error", err)
		return 1
	}

	super := daemon.NewSupervisor("tiletree", logger)
	daemon.Add(super, d)
	daemon.Add(super, daemon.NewEventSource(d))
	daemon.Add(super, daemon.NewReconciler(daemon.ReconcilerConfig{
		Interval: cfg.ReconcileInterval,
		Logger:   logger,
	}, d, backend.ListWindows))
	daemon.Add(super, ipcServer)
	if cfg.MetricsListen != "" {
		daemon.Add(super, metrics.NewServer(cfg.MetricsListen, m, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("tiletree daemon started", "socket", ipcServer.SocketPath())
	if err := super.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Daemon stopped", "error", err)
		return 1
	}
	logger.Info("tiletree daemon stopped")
	return 0
}
