// Command procd is the supervisor daemon: it owns every supervised
// child's lifecycle and exposes control over a Unix domain socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kdlbs/procd/internal/config"
	"github.com/kdlbs/procd/internal/daemon"
	"github.com/kdlbs/procd/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "procd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths, err := daemon.ResolvePaths(cfg.Daemon.DataDir, cfg.Daemon.RuntimeDir, cfg.Daemon.LogDir)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure dirs: %w", err)
	}

	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = paths.DaemonLog
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting procd",
		zap.String("version", daemon.Version),
		zap.String("data_dir", paths.DataDir),
		zap.String("socket", paths.SocketPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(paths, cfg, log)
	return d.Run(ctx)
}
