// Package daemon implements the daemon's startup/shutdown lifecycle:
// path resolution, PID file and stale-lock handling, the control socket,
// and graceful shutdown of every supervised child.
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kdlbs/procd/internal/config"
	"github.com/kdlbs/procd/internal/eventhub"
	"github.com/kdlbs/procd/internal/logger"
	"github.com/kdlbs/procd/internal/process"
	"github.com/kdlbs/procd/internal/rpc"
)

// Version is overridden at build time (ldflags) in a real release; it is
// a plain var here since this module has no build pipeline of its own.
var Version = "dev"

// Daemon wires together the registry, hub, supervisor, and RPC server,
// and owns the startup/shutdown sequence.
type Daemon struct {
	Paths Paths
	cfg   config.Config
	log   *logger.Logger

	registry   *process.Registry
	hub        *eventhub.Hub
	supervisor *process.Supervisor

	grpcServer *grpc.Server
	listener   net.Listener
}

// New constructs a Daemon from resolved paths and configuration. It does
// not touch the filesystem or network; call Run to do that.
func New(paths Paths, cfg config.Config, log *logger.Logger) *Daemon {
	registry := process.NewRegistry()
	hub := eventhub.New(cfg.Process.HubBufferSize)
	supervisor := process.NewSupervisor(registry, hub, paths, process.SupervisorConfig{
		RingCapacity:        cfg.Process.RingCapacity,
		WriterQueueCapacity: cfg.Process.WriterQueueCapacity,
		WriterBatchSize:     cfg.Process.WriterBatchSize,
		WriterBatchInterval: cfg.Process.WriterBatchInterval,
		HubBufferSize:       cfg.Process.HubBufferSize,
		PortPollInterval:    cfg.Process.PortPollInterval,
		PortMaxPolls:        cfg.Process.PortMaxPolls,
		PortStablePolls:     cfg.Process.PortStablePolls,
		DefaultWaitTimeout:  cfg.Process.DefaultWaitTimeout,
		HealthCheckDelay:    cfg.Process.HealthCheckDelay,
	}, log)

	return &Daemon{
		Paths:      paths,
		cfg:        cfg,
		log:        log,
		registry:   registry,
		hub:        hub,
		supervisor: supervisor,
	}
}

// acquirePID refuses to start when a live, non-zombie daemon already
// holds the PID file; otherwise it clears the stale file and claims it
// for this process.
func (d *Daemon) acquirePID() error {
	existing, err := ReadPIDFile(d.Paths.PIDPath)
	if err != nil {
		return err
	}
	if existing != 0 && IsProcessAlive(existing) && !IsZombie(existing) {
		return fmt.Errorf("daemon already running with pid %d", existing)
	}
	if existing != 0 {
		d.log.Warn("removing stale pid file", zap.Int("pid", existing))
	}
	return WritePIDFile(d.Paths.PIDPath, os.Getpid())
}

// bindSocket removes any stale socket and listens on a fresh one at
// 0600.
func (d *Daemon) bindSocket() error {
	if err := os.Remove(d.Paths.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", d.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("bind control socket: %w", err)
	}
	if err := os.Chmod(d.Paths.SocketPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	d.listener = l
	return nil
}

// Run performs the full startup sequence, serves RPCs until ctx is
// canceled (typically by a signal handler in main), then performs
// graceful shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Paths.EnsureDirs(); err != nil {
		return err
	}
	if err := d.acquirePID(); err != nil {
		return err
	}
	defer RemovePIDFile(d.Paths.PIDPath)

	if err := d.bindSocket(); err != nil {
		return err
	}
	defer os.Remove(d.Paths.SocketPath)

	rpcServer := rpc.NewServer(d.registry, d.supervisor, d.hub, d.Paths, d.log, Version, d.Paths.DataDir)
	d.grpcServer = grpc.NewServer()
	d.grpcServer.RegisterService(&rpc.ServiceDesc, rpcServer)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.grpcServer.Serve(d.listener)
	}()

	d.log.Info("daemon started", zap.String("socket", d.Paths.SocketPath))

	select {
	case <-ctx.Done():
		d.shutdown()
		return nil
	case err := <-serveErr:
		return err
	}
}

// shutdown signals every non-terminal child to stop, waits the
// configured grace period with a SIGKILL fallback,
// then let RPCs still in flight (e.g. a get_logs(follow=true) or a
// start_process stream waiting on a readiness latch) drain on their own.
// GracefulStop must run after the children are signaled: a streaming RPC
// only returns once its target process stops or exits, so calling
// GracefulStop first would block forever waiting on exactly the streams
// that are waiting on the stop this function is about to issue.
func (d *Daemon) shutdown() {
	d.log.Info("daemon shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, rec := range d.registry.List("") {
		d.supervisor.Stop(rec.Key, false)
	}

	grace := time.Duration(d.cfg.Daemon.ShutdownGraceMillis) * time.Millisecond
	if grace <= 0 {
		grace = 500 * time.Millisecond
	}
	select {
	case <-time.After(grace):
	case <-shutdownCtx.Done():
	}

	for _, rec := range d.registry.List("") {
		d.supervisor.Stop(rec.Key, true) // SIGKILL fallback
	}

	d.grpcServer.GracefulStop()
}
