package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kdlbs/procd/internal/eventhub"
	"github.com/kdlbs/procd/internal/logger"
)

// LogPaths is the subset of daemon.Paths the supervisor needs to place a
// process's on-disk log file. Kept as an interface here (rather than
// importing the daemon package directly) so internal/process stays a
// leaf package with no dependency back on internal/daemon.
type LogPaths interface {
	ProcessLogFile(project, sanitizedName string) string
}

// SupervisorConfig tunes the buffers and timing the supervisor hands down
// to the ring, writer, and port detector, plus the readiness protocol.
type SupervisorConfig struct {
	RingCapacity        int
	WriterQueueCapacity int
	WriterBatchSize     int
	WriterBatchInterval time.Duration
	HubBufferSize       int
	PortWarmUp          time.Duration
	PortPollInterval    time.Duration
	PortMaxPolls        int
	PortStablePolls     int
	DefaultWaitTimeout  time.Duration
	HealthCheckDelay    time.Duration
}

// StartRequest is everything start_process needs.
type StartRequest struct {
	Key          Key
	Spec         Spec
	WaitForLog   string
	WaitTimeout  time.Duration
	ForceRestart bool
}

// ValidationError reports a malformed request; the RPC layer maps it to
// InvalidArgument.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// SpawnFailedError wraps a record synthesized because the OS refused to
// spawn the child at all. The record is never
// left in the registry.
type SpawnFailedError struct{ Record *Record }

func (e *SpawnFailedError) Error() string { return "process failed to spawn" }

// FailedToStartError wraps a record synthesized because the child exited
// before the readiness latch fired.
type FailedToStartError struct{ Record *Record }

func (e *FailedToStartError) Error() string { return "process failed to start" }

// NotFoundError reports a lookup miss.
type NotFoundError struct{ Key Key }

func (e *NotFoundError) Error() string { return fmt.Sprintf("process %s not found", e.Key) }

// Supervisor owns the full lifecycle of every spawned child, from spawn
// through readiness through reaping.
type Supervisor struct {
	registry *Registry
	hub      *eventhub.Hub
	paths    LogPaths
	cfg      SupervisorConfig
	log      *logger.Logger
}

// NewSupervisor constructs a Supervisor. Zero ring, writer, and port
// detector fields fall back to built-in defaults via the leaf packages'
// own withDefaults; DefaultWaitTimeout and HealthCheckDelay are used as
// given, with no fallback.
func NewSupervisor(registry *Registry, hub *eventhub.Hub, paths LogPaths, cfg SupervisorConfig, log *logger.Logger) *Supervisor {
	return &Supervisor{registry: registry, hub: hub, paths: paths, cfg: cfg, log: log}
}

// DefaultWaitTimeout reports the readiness timeout Start falls back to
// when a caller doesn't supply one, so RPC callers can derive the same
// effective deadline Start will actually use.
func (s *Supervisor) DefaultWaitTimeout() time.Duration {
	return s.cfg.DefaultWaitTimeout
}

// Start implements start_process: validate, spawn, wire up the log
// pipelines and detectors, then run the readiness protocol.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*Record, error) {
	if err := ValidateProjectName(req.Key.Project); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := ValidateProcessName(req.Key.Name); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	hasCmd := req.Spec.Cmd != ""
	hasArgs := len(req.Spec.Args) > 0
	if hasCmd == hasArgs {
		return nil, &ValidationError{Msg: "exactly one of cmd or args must be provided"}
	}
	if err := ValidateToolchain(req.Spec.Toolchain); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	if req.ForceRestart {
		if existing, ok := s.registry.Lookup(req.Key); ok && !existing.Status().Terminal() {
			removed := s.registry.WaitForRemoval(req.Key)
			s.Stop(req.Key, true)
			select {
			case <-removed:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	var waitRegex *regexp.Regexp
	if req.WaitForLog != "" {
		re, err := regexp.Compile(req.WaitForLog)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("invalid wait_for_log pattern: %v", err)}
		}
		waitRegex = re
	}
	waitTimeout := req.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = s.cfg.DefaultWaitTimeout
	}

	id := uuid.New().String()
	rec := NewRecord(id, req.Key, req.Spec, req.WaitForLog, waitRegex, waitTimeout)
	rec.Ring = NewRing(s.cfg.RingCapacity)
	rec.LogFile = s.paths.ProcessLogFile(req.Key.Project, req.Key.SanitizedName())

	writer, err := NewBatchWriter(rec.LogFile, WriterConfig{
		QueueCapacity: s.cfg.WriterQueueCapacity,
		BatchSize:     s.cfg.WriterBatchSize,
		BatchInterval: s.cfg.WriterBatchInterval,
	}, s.log)
	if err != nil {
		return nil, fmt.Errorf("open process log: %w", err)
	}
	rec.Writer = writer

	if err := s.registry.Insert(rec); err != nil {
		writer.Close()
		return nil, err
	}

	s.publish(req.Key.Project, rec, eventhub.EventStarting, nil)

	cmd, err := buildCommand(req.Spec)
	if err != nil {
		return s.failSpawn(req.Key, rec, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.failSpawn(req.Key, rec, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.failSpawn(req.Key, rec, err)
	}

	if err := cmd.Start(); err != nil {
		return s.failSpawn(req.Key, rec, err)
	}

	rec.SetPID(cmd.Process.Pid)
	rec.SetStatus(StatusRunning)
	s.publish(req.Key.Project, rec, eventhub.EventStarted, nil)

	procCtx, cancel := context.WithCancel(context.Background())

	ready := NewReadiness()
	var lineSeq int64
	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		NewLinePipeline(rec, false, s.hub, req.Key.Project, ready, &lineSeq).Run(procCtx, stdout)
	}()
	go func() {
		defer pipes.Done()
		NewLinePipeline(rec, true, s.hub, req.Key.Project, ready, &lineSeq).Run(procCtx, stderr)
	}()
	pipesDone := make(chan struct{})
	go func() {
		pipes.Wait()
		close(pipesDone)
	}()
	go RunPortDetector(procCtx, rec, PortDetectorConfig{
		WarmUp:       s.cfg.PortWarmUp,
		PollInterval: s.cfg.PortPollInterval,
		MaxPolls:     s.cfg.PortMaxPolls,
		StablePolls:  s.cfg.PortStablePolls,
	}, s.log)

	go s.reap(req.Key, rec, cmd, ready, cancel, pipesDone, []io.Closer{stdout, stderr})

	if waitRegex != nil {
		timer := time.AfterFunc(waitTimeout, ready.FireTimeout)
		select {
		case <-ready.Done():
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		timer.Stop()
	} else {
		select {
		case <-time.After(s.cfg.HealthCheckDelay):
		case <-ready.Done():
		}
	}

	if rec.Status().Terminal() {
		s.registry.Remove(req.Key, rec)
		return nil, &FailedToStartError{Record: rec}
	}

	matchedLine, timedOut := ready.Result()
	tail := rec.Ring.Snapshot()
	logContext := make([]string, 0, 20)
	start := 0
	if len(tail) > 20 {
		start = len(tail) - 20
	}
	for _, c := range tail[start:] {
		logContext = append(logContext, string(c.Bytes))
	}
	rec.SetReadiness(matchedLine != "", matchedLine, timedOut, logContext)

	return rec, nil
}

func (s *Supervisor) failSpawn(key Key, rec *Record, spawnErr error) (*Record, error) {
	rec.SetStatus(StatusFailed)
	rec.MarkExited(-1, spawnErr.Error())
	s.publish(key.Project, rec, eventhub.EventFailed, &spawnErr)
	rec.Writer.Close()
	s.registry.Remove(key, rec)
	return nil, &SpawnFailedError{Record: rec}
}

// exitCodeFromState derives the wire exit-code encoding (0-255 for a
// normal exit, 128+N for death by signal N) from a reaped child's
// process state. exec.ExitError.ExitCode() collapses every
// signal-terminated child to -1, which loses the signal number the
// exit-reason table needs. SIGTERM/SIGKILL are exactly how
// stop_process, force_restart, and daemon shutdown end a child, so this
// path is the common case, not an edge case.
func exitCodeFromState(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return exitSignalBase + int(ws.Signal())
	}
	return state.ExitCode()
}

// pipeDrainTimeout bounds how long the reaper waits for the stdio
// pipelines to hit EOF after the child exits. The child's exit closes its
// pipe ends, so EOF is normally immediate; the bound covers a grandchild
// that inherited the pipe and kept it open.
const pipeDrainTimeout = 5 * time.Second

// reap awaits the child's exit, finalizes the record, publishes the
// terminal event, and removes it from the registry; only this goroutine
// may move a record into a terminal state. It waits via cmd.Process
// rather than cmd.Wait, since Wait closes the parent's pipe ends as it
// returns and would race the pipelines out of the child's final output
// (the stderr tail, the last log lines) before they could drain it.
func (s *Supervisor) reap(key Key, rec *Record, cmd *exec.Cmd, ready *Readiness, cancel context.CancelFunc, pipesDone <-chan struct{}, pipeEnds []io.Closer) {
	state, werr := cmd.Process.Wait()

	select {
	case <-pipesDone:
	case <-time.After(pipeDrainTimeout):
	}
	// Closing the parent ends unblocks a reader still stuck on a pipe a
	// grandchild kept open; after a clean EOF it is a no-op cleanup.
	for _, c := range pipeEnds {
		c.Close()
	}
	cancel()

	stopRequested := rec.Status() == StatusStopping

	code := 0
	if werr != nil {
		code = -1
	} else {
		code = exitCodeFromState(state)
	}

	stderrTail := string(rec.Ring.TailBytes(200))
	rec.MarkExited(code, stderrTail)

	// A child that dies because stop_process/restart/shutdown signaled it
	// exited on request: that is a clean Stopped, not a Failed, even
	// though the wait status encodes death-by-signal.
	clean := code == 0 || stopRequested

	if clean {
		rec.SetStatus(StatusStopped)
	} else {
		rec.SetStatus(StatusFailed)
	}

	ready.FireChildExited()

	evtType := eventhub.EventStopped
	if !clean {
		evtType = eventhub.EventFailed
	}
	s.publish(key.Project, rec, evtType, nil)

	rec.Writer.Close()
	s.registry.Remove(key, rec)
}

// Stop implements stop_process: it signals the child and returns
// immediately; the reaper goroutine completes the transition.
func (s *Supervisor) Stop(key Key, force bool) bool {
	rec, ok := s.registry.Lookup(key)
	if !ok {
		return false
	}

	rec.SetStatus(StatusStopping)
	s.publish(key.Project, rec, eventhub.EventStopping, nil)

	pid := rec.PID()
	if pid == 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if runtime.GOOS == "windows" {
		proc.Kill()
		return true
	}
	proc.Signal(sig)
	return true
}

// Restart implements restart_process: snapshot the spawn recipe,
// stop, wait for removal, start again with the captured recipe and the
// new readiness parameters.
func (s *Supervisor) Restart(ctx context.Context, key Key, waitForLog string, waitTimeout time.Duration) (*Record, error) {
	rec, ok := s.registry.Lookup(key)
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	spec := rec.Spec

	removed := s.registry.WaitForRemoval(key)
	s.Stop(key, false)
	select {
	case <-removed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.Start(ctx, StartRequest{Key: key, Spec: spec, WaitForLog: waitForLog, WaitTimeout: waitTimeout})
}

// CleanProject implements clean_project: stop every record in
// project, wait for each removal, and return the stopped names. It never
// deletes log files.
func (s *Supervisor) CleanProject(ctx context.Context, project string, force bool) []string {
	return s.clean(ctx, s.registry.List(project), force)
}

// CleanAll implements clean_all.
func (s *Supervisor) CleanAll(ctx context.Context, force bool) []string {
	return s.clean(ctx, s.registry.List(""), force)
}

// clean stops every given record concurrently and waits for each to be
// reaped, one goroutine per record.
func (s *Supervisor) clean(ctx context.Context, recs []*Record, force bool) []string {
	names := make([]string, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			key := rec.Key
			removed := s.registry.WaitForRemoval(key)
			s.Stop(key, force)
			select {
			case <-removed:
				names[i] = key.Name
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	g.Wait()

	out := names[:0]
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *Supervisor) publish(project string, rec *Record, evtType eventhub.EventType, spawnErr *error) {
	if s.hub == nil {
		return
	}
	pid := rec.PID()
	var pidPtr *int
	if pid != 0 {
		pidPtr = &pid
	}
	var exitCode *int
	var errMsg string
	if code, reason, _, ok := rec.ExitInfo(); ok {
		exitCode = &code
		errMsg = reason
	}
	if spawnErr != nil {
		errMsg = (*spawnErr).Error()
	}
	s.hub.Publish(eventhub.StreamEvent{
		Project: project,
		Process: &eventhub.ProcessEvent{
			EventType: evtType,
			ID:        rec.ID,
			Name:      rec.Key.Name,
			PID:       pidPtr,
			ExitCode:  exitCode,
			Error:     errMsg,
			Timestamp: time.Now().UTC(),
		},
	})
}

// buildCommand wraps Spec into an *exec.Cmd: cmd strings
// run under a shell, args run directly; toolchain wrapping (a
// SUPPLEMENT feature, see toolchain.go) applies only to cmd-mode spawns.
func buildCommand(spec Spec) (*exec.Cmd, error) {
	var cmd *exec.Cmd

	switch {
	case spec.Cmd != "":
		shellCmd := spec.Cmd
		if spec.Toolchain != "" {
			tc, ok := LookupToolchain(spec.Toolchain)
			if !ok {
				return nil, fmt.Errorf("unknown toolchain %q", spec.Toolchain)
			}
			shellCmd = tc.WrapCommand(shellCmd)
		}
		if runtime.GOOS == "windows" {
			cmd = exec.Command("cmd.exe", "/C", shellCmd)
		} else {
			cmd = exec.Command("sh", "-c", shellCmd)
		}
	case len(spec.Args) > 0:
		cmd = exec.Command(spec.Args[0], spec.Args[1:]...)
	default:
		return nil, fmt.Errorf("neither cmd nor args provided")
	}

	if spec.Cwd != "" {
		cmd.Dir = spec.Cwd
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.Stdin = nil

	return cmd, nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := append([]string(nil), base...)
	for k, v := range overrides {
		merged = append(merged, k+"="+v)
	}
	return merged
}
