package rpc

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kdlbs/procd/internal/eventhub"
	"github.com/kdlbs/procd/internal/logger"
	"github.com/kdlbs/procd/internal/process"
)

// Server implements ProcdServer, translating requests into calls on the
// registry, supervisor, and hub, and mapping their errors onto the RPC
// error taxonomy (errors.go).
type Server struct {
	registry   *process.Registry
	supervisor *process.Supervisor
	hub        *eventhub.Hub
	paths      process.LogPaths
	log        *logger.Logger

	version   string
	startTime time.Time
	dataDir   string
}

// NewServer constructs the RPC service.
func NewServer(registry *process.Registry, supervisor *process.Supervisor, hub *eventhub.Hub, paths process.LogPaths, log *logger.Logger, version, dataDir string) *Server {
	return &Server{
		registry:   registry,
		supervisor: supervisor,
		hub:        hub,
		paths:      paths,
		log:        log,
		version:    version,
		startTime:  time.Now().UTC(),
		dataDir:    dataDir,
	}
}

func recordToProcessInfo(rec *process.Record) ProcessInfo {
	var pidPtr *int
	if pid := rec.PID(); pid != 0 {
		pidPtr = &pid
	}

	info := ProcessInfo{
		ID:         rec.ID,
		Name:       rec.Key.Name,
		Project:    rec.Key.Project,
		Cmd:        rec.Spec.Cmd,
		Cwd:        rec.Spec.Cwd,
		Status:     rec.Status().String(),
		StartTime:  rec.StartTime,
		PID:        pidPtr,
		LogFile:    rec.LogFile,
		Ports:      rec.Ports(),
		LogContext: []string{},
	}

	matched, matchedLine, timedOut, logContext := rec.Readiness()
	if matched {
		info.MatchedLine = matchedLine
	}
	to := timedOut
	info.WaitTimeoutOccurred = &to
	if logContext != nil {
		info.LogContext = logContext
	}

	if code, reason, stderrTail, ok := rec.ExitInfo(); ok {
		info.ExitCode = &code
		info.ExitReason = reason
		info.StderrTail = stderrTail
	}

	return info
}

func (s *Server) buildSpec(req *StartProcessRequest) process.Spec {
	return process.Spec{
		Cmd:       req.Cmd,
		Args:      req.Args,
		Cwd:       req.Cwd,
		Env:       req.Env,
		Toolchain: req.Toolchain,
	}
}

// streamStart runs a start/restart call, streaming live log lines as
// they're observed on the hub and a final ProcessInfo frame once the
// supervisor's blocking call resolves. waitTimeout bounds the call with
// waitTimeout+5s: past that deadline the RPC fails even
// though the supervisor keeps supervising the child.
func (s *Server) streamStart(key process.Key, waitTimeout time.Duration, launch func(ctx context.Context) (*process.Record, error), stream StartProcess_Server) error {
	ctx, cancel := context.WithTimeout(stream.Context(), waitTimeout+5*time.Second)
	defer cancel()

	sub := s.hub.Subscribe(eventhub.Filter{Project: key.Project, ProcessNames: []string{key.Name}})
	defer sub.Unsubscribe()

	done := make(chan struct{})
	streamErr := make(chan error, 1)
	go func() {
		defer close(done)
		for {
			select {
			case env, ok := <-sub.Events():
				if !ok {
					return
				}
				if env.LaggedBy > 0 {
					s.log.Warn("start stream lagged, events skipped", zap.Int("skipped", env.LaggedBy))
				}
				if env.Event.Log == nil {
					continue
				}
				if err := stream.Send(&StartProcessResponse{LogEntry: &LogEntry{
					LineNumber:  env.Event.Log.Entry.LineNumber,
					Content:     env.Event.Log.Entry.Content,
					Timestamp:   env.Event.Log.Entry.Timestamp,
					IsStderr:    env.Event.Log.Entry.IsStderr,
					ProcessName: env.Event.Log.ProcessName,
				}}); err != nil {
					select {
					case streamErr <- err:
					default:
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	rec, launchErr := launch(ctx)

	// Stop the forwarder before emitting the final frame: Unsubscribe
	// closes the subscription channel, the goroutine drains whatever is
	// still buffered, and only then may the Process frame go out: the
	// final message of the stream is always `process`.
	sub.Unsubscribe()
	<-done

	var info ProcessInfo
	switch {
	case rec != nil:
		info = recordToProcessInfo(rec)
	case launchErr != nil:
		var spawnFailed *process.SpawnFailedError
		var failedToStart *process.FailedToStartError
		if errors.As(launchErr, &spawnFailed) {
			info = recordToProcessInfo(spawnFailed.Record)
		} else if errors.As(launchErr, &failedToStart) {
			info = recordToProcessInfo(failedToStart.Record)
		} else {
			return toStatus(launchErr)
		}
	}

	if err := stream.Send(&StartProcessResponse{Process: &info}); err != nil {
		return err
	}
	select {
	case err := <-streamErr:
		return err
	default:
		return nil
	}
}

// effectiveWaitTimeout resolves the readiness timeout a request will
// actually run with, falling back to the supervisor's configured default
// the same way Start does, so the RPC-level deadline matches it.
func (s *Server) effectiveWaitTimeout(seconds int64) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return s.supervisor.DefaultWaitTimeout()
}

// StartProcess implements the start_process RPC.
func (s *Server) StartProcess(req *StartProcessRequest, stream StartProcess_Server) error {
	key := process.Key{Project: req.Project, Name: req.Name}
	spec := s.buildSpec(req)
	waitTimeout := s.effectiveWaitTimeout(req.WaitTimeout)

	return s.streamStart(key, waitTimeout, func(ctx context.Context) (*process.Record, error) {
		return s.supervisor.Start(ctx, process.StartRequest{
			Key:          key,
			Spec:         spec,
			WaitForLog:   req.WaitForLog,
			WaitTimeout:  waitTimeout,
			ForceRestart: req.ForceRestart,
		})
	}, stream)
}

// RestartProcess implements the restart_process RPC, symmetric to
// StartProcess.
func (s *Server) RestartProcess(req *RestartProcessRequest, stream RestartProcess_Server) error {
	key := process.Key{Project: req.Project, Name: req.Name}
	waitTimeout := s.effectiveWaitTimeout(req.WaitTimeout)

	return s.streamStart(key, waitTimeout, func(ctx context.Context) (*process.Record, error) {
		return s.supervisor.Restart(ctx, key, req.WaitForLog, waitTimeout)
	}, stream)
}

// followLinger is how long a follow stream stays open after the last
// matched process terminates, so a restart's Starting lands on the same
// stream instead of racing the stream teardown.
const followLinger = time.Second

// GetLogs implements the get_logs RPC: tail lines per matched
// process, then optionally follow live entries (and events) on the hub.
func (s *Server) GetLogs(req *GetLogsRequest, stream GetLogs_Server) error {
	names := req.ProcessNames
	if len(names) == 0 {
		for _, rec := range s.registry.List(req.Project) {
			names = append(names, rec.Key.Name)
		}
	}

	tail := req.Tail
	if tail == 0 {
		tail = 100
	}
	if tail > 0 {
		for _, name := range names {
			key := process.Key{Project: req.Project, Name: name}
			lines, err := s.historyFor(key)
			if err != nil {
				continue // a never-started process simply contributes no tail
			}
			if len(lines) > tail {
				lines = lines[len(lines)-tail:]
			}
			for _, l := range lines {
				if err := stream.Send(&GetLogsResponse{LogEntry: &LogEntry{
					LineNumber:  l.LineNumber,
					Content:     l.Content,
					Timestamp:   l.Timestamp,
					IsStderr:    l.IsStderr,
					ProcessName: name,
				}}); err != nil {
					return err
				}
			}
		}
	}

	if !req.Follow {
		return nil
	}

	ctx := stream.Context()
	// Always subscribe with events on: even when the client doesn't want
	// event frames, the follow loop needs the terminal transitions to know
	// when every matched process is gone. req.IncludeEvents only gates
	// whether the frames are forwarded.
	sub := s.hub.Subscribe(eventhub.Filter{Project: req.Project, ProcessNames: names, IncludeEvents: true})
	defer sub.Unsubscribe()

	remaining := make(map[string]bool, len(names))
	for _, n := range names {
		remaining[n] = true
	}

	// When every matched process has reached a terminal state the stream
	// ends, but not instantly: a restart publishes Stopped and then
	// Starting for the same name moments apart, and a client following
	// across the restart must see the new child's events and log lines.
	var lingerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lingerC:
			return nil
		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if env.LaggedBy > 0 {
				s.log.Warn("log follow lagged, events skipped", zap.Int("skipped", env.LaggedBy))
			}
			switch {
			case env.Event.Log != nil:
				if err := stream.Send(&GetLogsResponse{LogEntry: &LogEntry{
					LineNumber:  env.Event.Log.Entry.LineNumber,
					Content:     env.Event.Log.Entry.Content,
					Timestamp:   env.Event.Log.Entry.Timestamp,
					IsStderr:    env.Event.Log.Entry.IsStderr,
					ProcessName: env.Event.Log.ProcessName,
				}}); err != nil {
					return err
				}
			case env.Event.Process != nil:
				p := env.Event.Process
				if req.IncludeEvents {
					if err := stream.Send(&GetLogsResponse{Event: &ProcessEvent{
						EventType: string(p.EventType),
						ID:        p.ID,
						Name:      p.Name,
						PID:       p.PID,
						ExitCode:  p.ExitCode,
						Error:     p.Error,
						Timestamp: p.Timestamp,
					}}); err != nil {
						return err
					}
				}
				switch p.EventType {
				case eventhub.EventStarting:
					remaining[p.Name] = true
					lingerC = nil
				case eventhub.EventStopped, eventhub.EventFailed:
					delete(remaining, p.Name)
					if len(remaining) == 0 && len(names) > 0 {
						lingerC = time.After(followLinger)
					}
				}
			}
		}
	}
}

// StopProcess implements the unary stop_process RPC.
func (s *Server) StopProcess(ctx context.Context, req *StopProcessRequest) (*StopProcessResponse, error) {
	found := s.supervisor.Stop(process.Key{Project: req.Project, Name: req.Name}, req.Force)
	if !found {
		return &StopProcessResponse{Success: false, Message: "no such process"}, nil
	}
	return &StopProcessResponse{Success: true}, nil
}

// GetProcess implements the unary get_process RPC.
func (s *Server) GetProcess(ctx context.Context, req *GetProcessRequest) (*GetProcessResponse, error) {
	rec, ok := s.registry.Find(req.Name, req.Project)
	if !ok {
		return nil, toStatus(&process.NotFoundError{Key: process.Key{Project: req.Project, Name: req.Name}})
	}
	info := recordToProcessInfo(rec)
	return &GetProcessResponse{Process: info}, nil
}

// ListProcesses implements the unary list_processes RPC.
func (s *Server) ListProcesses(ctx context.Context, req *ListProcessesRequest) (*ListProcessesResponse, error) {
	recs := s.registry.List(req.ProjectFilter)
	resp := &ListProcessesResponse{Processes: make([]ProcessInfo, 0, len(recs))}
	for _, rec := range recs {
		info := recordToProcessInfo(rec)
		if req.StatusFilter != "" && info.Status != req.StatusFilter {
			continue
		}
		resp.Processes = append(resp.Processes, info)
	}
	return resp, nil
}

// CleanProject implements clean_project / clean_all.
func (s *Server) CleanProject(ctx context.Context, req *CleanProjectRequest) (*CleanProjectResponse, error) {
	var names []string
	if req.AllProjects {
		names = s.supervisor.CleanAll(ctx, req.Force)
	} else {
		names = s.supervisor.CleanProject(ctx, req.Project, req.Force)
	}
	return &CleanProjectResponse{StoppedCount: len(names), StoppedNames: names}, nil
}

// GetDaemonStatus implements get_daemon_status.
func (s *Server) GetDaemonStatus(ctx context.Context, req *GetDaemonStatusRequest) (*GetDaemonStatusResponse, error) {
	return &GetDaemonStatusResponse{
		Version:         s.version,
		PID:             os.Getpid(),
		StartTime:       s.startTime,
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		DataDir:         s.dataDir,
		ActiveProcesses: len(s.registry.List("")),
	}, nil
}

// GrepLogs implements grep_logs.
func (s *Server) GrepLogs(ctx context.Context, req *GrepLogsRequest) (*GrepLogsResponse, error) {
	key := process.Key{Project: req.Project, Name: req.Name}

	from, to, err := timeWindow(req.Since, req.Until, req.Last, time.Now().UTC())
	if err != nil {
		return nil, toStatus(err)
	}

	before, after := req.Before, req.After
	if req.Context > 0 {
		before, after = req.Context, req.Context
	}

	lines, err := s.historyFor(key)
	if err != nil {
		return nil, toStatus(err)
	}

	filtered := make([]process.ParsedLine, 0, len(lines))
	for _, l := range lines {
		if inWindow(l.Timestamp, from, to) {
			filtered = append(filtered, l)
		}
	}

	matches, err := grepLines(filtered, req.Pattern, before, after)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GrepLogsResponse{Matches: matches}, nil
}

// historyFor picks the grep source: the on-disk
// log file if it exists, else the live process's ring, else NotFound.
func (s *Server) historyFor(key process.Key) ([]process.ParsedLine, error) {
	logFile := s.paths.ProcessLogFile(key.Project, process.SanitizeName(key.Name))
	if _, err := os.Stat(logFile); err == nil {
		return process.ReadLogFile(logFile)
	}
	if rec, ok := s.registry.Lookup(key); ok {
		return ringToLines(rec.Ring.Snapshot()), nil
	}
	return nil, errLogsNotFound
}
