// Package rpc implements the daemon's control surface: a real
// google.golang.org/grpc server running over a Unix domain socket, whose
// wire messages are plain Go structs carried by a JSON codec instead of
// protoc-generated types (see codec.go for why).
package rpc

import "time"

// StartProcessRequest is the request for start_process.
type StartProcessRequest struct {
	Name         string            `json:"name"`
	Project      string            `json:"project"`
	Cmd          string            `json:"cmd,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Cwd          string            `json:"cwd,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	WaitForLog   string            `json:"wait_for_log,omitempty"`
	WaitTimeout  int64             `json:"wait_timeout,omitempty"` // seconds
	ForceRestart bool              `json:"force_restart,omitempty"`
	Toolchain    string            `json:"toolchain,omitempty"`
}

// StartProcessResponse is one frame of the streamed start_process /
// restart_process response: oneof { LogEntry | Process }. The final
// frame of the stream always carries Process.
type StartProcessResponse struct {
	LogEntry *LogEntry    `json:"log_entry,omitempty"`
	Process  *ProcessInfo `json:"process,omitempty"`
}

// LogEntry is the wire shape of one log line.
type LogEntry struct {
	LineNumber  int       `json:"line_number"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsStderr    bool      `json:"is_stderr"`
	ProcessName string    `json:"process_name,omitempty"`
}

// ProcessInfo is the full wire description of one supervised process.
type ProcessInfo struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Project             string    `json:"project"`
	Cmd                 string    `json:"cmd"`
	Cwd                 string    `json:"cwd"`
	Status              string    `json:"status"`
	StartTime           time.Time `json:"start_time"`
	PID                 *int      `json:"pid,omitempty"`
	LogFile             string    `json:"log_file"`
	Ports               []int     `json:"ports"`
	WaitTimeoutOccurred *bool     `json:"wait_timeout_occurred,omitempty"`
	ExitCode            *int      `json:"exit_code,omitempty"`
	ExitReason          string    `json:"exit_reason,omitempty"`
	StderrTail          string    `json:"stderr_tail,omitempty"`
	LogContext          []string  `json:"log_context"`
	MatchedLine         string    `json:"matched_line,omitempty"`
}

// StopProcessRequest/Response.
type StopProcessRequest struct {
	Name    string `json:"name"`
	Project string `json:"project"`
	Force   bool   `json:"force,omitempty"`
}

type StopProcessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RestartProcessRequest; the response is the same streamed shape as
// StartProcessResponse.
type RestartProcessRequest struct {
	Name        string `json:"name"`
	Project     string `json:"project"`
	WaitForLog  string `json:"wait_for_log,omitempty"`
	WaitTimeout int64  `json:"wait_timeout,omitempty"`
}

// GetProcessRequest/Response.
type GetProcessRequest struct {
	Name    string `json:"name"`
	Project string `json:"project"`
}

type GetProcessResponse struct {
	Process ProcessInfo `json:"process"`
}

// ListProcessesRequest/Response.
type ListProcessesRequest struct {
	ProjectFilter string `json:"project_filter,omitempty"`
	StatusFilter  string `json:"status_filter,omitempty"`
}

type ListProcessesResponse struct {
	Processes []ProcessInfo `json:"processes"`
}

// GetLogsRequest; the response is a stream of oneof { LogEntry | Event }.
type GetLogsRequest struct {
	Project       string   `json:"project"`
	ProcessNames  []string `json:"process_names,omitempty"`
	Tail          int      `json:"tail,omitempty"`
	Follow        bool     `json:"follow,omitempty"`
	IncludeEvents bool     `json:"include_events,omitempty"`
}

// GetLogsResponse is one frame of the get_logs stream.
type GetLogsResponse struct {
	LogEntry *LogEntry     `json:"log_entry,omitempty"`
	Event    *ProcessEvent `json:"event,omitempty"`
}

// ProcessEvent is a lifecycle transition frame.
type ProcessEvent struct {
	EventType string    `json:"event_type"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PID       *int      `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GrepLogsRequest/Response.
type GrepLogsRequest struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Context int    `json:"context,omitempty"`
	Before  int    `json:"before,omitempty"`
	After   int    `json:"after,omitempty"`
	Since   string `json:"since,omitempty"`
	Until   string `json:"until,omitempty"`
	Last    string `json:"last,omitempty"`
}

type GrepMatch struct {
	MatchedLine   string   `json:"matched_line"`
	ContextBefore []string `json:"context_before"`
	ContextAfter  []string `json:"context_after"`
}

type GrepLogsResponse struct {
	Matches []GrepMatch `json:"matches"`
}

// CleanProjectRequest/Response.
type CleanProjectRequest struct {
	Project     string `json:"project,omitempty"`
	AllProjects bool   `json:"all_projects,omitempty"`
	Force       bool   `json:"force,omitempty"`
}

type CleanProjectResponse struct {
	StoppedCount int      `json:"stopped_count"`
	StoppedNames []string `json:"stopped_names"`
}

// GetDaemonStatusRequest/Response.
type GetDaemonStatusRequest struct{}

type GetDaemonStatusResponse struct {
	Version         string    `json:"version"`
	PID             int       `json:"pid"`
	StartTime       time.Time `json:"start_time"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	DataDir         string    `json:"data_dir"`
	ActiveProcesses int       `json:"active_processes"`
}
