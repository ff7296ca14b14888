// Package eventhub implements the process-wide broadcast channel that
// carries log lines and lifecycle transitions to subscribed clients.
package eventhub

import "time"

// EventType tags a Process StreamEvent's lifecycle transition.
type EventType string

const (
	EventStarting EventType = "Starting"
	EventStarted  EventType = "Started"
	EventStopping EventType = "Stopping"
	EventStopped  EventType = "Stopped"
	EventFailed   EventType = "Failed"
)

// LogEntry is the wire shape of one log line.
type LogEntry struct {
	LineNumber  int
	Content     string
	Timestamp   time.Time
	IsStderr    bool
	ProcessName string
}

// StreamEvent is the tagged variant carried on the hub. Exactly one
// of Log or Process is non-nil.
type StreamEvent struct {
	Project string

	Log     *LogEvent
	Process *ProcessEvent
}

// LogEvent wraps a log line with its project/process scope.
type LogEvent struct {
	ProcessName string
	Entry       LogEntry
}

// ProcessEvent is a lifecycle transition.
type ProcessEvent struct {
	EventType EventType
	ID        string
	Name      string
	PID       *int
	ExitCode  *int
	Error     string
	Timestamp time.Time
}

// Filter restricts the events delivered to one subscriber; Hub.Publish
// checks it per subscriber and skips events that don't match.
type Filter struct {
	Project       string // empty = no project restriction
	ProcessNames  []string
	IncludeEvents bool
}

// Matches reports whether evt passes f.
func (f Filter) Matches(evt StreamEvent) bool {
	if f.Project != "" && evt.Project != f.Project {
		return false
	}
	if evt.Process != nil {
		if !f.IncludeEvents {
			return false
		}
		return f.matchesName(evt.Process.Name)
	}
	if evt.Log != nil {
		return f.matchesName(evt.Log.ProcessName)
	}
	return false
}

func (f Filter) matchesName(name string) bool {
	if len(f.ProcessNames) == 0 {
		return true
	}
	for _, n := range f.ProcessNames {
		if n == name {
			return true
		}
	}
	return false
}
