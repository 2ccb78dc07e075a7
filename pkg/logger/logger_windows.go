//go:build windows

package logger

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// Event IDs for Windows Event Log entries.
const (
	EventIDInfo    uint32 = 1
	EventIDWarning uint32 = 2
	EventIDError   uint32 = 3
)

// EventLogWriter is the subset of *eventlog.Log used by EventLogger.
type EventLogWriter interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
	Close() error
}

// EventLogger writes log messages to the Windows Event Log. The daemon pairs
// it with a console logger through MultiLogger when the event source exists.
type EventLogger struct {
	w EventLogWriter
}

var openEventLog = func(source string) (EventLogWriter, error) {
	return eventlog.Open(source)
}

// NewEventLogger opens the event source registered as sourceName.
func NewEventLogger(sourceName string) (*EventLogger, error) {
	w, err := openEventLog(sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLogger{w: w}, nil
}

// Write errors are dropped: the daemon must keep running when the event log
// is unavailable.

func (e *EventLogger) Info(format string, args ...interface{}) {
	_ = e.w.Info(EventIDInfo, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Warning(format string, args ...interface{}) {
	_ = e.w.Warning(EventIDWarning, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Error(format string, args ...interface{}) {
	_ = e.w.Error(EventIDError, fmt.Sprintf(format, args...))
}

// Close releases the event log handle.
func (e *EventLogger) Close() error {
	if e.w == nil {
		return nil
	}
	return e.w.Close()
}

var _ Logger = (*EventLogger)(nil)
