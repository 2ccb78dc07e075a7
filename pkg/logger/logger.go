// Package logger provides the logging interface shared by every warpmulti
// component. Worker goroutines and the loop goroutine both log through it,
// so every implementation in this package is safe for concurrent use.
package logger

import (
	"fmt"
	"log"
	"sync"
)

// Logger defines the interface for leveled logging across warpmulti.
// Implementations may log to console, a zap core or the Windows Event Log.
type Logger interface {
	// Info logs an informational message (e.g., "async transfers complete").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "retrying transfer 2/3").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "engine error: bad handle").
	Error(format string, args ...interface{})

	// Close releases resources held by the logger.
	// Safe to call multiple times. Returns nil for loggers without resources.
	Close() error
}

// StandardLogger wraps the stdlib *log.Logger for console/file output.
// *log.Logger serializes writes, so StandardLogger is goroutine-safe.
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger creates a logger that wraps the given *log.Logger.
// A nil l falls back to log.Default().
func NewStandardLogger(l *log.Logger) *StandardLogger {
	if l == nil {
		l = log.Default()
	}
	return &StandardLogger{logger: l}
}

// Info logs an informational message with [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

// Warning logs a warning message with [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

// Error logs an error message with [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close is a no-op for StandardLogger.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger records every call for verification in tests.
// Worker goroutines log concurrently with the test goroutine, so the
// recorded calls are only reachable through the locked accessors.
type MockLogger struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errs     []string
	closed   bool
}

// NewMockLogger creates a new MockLogger for testing.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Info records the formatted message.
func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(&m.infos, format, args)
}

// Warning records the formatted message.
func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.record(&m.warnings, format, args)
}

// Error records the formatted message.
func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(&m.errs, format, args)
}

func (m *MockLogger) record(dst *[]string, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	m.mu.Lock()
	*dst = append(*dst, msg)
	m.mu.Unlock()
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Infos returns a copy of the recorded info messages.
func (m *MockLogger) Infos() []string { return m.snapshot(&m.infos) }

// Warnings returns a copy of the recorded warning messages.
func (m *MockLogger) Warnings() []string { return m.snapshot(&m.warnings) }

// Errors returns a copy of the recorded error messages.
func (m *MockLogger) Errors() []string { return m.snapshot(&m.errs) }

// Closed reports whether Close was called.
func (m *MockLogger) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockLogger) snapshot(src *[]string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(*src))
	copy(out, *src)
	return out
}

var _ Logger = (*MockLogger)(nil)
