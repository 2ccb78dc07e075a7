package logger

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStandardLogger_Prefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l Logger)
		prefix string
		body   string
	}{
		{"info", func(l Logger) { l.Info("test message %d", 123) }, "[INFO]", "test message 123"},
		{"warning", func(l Logger) { l.Warning("warning message %s", "test") }, "[WARNING]", "warning message test"},
		{"error", func(l Logger) { l.Error("error message: %v", "failed") }, "[ERROR]", "error message: failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.log(NewStandardLogger(log.New(buf, "", 0)))
			output := buf.String()
			if !strings.Contains(output, tt.prefix) {
				t.Errorf("expected %s prefix, got: %s", tt.prefix, output)
			}
			if !strings.Contains(output, tt.body) {
				t.Errorf("expected message content, got: %s", output)
			}
		})
	}
}

func TestStandardLogger_NilFallsBackToDefault(t *testing.T) {
	l := NewStandardLogger(nil)
	if l.logger != log.Default() {
		t.Error("expected log.Default() fallback")
	}
	if err := l.Close(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	logger.Info("test")
	logger.Warning("test")
	logger.Error("test")

	if err := logger.Close(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(*NopLogger); !ok {
		t.Error("expected NopLogger for nil input")
	}
	m := NewMockLogger()
	if OrNop(m) != Logger(m) {
		t.Error("expected the given logger back")
	}
}

func TestMockLogger_RecordsCalls(t *testing.T) {
	logger := NewMockLogger()

	logger.Info("info %d", 1)
	logger.Info("info %d", 2)
	logger.Warning("warn %s", "test")
	logger.Error("err %v", "fail")

	infos := logger.Infos()
	if len(infos) != 2 || infos[0] != "info 1" || infos[1] != "info 2" {
		t.Errorf("unexpected info calls: %v", infos)
	}
	if w := logger.Warnings(); len(w) != 1 || w[0] != "warn test" {
		t.Errorf("unexpected warning calls: %v", w)
	}
	if e := logger.Errors(); len(e) != 1 || e[0] != "err fail" {
		t.Errorf("unexpected error calls: %v", e)
	}
	if logger.Closed() {
		t.Error("Closed should be false initially")
	}
	_ = logger.Close()
	if !logger.Closed() {
		t.Error("Closed should be true after Close()")
	}
}

func TestMockLogger_ConcurrentUse(t *testing.T) {
	logger := NewMockLogger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("worker %d step %d", i, j)
			}
		}(i)
	}
	wg.Wait()
	if got := len(logger.Infos()); got != 400 {
		t.Errorf("expected 400 info calls, got %d", got)
	}
}

func TestMultiLogger_BroadcastsToAll(t *testing.T) {
	mock1 := NewMockLogger()
	mock2 := NewMockLogger()

	multi := NewMultiLogger(mock1, mock2)
	multi.Info("info msg")
	multi.Warning("warn msg")
	multi.Error("error msg")

	for i, m := range []*MockLogger{mock1, mock2} {
		if got := m.Infos(); len(got) != 1 || got[0] != "info msg" {
			t.Errorf("mock%d info = %v", i+1, got)
		}
		if got := m.Warnings(); len(got) != 1 || got[0] != "warn msg" {
			t.Errorf("mock%d warning = %v", i+1, got)
		}
		if got := m.Errors(); len(got) != 1 || got[0] != "error msg" {
			t.Errorf("mock%d error = %v", i+1, got)
		}
	}
}

type failingCloser struct {
	NopLogger
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestMultiLogger_CloseReturnsFirstError(t *testing.T) {
	first := errors.New("first")
	mock := NewMockLogger()
	multi := NewMultiLogger(&failingCloser{err: first}, &failingCloser{err: errors.New("second")}, mock)

	if err := multi.Close(); !errors.Is(err, first) {
		t.Errorf("expected first error, got: %v", err)
	}
	if !mock.Closed() {
		t.Error("all loggers should be closed even after an error")
	}
}

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l, err := NewZapLogger(zap.New(core))
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}

	l.Info("run %s complete", "abc")
	l.Warning("slow wait")
	l.Error("engine error: %s", "bad handle")
	_ = l.Close()

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "run abc complete" || entries[0].Level != zap.InfoLevel {
		t.Errorf("unexpected info entry: %+v", entries[0])
	}
	if entries[1].Level != zap.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[1].Level)
	}
	if entries[2].Message != "engine error: bad handle" || entries[2].Level != zap.ErrorLevel {
		t.Errorf("unexpected error entry: %+v", entries[2])
	}
}
