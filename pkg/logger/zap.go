package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.Logger to the Logger interface. The daemon uses it
// when structured (JSON) output is requested.
type ZapLogger struct {
	z *zap.SugaredLogger
}

// NewZapLogger wraps z. A nil z builds a production JSON logger.
func NewZapLogger(z *zap.Logger) (*ZapLogger, error) {
	if z == nil {
		var err error
		z, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}
	}
	return &ZapLogger{z: z.Sugar()}, nil
}

// Info logs at zap's info level.
func (l *ZapLogger) Info(format string, args ...interface{}) {
	l.z.Infof(format, args...)
}

// Warning logs at zap's warn level.
func (l *ZapLogger) Warning(format string, args ...interface{}) {
	l.z.Warnf(format, args...)
}

// Error logs at zap's error level.
func (l *ZapLogger) Error(format string, args ...interface{}) {
	l.z.Errorf(format, args...)
}

// Close flushes buffered entries. Sync errors on stdout/stderr are common on
// some platforms and carry no information, so they are dropped.
func (l *ZapLogger) Close() error {
	_ = l.z.Sync()
	return nil
}

var _ Logger = (*ZapLogger)(nil)
