package logging

import "context"

// NoOpLogger discards all log output. Used in tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debug(msg string, fields ...Field)            {}
func (n *NoOpLogger) Info(msg string, fields ...Field)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Field)             {}
func (n *NoOpLogger) Error(msg string, err error, fields ...Field) {}
func (n *NoOpLogger) WithFields(fields ...Field) Logger            { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger       { return n }
