// Package logging wraps logrus behind a context-aware, key/value logger.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	// Debug level message with alternating key/value pairs
	Debug(ctx context.Context, msg string, args ...interface{})
	// Info level message with alternating key/value pairs
	Info(ctx context.Context, msg string, args ...interface{})
	// Warn level message with alternating key/value pairs
	Warn(ctx context.Context, msg string, args ...interface{})
	// Error level message with alternating key/value pairs
	Error(ctx context.Context, msg string, args ...interface{})
}

type requestIDKey struct{}

// WithRequestID stores the request id so every log line written with the
// returned context carries it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the id stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type LogrusLogger struct {
	entry *logrus.Logger
}

// New returns a JSON logrus logger writing to stderr at the given level.
// Unknown levels fall back to info.
func New(level string) *LogrusLogger {
	return NewWithWriter(level, os.Stderr)
}

func NewWithWriter(level string, w io.Writer) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return &LogrusLogger{entry: l}
}

func (l *LogrusLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.fields(ctx, args).Debug(msg)
}

func (l *LogrusLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.fields(ctx, args).Info(msg)
}

func (l *LogrusLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.fields(ctx, args).Warn(msg)
}

func (l *LogrusLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.fields(ctx, args).Error(msg)
}

func (l *LogrusLogger) Level() string {
	return l.entry.GetLevel().String()
}

// fields turns alternating key/value args into logrus fields. A trailing key
// without a value is logged under "!BADKEY".
func (l *LogrusLogger) fields(ctx context.Context, args []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 >= len(args) {
			fields["!BADKEY"] = key
			break
		}
		value := args[i+1]
		if err, isErr := value.(error); isErr && err != nil {
			value = err.Error()
		}
		fields[key] = value
	}
	if id := RequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	return l.entry.WithFields(fields)
}

type noop struct{}

// NewNoop returns a logger that discards everything.
func NewNoop() Logger { return noop{} }

func (noop) Debug(context.Context, string, ...interface{}) {}
func (noop) Info(context.Context, string, ...interface{})  {}
func (noop) Warn(context.Context, string, ...interface{})  {}
func (noop) Error(context.Context, string, ...interface{}) {}
