package authclient

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Logger is the structured logging interface used by the client and the
// coordinator. Key-value pairs follow the slog convention.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DebugConfig selects which events are logged.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRenewals  bool
	LogRetries   bool
	RequestIDGen func() string
}

// DefaultDebugConfig logs everything and generates UUID request ids.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      true,
		LogRequests:  true,
		LogRenewals:  true,
		LogRetries:   true,
		RequestIDGen: uuid.NewString,
	}
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

// NewSimpleLogger writes text records at debug level and above to stderr.
func NewSimpleLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *slogLogger) Debug(msg string, keysAndValues ...any) { s.l.Debug(msg, keysAndValues...) }
func (s *slogLogger) Info(msg string, keysAndValues ...any)  { s.l.Info(msg, keysAndValues...) }
func (s *slogLogger) Warn(msg string, keysAndValues ...any)  { s.l.Warn(msg, keysAndValues...) }
func (s *slogLogger) Error(msg string, keysAndValues ...any) { s.l.Error(msg, keysAndValues...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// redactToken returns a fingerprint safe to log: the first four characters
// and the length.
func redactToken(token string) string {
	if token == "" {
		return ""
	}
	prefix := token
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix + "...(" + strconv.Itoa(len(token)) + ")"
}
