package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/video-route/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "video-route"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach the output.
var secretKeys = map[string]bool{
	"password": true,
	"secret":   true,
	"token":    true,
	"auth":     true,
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Logger is a *slog.Logger carrying the service and version attributes.
//
// Every package that logs accepts a small Logger interface
// (Debug/Info/Warn/Error) which *Logger satisfies through the embedded
// slog.Logger.
//
// Thread Safety: safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout or stderr as cfg.Output says.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Reported in every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination, ignoring cfg.Output.
// Tests use it to capture log lines.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler = slog.NewJSONHandler(output, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// parseLevel maps a config level name to slog. Unknown names mean info.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// redact blanks attributes such as a wsrpc endpoint's password if a caller
// ever logs one by mistake.
func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// With returns a Logger with extra attributes on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component is With("component", name), the tag each subsystem logs under.
//
//	drv := logger.Component("telnet")
//	drv.Info("session opened") // component=telnet
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the logger used before configuration is loaded: JSON on
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
