// Package observability provides structured logging, metrics and health
// checks for the amora services.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat specifies the output format for logs.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level  string
	Format LogFormat
	// Output defaults to os.Stderr.
	Output         io.Writer
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig returns development defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          "info",
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "amora",
		ServiceVersion: "dev",
	}
}

// LogConfigFor derives a LogConfig from application settings. Production
// defaults to JSON so log shippers can index request and delivery ids.
func LogConfigFor(appEnv, level, format, version string) LogConfig {
	cfg := DefaultLogConfig()
	if appEnv == "production" {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
	}
	if level != "" {
		cfg.Level = level
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// NewLogger creates a structured logger that also stamps request-scoped ids
// found in the context onto every record.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(&contextHandler{handler: handler})
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// contextHandler adds correlation, request and delivery ids from the context.
type contextHandler struct {
	handler slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(RequestIDKey, id))
	}
	if id := DeliveryIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(DeliveryIDKey, id))
	}
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name)}
}
