// Package logger provides structured logging with correlation ID support.
//
// Every log line inside a request or a settlement attempt carries the
// request id and user id pulled from the context, so one purchase can be
// traced across the API process and the worker.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request id.
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for the acting user's id.
	UserIDKey contextKey = "user_id"
	// TaskReferenceKey is the context key for the settlement task reference.
	TaskReferenceKey contextKey = "task_reference"
)

// Config holds logger configuration.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json, text
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a slog.Logger with the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(&ContextHandler{handler: handler})
}

// Setup initializes the global logger.
func Setup(cfg *Config) {
	slog.SetDefault(New(cfg))
}

// ContextHandler wraps a slog.Handler to extract correlation data from the
// context on every record.
type ContextHandler struct {
	handler slog.Handler
}

// Enabled reports whether the handler logs at the given level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds correlation attributes from the context to the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID := GetRequestID(ctx); requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	if userID := GetUserID(ctx); userID != "" {
		r.AddAttrs(slog.String("user_id", userID))
	}
	if taskRef := GetTaskReference(ctx); taskRef != "" {
		r.AddAttrs(slog.String("task_reference", taskRef))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a handler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a handler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}

// WithRequestID adds the request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request id from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds the user id to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserID extracts the user id from the context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTaskReference adds the settlement task reference to the context.
func WithTaskReference(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, TaskReferenceKey, ref)
}

// GetTaskReference extracts the task reference from the context.
func GetTaskReference(ctx context.Context) string {
	if ref, ok := ctx.Value(TaskReferenceKey).(string); ok {
		return ref
	}
	return ""
}
