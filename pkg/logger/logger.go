package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler and level. Zero value is JSON at info.
type Options struct {
	Format string // "json" or "text"
	Level  string // debug, info, warn, error
}

// New returns a structured logger configured for the given environment.
// local and dev default to debug level with a text handler.
func New(appEnv string, opts Options) *slog.Logger {
	return newWithWriter(os.Stdout, appEnv, opts)
}

func newWithWriter(w io.Writer, appEnv string, opts Options) *slog.Logger {
	level := slog.LevelInfo
	format := "json"
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
		format = "text"
	}
	if lv, ok := parseLevel(opts.Level); ok {
		level = lv
	}
	if f := strings.ToLower(strings.TrimSpace(opts.Format)); f == "json" || f == "text" {
		format = f
	}

	ho := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, ho)
	} else {
		h = slog.NewJSONHandler(w, ho)
	}
	return slog.New(h).With("service", "sales-trainer")
}

func parseLevel(v string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
