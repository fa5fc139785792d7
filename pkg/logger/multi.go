package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanout dispatches each record to every underlying handler, letting each
// apply its own level. The ingest command relies on this to print pretty
// terminal output while appending a JSON record to the store's ingest log.
type fanout []slog.Handler

// Multi combines loggers into one whose records reach all of them.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	handlers := make(fanout, len(loggers))
	for i, l := range loggers {
		handlers[i] = l.Handler()
	}
	return slog.New(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make(fanout, len(f))
	for i, h := range f {
		children[i] = h.WithAttrs(attrs)
	}
	return children
}

func (f fanout) WithGroup(name string) slog.Handler {
	children := make(fanout, len(f))
	for i, h := range f {
		children[i] = h.WithGroup(name)
	}
	return children
}
