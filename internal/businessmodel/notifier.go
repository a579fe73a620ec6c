package businessmodel

import (
	"context"
	"log/slog"
)

// ToastLevel is the severity of a user-facing notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast is a transient message for the person who triggered an operation.
type Toast struct {
	Level   ToastLevel
	Title   string
	Message string
}

// Notifier delivers toasts. The store calls it for user-triggered
// mutations only; background loads fail silently.
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, t Toast)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, t Toast) { f(ctx, t) }

// LogNotifier writes toasts to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, t Toast) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if t.Level == ToastError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, t.Title, "message", t.Message)
}
