package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_DebugLevel(t *testing.T) {
	logger := New("debug", "text")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug level to be enabled")
	}
}

func TestNew_ErrorLevel(t *testing.T) {
	logger := New("error", "text")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Expected info level to be disabled at error level")
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Info("plans loaded", "count", 3)

	out := buf.String()
	if !strings.Contains(out, `"msg":"plans loaded"`) {
		t.Errorf("expected JSON message, got %q", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("expected count attribute, got %q", out)
	}
}

func TestWithTenant(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTenant(NewWithWriter(&buf, "info", "text"), "t_1", "live")
	logger.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "tenant_id=t_1") || !strings.Contains(out, "environment=live") {
		t.Errorf("expected tenant attributes, got %q", out)
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	Discard().Error("ignored")
}

func TestWithRequestID_And_RequestID(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("Expected empty request ID, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("Expected req-123, got %q", id)
	}
}

func TestWithLogger_And_FromContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) == nil {
		t.Fatal("Expected default logger")
	}

	custom := New("debug", "json")
	ctx = WithLogger(ctx, custom)
	if FromContext(ctx) != custom {
		t.Error("Expected custom logger from context")
	}
}

func TestL_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestID(context.Background(), "req-456")
	ctx = WithLogger(ctx, NewWithWriter(&buf, "info", "text"))

	L(ctx).Info("x")
	if !strings.Contains(buf.String(), "request_id=req-456") {
		t.Errorf("expected request id in output, got %q", buf.String())
	}
}
