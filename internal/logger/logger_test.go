package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"task-monitor/internal/config"
)

// errorHandler always fails to handle a record
type errorHandler struct{}

func (e *errorHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (e *errorHandler) Handle(ctx context.Context, r slog.Record) error {
	return errors.New("handler failure")
}
func (e *errorHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return e }
func (e *errorHandler) WithGroup(name string) slog.Handler       { return e }

// disabledHandler is never enabled
type disabledHandler struct{}

func (d *disabledHandler) Enabled(ctx context.Context, level slog.Level) bool { return false }
func (d *disabledHandler) Handle(ctx context.Context, r slog.Record) error    { return nil }
func (d *disabledHandler) WithAttrs(attrs []slog.Attr) slog.Handler           { return d }
func (d *disabledHandler) WithGroup(name string) slog.Handler                 { return d }

func restoreDefault(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"unknown level", "unknown", slog.LevelInfo},
		{"empty level", "", slog.LevelInfo},
		{"uppercase debug", "DEBUG", slog.LevelDebug},
		{"padded error", " error ", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getLogLevel(tt.level)
			if result != tt.expected {
				t.Errorf("Expected level %v for input '%s', got %v", tt.expected, tt.level, result)
			}
		})
	}
}

func TestNewHandler_Format(t *testing.T) {
	var text bytes.Buffer
	slog.New(newHandler(&text, "text", slog.LevelInfo)).Info("hello", "cycle_id", "abc")
	if !strings.Contains(text.String(), "cycle_id=abc") {
		t.Errorf("Expected text output, got: %s", text.String())
	}

	var js bytes.Buffer
	slog.New(newHandler(&js, "json", slog.LevelInfo)).Info("hello", "cycle_id", "abc")
	if !strings.Contains(js.String(), `"cycle_id":"abc"`) {
		t.Errorf("Expected JSON output, got: %s", js.String())
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	multi := &MultiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected handler to be enabled for Debug level")
	}

	disabled := &MultiHandler{handlers: []slog.Handler{&disabledHandler{}, &disabledHandler{}}}
	if disabled.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected handler to be disabled when all handlers are disabled")
	}
}

func TestMultiHandler_HandleWritesAll(t *testing.T) {
	var first, second bytes.Buffer
	multi := &MultiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&first, nil),
		slog.NewTextHandler(&second, nil),
	}}

	slog.New(multi).Info("fan out")
	if !strings.Contains(first.String(), "fan out") || !strings.Contains(second.String(), "fan out") {
		t.Errorf("Expected both handlers to receive the record, got %q and %q", first.String(), second.String())
	}
}

func TestMultiHandler_HandleError(t *testing.T) {
	multi := &MultiHandler{handlers: []slog.Handler{&errorHandler{}, &errorHandler{}}}
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	if err := multi.Handle(context.Background(), record); err == nil {
		t.Error("Expected error from failing handlers")
	}
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	multi := &MultiHandler{handlers: []slog.Handler{slog.NewJSONHandler(&buf, nil)}}

	h1 := multi.WithAttrs([]slog.Attr{slog.String("k", "v")})
	h2 := h1.WithGroup("grp")
	if _, ok := h1.(*MultiHandler); !ok {
		t.Error("WithAttrs should return a MultiHandler")
	}
	if _, ok := h2.(*MultiHandler); !ok {
		t.Error("WithGroup should return a MultiHandler")
	}

	slog.New(h2).Info("msg", "inner", 1)
	if !strings.Contains(buf.String(), `"k":"v"`) || !strings.Contains(buf.String(), `"grp":{"inner":1}`) {
		t.Errorf("Expected attrs and group in output, got: %s", buf.String())
	}
}

func TestInit_FileOnly(t *testing.T) {
	restoreDefault(t)
	cfg := config.Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "test.log")
	cfg.Log.Stdout = false

	Init(cfg)
	slog.Info("Test message")

	if _, err := os.Stat(cfg.Log.File); os.IsNotExist(err) {
		t.Error("Expected log file to be created")
	}
}

func TestInit_FileAndStdout(t *testing.T) {
	restoreDefault(t)
	cfg := config.Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "stdout.log")
	cfg.Log.Level = "debug"
	cfg.Log.Stdout = true

	Init(cfg)
	if _, ok := slog.Default().Handler().(*MultiHandler); !ok {
		t.Error("Expected a MultiHandler when file and stdout are enabled")
	}
	slog.Debug("Test debug message")

	if _, err := os.Stat(cfg.Log.File); os.IsNotExist(err) {
		t.Error("Expected log file to be created")
	}
}

func TestInit_InvalidLogDirectoryFallsBackToStdout(t *testing.T) {
	restoreDefault(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}

	cfg := config.Default()
	cfg.Log.File = filepath.Join(blocker, "nested", "test.log")
	cfg.Log.Stdout = false

	Init(cfg)
	if _, ok := slog.Default().Handler().(*MultiHandler); ok {
		t.Error("Expected a single stdout handler after log directory failure")
	}
	slog.Info("still logging")
}
