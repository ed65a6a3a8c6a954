package rendercore

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopLoggerDiscards(t *testing.T) {
	l := newNopLogger()
	levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

	tests := []struct {
		name   string
		logger *slog.Logger
	}{
		{"plain", l},
		{"with attrs", l.With("workspace", 1)},
		{"with group", l.WithGroup("compositor")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.logger.Handler().(nopHandler); !ok {
				t.Fatalf("handler = %T, want nopHandler", tt.logger.Handler())
			}
			for _, level := range levels {
				if tt.logger.Enabled(context.Background(), level) {
					t.Errorf("enabled at %v", level)
				}
			}
			if err := tt.logger.Handler().Handle(context.Background(), slog.Record{}); err != nil {
				t.Errorf("Handle = %v", err)
			}
		})
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger is enabled")
	}

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	Logger().Debug("compositor: render targets invalidated")
	Logger().Info("compositor: workspace built", "nodes", 2)
	out := buf.String()
	if strings.Contains(out, "invalidated") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "workspace built") || !strings.Contains(out, "nodes=2") {
		t.Errorf("output = %q, want the info record", out)
	}

	SetLogger(nil)
	if l := Logger(); l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}

// Loads complete on streamer goroutines while the render thread logs.
func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetLogger(slog.New(slog.DiscardHandler))
				SetLogger(nil)
				return
			}
			Logger().Warn("asset: load failed", "asset", i)
		}()
	}
	wg.Wait()
}

func BenchmarkDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("renderqueue: filled", "draws", 128)
	}
}
