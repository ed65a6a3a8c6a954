package rendercore

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports
// false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. It is read from the render thread and
// from asset loading goroutines, so access is atomic.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger shared by rendercore and all of its
// sub-packages. By default nothing is logged. Pass nil to restore the
// silent default.
//
// Log levels used by rendercore:
//   - [slog.LevelDebug]: cache materialization, pipeline creation, per-frame counters
//   - [slog.LevelInfo]: workspace build and teardown, swap chain configuration
//   - [slog.LevelWarn]: fallbacks (placeholder textures, unknown framebuffers, failed loads)
//
// Example:
//
//	rendercore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (cache/, compositor/,
// render/, ...) call this so they share one configuration without an import
// cycle.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
