package converter

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// SLogger abstracts the [*slog.Logger] behavior.
//
// The converter uses two log levels:
//   - Info for lifecycle events (conversion start, state changes, done, failed)
//   - Debug for per-record events (skipped records)
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns a logger that discards everything
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

func (discardSLogger) Debug(msg string, args ...any) {}

func (discardSLogger) Info(msg string, args ...any) {}

// NewSpanID returns a UUIDv7 identifying one conversion in the logs.
//
// It panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
