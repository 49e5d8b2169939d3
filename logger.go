package loom

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger is the minimal logging interface the engine needs. Any
// structured logger can be adapted; args are alternating key-value
// pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewZerologLogger adapts a zerolog.Logger to the Logger interface.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, args ...any) { z.emit(z.l.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { z.emit(z.l.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { z.emit(z.l.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { z.emit(z.l.Error(), msg, args) }

func (z *zerologLogger) emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
