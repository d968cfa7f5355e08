package logger

import "codeberg.org/mutker/hoststat/internal/errors"

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}

type componentLogger struct {
	name string
}

// With returns a Logger whose events carry the given component name.
// Events are resolved against the global logger at call time, so a Logger
// obtained before Init still honours the configured output and level.
func With(component string) Logger {
	return componentLogger{name: component}
}

func (c componentLogger) Debug() *LogEvent {
	return &LogEvent{log.Debug().Str("component", c.name)}
}

func (c componentLogger) Info() *LogEvent {
	return &LogEvent{log.Info().Str("component", c.name)}
}

func (c componentLogger) Warn() *LogEvent {
	return &LogEvent{log.Warn().Str("component", c.name)}
}

func (c componentLogger) Error() *LogEvent {
	return &LogEvent{log.Error().Str("component", c.name)}
}

func (c componentLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Error().
		Str("component", c.name).
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}
