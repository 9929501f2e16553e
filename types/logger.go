package types

// Logger is the structured logging interface used by every taskchain component.
//
// Methods take a message followed by alternating key/value pairs, which matches
// log/slog and zap.SugaredLogger.
type Logger interface {
	// Debug logs at debug level.
	Debug(msg string, keysAndValues ...any)

	// Info logs at info level.
	Info(msg string, keysAndValues ...any)

	// Warn logs at warn level.
	Warn(msg string, keysAndValues ...any)

	// Error logs at error level.
	Error(msg string, keysAndValues ...any)

	// Fatal logs at the highest level and terminates the process.
	// Test and no-op implementations may choose not to exit.
	Fatal(msg string, keysAndValues ...any)
}
