package logging

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/arloliu/taskchain/types"
)

// Entry is a log record captured by TestLogger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// TestLogger implements types.Logger on top of testing.TB.
//
// Every record is written with t.Logf and kept in memory, so tests can assert
// that a component logged a given message.
type TestLogger struct {
	t       testing.TB
	mu      sync.Mutex
	entries []Entry
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a new test logger.
//
// Parameters:
//   - t: The test whose log receives the output
//
// Returns:
//   - *TestLogger: A new recording logger
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    logger := NewTest(t)
//	    r := reader.New(querier, reader.WithLogger(logger))
//	}
func NewTest(t testing.TB) *TestLogger {
	return &TestLogger{t: t}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.record("DEBUG", msg, keysAndValues)
}

// Info logs an info-level message with optional key-value pairs.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.record("INFO", msg, keysAndValues)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.record("WARN", msg, keysAndValues)
}

// Error logs an error-level message with optional key-value pairs.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.record("ERROR", msg, keysAndValues)
}

// Fatal logs a fatal-level message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.record("FATAL", msg, keysAndValues)
	l.t.FailNow()
}

// Entries returns a copy of the captured records.
func (l *TestLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Has reports whether a record with the given level and message was captured.
func (l *TestLogger) Has(level, msg string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}

	return false
}

func (l *TestLogger) record(level, msg string, keysAndValues []any) {
	fields := make(map[string]any, len(keysAndValues)/2)
	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
			fmt.Fprintf(&sb, " %s=%v", key, keysAndValues[i+1])
		} else {
			fields[key] = nil
			fmt.Fprintf(&sb, " %s=<missing>", key)
		}
	}

	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: fields})
	l.mu.Unlock()

	l.t.Helper()
	l.t.Logf("%s: %s%s", level, msg, sb.String())
}
