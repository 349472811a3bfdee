// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
// Use in tests or when logging is not configured.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a LoggerProvider for tests. Everything at debug level
// and above is captured in memory for assertions.
type TestLogManager struct {
	sink    *MemorySink
	baseZap *zap.Logger
	loggers map[string]*ScopedLogger
	mu      sync.RWMutex
}

// NewTestLogManager creates a LoggerProvider that retains up to capacity entries.
func NewTestLogManager(capacity int) *TestLogManager {
	sink := NewMemorySink(capacity)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(jsonEncoderConfig()),
		zapcore.AddSync(sink),
		zapcore.DebugLevel,
	)
	return &TestLogManager{
		sink:    sink,
		baseZap: zap.New(core),
		loggers: make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger for the given scope name.
// Named For() to match the production Manager API.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	return cachedLogger(&m.mu, m.loggers, scope, func() *ScopedLogger {
		return newScopedLogger(m.baseZap, zapcore.DebugLevel, scope)
	})
}

// Entries returns every captured entry, oldest first.
func (m *TestLogManager) Entries() []LogEntry {
	return m.sink.Entries()
}

// Find returns the captured entries at level whose message equals msg.
func (m *TestLogManager) Find(level, msg string) []LogEntry {
	var out []LogEntry
	for _, e := range m.sink.Entries() {
		if e.Level == level && e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// Recent returns every captured entry, matching the production Manager API.
func (m *TestLogManager) Recent() []LogEntry {
	return m.sink.Entries()
}
