// pattern: Imperative Shell

package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MemorySink implements zapcore.WriteSyncer and keeps the most recent parsed
// entries in a fixed-size ring. When the ring is full the oldest entry is
// overwritten.
type MemorySink struct {
	mu      sync.Mutex
	ring    []LogEntry
	next    int
	full    bool
	dropped int
}

// NewMemorySink creates a sink that retains up to capacity entries.
func NewMemorySink(capacity int) *MemorySink {
	if capacity < 1 {
		capacity = 1
	}
	return &MemorySink{ring: make([]LogEntry, capacity)}
}

// Write implements io.Writer. Unparseable input is accepted and ignored so
// logging never fails on account of the sink.
func (s *MemorySink) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full {
		s.dropped++
	}
	s.ring[s.next] = entry
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. No-op for memory sink.
func (s *MemorySink) Sync() error {
	return nil
}

// Entries returns a copy of the retained entries, oldest first.
func (s *MemorySink) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		out := make([]LogEntry, s.next)
		copy(out, s.ring[:s.next])
		return out
	}
	out := make([]LogEntry, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	out = append(out, s.ring[:s.next]...)
	return out
}

// Dropped returns how many entries were overwritten since creation.
func (s *MemorySink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Reset discards all retained entries.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ring)
	s.next = 0
	s.full = false
}

// ReadEntries parses JSON log lines from r and keeps the last capacity
// entries, oldest first. Lines that are not log entries are skipped.
func ReadEntries(r io.Reader, capacity int) ([]LogEntry, error) {
	sink := NewMemorySink(capacity)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		_, _ = sink.Write(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return sink.Entries(), fmt.Errorf("read log entries: %w", err)
	}
	return sink.Entries(), nil
}

// ReadFile is ReadEntries over the log file at path. Rotated backups are not
// read.
func ReadFile(path string, capacity int) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEntries(f, capacity)
}

// parseEntry converts JSON log data from Zap into a LogEntry.
func parseEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, fmt.Errorf("parse log entry: %w", err)
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Scope:     "app",
		Fields:    make(map[string]any),
	}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(level)
		delete(raw, "level")
	}
	if logger, ok := raw["logger"].(string); ok {
		entry.Scope = logger
		delete(raw, "logger")
	}

	// Parse timestamp if present, preserving nanosecond precision
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		entry.Timestamp = time.Unix(sec, nsec)
		delete(raw, "ts")
	}

	delete(raw, "caller")
	delete(raw, "stacktrace")

	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, nil
}
