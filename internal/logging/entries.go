// pattern: Functional Core

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LogEntry is a parsed log line as served by the web API and captured in tests.
type LogEntry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"` // DEBUG, INFO, WARN, ERROR
	Scope     string         `json:"scope"` // Hierarchical scope (e.g., "reconcile.resolve")
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// String returns a human-readable representation of the log entry.
func (e LogEntry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(e.Level)
	sb.WriteString(" ")
	sb.WriteString("[")
	sb.WriteString(e.Scope)
	sb.WriteString("] ")
	sb.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
	}

	return sb.String()
}

// MatchesScope returns true if the entry's scope starts with the given prefix.
// An empty prefix matches all entries.
func (e LogEntry) MatchesScope(prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(e.Scope, prefix)
}

// ParseLevel normalizes a log level string to uppercase.
// Returns "INFO" for unknown levels.
func ParseLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// AtLeast reports whether the entry's level is at or above min.
func (e LogEntry) AtLeast(min string) bool {
	return levelRank[e.Level] >= levelRank[ParseLevel(min)]
}

// Filter returns the entries matching the scope prefix and minimum level.
// An empty minLevel keeps every level.
func Filter(entries []LogEntry, scopePrefix, minLevel string) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if !e.MatchesScope(scopePrefix) {
			continue
		}
		if minLevel != "" && !e.AtLeast(minLevel) {
			continue
		}
		out = append(out, e)
	}
	return out
}
