package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"projsync/internal/logging"
)

func entryAt(sec int64, msg string) logging.LogEntry {
	return logging.LogEntry{Timestamp: time.Unix(sec, 0), Level: "INFO", Scope: "watch", Message: msg}
}

func TestTailLogs_PrintsOnlyNewEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	source := func(_ context.Context, scope, level string) ([]logging.LogEntry, error) {
		calls++
		if scope != "watch" || level != "info" {
			t.Errorf("unexpected filter %q %q", scope, level)
		}
		entries := []logging.LogEntry{entryAt(1, "one"), entryAt(2, "two")}
		if calls >= 2 {
			entries = append(entries, entryAt(3, "three"))
		}
		if calls >= 3 {
			cancel()
		}
		return entries, nil
	}

	buf := &bytes.Buffer{}
	err := TailLogs(ctx, source, TailConfig{Scope: "watch", Level: "info", Interval: 5 * time.Millisecond, Writer: buf})
	if err != nil {
		t.Fatalf("TailLogs() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[2], "three") {
		t.Errorf("expected last line to be three, got %q", lines[2])
	}
}

func TestTailLogs_InitialErrorIsReturned(t *testing.T) {
	boom := errors.New("connection refused")
	source := func(context.Context, string, string) ([]logging.LogEntry, error) {
		return nil, boom
	}
	err := TailLogs(context.Background(), source, TailConfig{Interval: time.Millisecond, Writer: &bytes.Buffer{}})
	if !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestTailLogs_GivesUpAfterRetry(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	source := func(context.Context, string, string) ([]logging.LogEntry, error) {
		calls++
		if calls == 1 {
			return nil, nil
		}
		return nil, boom
	}
	err := TailLogs(context.Background(), source, TailConfig{Interval: time.Millisecond, Writer: &bytes.Buffer{}})
	if !errors.Is(err, boom) || calls != 3 {
		t.Errorf("expected failure on the third poll, got %v after %d calls", err, calls)
	}
}
