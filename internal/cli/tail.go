// pattern: Imperative Shell

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"projsync/internal/logging"
)

// TailConfig configures the log follow loop.
type TailConfig struct {
	Scope    string
	Level    string
	Interval time.Duration
	Writer   io.Writer
}

// logSource returns recent log entries, oldest first.
type logSource func(ctx context.Context, scope, level string) ([]logging.LogEntry, error)

// TailLogs prints entries newer than the last one printed until ctx is
// cancelled. A failed poll is retried once on the next tick.
func TailLogs(ctx context.Context, source logSource, cfg TailConfig) error {
	var last time.Time
	retries := 0

	poll := func() error {
		entries, err := source(ctx, cfg.Scope, cfg.Level)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.Timestamp.After(last) {
				continue
			}
			fmt.Fprintln(cfg.Writer, StripANSI(e.String()))
			last = e.Timestamp
		}
		return nil
	}

	if err := poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				retries++
				if retries > 1 {
					return err
				}
				continue
			}
			retries = 0
		}
	}
}

func (e *Env) runLogs(ctx context.Context, args []string) error {
	fs := newFlagSet("logs")
	scope := fs.String("scope", "", "scope prefix, e.g. reconcile")
	level := fs.String("level", "", "minimum level: debug, info, warn, error")
	follow := fs.BoolP("follow", "f", false, "keep printing new entries")
	interval := fs.Duration("interval", time.Second, "poll interval with --follow")
	if err := parseFlags(fs, args, 0); err != nil {
		return err
	}
	if *interval <= 0 {
		return usagef("--interval must be positive")
	}

	return e.withBackend(ctx, func(b backend) error {
		if *follow {
			return TailLogs(ctx, b.Logs, TailConfig{
				Scope:    *scope,
				Level:    *level,
				Interval: *interval,
				Writer:   e.Stdout,
			})
		}
		entries, err := b.Logs(ctx, *scope, *level)
		if err != nil {
			return err
		}
		printEntries(e.Stdout, entries)
		return nil
	})
}
