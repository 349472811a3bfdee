// pattern: Imperative Shell

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"projsync/internal/instance"
	"projsync/internal/logging"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
	"projsync/internal/session"
	"projsync/internal/tui"
)

// logTail is how many log entries are read when no server is running.
const logTail = 500

// Env carries global options and the process hooks commands use. Tests
// replace the hooks.
type Env struct {
	ConfigDir string
	Root      string
	Stdout    io.Writer
	Stderr    io.Writer

	// Open opens a local session. Defaults to session.Open.
	Open func(ctx context.Context, opts session.Options) (*session.Session, error)
	// Discover finds a running server. Defaults to instance.Discover.
	Discover func(dataDir string) (*instance.Client, error)
	// Interactive reports whether prompts can be shown. Defaults to
	// checking whether stdout is a terminal.
	Interactive func() bool
	// Resolve runs the interactive resolution. Defaults to tui.Run.
	Resolve func(ctx context.Context, engine tui.Engine, opts tui.Options) (*reconcile.Report, error)
}

func (e *Env) withDefaults() *Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Open == nil {
		e.Open = session.Open
	}
	if e.Discover == nil {
		e.Discover = instance.Discover
	}
	if e.Interactive == nil {
		e.Interactive = stdoutIsTerminal
	}
	if e.Resolve == nil {
		e.Resolve = tui.Run
	}
	return e
}

func (e *Env) options() session.Options {
	return session.Options{ConfigDir: e.ConfigDir, Root: e.Root}
}

// DataDir is the directory holding config, lock and port files.
func (e *Env) DataDir() string {
	return session.DataDir(e.ConfigDir)
}

// backend performs registry operations either in this process or through a
// running server.
type backend interface {
	Projects(ctx context.Context) ([]registry.Record, error)
	Scan(ctx context.Context) (*reconcile.Result, error)
	Reconcile(ctx context.Context, policy string, dryRun bool) (*reconcile.Report, error)
	Add(ctx context.Context, path, name string) (registry.Record, error)
	Remove(ctx context.Context, id int64) error
	Logs(ctx context.Context, scope, level string) ([]logging.LogEntry, error)
	Close() error
}

// connect opens a local session, or delegates to the running server when
// another process holds the instance lock.
func (e *Env) connect(ctx context.Context) (backend, error) {
	s, err := e.Open(ctx, e.options())
	if err == nil {
		return &localBackend{s: s}, nil
	}
	if !errors.Is(err, instance.ErrLocked) {
		return nil, err
	}

	client, derr := e.Discover(e.DataDir())
	if derr != nil {
		return nil, &ExitError{Code: 2, Err: fmt.Errorf("%w: %w", err, derr)}
	}
	return &remoteBackend{client: client}, nil
}

type localBackend struct {
	s *session.Session
}

func (b *localBackend) Projects(ctx context.Context) ([]registry.Record, error) {
	return b.s.Snapshot(ctx)
}

func (b *localBackend) Scan(ctx context.Context) (*reconcile.Result, error) {
	return b.s.Reconcile(ctx)
}

func (b *localBackend) Reconcile(ctx context.Context, policy string, dryRun bool) (*reconcile.Report, error) {
	p := b.s.Policy()
	if policy != "" {
		var err error
		if p, err = reconcile.ParsePolicy(policy); err != nil {
			return nil, usagef("%v", err)
		}
	}
	return b.s.Pass(ctx, p, dryRun)
}

func (b *localBackend) Add(ctx context.Context, path, name string) (registry.Record, error) {
	return b.s.Add(ctx, path, name)
}

func (b *localBackend) Remove(ctx context.Context, id int64) error {
	return b.s.Remove(ctx, id)
}

// Logs reads the log file; this process has logged next to nothing yet.
func (b *localBackend) Logs(_ context.Context, scope, level string) ([]logging.LogEntry, error) {
	entries, err := logging.ReadFile(b.s.Config.LogPath(b.s.DataDir), logTail)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return logging.Filter(entries, scope, level), nil
}

func (b *localBackend) Close() error {
	return b.s.Close()
}

// remoteBackend delegates to a running server over HTTP.
type remoteBackend struct {
	client *instance.Client
}

func decodeInto[T any](data []byte, err error) (T, error) {
	var v T
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode server response: %w", err)
	}
	return v, nil
}

func (b *remoteBackend) Projects(_ context.Context) ([]registry.Record, error) {
	return decodeInto[[]registry.Record](b.client.Projects())
}

func (b *remoteBackend) Scan(_ context.Context) (*reconcile.Result, error) {
	return decodeInto[*reconcile.Result](b.client.Scan())
}

func (b *remoteBackend) Reconcile(_ context.Context, policy string, dryRun bool) (*reconcile.Report, error) {
	if policy != "" {
		if _, err := reconcile.ParsePolicy(policy); err != nil {
			return nil, usagef("%v", err)
		}
	}
	return decodeInto[*reconcile.Report](b.client.Reconcile(policy, dryRun))
}

func (b *remoteBackend) Add(_ context.Context, path, name string) (registry.Record, error) {
	return decodeInto[registry.Record](b.client.AddProject(path, name))
}

func (b *remoteBackend) Remove(_ context.Context, id int64) error {
	_, err := b.client.RemoveProject(id)
	return err
}

func (b *remoteBackend) Logs(_ context.Context, scope, level string) ([]logging.LogEntry, error) {
	return decodeInto[[]logging.LogEntry](b.client.Logs(scope, level))
}

func (b *remoteBackend) Close() error {
	return nil
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
