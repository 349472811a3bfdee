// pattern: Imperative Shell

package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofrs/flock"

	"projsync/internal/config"
	"projsync/internal/fsys"
	"projsync/internal/instance"
	"projsync/internal/logging"
	"projsync/internal/registry"
)

// Options selects where a Session reads its configuration.
type Options struct {
	// ConfigDir holds config.yaml, the lock file and, by default, the
	// database and log file. Empty means config.Dir().
	ConfigDir string
	// Root overrides the configured root when non-empty.
	Root string
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	// Console receives human-readable logs, typically os.Stderr.
	Console io.Writer
}

// Session is a running projsync process: it holds the single-instance lock,
// the log manager and the SQLite registry.
type Session struct {
	*Engine

	Config  config.Config
	DataDir string
	Logs    *logging.Manager

	store *registry.SQLite
	lock  *flock.Flock
}

// DataDir resolves the directory that holds lock, port, log and database files.
func DataDir(configDir string) string {
	if configDir != "" {
		return config.ResolvePath(configDir)
	}
	return config.Dir()
}

// LoadConfig reads config.yaml from the options' directory and applies
// overrides. It does not validate.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.LoadFromDir(DataDir(opts.ConfigDir))
	if err != nil {
		return cfg, err
	}
	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, nil
}

// Open loads and validates the configuration, takes the instance lock and
// opens logging and the registry. Close releases everything. When another
// process holds the lock the error wraps instance.ErrLocked.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{Config: cfg, DataDir: DataDir(opts.ConfigDir)}

	s.lock, err = instance.Lock(s.DataDir)
	if err != nil {
		return nil, err
	}

	s.Logs, err = logging.NewManager(logging.Config{
		FilePath:   cfg.LogPath(s.DataDir),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      cfg.LogLevel,
		Console:    opts.Console,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	root := cfg.RootPath()
	s.store, err = registry.OpenSQLite(ctx, cfg.DatabasePath(s.DataDir), root)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Engine, err = NewEngine(cfg, s.store, fsys.OS(root), s.Logs)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Logs.For("app").Debug("session opened", "root", root, "database", cfg.DatabasePath(s.DataDir))
	return s, nil
}

// Logger returns a scoped logger from the session's manager.
func (s *Session) Logger(scope string) *logging.ScopedLogger {
	if s.Logs == nil {
		return logging.NopLogger()
	}
	return s.Logs.For(scope)
}

// PublishAddr writes the web listener address for other invocations.
func (s *Session) PublishAddr(addr string) error {
	return instance.WritePort(s.DataDir, addr)
}

// Close releases the registry, logging and the instance lock, in that order.
// It is safe to call on a partially opened session.
func (s *Session) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	if s.Logs != nil {
		errs = append(errs, s.Logs.Close())
		s.Logs = nil
	}
	if s.lock != nil {
		instance.Cleanup(s.DataDir, s.lock)
		s.lock = nil
	}
	return errors.Join(errs...)
}
