// pattern: Imperative Shell

// Package config loads the projsync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"projsync/internal/reconcile"
)

// FileName is the config file name inside the config directory.
const FileName = "config.yaml"

// Config is the on-disk configuration.
type Config struct {
	// Root is the directory that registered relative paths resolve against.
	Root string `yaml:"root"`
	// Database is the SQLite file. Defaults to projects.db in the config directory.
	Database string `yaml:"database"`
	LogLevel string `yaml:"log_level"`
	// LogFile defaults to projsync.log in the config directory.
	LogFile string `yaml:"log_file"`
	Theme   string `yaml:"theme"`
	// Exclude holds doublestar patterns matched against normalized paths.
	Exclude []string `yaml:"exclude"`
	// ExcludeNames are extra directory names never scanned.
	ExcludeNames []string `yaml:"exclude_names"`
	// Markers are extra file name substrings that identify a project.
	Markers []string `yaml:"markers"`
	// Policy maps a result set to the bulk choice made by unattended passes.
	Policy map[string]string `yaml:"policy"`
	Watch  WatchConfig       `yaml:"watch"`
	Web    WebConfig         `yaml:"web"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Poll     time.Duration `yaml:"poll"`
}

// MarshalYAML writes durations as strings ("2s") so the output loads back.
func (w WatchConfig) MarshalYAML() (any, error) {
	return struct {
		Debounce string `yaml:"debounce"`
		Poll     string `yaml:"poll"`
	}{w.Debounce.String(), w.Poll.String()}, nil
}

// WebConfig holds web server settings.
type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"` // 0 picks an ephemeral port
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Theme:    "mocha",
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
			Poll:     time.Minute,
		},
		Web: WebConfig{
			Bind: "127.0.0.1",
		},
	}
}

// Load loads configuration from the default location.
// Returns default config if file doesn't exist.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(Dir(), FileName))
}

// LoadFromDir loads config.yaml from dir.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, FileName))
}

// LoadFrom loads configuration from a specific path.
// Returns default config if file doesn't exist.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores defaults for keys present but left empty.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if c.Watch.Poll <= 0 {
		c.Watch.Poll = def.Watch.Poll
	}
	if c.Web.Bind == "" {
		c.Web.Bind = def.Web.Bind
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("root is not set (add 'root: ~/projects' to the config or pass --root)")
	}
	root := ResolvePath(c.Root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", root)
	}
	if _, err := c.ResolutionPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	switch c.Theme {
	case "latte", "frappe", "macchiato", "mocha":
	default:
		return fmt.Errorf("theme must be one of latte, frappe, macchiato, mocha; got %q", c.Theme)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	return nil
}

// ResolutionPolicy returns the configured unattended policy.
func (c *Config) ResolutionPolicy() (reconcile.Policy, error) {
	return reconcile.PolicyFromMap(c.Policy)
}

// RootPath returns the absolute project root.
func (c *Config) RootPath() string {
	return ResolvePath(c.Root)
}

// DatabasePath returns the SQLite file, defaulting into dataDir.
func (c *Config) DatabasePath(dataDir string) string {
	if c.Database != "" {
		return ResolvePath(c.Database)
	}
	return filepath.Join(dataDir, "projects.db")
}

// LogPath returns the log file, defaulting into dataDir.
func (c *Config) LogPath(dataDir string) string {
	if c.LogFile != "" {
		return ResolvePath(c.LogFile)
	}
	return filepath.Join(dataDir, "projsync.log")
}

// ResolvePath expands a leading ~ to the user's home directory and cleans
// the result. Relative paths stay relative.
func ResolvePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// Dir returns the default config directory:
// $XDG_CONFIG_HOME/projsync or ~/.config/projsync.
func Dir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "projsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "projsync")
	}

	return filepath.Join(home, ".config", "projsync")
}
