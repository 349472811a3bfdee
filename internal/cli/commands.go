// pattern: Imperative Shell

// Package cli implements the projsync subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"projsync/internal/config"
	"projsync/internal/instance"
	"projsync/internal/session"
	"projsync/internal/tui"
)

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, env *Env) *App {
	env.withDefaults()
	app := NewApp(version, env.Stderr)

	app.AddCommand(&Command{
		Name:    "reconcile",
		Summary: "Reconcile the registry with the project tree",
		Usage: "Usage: projsync reconcile [--policy set=choice,...] [--dry-run] [--json]\n\n" +
			"Without --policy on a terminal, each decision is asked interactively.\n" +
			"Sets: orphaned, mismatched, unregistered.",
		Run: env.runReconcile,
	})
	app.AddCommand(&Command{
		Name:    "scan",
		Summary: "Print the current differences as JSON without changing anything",
		Usage:   "Usage: projsync scan",
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return usagef("unexpected argument %q", args[0])
			}
			return env.withBackend(ctx, func(b backend) error {
				result, err := b.Scan(ctx)
				if err != nil {
					return err
				}
				return printJSON(env.Stdout, result)
			})
		},
	})
	app.AddCommand(&Command{
		Name:    "list",
		Summary: "List registered projects",
		Usage:   "Usage: projsync list [--json]",
		Run:     env.runList,
	})
	app.AddCommand(&Command{
		Name:    "add",
		Summary: "Create a project directory and register it",
		Usage:   "Usage: projsync add <path> [--name NAME]",
		Run:     env.runAdd,
	})
	app.AddCommand(&Command{
		Name:    "remove",
		Summary: "Remove a project from the registry (the directory is kept)",
		Usage:   "Usage: projsync remove <id>",
		Run:     env.runRemove,
	})
	app.AddCommand(&Command{
		Name:    "watch",
		Summary: "Reconcile unattended whenever the tree changes",
		Usage:   "Usage: projsync watch [--policy set=choice,...] [--no-web]",
		Run: func(ctx context.Context, args []string) error {
			return env.runHost(ctx, "watch", args, true)
		},
	})
	app.AddCommand(&Command{
		Name:    "serve",
		Summary: "Serve the HTTP API for other projsync commands",
		Usage:   "Usage: projsync serve [--watch] [--policy set=choice,...]",
		Run: func(ctx context.Context, args []string) error {
			return env.runHost(ctx, "serve", args, false)
		},
	})
	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Show recent log entries",
		Usage:   "Usage: projsync logs [--scope PREFIX] [--level LEVEL] [--follow]",
		Run:     env.runLogs,
	})
	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed instance",
		Usage:   "Usage: projsync cleanup",
		Run: func(ctx context.Context, args []string) error {
			removed, err := instance.RemoveStale(env.DataDir())
			if errors.Is(err, instance.ErrLocked) {
				return fmt.Errorf("a projsync instance appears to be running; stop it first")
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(env.Stdout, "Nothing to clean up.")
				return nil
			}
			for _, path := range removed {
				fmt.Fprintf(env.Stdout, "Removed %s\n", path)
			}
			return nil
		},
	})
	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: projsync version",
		Run: func(ctx context.Context, args []string) error {
			fmt.Fprintln(env.Stdout, app.Version())
			return nil
		},
	})

	registerConfigCommands(app.AddGroup("config", "Create and inspect the configuration"), env)
	return app
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() > maxArgs {
		return usagef("unexpected argument %q", fs.Arg(maxArgs))
	}
	return nil
}

// withBackend connects, runs fn and closes the backend.
func (e *Env) withBackend(ctx context.Context, fn func(b backend) error) (err error) {
	b, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(b)
}

func (e *Env) runReconcile(ctx context.Context, args []string) error {
	fs := newFlagSet("reconcile")
	policy := fs.StringP("policy", "p", "", "bulk choice per set, e.g. orphaned=delete-all")
	dryRun := fs.BoolP("dry-run", "n", false, "plan the changes without applying them")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	if *policy == "" && !*asJSON && e.Interactive() {
		return e.runInteractive(ctx, *dryRun)
	}

	return e.withBackend(ctx, func(b backend) error {
		report, err := b.Reconcile(ctx, *policy, *dryRun)
		if err != nil {
			return err
		}
		if *asJSON {
			if err := printJSON(e.Stdout, report); err != nil {
				return err
			}
		} else {
			printReport(e.Stdout, report)
		}
		if report.Summary.Failed > 0 {
			return fmt.Errorf("%d change(s) failed", report.Summary.Failed)
		}
		return nil
	})
}

// runInteractive resolves a pass in the terminal. It needs the registry in
// this process, so it cannot run beside a server.
func (e *Env) runInteractive(ctx context.Context, dryRun bool) error {
	s, err := e.Open(ctx, e.options())
	if errors.Is(err, instance.ErrLocked) {
		return fmt.Errorf("%w; stop it or pass --policy to reconcile through it", err)
	}
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	report, err := e.Resolve(ctx, s.Engine, tui.Options{Theme: s.Config.Theme, DryRun: dryRun})
	if errors.Is(err, tui.ErrAborted) {
		fmt.Fprintln(e.Stdout, "Aborted. The registry was not changed.")
		return nil
	}
	if err != nil {
		return err
	}
	printReport(e.Stdout, report)
	return nil
}

func (e *Env) runList(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	asJSON := fs.Bool("json", false, "print records as JSON")
	if err := parseFlags(fs, args, 0); err != nil {
		return err
	}
	return e.withBackend(ctx, func(b backend) error {
		recs, err := b.Projects(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(e.Stdout, recs)
		}
		printRecords(e.Stdout, recs)
		return nil
	})
}

func (e *Env) runAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	name := fs.String("name", "", "display name (default: final path segment)")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("missing project path")
	}
	return e.withBackend(ctx, func(b backend) error {
		rec, err := b.Add(ctx, fs.Arg(0), *name)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.Stdout, "Registered #%d %s (%s)\n", rec.ID, rec.Name, rec.RelativePath)
		return nil
	})
}

func (e *Env) runRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("expected one project id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return usagef("invalid project id %q", args[0])
	}
	return e.withBackend(ctx, func(b backend) error {
		if err := b.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(e.Stdout, "Removed #%d\n", id)
		return nil
	})
}

func registerConfigCommands(group *Group, env *Env) {
	group.AddCommand(&Command{
		Name:    "init",
		Summary: "Write a starter config.yaml",
		Usage:   "Usage: projsync config init [--root DIR] [--force]",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("init")
			root := fs.String("root", env.Root, "project root to write into the config")
			force := fs.Bool("force", false, "overwrite an existing config")
			if err := parseFlags(fs, args, 0); err != nil {
				return err
			}
			path, err := config.WriteTemplate(env.DataDir(), *root, *force)
			if errors.Is(err, config.ErrExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "Wrote %s\n", path)
			return nil
		},
	})
	group.AddCommand(&Command{
		Name:    "show",
		Summary: "Print the effective configuration",
		Usage:   "Usage: projsync config show",
		Run: func(ctx context.Context, args []string) error {
			cfg, err := session.LoadConfig(env.options())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(env.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	group.AddCommand(&Command{
		Name:    "path",
		Summary: "Print the config directory",
		Usage:   "Usage: projsync config path",
		Run: func(ctx context.Context, args []string) error {
			fmt.Fprintln(env.Stdout, env.DataDir())
			return nil
		},
	})
}
