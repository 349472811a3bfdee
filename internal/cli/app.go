// pattern: Functional Core

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(ctx context.Context, args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command
}

// App represents the top-level CLI application with groups and ungrouped commands.
type App struct {
	groups   map[string]*Group
	commands map[string]*Command
	order    []string
	version  string
	stderr   io.Writer
}

// UsageError reports bad arguments; Execute prints the command usage.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitError carries a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string, stderr io.Writer) *App {
	return &App{
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		version:  version,
		stderr:   stderr,
	}
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command. Help lists
// commands in registration order.
func (a *App) AddCommand(cmd *Command) {
	if _, ok := a.commands[cmd.Name]; !ok {
		a.order = append(a.order, cmd.Name)
	}
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		a.PrintHelp(a.stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	name := args[0]
	if cmd, ok := a.commands[name]; ok {
		return a.run(ctx, cmd, args[1:])
	}

	if group, ok := a.groups[name]; ok {
		if len(args) < 2 || args[1] == "help" || isHelp(args[1]) {
			group.PrintHelp(a.stderr)
			return 0
		}
		if cmd, ok := group.Commands[args[1]]; ok {
			return a.run(ctx, cmd, args[2:])
		}
		fmt.Fprintf(a.stderr, "unknown command %q\n\n", name+" "+args[1])
		group.PrintHelp(a.stderr)
		return 2
	}

	fmt.Fprintf(a.stderr, "unknown command %q\n\n", name)
	a.PrintHelp(a.stderr)
	return 2
}

func (a *App) run(ctx context.Context, cmd *Command, args []string) int {
	if slices.ContainsFunc(args, isHelp) {
		fmt.Fprintf(a.stderr, "%s\n", cmd.Usage)
		return 0
	}

	err := cmd.Run(ctx, args)
	if err == nil {
		return 0
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "error: %s\n%s\n", usage.Msg, cmd.Usage)
		return 2
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

func isHelp(arg string) bool {
	return arg == "--help" || arg == "-h"
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: projsync [options] <command>\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range a.order {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}

	if len(a.groups) > 0 {
		fmt.Fprintf(w, "\nCommand Groups:\n")
		for _, name := range slices.Sorted(maps.Keys(a.groups)) {
			group := a.groups[name]
			fmt.Fprintf(w, "  %-10s %s\n", group.Name, group.Summary)
		}
		fmt.Fprintf(w, "\nUse \"projsync <group> help\" for group details.\n")
	}
	fmt.Fprintf(w, "Use \"projsync <command> --help\" for command details.\n\n")
	fmt.Fprintf(w, "Options:\n")
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: projsync %s <command>\n\n", g.Name)
	fmt.Fprintf(w, "Commands:\n")
	// Sort command names for deterministic output
	for _, name := range slices.Sorted(maps.Keys(g.Commands)) {
		cmd := g.Commands[name]
		fmt.Fprintf(w, "  %-10s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"projsync %s <command> --help\" for command details.\n", g.Name)
}

// Version returns the version the app was built with.
func (a *App) Version() string {
	return strings.TrimSpace(a.version)
}
