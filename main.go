// pattern: Imperative Shell
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"projsync/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags and dispatches the subcommand. It returns the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("projsync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	fs.SetInterspersed(false)

	env := &cli.Env{Stdout: stdout, Stderr: stderr}
	fs.StringVarP(&env.ConfigDir, "config-dir", "c", "", "config directory (default: ~/.config/projsync)")
	fs.StringVar(&env.Root, "root", "", "project root (overrides the config file)")

	// Override Usage before Parse so --help uses the CLI app's help
	fs.Usage = func() {
		cli.BuildApp(version, env).PrintHelp(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	return cli.BuildApp(version, env).Execute(ctx, fs.Args())
}
