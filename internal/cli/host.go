// pattern: Imperative Shell

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"projsync/internal/instance"
	"projsync/internal/reconcile"
	"projsync/internal/session"
	"projsync/internal/supervise"
	"projsync/internal/watch"
	"projsync/internal/web"
)

const (
	shutdownTimeout   = 5 * time.Second
	watcherRetries    = 5
	watcherRetryDelay = 2 * time.Second
)

// runHost runs the long-lived process: the web API, and the watcher when
// watching. It holds the instance lock until ctx is cancelled.
func (e *Env) runHost(ctx context.Context, name string, args []string, watching bool) error {
	fs := newFlagSet(name)
	policyFlag := fs.StringP("policy", "p", "", "bulk choice per set for watcher passes")
	noWeb := false
	if watching {
		fs.BoolVar(&noWeb, "no-web", false, "do not serve the HTTP API")
	} else {
		fs.BoolVar(&watching, "watch", false, "also reconcile when the tree changes")
	}
	if err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	opts := e.options()
	opts.Console = e.Stderr
	s, err := e.Open(ctx, opts)
	if errors.Is(err, instance.ErrLocked) {
		return &ExitError{Code: 1, Err: err}
	}
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	policy := s.Policy()
	if *policyFlag != "" {
		if policy, err = reconcile.ParsePolicy(*policyFlag); err != nil {
			return usagef("%v", err)
		}
	}

	logger := s.Logger("app")
	errCh := make(chan error, 2)

	var srv *web.Server
	if !noWeb {
		srv = web.New(web.Config{Bind: s.Config.Web.Bind, Port: s.Config.Web.Port}, s.Engine, s.Logs)
		ln, err := srv.Listen()
		if err != nil {
			return err
		}
		if err := s.PublishAddr(srv.Addr()); err != nil {
			logger.Error("failed to write port file", "error", err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
		fmt.Fprintf(e.Stdout, "Serving http://%s\n", srv.Addr())
	}

	if watching {
		sup := supervise.New(supervise.Config{
			Name:       "watcher",
			RestartOn:  supervise.Always,
			MaxRetries: watcherRetries,
			RetryDelay: watcherRetryDelay,
		}, func(ctx context.Context) error {
			w, err := newWatcher(s, policy, srv)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()
			return w.Run(ctx)
		}, s.Logger("app"))
		if err := sup.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sup.Stop() }()
		go func() {
			<-sup.Done()
			if err := sup.Err(); err != nil {
				errCh <- fmt.Errorf("watcher: %w", err)
			}
		}()
		fmt.Fprintf(e.Stdout, "Watching %s (policy %s)\n", s.Config.RootPath(), policy)
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errCh:
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("web server shutdown", "error", serr)
		}
	}
	logger.Info("stopped", "command", name)
	return err
}

// newWatcher builds a watcher that runs one unattended pass per trigger.
func newWatcher(s *session.Session, policy reconcile.Policy, srv *web.Server) (*watch.Watcher, error) {
	logger := s.Logger("watch")
	trigger := func(ctx context.Context, reason string) error {
		report, err := s.Pass(ctx, policy, false)
		if err != nil {
			return err
		}
		c := report.Result.Counts()
		logger.Info("pass complete",
			"reason", reason,
			"orphaned", c.Orphaned,
			"mismatched", c.Mismatched,
			"unregistered", c.Unregistered,
			"applied", len(report.Outcomes),
		)
		if srv != nil && len(report.Outcomes) > 0 {
			srv.Notify()
		}
		return nil
	}
	return watch.New(s.Config.RootPath(), trigger, watch.Options{
		Debounce: s.Config.Watch.Debounce,
		Poll:     s.Config.Watch.Poll,
		Logger:   logger,
	})
}
