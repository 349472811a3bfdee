//go:build e2e
// +build e2e

// pattern: Imperative Shell
// E2E tests for unattended passes driven by filesystem events.

package e2e

import (
	"context"
	"testing"
	"time"

	"projsync/internal/reconcile"
	"projsync/internal/supervise"
	"projsync/internal/watch"
)

func TestWatcherRegistersNewProjects(t *testing.T) {
	ws := NewWorkspace(t)
	ws.Mkdir(t, "alpha")
	s := ws.Open(t)

	policy := reconcile.Policy{reconcile.SetUnregistered: reconcile.RegisterAll}
	sup := supervise.New(supervise.Config{Name: "watcher", RestartOn: supervise.OnFailure, RetryDelay: 100 * time.Millisecond},
		func(ctx context.Context) error {
			w, err := watch.New(ws.Root, func(ctx context.Context, _ string) error {
				_, err := s.Pass(ctx, policy, false)
				return err
			}, watch.Options{Debounce: 100 * time.Millisecond, Poll: time.Second, Logger: s.Logger("watch")})
			if err != nil {
				return err
			}
			defer w.Close()
			return w.Run(ctx)
		}, s.Logger("app"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer sup.Stop()

	WaitFor(t, 10*time.Second, "startup pass to register alpha", func() bool {
		_, ok := Paths(t, s)["alpha"]
		return ok
	})

	ws.Mkdir(t, "beta")
	WaitFor(t, 10*time.Second, "change pass to register beta", func() bool {
		_, ok := Paths(t, s)["beta"]
		return ok
	})

	if err := sup.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
