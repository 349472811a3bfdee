//go:build e2e
// +build e2e

// pattern: Imperative Shell
// End-to-end tests against a real SQLite registry and project tree.

package e2e

import (
	"context"
	"errors"
	"testing"

	"projsync/internal/instance"
	"projsync/internal/reconcile"
	"projsync/internal/session"
)

func TestRegistryPersistsAcrossSessions(t *testing.T) {
	ws := NewWorkspace(t)
	ws.Mkdir(t, "alpha", "beta")
	ctx := context.Background()

	s := ws.Open(t)
	report, err := s.Pass(ctx, reconcile.Policy{reconcile.SetUnregistered: reconcile.RegisterAll}, false)
	if err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	if report.Summary.Registered != 2 {
		t.Fatalf("expected 2 registered, got %+v", report.Summary)
	}
	if _, err := s.Add(ctx, "gamma", "Gamma Project"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ws.Remove(t, "beta")

	s = ws.Open(t)
	if got := len(Paths(t, s)); got != 3 {
		t.Fatalf("expected 3 records after reopen, got %d", got)
	}
	result, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Orphaned) != 1 || result.Orphaned[0].RelativePath != "beta" {
		t.Errorf("expected beta orphaned, got %+v", result.Orphaned)
	}
	if len(result.Mismatched) != 1 || result.Mismatched[0].ActualName != "gamma" {
		t.Errorf("expected gamma mismatched, got %+v", result.Mismatched)
	}
	if len(result.Unregistered) != 0 {
		t.Errorf("expected nothing unregistered, got %+v", result.Unregistered)
	}

	policy := reconcile.Policy{
		reconcile.SetOrphaned:   reconcile.DeleteAll,
		reconcile.SetMismatched: reconcile.RenameAll,
	}
	if _, err := s.Pass(ctx, policy, false); err != nil {
		t.Fatalf("Pass() error = %v", err)
	}
	paths := Paths(t, s)
	if _, ok := paths["beta"]; ok {
		t.Error("expected beta to be deleted")
	}
	if paths["gamma"].Name != "gamma" {
		t.Errorf("expected gamma renamed, got %q", paths["gamma"].Name)
	}
}

func TestSecondSessionIsLockedOut(t *testing.T) {
	ws := NewWorkspace(t)
	ws.Open(t)

	s, err := session.Open(context.Background(), session.Options{ConfigDir: ws.ConfigDir})
	if err == nil {
		_ = s.Close()
		t.Fatal("expected second session to fail while the first holds the lock")
	}
	if !errors.Is(err, instance.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}
