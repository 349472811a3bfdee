package web_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"projsync/internal/reconcile"
	"projsync/internal/web"
)

func dialResolve(t *testing.T, env *testEnv, query string) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/resolve" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn, ctx
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) web.ResolveMessage {
	t.Helper()
	var msg web.ResolveMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read error = %v", err)
	}
	return msg
}

func answer(t *testing.T, ctx context.Context, conn *websocket.Conn, c reconcile.Choice) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, web.Answer{Choice: c}); err != nil {
		t.Fatalf("write error = %v", err)
	}
}

func TestResolve_AnswersAndApplies(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha", "beta")
	conn, ctx := dialResolve(t, env, "")

	msg := readMessage(t, ctx, conn)
	if msg.Type != web.MessageRequest || msg.Request == nil || msg.Request.Set != reconcile.SetUnregistered {
		t.Fatalf("expected unregistered request, got %+v", msg)
	}
	if msg.Request.Count != 2 {
		t.Errorf("expected count 2, got %d", msg.Request.Count)
	}

	answer(t, ctx, conn, reconcile.DeleteAll)
	if msg := readMessage(t, ctx, conn); msg.Type != web.MessageInvalid {
		t.Fatalf("expected invalid for an unoffered choice, got %+v", msg)
	}

	answer(t, ctx, conn, reconcile.ReviewEach)
	first := readMessage(t, ctx, conn)
	if first.Request == nil || first.Request.Candidate == nil || first.Request.Candidate.Path != "alpha" {
		t.Fatalf("expected item request for alpha, got %+v", first)
	}
	answer(t, ctx, conn, reconcile.Register)
	readMessage(t, ctx, conn)
	answer(t, ctx, conn, reconcile.Skip)

	final := readMessage(t, ctx, conn)
	if final.Type != web.MessageReport || final.Report == nil {
		t.Fatalf("expected report, got %+v", final)
	}
	if final.Report.Summary.Registered != 1 {
		t.Errorf("expected 1 registered, got %+v", final.Report.Summary)
	}
	recs := env.records(t)
	if len(recs) != 1 || recs[0].RelativePath != "alpha" {
		t.Errorf("expected only alpha registered, got %+v", recs)
	}
}

func TestResolve_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha")
	conn, ctx := dialResolve(t, env, "?dry_run=1")

	readMessage(t, ctx, conn)
	answer(t, ctx, conn, reconcile.RegisterAll)

	final := readMessage(t, ctx, conn)
	if final.Report == nil || !final.Report.DryRun || len(final.Report.Mutations) != 1 {
		t.Fatalf("expected dry-run report with one mutation, got %+v", final)
	}
	if len(env.records(t)) != 0 {
		t.Error("expected dry run to leave the registry untouched")
	}
}

func TestResolve_DisconnectAppliesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha")
	conn, ctx := dialResolve(t, env, "")

	readMessage(t, ctx, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")

	status, body := env.do(t, http.MethodGet, "/api/scan", "")
	if status != http.StatusOK {
		t.Fatalf("scan status = %d, body %s", status, body)
	}
	if len(env.records(t)) != 0 {
		t.Error("expected nothing applied after disconnect")
	}
}

func TestResolve_EditsProceedWhileWaiting(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha")
	conn, ctx := dialResolve(t, env, "")

	if msg := readMessage(t, ctx, conn); msg.Type != web.MessageRequest {
		t.Fatalf("expected request, got %+v", msg)
	}

	status, body := env.do(t, http.MethodPost, "/api/projects", `{"path":"alpha","name":"alpha"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 while a resolve waits, got %d: %s", status, body)
	}

	answer(t, ctx, conn, reconcile.RegisterAll)
	final := readMessage(t, ctx, conn)
	if final.Type != web.MessageReport || final.Report == nil {
		t.Fatalf("expected report, got %+v", final)
	}
	if final.Report.Summary.Registered != 0 || final.Report.Summary.Failed != 1 {
		t.Errorf("expected the stale registration to fail, got %+v", final.Report.Summary)
	}
	if recs := env.records(t); len(recs) != 1 {
		t.Errorf("expected 1 record, got %+v", recs)
	}
}

func TestResolve_NothingToResolve(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialResolve(t, env, "")

	final := readMessage(t, ctx, conn)
	if final.Type != web.MessageReport || final.Report == nil || final.Report.Result == nil || !final.Report.Result.Empty() {
		t.Fatalf("expected an empty report, got %+v", final)
	}
}
