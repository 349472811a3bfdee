// pattern: Imperative Shell

package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"projsync/internal/reconcile"
)

// answerTimeout bounds how long the server waits for one answer.
const answerTimeout = 10 * time.Minute

// Message types sent by the server on /api/resolve.
const (
	MessageRequest = "request"
	MessageInvalid = "invalid"
	MessageReport  = "report"
	MessageError   = "error"
)

// ResolveMessage is a server-to-client frame on /api/resolve.
type ResolveMessage struct {
	Type    string             `json:"type"`
	Request *reconcile.Request `json:"request,omitempty"`
	Report  *reconcile.Report  `json:"report,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Answer is a client-to-server frame on /api/resolve.
type Answer struct {
	Choice reconcile.Choice `json:"choice"`
}

// wsResolver answers requests by asking the websocket peer.
type wsResolver struct {
	conn *websocket.Conn
}

// Resolve sends req and waits for an offered choice. Choices the request
// does not offer are reported back and the request is asked again.
func (r *wsResolver) Resolve(ctx context.Context, req reconcile.Request) (reconcile.Choice, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, r.conn, ResolveMessage{Type: MessageRequest, Request: &req}); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	for {
		var ans Answer
		if err := wsjson.Read(ctx, r.conn, &ans); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		if req.Offers(ans.Choice) {
			return ans.Choice, nil
		}
		msg := ResolveMessage{
			Type:    MessageInvalid,
			Request: &req,
			Error:   fmt.Sprintf("%q is not offered", ans.Choice),
		}
		if err := wsjson.Write(ctx, r.conn, msg); err != nil {
			return "", fmt.Errorf("send rejection: %w", err)
		}
	}
}

// handleResolve handles GET /api/resolve?dry_run=1.
// Runs one pass whose requests are answered by the websocket client, then
// sends the report and closes. Nothing is applied if the client leaves
// before the last answer.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	dryRun := isTrue(r.URL.Query().Get("dry_run"))

	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(64 << 10)

	// r.Context() is not used after the upgrade.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.logger.Info("resolve session opened", "remote", r.RemoteAddr, "dry_run", dryRun)
	report, err := s.engine.Pass(ctx, &wsResolver{conn: conn}, dryRun)
	if err != nil {
		s.logger.Warn("resolve session failed", "remote", r.RemoteAddr, "error", err)
		if websocket.CloseStatus(err) != -1 {
			return
		}
		_ = wsjson.Write(ctx, conn, ResolveMessage{Type: MessageError, Error: err.Error()})
		_ = conn.Close(websocket.StatusInternalError, "pass failed")
		return
	}

	if len(report.Outcomes) > 0 {
		s.events.Notify()
	}
	if err := wsjson.Write(ctx, conn, ResolveMessage{Type: MessageReport, Report: report}); err != nil {
		s.logger.Warn("send report failed", "error", err)
		return
	}
	s.logger.Info("resolve session closed", "remote", r.RemoteAddr, "mutations", len(report.Mutations))
	_ = conn.Close(websocket.StatusNormalClosure, "pass complete")
}
