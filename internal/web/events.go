// pattern: Imperative Shell

package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// keepAliveInterval spaces SSE comments that keep idle proxies from closing
// the stream.
const keepAliveInterval = 30 * time.Second

// eventBroker fans out "registry changed" signals to SSE subscribers.
type eventBroker struct {
	mu          sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func newEventBroker() *eventBroker {
	return &eventBroker{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel with a one-signal buffer. The caller must call
// Unsubscribe when done.
func (b *eventBroker) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (b *eventBroker) Unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

// Notify signals every subscriber without blocking. A subscriber that has
// not consumed its pending signal keeps just that one.
func (b *eventBroker) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// handleEvents handles GET /api/events. It sends "connected" on open and
// "changed" whenever the registry was mutated through this process.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			fmt.Fprintf(w, "event: changed\ndata: registry\n\n")
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
