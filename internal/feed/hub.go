// Package feed pushes concept progress updates to a learner's open
// websocket connections.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	userID string
	ch     chan progress.Record
}

// Hub fans out progress updates per user. It implements progress.Listener.
type Hub struct {
	subs map[*subscriber]struct{}
	mu   sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers interest in userID's updates. The returned cancel
// func must be called to release the subscription.
func (h *Hub) Subscribe(userID string) (<-chan progress.Record, func()) {
	sub := &subscriber{userID: userID, ch: make(chan progress.Record, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ProgressUpdated delivers rec to the owner's subscribers. Slow consumers
// drop updates instead of blocking the updater.
func (h *Hub) ProgressUpdated(rec progress.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.userID != rec.UserID {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			slog.Warn("progress feed subscriber is slow, dropping update",
				"user_id", rec.UserID,
				"concept_id", rec.ConceptID,
			)
		}
	}
}

// Serve upgrades the request to a websocket and streams userID's updates
// until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := h.Subscribe(userID)
	defer cancel()

	// The feed is one-way; CloseRead handles control frames and cancels ctx
	// when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	slog.Info("progress feed connected", "user_id", userID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("progress feed disconnected", "user_id", userID)
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if err := write(ctx, conn, rec); err != nil {
				slog.Warn("progress feed write failed", "user_id", userID, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, rec progress.Record) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, rec)
}
