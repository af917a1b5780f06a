package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-progress/internal/feed"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

func TestHub_DeliversOnlyOwnUpdates(t *testing.T) {
	hub := feed.NewHub()

	alice, cancelAlice := hub.Subscribe("alice")
	defer cancelAlice()
	bob, cancelBob := hub.Subscribe("bob")
	defer cancelBob()

	hub.ProgressUpdated(progress.Record{UserID: "alice", ConceptID: "c1", ConfidenceScore: 0.6})

	select {
	case rec := <-alice:
		if rec.ConceptID != "c1" {
			t.Errorf("ConceptID = %q, want c1", rec.ConceptID)
		}
	default:
		t.Fatal("alice did not receive her update")
	}

	select {
	case rec := <-bob:
		t.Errorf("bob received %+v, want nothing", rec)
	default:
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	hub := feed.NewHub()

	_, cancel := hub.Subscribe("alice")
	if hub.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", hub.Subscribers())
	}
	cancel()
	cancel() // idempotent
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers())
	}

	// Must not panic on a closed channel.
	hub.ProgressUpdated(progress.Record{UserID: "alice", ConceptID: "c1"})
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := feed.NewHub()
	_, cancel := hub.Subscribe("alice")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.ProgressUpdated(progress.Record{UserID: "alice", ConceptID: "c1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ProgressUpdated blocked on a full subscriber")
	}
}

func TestHub_ServeStreamsUpdates(t *testing.T) {
	hub := feed.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "alice", nil)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	// Wait until the server side has subscribed.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.ProgressUpdated(progress.Record{UserID: "alice", ConceptID: "cells", ConfidenceScore: 0.55})

	var got progress.Record
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("wsjson.Read() error = %v", err)
	}
	if got.ConceptID != "cells" || got.ConfidenceScore != 0.55 {
		t.Errorf("got %+v, want cells/0.55", got)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
