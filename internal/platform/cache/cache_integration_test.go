//go:build integration

package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/testenv"
)

func TestCache_JSONRoundTrip(t *testing.T) {
	c := cache.FromClient(testenv.Redis(t))
	ctx := context.Background()

	type entry struct {
		Concept string  `json:"concept"`
		Score   float64 `json:"score"`
	}

	var got entry
	if err := c.GetJSON(ctx, "k", &got); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("GetJSON() on empty key error = %v, want ErrMiss", err)
	}

	if err := c.SetJSON(ctx, "k", entry{Concept: "cells", Score: 0.6}, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	if err := c.GetJSON(ctx, "k", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Concept != "cells" || got.Score != 0.6 {
		t.Errorf("GetJSON() = %+v, want {cells 0.6}", got)
	}

	if err := c.Delete(ctx, "k", "missing"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.GetJSON(ctx, "k", &got); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("GetJSON() after Delete error = %v, want ErrMiss", err)
	}
}

func TestCache_GetJSONCorrupt(t *testing.T) {
	c := cache.FromClient(testenv.Redis(t))
	ctx := context.Background()

	if err := c.Client.Set(ctx, "bad", "{not json", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	err := c.GetJSON(ctx, "bad", &v)
	if err == nil || errors.Is(err, cache.ErrMiss) {
		t.Errorf("GetJSON() error = %v, want a decode error", err)
	}
}
