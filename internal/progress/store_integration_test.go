//go:build integration

package progress_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/testenv"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

func TestPostgresStore_Upsert(t *testing.T) {
	db := testenv.Postgres(t)
	store, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := context.Background()

	u := progress.NewUpdater(progress.UpdaterConfig{Store: store})
	for i := 0; i < 3; i++ {
		if _, err := u.ApplyOutcome(ctx, "user-1", progress.Outcome{ConceptID: "c1", Correct: true}); err != nil {
			t.Fatalf("ApplyOutcome() error = %v", err)
		}
	}

	recs, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if math.Abs(recs[0].ConfidenceScore-0.8) > 1e-9 {
		t.Errorf("ConfidenceScore = %v, want 0.8", recs[0].ConfidenceScore)
	}
}

func TestPostgresStore_FindMissing(t *testing.T) {
	db := testenv.Postgres(t)
	store, _ := progress.NewPostgresStore(db.Pool)

	_, found, err := store.Find(context.Background(), "nobody", "c1")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found {
		t.Error("Find() found a record that was never saved")
	}
}

func TestPostgresStore_RejectsOutOfRange(t *testing.T) {
	db := testenv.Postgres(t)
	store, _ := progress.NewPostgresStore(db.Pool)

	_, err := store.Save(context.Background(), progress.Record{
		UserID:          "user-1",
		ConceptID:       "c1",
		ConfidenceScore: 1.5,
		LastAttempted:   time.Now(),
	})
	if err == nil {
		t.Error("Save() should reject a score above 1")
	}
}

func TestCachedStore_InvalidatesOnSave(t *testing.T) {
	c := cache.FromClient(testenv.Redis(t))
	store := progress.NewCachedStore(progress.NewMemoryStore(), c, time.Minute)
	ctx := context.Background()

	store.Save(ctx, progress.Record{UserID: "u", ConceptID: "c1", ConfidenceScore: 0.6})

	first, err := store.ListByUser(ctx, "u")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("records = %d, want 1", len(first))
	}

	store.Save(ctx, progress.Record{UserID: "u", ConceptID: "c2", ConfidenceScore: 0.4})

	second, _ := store.ListByUser(ctx, "u")
	if len(second) != 2 {
		t.Errorf("records after save = %d, want 2 (stale cache)", len(second))
	}
}

func TestPostgresEventLog_HistoryKeepsApplyOrder(t *testing.T) {
	db := testenv.Postgres(t)
	store, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	events, err := progress.NewPostgresEventLog(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresEventLog() error = %v", err)
	}
	ctx := context.Background()

	u := progress.NewUpdater(progress.UpdaterConfig{Store: store, Listener: events})
	live := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	older := live.Add(-24 * time.Hour)

	// A live answer first, then a backfilled answer with an older timestamp.
	if _, _, err := u.ApplyOutcomeAt(ctx, "user-1", progress.Outcome{ConceptID: "c1", Correct: true}, live); err != nil {
		t.Fatalf("ApplyOutcomeAt() error = %v", err)
	}
	if _, _, err := u.ApplyOutcomeAt(ctx, "user-1", progress.Outcome{ConceptID: "c1"}, older); err != nil {
		t.Fatalf("ApplyOutcomeAt() error = %v", err)
	}

	got, err := events.History(ctx, "user-1", "c1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []float64{0.6, 0.5}
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if math.Abs(e.ConfidenceScore-want[i]) > 1e-9 {
			t.Errorf("event %d score = %v, want %v", i, e.ConfidenceScore, want[i])
		}
	}
	if !got[1].AttemptedAt.Equal(older) {
		t.Errorf("event 1 attemptedAt = %v, want %v", got[1].AttemptedAt, older)
	}
}

func TestPostgresEventLog_History(t *testing.T) {
	db := testenv.Postgres(t)
	store, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	events, err := progress.NewPostgresEventLog(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresEventLog() error = %v", err)
	}
	ctx := context.Background()

	u := progress.NewUpdater(progress.UpdaterConfig{Store: store, Listener: events})
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, correct := range []bool{true, false, true} {
		o := progress.Outcome{ConceptID: "c1", Correct: correct}
		if _, _, err := u.ApplyOutcomeAt(ctx, "user-1", o, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("ApplyOutcomeAt() error = %v", err)
		}
	}

	got, err := events.History(ctx, "user-1", "c1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []float64{0.6, 0.5, 0.6}
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if math.Abs(e.ConfidenceScore-want[i]) > 1e-9 {
			t.Errorf("event %d score = %v, want %v", i, e.ConfidenceScore, want[i])
		}
	}
}
