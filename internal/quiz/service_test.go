package quiz_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newService(t *testing.T) (*quiz.Service, *progress.MemoryStore) {
	t.Helper()
	records := progress.NewMemoryStore()
	updater := progress.NewUpdater(progress.UpdaterConfig{Store: records})
	return quiz.NewService(quiz.NewMemoryStore(), updater), records
}

func sampleHistory(at time.Time) quiz.History {
	return quiz.History{
		Concepts: []quiz.Concept{
			{ConceptID: "cells", Name: "Cells"},
			{ConceptID: "cells", Name: "Cells"},
			{ConceptID: "energy", Name: "Energy"},
		},
		Questions: []quiz.Question{
			{QuestionText: "Q1", UserAnswer: "True", CorrectAnswer: "T", Explanation: "e", Timestamp: at},
			{QuestionText: "Q2", UserAnswer: "SKIPPED", CorrectAnswer: "B", Explanation: "e", Timestamp: at.Add(time.Minute)},
			{QuestionText: "Q3", UserAnswer: "atp", CorrectAnswer: "ATP", Explanation: "e", Timestamp: at.Add(2 * time.Minute)},
			{QuestionText: "Q4", UserAnswer: "A", CorrectAnswer: "A", Explanation: "no concept"},
		},
	}
}

func TestHistory_Outcomes(t *testing.T) {
	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := sampleHistory(at)
	h.CreatedAt = at.Add(time.Hour)

	got := h.Outcomes()
	if len(got) != 4 {
		t.Fatalf("Outcomes() = %d, want 4", len(got))
	}

	want := []progress.TimedOutcome{
		{Outcome: progress.Outcome{ConceptID: "cells", Correct: true}, At: at},
		{Outcome: progress.Outcome{ConceptID: "cells", Correct: false}, At: at.Add(time.Minute)},
		{Outcome: progress.Outcome{ConceptID: "energy", Correct: true}, At: at.Add(2 * time.Minute)},
		{Outcome: progress.Outcome{ConceptID: "", Correct: true}, At: at.Add(time.Hour)},
	}
	for i := range want {
		if got[i].Outcome != want[i].Outcome {
			t.Errorf("Outcomes()[%d] = %+v, want %+v", i, got[i].Outcome, want[i].Outcome)
		}
		if !got[i].At.Equal(want[i].At) {
			t.Errorf("Outcomes()[%d].At = %v, want %v", i, got[i].At, want[i].At)
		}
		if got[i].Retry {
			t.Errorf("Outcomes()[%d].Retry = true, quiz answers are never retries", i)
		}
	}
}

func TestService_SaveAppliesOutcomes(t *testing.T) {
	svc, records := newService(t)
	ctx := context.Background()

	saved, res, err := svc.Save(ctx, "user-1", sampleHistory(time.Now()))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID == "" {
		t.Error("Save() returned empty ID")
	}
	if saved.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", saved.UserID)
	}
	if res.Created != 2 || res.Updated != 1 || res.Skipped != 1 {
		t.Errorf("result = %d/%d/%d, want created 2, updated 1, skipped 1", res.Created, res.Updated, res.Skipped)
	}

	cells, _, _ := records.Find(ctx, "user-1", "cells")
	if !approx(cells.ConfidenceScore, 0.5) {
		t.Errorf("cells score = %v, want 0.5 (+0.1 then -0.1)", cells.ConfidenceScore)
	}
	energy, _, _ := records.Find(ctx, "user-1", "energy")
	if !approx(energy.ConfidenceScore, 0.6) {
		t.Errorf("energy score = %v, want 0.6", energy.ConfidenceScore)
	}
}

func TestService_SaveRequiresUser(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Save(context.Background(), "", sampleHistory(time.Now()))
	if !errors.Is(err, progress.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	saved, _, _ := svc.Save(ctx, "owner", sampleHistory(time.Now()))

	got, err := svc.Get(ctx, "owner", saved.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Questions) != 4 {
		t.Errorf("Questions = %d, want 4", len(got.Questions))
	}

	if _, err := svc.Get(ctx, "intruder", saved.ID); !errors.Is(err, quiz.ErrForbidden) {
		t.Errorf("Get(foreign) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, "owner", "missing"); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	store := quiz.NewMemoryStore()
	svc := quiz.NewService(store, progress.NewUpdater(progress.UpdaterConfig{}))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		h := sampleHistory(base)
		h.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		h.Questions[0].QuestionText = []string{"first", "second", "third"}[i]
		if _, err := store.Create(ctx, quiz.History{UserID: "u", CreatedAt: h.CreatedAt, Questions: h.Questions}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	hs, err := svc.List(ctx, "u")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(hs) != 3 {
		t.Fatalf("List() = %d, want 3", len(hs))
	}
	if hs[0].Questions[0].QuestionText != "third" {
		t.Errorf("first listed = %q, want third", hs[0].Questions[0].QuestionText)
	}
}

func TestService_BackfillMatchesLiveUpdates(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	store := quiz.NewMemoryStore()
	quizzes := []quiz.History{sampleHistory(base), sampleHistory(base.Add(24 * time.Hour))}
	quizzes[1].Questions[0].UserAnswer = "F"
	for i, h := range quizzes {
		h.UserID = "user-1"
		h.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		if _, err := store.Create(ctx, h); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	backfilled := progress.NewMemoryStore()
	svc := quiz.NewService(store, progress.NewUpdater(progress.UpdaterConfig{Store: backfilled}))

	res, err := svc.Backfill(ctx, "user-1")
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if res.Histories != 2 {
		t.Errorf("Histories = %d, want 2", res.Histories)
	}
	if res.Created != 2 || res.Updated != 4 || res.Skipped != 2 {
		t.Errorf("result = %d/%d/%d, want created 2, updated 4, skipped 2", res.Created, res.Updated, res.Skipped)
	}

	live := progress.NewUpdater(progress.UpdaterConfig{})
	for _, h := range quizzes {
		for i, q := range h.Questions {
			if i >= len(h.Concepts) {
				continue
			}
			live.ApplyOutcome(ctx, "user-1", progress.Outcome{
				ConceptID: h.Concepts[i].ConceptID,
				Correct:   quiz.IsCorrect(q.UserAnswer, q.CorrectAnswer),
			})
		}
	}

	for _, concept := range []string{"cells", "energy"} {
		want, _, _ := live.Store().Find(ctx, "user-1", concept)
		got, _, _ := backfilled.Find(ctx, "user-1", concept)
		if got.ConfidenceScore != want.ConfidenceScore {
			t.Errorf("%s: backfill score = %v, live score = %v", concept, got.ConfidenceScore, want.ConfidenceScore)
		}
	}

	energy, _, _ := backfilled.Find(ctx, "user-1", "energy")
	wantLast := base.Add(24*time.Hour + 2*time.Minute)
	if !energy.LastAttempted.Equal(wantLast) {
		t.Errorf("energy LastAttempted = %v, want question timestamp %v", energy.LastAttempted, wantLast)
	}
}

func TestService_BackfillAll(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewMemoryStore()
	for _, user := range []string{"a", "b"} {
		h := sampleHistory(time.Now())
		h.UserID = user
		store.Create(ctx, h)
	}

	records := progress.NewMemoryStore()
	svc := quiz.NewService(store, progress.NewUpdater(progress.UpdaterConfig{Store: records}))

	results, err := svc.BackfillAll(ctx)
	if err != nil {
		t.Fatalf("BackfillAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, user := range []string{"a", "b"} {
		recs, _ := records.ListByUser(ctx, user)
		if len(recs) != 2 {
			t.Errorf("user %s records = %d, want 2", user, len(recs))
		}
	}
}

func TestMemoryStore_ListAllPaging(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.Create(ctx, quiz.History{UserID: "u", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page, total, err := store.ListAll(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("page[0].CreatedAt = %v, want 4th newest", page[0].CreatedAt)
	}

	empty, _, _ := store.ListAll(ctx, 2, 10)
	if len(empty) != 0 {
		t.Errorf("page past end = %d, want 0", len(empty))
	}
}

func TestService_BackfillUntracked(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewMemoryStore()
	h := sampleHistory(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	h.UserID = "alice"
	if _, err := store.Create(ctx, h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	records := progress.NewMemoryStore()
	svc := quiz.NewService(store, progress.NewUpdater(progress.UpdaterConfig{Store: records}))

	res, err := svc.BackfillUntracked(ctx, "alice")
	if err != nil {
		t.Fatalf("BackfillUntracked() error = %v", err)
	}
	if res.Histories != 1 || res.Created != 2 || res.Updated != 1 || res.Skipped != 1 {
		t.Errorf("BackfillUntracked() = %+v, want 1 history, 2 created, 1 updated, 1 skipped", res)
	}

	if _, err := svc.BackfillUntracked(ctx, "alice"); !errors.Is(err, quiz.ErrAlreadyTracked) {
		t.Errorf("second BackfillUntracked() error = %v, want ErrAlreadyTracked", err)
	}
	cells, _, _ := records.Find(ctx, "alice", "cells")
	if !approx(cells.ConfidenceScore, 0.5) {
		t.Errorf("cells = %v, want 0.5 (applied once)", cells.ConfidenceScore)
	}

	if _, err := svc.BackfillUntracked(ctx, ""); !errors.Is(err, progress.ErrUnauthorized) {
		t.Errorf("BackfillUntracked(\"\") error = %v, want ErrUnauthorized", err)
	}
}
