package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

var (
	// ErrForbidden is returned when a user asks for another user's history.
	ErrForbidden = errors.New("access denied")

	// ErrAlreadyTracked is returned by BackfillUntracked when the user
	// already has concept progress.
	ErrAlreadyTracked = errors.New("concept progress already exists")
)

// Service saves quizzes and keeps concept progress in step with them.
type Service struct {
	store   Store
	updater *progress.Updater
}

// BackfillResult reports a backfill over one or more histories.
type BackfillResult struct {
	Histories int `json:"histories"`
	progress.BatchResult
}

// NewService creates a quiz service. A nil store falls back to memory.
func NewService(store Store, updater *progress.Updater) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{store: store, updater: updater}
}

// Save stores a completed quiz for userID and applies one live outcome per
// question, stamped with the current time.
func (s *Service) Save(ctx context.Context, userID string, h History) (History, progress.BatchResult, error) {
	if userID == "" {
		return History{}, progress.BatchResult{}, progress.ErrUnauthorized
	}
	h.UserID = userID

	saved, err := s.store.Create(ctx, h)
	if err != nil {
		return History{}, progress.BatchResult{}, fmt.Errorf("save quiz history: %w", err)
	}

	outcomes := saved.Outcomes()
	for i := range outcomes {
		outcomes[i].At = time.Time{}
	}
	res, err := s.updater.ApplyBatch(ctx, userID, outcomes)
	if err != nil {
		return saved, res, err
	}

	slog.Info("quiz history saved",
		"user_id", userID,
		"history_id", saved.ID,
		"questions", len(saved.Questions),
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return saved, res, nil
}

// List returns the user's histories, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]History, error) {
	if userID == "" {
		return nil, progress.ErrUnauthorized
	}
	return s.store.ListByUser(ctx, userID)
}

// Get returns a history owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (History, error) {
	if userID == "" {
		return History{}, progress.ErrUnauthorized
	}
	h, err := s.store.Get(ctx, id)
	if err != nil {
		return History{}, err
	}
	if h.UserID != userID {
		return History{}, ErrForbidden
	}
	return h, nil
}

// ListAll returns a page of all users' histories and the total count.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]History, int, error) {
	return s.store.ListAll(ctx, limit, offset)
}

// Backfill re-derives progress from every stored quiz of userID, oldest
// quiz first and questions in stored order, using each question's own
// timestamp. It applies deltas on top of existing records, so running it
// twice counts every answer twice.
func (s *Service) Backfill(ctx context.Context, userID string) (BackfillResult, error) {
	if userID == "" {
		return BackfillResult{}, progress.ErrUnauthorized
	}

	hs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("list quiz histories: %w", err)
	}

	var total BackfillResult
	for i := len(hs) - 1; i >= 0; i-- {
		res, err := s.updater.ApplyBatch(ctx, userID, hs[i].Outcomes())
		if err != nil {
			return total, err
		}
		total.Histories++
		total.Add(res)
	}

	slog.Info("quiz history backfilled",
		"user_id", userID,
		"histories", total.Histories,
		"created", total.Created,
		"updated", total.Updated,
		"skipped", total.Skipped,
	)
	return total, nil
}

// BackfillUntracked runs Backfill only for a user without any concept
// progress, so a repeated call cannot count the same answers twice.
func (s *Service) BackfillUntracked(ctx context.Context, userID string) (BackfillResult, error) {
	if userID == "" {
		return BackfillResult{}, progress.ErrUnauthorized
	}

	recs, err := s.updater.Store().ListByUser(ctx, userID)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("%w: list progress: %w", progress.ErrPersistence, err)
	}
	if len(recs) > 0 {
		return BackfillResult{}, ErrAlreadyTracked
	}
	return s.Backfill(ctx, userID)
}

// BackfillAll runs Backfill for every user with stored quizzes. A failing
// user is logged and does not stop the others.
func (s *Service) BackfillAll(ctx context.Context) (map[string]BackfillResult, error) {
	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quiz history users: %w", err)
	}

	results := make(map[string]BackfillResult, len(ids))
	for _, id := range ids {
		res, err := s.Backfill(ctx, id)
		if err != nil {
			slog.Error("backfill failed", "user_id", id, "error", err)
			continue
		}
		results[id] = res
	}
	return results, nil
}
