package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Listener is notified after a record has been persisted.
type Listener interface {
	ProgressUpdated(rec Record)
}

// UpdaterConfig holds dependencies for the updater.
type UpdaterConfig struct {
	Store    Store
	Listener Listener         // optional
	Now      func() time.Time // defaults to time.Now
}

// Updater applies answer outcomes to stored confidence records.
type Updater struct {
	store    Store
	listener Listener
	now      func() time.Time
}

// BatchResult summarises an ApplyBatch run.
type BatchResult struct {
	Created int     `json:"created"`
	Updated int     `json:"updated"`
	Skipped int     `json:"skipped"`
	Errors  []error `json:"-"`
}

// Add folds another result into r.
func (r *BatchResult) Add(other BatchResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// NewUpdater creates an updater. A nil store falls back to memory.
func NewUpdater(cfg UpdaterConfig) *Updater {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Updater{
		store:    store,
		listener: cfg.Listener,
		now:      now,
	}
}

// Store returns the underlying record store.
func (u *Updater) Store() Store {
	return u.store
}

// ApplyOutcome applies a live outcome for userID, stamping it with the
// current time.
func (u *Updater) ApplyOutcome(ctx context.Context, userID string, o Outcome) (Record, error) {
	rec, _, err := u.ApplyOutcomeAt(ctx, userID, o, time.Time{})
	return rec, err
}

// ApplyOutcomeAt applies an outcome recorded at the given time (zero means
// now). The boolean reports whether a new record was created.
func (u *Updater) ApplyOutcomeAt(ctx context.Context, userID string, o Outcome, at time.Time) (Record, bool, error) {
	if userID == "" {
		return Record{}, false, ErrUnauthorized
	}
	if o.ConceptID == "" {
		return Record{}, false, fmt.Errorf("%w: concept id is required", ErrInvalidArgument)
	}
	if at.IsZero() {
		at = u.now()
	}

	rec, found, err := u.store.Find(ctx, userID, o.ConceptID)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: find progress: %w", ErrPersistence, err)
	}
	if !found {
		rec = Record{
			UserID:          userID,
			ConceptID:       o.ConceptID,
			ConfidenceScore: InitialScore,
		}
	}

	rec.ConfidenceScore = Clamp(rec.ConfidenceScore + Delta(o.Correct, o.Retry))
	rec.LastAttempted = at

	saved, err := u.store.Save(ctx, rec)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: save progress: %w", ErrPersistence, err)
	}

	slog.Debug("concept progress updated",
		"user_id", userID,
		"concept_id", o.ConceptID,
		"correct", o.Correct,
		"retry", o.Retry,
		"score", saved.ConfidenceScore,
		"created", !found,
	)

	if u.listener != nil {
		u.listener.ProgressUpdated(saved)
	}
	return saved, !found, nil
}

// ApplyBatch applies outcomes one by one in the given order. A failing item
// is counted as skipped and does not stop the rest of the batch.
func (u *Updater) ApplyBatch(ctx context.Context, userID string, items []TimedOutcome) (BatchResult, error) {
	if userID == "" {
		return BatchResult{}, ErrUnauthorized
	}

	var res BatchResult
	for i, item := range items {
		_, created, err := u.ApplyOutcomeAt(ctx, userID, item.Outcome, item.At)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Errorf("item %d (concept %q): %w", i, item.ConceptID, err))
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	if len(res.Errors) > 0 {
		slog.Warn("progress batch finished with failures",
			"user_id", userID,
			"skipped", res.Skipped,
			"first_error", res.Errors[0],
		)
	}
	return res, nil
}
