package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Listeners fans an update out to several listeners in order.
type Listeners []Listener

func (ls Listeners) ProgressUpdated(rec Record) {
	for _, l := range ls {
		if l != nil {
			l.ProgressUpdated(rec)
		}
	}
}

// Event is one score change, kept so a learner's trajectory on a concept
// can be charted.
type Event struct {
	UserID          string    `json:"user"`
	ConceptID       string    `json:"conceptId"`
	ConfidenceScore float64   `json:"confidenceScore"`
	AttemptedAt     time.Time `json:"attemptedAt"`
}

// EventLog records score changes. It is attached to the updater as a
// Listener; failures are logged and never fail the update itself. History
// is returned in the order the updates were applied, which can differ from
// AttemptedAt order after a backfill of older quizzes.
type EventLog interface {
	Listener
	History(ctx context.Context, userID, conceptID string) ([]Event, error)
}

// MemoryEventLog keeps events in memory.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryEventLog creates an in-memory event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: []Event{}}
}

func (l *MemoryEventLog) ProgressUpdated(rec Record) {
	l.mu.Lock()
	l.events = append(l.events, eventFrom(rec))
	l.mu.Unlock()
}

// History returns the events for one key in the order they were recorded.
func (l *MemoryEventLog) History(_ context.Context, userID, conceptID string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []Event{}
	for _, e := range l.events {
		if e.UserID == userID && e.ConceptID == conceptID {
			out = append(out, e)
		}
	}
	return out, nil
}

// PostgresEventLog inserts events into the progress_events table.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

// NewPostgresEventLog creates a PostgreSQL-backed event log.
func NewPostgresEventLog(pool *pgxpool.Pool) (*PostgresEventLog, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresEventLog{pool: pool}, nil
}

func (l *PostgresEventLog) ProgressUpdated(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO progress_events (user_id, concept_id, confidence_score, attempted_at)
		 VALUES ($1, $2, $3, $4)`,
		rec.UserID,
		rec.ConceptID,
		rec.ConfidenceScore,
		rec.LastAttempted,
	)
	if err != nil {
		slog.Warn("failed to log progress event",
			"user_id", rec.UserID,
			"concept_id", rec.ConceptID,
			"error", err,
		)
	}
}

func (l *PostgresEventLog) History(ctx context.Context, userID, conceptID string) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT user_id, concept_id, confidence_score, attempted_at
		 FROM progress_events
		 WHERE user_id = $1 AND concept_id = $2
		 ORDER BY id`,
		userID, conceptID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(&e.UserID, &e.ConceptID, &e.ConfidenceScore, &e.AttemptedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan progress events: %w", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

func eventFrom(rec Record) Event {
	return Event{
		UserID:          rec.UserID,
		ConceptID:       rec.ConceptID,
		ConfidenceScore: rec.ConfidenceScore,
		AttemptedAt:     rec.LastAttempted,
	}
}
