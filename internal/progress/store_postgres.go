package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. The (user_id, concept_id)
// primary key enforces one record per pair.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Find(ctx context.Context, userID, conceptID string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := Record{UserID: userID, ConceptID: conceptID}
	err := s.pool.QueryRow(ctx,
		`SELECT confidence_score, last_attempted
		 FROM concept_progress
		 WHERE user_id = $1 AND concept_id = $2`,
		userID,
		conceptID,
	).Scan(&rec.ConfidenceScore, &rec.LastAttempted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get concept progress: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if rec.UserID == "" || rec.ConceptID == "" {
		return Record{}, fmt.Errorf("user_id and concept_id are required")
	}

	lastAttempted := rec.LastAttempted
	if lastAttempted.IsZero() {
		lastAttempted = time.Now()
	}

	saved := Record{UserID: rec.UserID, ConceptID: rec.ConceptID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO concept_progress (user_id, concept_id, confidence_score, last_attempted)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, concept_id) DO UPDATE
		 SET confidence_score = EXCLUDED.confidence_score,
		     last_attempted = EXCLUDED.last_attempted,
		     updated_at = NOW()
		 RETURNING confidence_score, last_attempted`,
		rec.UserID,
		rec.ConceptID,
		rec.ConfidenceScore,
		lastAttempted,
	).Scan(&saved.ConfidenceScore, &saved.LastAttempted)
	if err != nil {
		return Record{}, fmt.Errorf("upsert concept progress: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT concept_id, confidence_score, last_attempted
		 FROM concept_progress
		 WHERE user_id = $1
		 ORDER BY concept_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query concept progress: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		rec := Record{UserID: userID}
		if err := rows.Scan(&rec.ConceptID, &rec.ConfidenceScore, &rec.LastAttempted); err != nil {
			return nil, fmt.Errorf("scan concept progress: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate concept progress: %w", err)
	}
	return recs, nil
}
