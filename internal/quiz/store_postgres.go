package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Concepts and questions are
// kept as JSONB arrays on the history row so their order is preserved.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed quiz history store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const historyColumns = `id::text, user_id, concepts, questions, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, h History) (History, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if h.UserID == "" {
		return History{}, fmt.Errorf("user_id is required")
	}

	concepts, err := json.Marshal(nonNil(h.Concepts))
	if err != nil {
		return History{}, fmt.Errorf("marshal concepts: %w", err)
	}
	questions, err := json.Marshal(nonNil(h.Questions))
	if err != nil {
		return History{}, fmt.Errorf("marshal questions: %w", err)
	}

	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_histories (user_id, concepts, questions, created_at)
		 VALUES ($1, $2::jsonb, $3::jsonb, $4)
		 RETURNING `+historyColumns,
		h.UserID,
		string(concepts),
		string(questions),
		createdAt,
	)
	saved, err := scanHistory(row)
	if err != nil {
		return History{}, fmt.Errorf("insert quiz history: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (History, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return History{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	h, err := scanHistory(s.pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM quiz_histories WHERE id = $1::uuid`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return History{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return History{}, fmt.Errorf("get quiz history: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]History, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+historyColumns+`
		 FROM quiz_histories
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query quiz histories: %w", err)
	}
	return collectHistories(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context, limit, offset int) ([]History, int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_histories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quiz histories: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+historyColumns+`
		 FROM quiz_histories
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		nullIfZero(limit),
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query quiz histories: %w", err)
	}
	hs, err := collectHistories(rows)
	if err != nil {
		return nil, 0, err
	}
	return hs, total, nil
}

func (s *PostgresStore) UserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM quiz_histories ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query quiz history users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect quiz history users: %w", err)
	}
	return ids, nil
}

func collectHistories(rows pgx.Rows) ([]History, error) {
	defer rows.Close()

	out := []History{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz histories: %w", err)
	}
	return out, nil
}

func scanHistory(row pgx.Row) (History, error) {
	var h History
	var concepts, questions []byte
	if err := row.Scan(&h.ID, &h.UserID, &concepts, &questions, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return History{}, err
	}
	if err := json.Unmarshal(concepts, &h.Concepts); err != nil {
		return History{}, fmt.Errorf("decode concepts: %w", err)
	}
	if err := json.Unmarshal(questions, &h.Questions); err != nil {
		return History{}, fmt.Errorf("decode questions: %w", err)
	}
	return h, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// nullIfZero turns a zero limit into NULL, which PostgreSQL treats as
// LIMIT ALL.
func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
