// Package auth provides local email/password accounts and opaque session
// tokens. It resolves the caller's user id at the HTTP edge so the rest of
// the system receives it as an explicit argument.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSignupArg = errors.New("email and password are required")
	ErrPasswordTooLong  = errors.New("password is longer than 72 bytes")
)

// User is a registered learner.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// MemoryUserStore is an in-memory implementation of UserStore.
type MemoryUserStore struct {
	users map[string]User // by id
	mu    sync.RWMutex
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]User)}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryUserStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// PostgresUserStore is a PostgreSQL-backed UserStore.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore creates a PostgreSQL-backed user store.
func NewPostgresUserStore(pool *pgxpool.Pool) (*PostgresUserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresUserStore{pool: pool}, nil
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, u User) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name)
		 VALUES ($1, $2, $3)
		 RETURNING id::text, created_at`,
		strings.ToLower(u.Email),
		u.PasswordHash,
		nullIfEmpty(u.Name),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) GetUser(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrUserNotFound
	}
	return s.getUserByQuery(ctx, `WHERE id = $1::uuid`, id)
}

func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUserByQuery(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (s *PostgresUserStore) getUserByQuery(ctx context.Context, where string, arg any) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var u User
	var name *string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, email, password_hash, name, created_at FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if name != nil {
		u.Name = *name
	}
	return u, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
