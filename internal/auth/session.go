package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore maps opaque tokens to user ids.
type SessionStore interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. Expired sessions are
// swept whenever a new one is created.
type MemorySessionStore struct {
	sessions map[string]memorySession
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = memorySession{userID: userID, expiresAt: now.Add(ttl)}
	return token, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, token)
		return "", ErrSessionNotFound
	}
	return sess.userID, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// RedisSessionStore keeps sessions in Redis/Dragonfly with a TTL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (s *RedisSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	return userID, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return "session:" + token
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
