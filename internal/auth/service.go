package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// maxPasswordBytes is the bcrypt input limit. It counts bytes, not runes.
const maxPasswordBytes = 72

// ServiceConfig holds dependencies for the auth service.
type ServiceConfig struct {
	Users      UserStore
	Sessions   SessionStore
	SessionTTL time.Duration
	BcryptCost int
}

// Service signs users up, logs them in and resolves sessions.
type Service struct {
	users      UserStore
	sessions   SessionStore
	sessionTTL time.Duration
	cost       int
}

// NewService creates an auth service. Nil stores fall back to memory.
func NewService(cfg ServiceConfig) *Service {
	users := cfg.Users
	if users == nil {
		users = NewMemoryUserStore()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, sessions: sessions, sessionTTL: ttl, cost: cost}
}

// SessionTTL returns how long new sessions live.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Signup registers a user and opens a session for them.
func (s *Service) Signup(ctx context.Context, email, password, name string) (User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, "", ErrInvalidSignupArg
	}
	if len(password) > maxPasswordBytes {
		return User{}, "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, User{Email: email, Name: name, PasswordHash: string(hash)})
	if err != nil {
		return User{}, "", err
	}

	token, err := s.sessions.Create(ctx, u.ID, s.sessionTTL)
	if err != nil {
		return User{}, "", err
	}

	slog.Info("user signed up", "user_id", u.ID)
	return u, token, nil
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, "", ErrInvalidLogin
		}
		return User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, "", ErrInvalidLogin
	}

	token, err := s.sessions.Create(ctx, u.ID, s.sessionTTL)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Logout ends a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Resolve returns the user id owning token.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	return s.sessions.Resolve(ctx, token)
}

// User returns a user by id.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.users.GetUser(ctx, id)
}
