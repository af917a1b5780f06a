package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "pai_session"

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying the resolved user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFrom returns the resolved user id, or "" when the request is
// anonymous.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// TokenFromRequest reads the session token from the cookie or a bearer
// Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware resolves the session (if any) and stores the user id in the
// request context. Anonymous requests pass through; handlers decide whether
// a user is required.
func (s *Service) Middleware(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := s.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrSessionNotFound) {
					slog.Warn("session lookup failed", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
