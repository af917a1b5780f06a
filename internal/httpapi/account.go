package httpapi

import (
	"errors"
	"net/http"

	"github.com/p-n-ai/pai-progress/internal/auth"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	Message string    `json:"message,omitempty"`
	User    auth.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := credentialsSchema.decode(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := s.auth.Signup(r.Context(), c.Email, c.Password, c.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, userResponse{Message: "Signup successful", User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := credentialsSchema.decode(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := s.auth.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, userResponse{Message: "Login successful", User: u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r, s.cookieName); token != "" {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	u, err := s.auth.User(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
