package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-progress/internal/auth"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps service errors onto HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.msg)
	case errors.Is(err, progress.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, progress.ErrInvalidArgument):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, quiz.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Quiz history not found")
	case errors.Is(err, quiz.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, quiz.ErrAlreadyTracked):
		writeMessage(w, http.StatusConflict, "Progress already exists for this user")
	case errors.Is(err, auth.ErrInvalidLogin):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrEmailTaken):
		writeMessage(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, auth.ErrInvalidSignupArg):
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeMessage(w, http.StatusBadRequest, "Password must be at most 72 bytes")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireUser returns the resolved caller, or writes 401 and returns "".
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := auth.UserIDFrom(r.Context())
	if userID == "" {
		writeError(w, r, progress.ErrUnauthorized)
	}
	return userID
}
