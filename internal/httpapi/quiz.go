package httpapi

import (
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/quiz"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type quizRequest struct {
	Concepts  []quiz.Concept  `json:"concepts"`
	Questions []quiz.Question `json:"questions"`
}

type quizSavedResponse struct {
	Message     string               `json:"message"`
	QuizHistory quiz.History         `json:"quizHistory"`
	Progress    progress.BatchResult `json:"progress"`
}

type quizListResponse struct {
	Message       string         `json:"message"`
	Count         int            `json:"count"`
	TotalCount    *int           `json:"totalCount,omitempty"`
	QuizHistories []quiz.History `json:"quizHistories"`
}

type quizResponse struct {
	Message     string       `json:"message"`
	QuizHistory quiz.History `json:"quizHistory"`
}

type backfillResponse struct {
	Message string `json:"message"`
	quiz.BackfillResult
}

func (s *Server) handleQuizSave(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var req quizRequest
	if err := quizHistorySchema.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	saved, res, err := s.quizzes.Save(r.Context(), userID, quiz.History{
		Concepts:  req.Concepts,
		Questions: req.Questions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, quizSavedResponse{
		Message:     "Quiz history saved successfully",
		QuizHistory: saved,
		Progress:    res,
	})
}

func (s *Server) handleQuizList(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	hs, err := s.quizzes.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hs == nil {
		hs = []quiz.History{}
	}
	writeJSON(w, http.StatusOK, quizListResponse{
		Message:       "Quiz histories retrieved successfully",
		Count:         len(hs),
		QuizHistories: hs,
	})
}

func (s *Server) handleQuizGet(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	h, err := s.quizzes.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizResponse{
		Message:     "Quiz history retrieved successfully",
		QuizHistory: h,
	})
}

func (s *Server) handleQuizListAll(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == "" {
		return
	}

	limit, ok := queryInt(r, "limit", defaultPageLimit)
	if !ok || limit < 0 {
		writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	limit = min(limit, maxPageLimit)
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeMessage(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	hs, total, err := s.quizzes.ListAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hs == nil {
		hs = []quiz.History{}
	}
	writeJSON(w, http.StatusOK, quizListResponse{
		Message:       "All quiz histories retrieved successfully",
		Count:         len(hs),
		TotalCount:    &total,
		QuizHistories: hs,
	})
}

func (s *Server) handleQuizBackfill(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	res, err := s.quizzes.BackfillUntracked(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backfillResponse{
		Message:        "Quiz history processed successfully",
		BackfillResult: res,
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
