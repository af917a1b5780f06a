// Package quiz stores completed quizzes and turns their answers into
// concept progress updates, both live and when backfilling history.
package quiz

import (
	"errors"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

// ErrNotFound is returned when a quiz history does not exist.
var ErrNotFound = errors.New("quiz history not found")

// Concept names the concept a question exercises.
type Concept struct {
	ConceptID string `json:"conceptID"`
	Name      string `json:"name"`
}

// Question is one answered quiz question.
type Question struct {
	QuestionText  string    `json:"questionText"`
	UserAnswer    string    `json:"userAnswer"`
	CorrectAnswer string    `json:"correctAnswer"`
	Explanation   string    `json:"explanation"`
	Timestamp     time.Time `json:"timestamp"`
}

// History is a completed quiz. Questions[i] exercises Concepts[i].
type History struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userID"`
	Concepts  []Concept  `json:"concepts"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Outcomes grades every question in stored order. Questions with no paired
// concept keep an empty concept id so the updater rejects and counts them.
// Quiz answers are never retries.
func (h History) Outcomes() []progress.TimedOutcome {
	out := make([]progress.TimedOutcome, 0, len(h.Questions))
	for i, q := range h.Questions {
		var conceptID string
		if i < len(h.Concepts) {
			conceptID = h.Concepts[i].ConceptID
		}

		at := q.Timestamp
		if at.IsZero() {
			at = h.CreatedAt
		}

		out = append(out, progress.TimedOutcome{
			Outcome: progress.Outcome{
				ConceptID: conceptID,
				Correct:   IsCorrect(q.UserAnswer, q.CorrectAnswer),
			},
			At: at,
		})
	}
	return out
}
