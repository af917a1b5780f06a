// Package progress tracks how confident the system is that a learner has
// mastered each concept.
//
// Every attempt at a concept nudges a score in [0, 1]: a correct first try
// adds 0.10, a correct retry adds 0.05 and a wrong answer subtracts 0.10.
// Records are created lazily at 0.5 on the first attempt.
//
// ApplyOutcome is not idempotent. Reapplying the same outcome applies the
// delta twice, so callers must track what they already submitted before
// retrying after an ambiguous failure.
package progress

import (
	"errors"
	"math"
	"time"
)

const (
	InitialScore = 0.5
	MinScore     = 0.0
	MaxScore     = 1.0

	CorrectDelta   = 0.10
	RetryDelta     = 0.05
	IncorrectDelta = -0.10
)

var (
	// ErrUnauthorized means no resolved learner id was supplied.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument means the outcome is malformed (e.g. no concept id).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPersistence means the store failed to read or write a record.
	ErrPersistence = errors.New("persistence failure")
)

// Record is the confidence state for one (user, concept) pair.
type Record struct {
	UserID          string    `json:"user"`
	ConceptID       string    `json:"conceptId"`
	ConfidenceScore float64   `json:"confidenceScore"`
	LastAttempted   time.Time `json:"lastAttempted"`
}

// Outcome is a single graded answer.
type Outcome struct {
	ConceptID string `json:"conceptId"`
	Correct   bool   `json:"isCorrect"`
	Retry     bool   `json:"isRetry"`
}

// TimedOutcome is an outcome with the time it happened. A zero At means now.
type TimedOutcome struct {
	Outcome
	At time.Time
}

// Delta returns the score change for an answer.
func Delta(correct, retry bool) float64 {
	switch {
	case correct && retry:
		return RetryDelta
	case correct:
		return CorrectDelta
	default:
		return IncorrectDelta
	}
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, score))
}

// Band buckets a score for display.
func Band(score float64) string {
	switch {
	case score >= 0.8:
		return "mastered"
	case score >= 0.6:
		return "confident"
	case score >= 0.4:
		return "learning"
	default:
		return "struggling"
	}
}
