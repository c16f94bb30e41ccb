package events

import (
	"time"
)

// EventType identifies the attempt lifecycle events this service emits.
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptCompleted EventType = "attempt.completed"
	EventAttemptAbandoned EventType = "attempt.abandoned"

	// Emitted when a completed attempt still has manually-graded answers.
	EventManualGradingRequired EventType = "grading.manual_required"
)

// Event is the envelope shared by all attempt events.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptStartedEvent struct {
	AttemptID      uint      `json:"attempt_id"`
	QuizID         uint      `json:"quiz_id"`
	UserID         string    `json:"user_id"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
}

type AttemptCompletedEvent struct {
	AttemptID        uint      `json:"attempt_id"`
	QuizID           uint      `json:"quiz_id"`
	UserID           string    `json:"user_id"`
	Score            float64   `json:"score"`
	EarnedPoints     int       `json:"earned_points"`
	PenaltyPoints    float64   `json:"penalty_points"`
	CorrectAnswers   int       `json:"correct_answers"`
	IncorrectAnswers int       `json:"incorrect_answers"`
	PendingAnswers   int       `json:"pending_answers"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

type AttemptAbandonedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	QuizID      uint      `json:"quiz_id"`
	UserID      string    `json:"user_id"`
	AbandonedAt time.Time `json:"abandoned_at"`
}

type ManualGradingRequiredEvent struct {
	AttemptID      uint   `json:"attempt_id"`
	QuizID         uint   `json:"quiz_id"`
	UserID         string `json:"user_id"`
	QuizOwnerID    string `json:"quiz_owner_id"`
	PendingAnswers int    `json:"pending_answers"`
}
