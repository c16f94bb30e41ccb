package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// ProgressSnapshot is the durable record of in-flight position and answers
// within an attempt. It is the source of truth: the denormalized columns on
// QuizAttempt are a projection of this snapshot, recomputed on every write.
//
// Answers is sparse, keyed by question id as a string. A missing key means
// unanswered; an explicit null or empty string means explicitly cleared (both
// are treated as unanswered for scoring).
type ProgressSnapshot struct {
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	AnsweredQuestions    int            `json:"answeredQuestions"`
	Answers              map[string]any `json:"answers"`
	TimeSpent            int            `json:"timeSpent"`
	LastActivityAt       *time.Time     `json:"lastActivityAt"`
	CompletionPercentage float64        `json:"completionPercentage"`
}

// NewProgressSnapshot returns an empty snapshot for a freshly created attempt.
func NewProgressSnapshot(totalQuestions int) ProgressSnapshot {
	return ProgressSnapshot{
		TotalQuestions: totalQuestions,
		Answers:        map[string]any{},
	}
}

type QuizAttempt struct {
	ID     uint          `json:"id" gorm:"primaryKey"`
	UserID string        `json:"user_id" gorm:"not null;index;size:255"`
	QuizID uint          `json:"quiz_id" gorm:"not null;index"`
	Status AttemptStatus `json:"status" gorm:"default:in_progress;index" validate:"omitempty,attempt_status"`

	// Denormalized projection of Progress, kept for querying. TotalQuestions
	// is frozen at creation and never recomputed, even if the quiz is edited
	// while the attempt is open.
	CurrentQuestionIndex int  `json:"current_question_index"`
	TotalQuestions       int  `json:"total_questions" gorm:"not null"`
	TimeSpentSeconds     int  `json:"time_spent_seconds"`
	RemainingTimeSeconds *int `json:"remaining_time_seconds"`

	// Result fields, populated only at completion.
	Score            *float64 `json:"score" gorm:"type:decimal(5,2)"`
	MaxScore         int      `json:"max_score"`
	EarnedPoints     int      `json:"earned_points"`
	PenaltyPoints    float64  `json:"penalty_points" gorm:"type:decimal(8,2)"`
	CorrectAnswers   int      `json:"correct_answers"`
	IncorrectAnswers int      `json:"incorrect_answers"`
	PendingAnswers   int      `json:"pending_answers"`

	Progress datatypes.JSON `json:"progress" gorm:"type:jsonb"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Quiz    Quiz            `json:"-" gorm:"foreignKey:QuizID"`
	Answers []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// ProgressSnapshot decodes the stored progress document. An attempt written
// before any progress save decodes to an empty snapshot.
func (a *QuizAttempt) ProgressSnapshot() (ProgressSnapshot, error) {
	snapshot := NewProgressSnapshot(a.TotalQuestions)
	if len(a.Progress) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(a.Progress, &snapshot); err != nil {
		return ProgressSnapshot{}, err
	}
	if snapshot.Answers == nil {
		snapshot.Answers = map[string]any{}
	}
	return snapshot, nil
}

// SetProgressSnapshot encodes the snapshot back onto the jsonb column.
func (a *QuizAttempt) SetProgressSnapshot(snapshot ProgressSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	a.Progress = datatypes.JSON(raw)
	return nil
}

// AttemptAnswer is the immutable grading record: one row per question per
// attempt, created only at submission. Rows are wholly replaced on submit,
// never updated in place.
type AttemptAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`

	// Single-select mcq stores the resolved option id here; every other shape
	// (multi-select id arrays, true/false literals, free text) lands in
	// AnswerText.
	SelectedOptionID *uint   `json:"selected_option_id"`
	AnswerText       *string `json:"answer_text" gorm:"type:text"`

	IsCorrect        bool `json:"is_correct"`
	TimeSpentSeconds int  `json:"time_spent_seconds"`

	CreatedAt time.Time `json:"created_at"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
