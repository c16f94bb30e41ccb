package models

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizPublished QuizStatus = "published"
	QuizArchived  QuizStatus = "archived"
)

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionShortDesc QuestionType = "short_desc"
)

// Quiz is read-only to this service: quizzes and their questions are authored
// by the content service, the attempt engine only consumes them.
type Quiz struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text"`
	Status      QuizStatus `json:"status" gorm:"default:draft;index" validate:"omitempty,quiz_status"`
	OwnerID     string     `json:"owner_id" gorm:"not null;index;size:255"`

	// Attempt policy
	TimerSeconds          *int `json:"timer_seconds"`
	AllowMultipleAttempts bool `json:"allow_multiple_attempts" gorm:"default:false"`
	MaxAttempts           *int `json:"max_attempts" validate:"omitempty,min=1"`

	// Negative marking: penalty per wrong auto-graded answer. Reported
	// separately from the headline score, never subtracted from it.
	NegativeMarking   bool    `json:"negative_marking" gorm:"default:false"`
	NegativeMarkValue float64 `json:"negative_mark_value" gorm:"type:decimal(6,2);default:0" validate:"min=0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// SortedQuestions returns the quiz's questions in order_index order. Question
// order is stable and defines each question's position within an attempt.
func (q *Quiz) SortedQuestions() []Question {
	questions := make([]Question, len(q.Questions))
	copy(questions, q.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})
	return questions
}

type Question struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	QuizID     uint         `json:"quiz_id" gorm:"not null;index"`
	Type       QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Text       string       `json:"text" gorm:"not null;type:text" validate:"required"`
	OrderIndex int          `json:"order_index" gorm:"not null;index"`
	Points     int          `json:"points" gorm:"default:1" validate:"min=1"`

	// MCQ only
	MultipleCorrect bool `json:"multiple_correct" gorm:"default:false"`

	// true_false only
	CorrectBoolean *bool `json:"correct_boolean"`

	// Always true for short_desc; answers stay pending until a human grades them.
	RequiresManualGrading bool `json:"requires_manual_grading" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []QuestionOption `json:"options" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// SortedOptions returns the question's options by order_index. Client payloads
// reference options by position in this order, not by option id.
func (q *Question) SortedOptions() []QuestionOption {
	options := make([]QuestionOption, len(q.Options))
	copy(options, q.Options)
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].OrderIndex < options[j].OrderIndex
	})
	return options
}

// IsManuallyGraded reports whether the question can never be auto-scored.
func (q *Question) IsManuallyGraded() bool {
	return q.RequiresManualGrading || q.Type == QuestionShortDesc
}

type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null;type:text"`
	OrderIndex int    `json:"order_index" gorm:"not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
