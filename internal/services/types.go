package services

import (
	"context"
	"time"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
)

// AttemptMode tags whether begin-attempt created a new attempt or handed back
// an existing one.
type AttemptMode string

const (
	AttemptModeCreated AttemptMode = "created"
	AttemptModeResumed AttemptMode = "resumed"
)

// AttemptService is the lifecycle manager plus progress tracking: admission,
// resume, abandon, progress saves and the grading transaction at submit.
type AttemptService interface {
	Begin(ctx context.Context, req *BeginAttemptRequest, userID string) (*AttemptResponse, error)
	Resume(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	Abandon(ctx context.Context, attemptID uint, userID string) error
	SaveProgress(ctx context.Context, attemptID uint, req *SaveProgressRequest, userID string) (*AttemptResponse, error)
	Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, userID string) (*AttemptResponse, error)

	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error)
	GetStats(ctx context.Context, userID string, quizID *uint) (*repositories.AttemptStats, error)
}

// Authorizer is the external authorization collaborator: enrollment and role
// logic live behind it, the attempt engine only consumes decisions.
type Authorizer interface {
	CanAccessQuiz(ctx context.Context, userID string, quiz *models.Quiz) (bool, error)
	// CanBypassAvailability is true for the quiz owner and elevated roles;
	// it also skips the attempt-quota policy.
	CanBypassAvailability(ctx context.Context, userID string, quiz *models.Quiz) (bool, error)
}

// ===== REQUESTS =====

type BeginAttemptRequest struct {
	QuizID   uint `json:"quiz_id" validate:"required,min=1"`
	ForceNew bool `json:"force_new"`
}

// SaveProgressRequest carries a partial update; nil fields leave the stored
// value untouched. There is deliberately no sequence number: reordered
// retries must stay harmless, so the answer merge is commutative per key.
type SaveProgressRequest struct {
	CurrentQuestionIndex *int           `json:"current_question_index" validate:"omitempty,min=0"`
	TimeSpentSeconds     *int           `json:"time_spent_seconds" validate:"omitempty,min=0"`
	RemainingTimeSeconds *int           `json:"remaining_time_seconds" validate:"omitempty,min=0"`
	Answers              map[string]any `json:"answers"`
}

type SubmitAttemptRequest struct {
	Answers          map[string]any `json:"answers" validate:"required"`
	TimeSpentSeconds *int           `json:"time_spent_seconds" validate:"omitempty,min=0"`
}

// ===== RESPONSES =====

// AttemptResults is the results block attached once an attempt completes.
type AttemptResults struct {
	Score                float64 `json:"score"`
	MaxScore             int     `json:"max_score"`
	EarnedPoints         int     `json:"earned_points"`
	PenaltyPoints        float64 `json:"penalty_points"`
	CorrectAnswers       int     `json:"correct_answers"`
	IncorrectAnswers     int     `json:"incorrect_answers"`
	PendingAnswers       int     `json:"pending_answers"`
	CompletionPercentage float64 `json:"completion_percentage"`
	TimeSpent            int     `json:"time_spent"`
}

// QuestionForAttempt is the question payload needed to render the next
// screen. Option correctness is stripped for in-progress learners.
type QuestionForAttempt struct {
	ID                    uint                `json:"id"`
	Type                  models.QuestionType `json:"type"`
	Text                  string              `json:"text"`
	OrderIndex            int                 `json:"order_index"`
	Points                int                 `json:"points"`
	MultipleCorrect       bool                `json:"multiple_correct"`
	RequiresManualGrading bool                `json:"requires_manual_grading"`
	Options               []OptionForAttempt  `json:"options,omitempty"`
}

type OptionForAttempt struct {
	ID         uint   `json:"id"`
	Text       string `json:"text"`
	OrderIndex int    `json:"order_index"`
	// Included only once the attempt is completed or the caller can bypass
	// availability; never leaked to an in-progress learner.
	IsCorrect *bool `json:"is_correct,omitempty"`
}

type AttemptResponse struct {
	*models.QuizAttempt

	Mode      AttemptMode          `json:"mode,omitempty"`
	Results   *AttemptResults      `json:"results,omitempty"`
	Questions []QuestionForAttempt `json:"questions,omitempty"`
}

// ===== EXPORT =====

type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
)

// ExportService produces per-quiz attempt result files for quiz owners.
type ExportService interface {
	ExportQuizAttempts(ctx context.Context, quizID uint, format ExportFormat, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

// ServiceManager bundles the services the handler layer consumes.
type ServiceManager interface {
	Attempt() AttemptService
	Export() ExportService
}

type serviceManager struct {
	attempt AttemptService
	export  ExportService
}

func NewServiceManager(attempt AttemptService, export ExportService) ServiceManager {
	return &serviceManager{attempt: attempt, export: export}
}

func (m *serviceManager) Attempt() AttemptService { return m.attempt }
func (m *serviceManager) Export() ExportService   { return m.export }

func timePtr(t time.Time) *time.Time {
	return &t
}
