package repositories

import (
	"context"
	"errors"

	"github.com/edulearn/quiz-service/internal/models"
	"gorm.io/gorm"
)

// Repository aggregates the per-entity repositories and owns the transaction
// boundary. WithTransaction runs fn against a Repository bound to one store
// transaction; fn returning an error rolls everything back.
type Repository interface {
	Quiz() QuizRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	User() UserRepository
	Enrollment() EnrollmentRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
}

// QuizRepository reads quiz definitions. Quizzes are owned by the content
// service; this side never mutates them.
type QuizRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, attempt *models.QuizAttempt) error

	// GetActiveAttempt returns the in_progress attempt for (user, quiz), or
	// nil when none exists.
	GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error)
	CountByStatus(ctx context.Context, userID string, quizID uint, status models.AttemptStatus) (int64, error)

	List(ctx context.Context, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetStats(ctx context.Context, userID string, quizID *uint) (*AttemptStats, error)
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, answers []*models.AttemptAnswer) error
	DeleteByAttempt(ctx context.Context, attemptID uint) error
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type EnrollmentRepository interface {
	HasActiveEnrollment(ctx context.Context, userID string, quizID uint) (bool, error)
}

// ===== FILTERS AND AGGREGATES =====

type AttemptFilters struct {
	UserID    *string               `json:"user_id"`
	QuizID    *uint                 `json:"quiz_id"`
	Status    *models.AttemptStatus `json:"status"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "started_at", "completed_at", "score"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

type AttemptStats struct {
	TotalAttempts      int64    `json:"total_attempts"`
	CompletedAttempts  int64    `json:"completed_attempts"`
	InProgressAttempts int64    `json:"in_progress_attempts"`
	AbandonedAttempts  int64    `json:"abandoned_attempts"`
	AverageScore       *float64 `json:"average_score"`
	BestScore          *float64 `json:"best_score"`
	TotalTimeSpent     int64    `json:"total_time_spent"`
	PendingAnswers     int64    `json:"pending_answers"`
}

// ===== ERROR CLASSIFIERS =====

func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports a uniqueness violation. The partial unique index
// on in_progress attempts surfaces the begin-attempt race through this.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
