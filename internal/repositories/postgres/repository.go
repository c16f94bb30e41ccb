package postgres

import (
	"context"

	"github.com/edulearn/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type gormRepository struct {
	db          *gorm.DB
	quizzes     repositories.QuizRepository
	attempts    repositories.AttemptRepository
	answers     repositories.AnswerRepository
	users       repositories.UserRepository
	enrollments repositories.EnrollmentRepository
}

// NewRepository wires the PostgreSQL-backed repositories around one gorm DB.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &gormRepository{
		db:          db,
		quizzes:     NewQuizPostgreSQL(db),
		attempts:    NewAttemptPostgreSQL(db),
		answers:     NewAnswerPostgreSQL(db),
		users:       NewUserPostgreSQL(db),
		enrollments: NewEnrollmentPostgreSQL(db),
	}
}

func (r *gormRepository) Quiz() repositories.QuizRepository             { return r.quizzes }
func (r *gormRepository) Attempt() repositories.AttemptRepository       { return r.attempts }
func (r *gormRepository) Answer() repositories.AnswerRepository         { return r.answers }
func (r *gormRepository) User() repositories.UserRepository             { return r.users }
func (r *gormRepository) Enrollment() repositories.EnrollmentRepository { return r.enrollments }

func (r *gormRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
