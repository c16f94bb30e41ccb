package postgres

import (
	"context"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, answers []*models.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).Create(answers).Error
}

func (a *AnswerPostgreSQL) DeleteByAttempt(ctx context.Context, attemptID uint) error {
	return a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Delete(&models.AttemptAnswer{}).Error
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error) {
	var answers []*models.AttemptAnswer
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
