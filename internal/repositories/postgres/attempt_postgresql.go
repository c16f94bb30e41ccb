package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).
		Preload("Answers").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	return a.db.WithContext(ctx).Save(attempt).Error
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByStatus(ctx context.Context, userID string, quizID uint, status models.AttemptStatus) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	var attempts []*models.QuizAttempt
	var total int64

	query := a.db.WithContext(ctx).Model(&models.QuizAttempt{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.applyPaginationAndSort(query, filters)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, userID string, quizID *uint) (*repositories.AttemptStats, error) {
	base := a.db.WithContext(ctx).Model(&models.QuizAttempt{}).Where("user_id = ?", userID)
	if quizID != nil {
		base = base.Where("quiz_id = ?", *quizID)
	}

	stats := &repositories.AttemptStats{}

	type statusCount struct {
		Status models.AttemptStatus
		Count  int64
	}
	var byStatus []statusCount
	if err := base.Session(&gorm.Session{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, sc := range byStatus {
		stats.TotalAttempts += sc.Count
		switch sc.Status {
		case models.AttemptCompleted:
			stats.CompletedAttempts = sc.Count
		case models.AttemptInProgress:
			stats.InProgressAttempts = sc.Count
		case models.AttemptAbandoned:
			stats.AbandonedAttempts = sc.Count
		}
	}

	type scoreAgg struct {
		AvgScore       *float64
		BestScore      *float64
		TotalTime      int64
		PendingAnswers int64
	}
	var agg scoreAgg
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.AttemptCompleted).
		Select("avg(score) as avg_score, max(score) as best_score, coalesce(sum(time_spent_seconds),0) as total_time, coalesce(sum(pending_answers),0) as pending_answers").
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	stats.AverageScore = agg.AvgScore
	stats.BestScore = agg.BestScore
	stats.TotalTimeSpent = agg.TotalTime
	stats.PendingAnswers = agg.PendingAnswers

	return stats, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.QuizID != nil {
		query = query.Where("quiz_id = ?", *filters.QuizID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return query
}

func (a *AttemptPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "started_at", "completed_at", "score":
	default:
		sortBy = "started_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
