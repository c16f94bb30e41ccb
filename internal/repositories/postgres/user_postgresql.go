package postgres

import (
	"context"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db}
}

func (e *EnrollmentPostgreSQL) HasActiveEnrollment(ctx context.Context, userID string, quizID uint) (bool, error) {
	var count int64
	if err := e.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, models.EnrollmentActive).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
