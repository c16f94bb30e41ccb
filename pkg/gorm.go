package pkg

import (
	"fmt"

	"github.com/edulearn/quiz-service/internal/config"
	"github.com/edulearn/quiz-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Translate driver errors so unique violations surface as
		// gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates the schema plus the partial unique index that closes the
// begin-attempt race: at most one in_progress attempt per (user, quiz), with
// the second writer's duplicate-key error mapped back to the resume path.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Enrollment{},
		&models.Quiz{},
		&models.Question{},
		&models.QuestionOption{},
		&models.QuizAttempt{},
		&models.AttemptAnswer{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_in_progress
		 ON quiz_attempts (user_id, quiz_id)
		 WHERE status = 'in_progress'`,
	).Error; err != nil {
		return fmt.Errorf("failed to create in-progress attempt index: %w", err)
	}

	return nil
}
