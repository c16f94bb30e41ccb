package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"github.com/edulearn/quiz-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

type exportService struct {
	repo   repositories.Repository
	authz  Authorizer
	logger utils.Logger
}

func NewExportService(repo repositories.Repository, authz Authorizer, logger utils.Logger) ExportService {
	return &exportService{repo: repo, authz: authz, logger: logger}
}

var exportHeaders = []string{
	"Attempt ID", "User ID", "Status", "Score", "Max Score", "Earned Points",
	"Penalty Points", "Correct", "Incorrect", "Pending", "Time Spent (s)",
	"Started At", "Completed At",
}

// ExportQuizAttempts renders a quiz's attempts as a spreadsheet for the quiz
// owner. Returns the file contents and a suggested filename.
func (s *exportService) ExportQuizAttempts(ctx context.Context, quizID uint, format ExportFormat, userID string) ([]byte, string, error) {
	s.logger.Info("Exporting quiz attempts",
		"quiz_id", quizID,
		"format", format,
		"user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrQuizNotFound
		}
		return nil, "", fmt.Errorf("failed to get quiz: %w", err)
	}

	canExport, err := s.authz.CanBypassAvailability(ctx, userID, quiz)
	if err != nil {
		return nil, "", err
	}
	if !canExport {
		return nil, "", NewPermissionError(userID, quizID, "quiz", "export_attempts", "not owner or insufficient permissions")
	}

	attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
		QuizID:    &quizID,
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list attempts: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	switch format {
	case ExportFormatCSV:
		data, err := renderAttemptsCSV(attempts)
		if err != nil {
			return nil, "", err
		}
		return data, fmt.Sprintf("quiz-%d-attempts-%s.csv", quizID, stamp), nil
	case ExportFormatXLSX, "":
		data, err := renderAttemptsExcel(attempts)
		if err != nil {
			return nil, "", err
		}
		return data, fmt.Sprintf("quiz-%d-attempts-%s.xlsx", quizID, stamp), nil
	default:
		return nil, "", NewValidationError("format", "unsupported export format", string(format))
	}
}

func attemptRow(attempt *models.QuizAttempt) []string {
	score := ""
	if attempt.Score != nil {
		score = strconv.FormatFloat(*attempt.Score, 'f', 2, 64)
	}
	completedAt := ""
	if attempt.CompletedAt != nil {
		completedAt = attempt.CompletedAt.Format(time.RFC3339)
	}

	return []string{
		strconv.FormatUint(uint64(attempt.ID), 10),
		attempt.UserID,
		string(attempt.Status),
		score,
		strconv.Itoa(attempt.MaxScore),
		strconv.Itoa(attempt.EarnedPoints),
		strconv.FormatFloat(attempt.PenaltyPoints, 'f', 2, 64),
		strconv.Itoa(attempt.CorrectAnswers),
		strconv.Itoa(attempt.IncorrectAnswers),
		strconv.Itoa(attempt.PendingAnswers),
		strconv.Itoa(attempt.TimeSpentSeconds),
		attempt.StartedAt.Format(time.RFC3339),
		completedAt,
	}
}

func renderAttemptsCSV(attempts []*models.QuizAttempt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, attempt := range attempts {
		if err := writer.Write(attemptRow(attempt)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderAttemptsExcel(attempts []*models.QuizAttempt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attempts"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIndex, attempt := range attempts {
		for col, value := range attemptRow(attempt) {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIndex+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
