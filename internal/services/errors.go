package services

import (
	"errors"
	"fmt"

	apperrors "github.com/edulearn/quiz-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthenticated  = errors.New("unauthenticated - no valid principal")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Quiz
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotAvailable = errors.New("quiz is not available for attempts")

	// Attempt
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptNotActive     = errors.New("attempt is not in progress")
	ErrAttemptQuotaExceeded = errors.New("maximum attempts reached for this quiz")
	ErrNotEnrolled          = errors.New("not enrolled in this quiz")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// PermissionError carries who tried to do what to which resource. It
// classifies as Forbidden.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// ===== ERROR CLASSIFIERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrQuizNotAvailable) ||
		errors.Is(err, ErrNotEnrolled) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsInvalidState reports operations applied to an attempt in the wrong
// status, e.g. submitting a completed attempt.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrAttemptNotActive)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrAttemptQuotaExceeded)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *ValidationError
	return errors.As(err, &single)
}
