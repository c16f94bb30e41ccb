package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/edulearn/quiz-service/internal/errors"
	"github.com/edulearn/quiz-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground struct validation with the custom rules this
// service needs for attempt payloads.
type Validator struct {
	validate *validator.Validate
}

// New creates the validator and registers the custom rules once.
func New() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)

	// Report errors against json field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: validate}
}

// Validate runs struct-tag validation and converts failures to the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return apperrors.ToValidationErrors(err)
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("attempt_status", validateAttemptStatus)
	validate.RegisterValidation("quiz_status", validateQuizStatus)
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.QuestionMCQ, models.QuestionTrueFalse, models.QuestionShortDesc:
		return true
	}
	return false
}

func validateAttemptStatus(fl validator.FieldLevel) bool {
	switch models.AttemptStatus(fl.Field().String()) {
	case models.AttemptInProgress, models.AttemptCompleted, models.AttemptAbandoned:
		return true
	}
	return false
}

func validateQuizStatus(fl validator.FieldLevel) bool {
	switch models.QuizStatus(fl.Field().String()) {
	case models.QuizDraft, models.QuizPublished, models.QuizArchived:
		return true
	}
	return false
}
