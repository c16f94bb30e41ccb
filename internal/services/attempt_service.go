package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edulearn/quiz-service/internal/cache"
	"github.com/edulearn/quiz-service/internal/events"
	"github.com/edulearn/quiz-service/internal/grading"
	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
	"github.com/edulearn/quiz-service/internal/utils"
	"github.com/edulearn/quiz-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	authz     Authorizer
	publisher events.EventPublisher
	cache     cache.CacheService
	logger    utils.Logger
	validator *validator.Validator
}

func NewAttemptService(
	repo repositories.Repository,
	authz Authorizer,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	logger utils.Logger,
	v *validator.Validator,
) AttemptService {
	return &attemptService{
		repo:      repo,
		authz:     authz,
		publisher: publisher,
		cache:     cacheService,
		logger:    logger,
		validator: v,
	}
}

// ===== ADMISSION =====

// Begin admits a learner into a quiz: it resumes an existing in-progress
// attempt, or creates a new one subject to availability and quota policy.
// Calling it repeatedly without force_new is idempotent for a learner who
// merely reloads the page.
func (s *attemptService) Begin(ctx context.Context, req *BeginAttemptRequest, userID string) (*AttemptResponse, error) {
	s.logger.Info("Beginning quiz attempt",
		"quiz_id", req.QuizID,
		"user_id", userID,
		"force_new", req.ForceNew)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz, err := s.getQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	canAccess, err := s.authz.CanAccessQuiz(ctx, userID, quiz)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, ErrNotEnrolled
	}

	bypass, err := s.authz.CanBypassAvailability(ctx, userID, quiz)
	if err != nil {
		return nil, err
	}
	if quiz.Status != models.QuizPublished && !bypass {
		return nil, ErrQuizNotAvailable
	}

	active, err := s.repo.Attempt().GetActiveAttempt(ctx, userID, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active attempt: %w", err)
	}

	if active != nil {
		if !req.ForceNew {
			s.logger.Info("Resuming existing attempt", "attempt_id", active.ID)
			return s.buildAttemptResponse(ctx, active, quiz, AttemptModeResumed, bypass), nil
		}
		if err := s.markAbandoned(ctx, active); err != nil {
			return nil, err
		}
	}

	// Quota policy does not apply to owners and elevated roles.
	if !bypass {
		if err := s.checkAttemptQuota(ctx, quiz, userID, req.ForceNew); err != nil {
			return nil, err
		}
	}

	attempt, err := s.createAttempt(ctx, quiz, userID)
	if err != nil {
		if repositories.IsDuplicateKeyError(err) {
			// Lost the benign admission race: another request created the
			// active attempt first. Hand that one back as a resume.
			existing, lookupErr := s.repo.Attempt().GetActiveAttempt(ctx, userID, quiz.ID)
			if lookupErr == nil && existing != nil {
				s.logger.Info("Concurrent begin detected, resuming winner's attempt",
					"attempt_id", existing.ID)
				return s.buildAttemptResponse(ctx, existing, quiz, AttemptModeResumed, bypass), nil
			}
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Quiz attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"user_id", userID)

	s.publishEvent(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:      attempt.ID,
		QuizID:         quiz.ID,
		UserID:         userID,
		TotalQuestions: attempt.TotalQuestions,
		StartedAt:      attempt.StartedAt,
	}))

	return s.buildAttemptResponse(ctx, attempt, quiz, AttemptModeCreated, bypass), nil
}

// Resume returns the caller's in-progress attempt unchanged. Its existence is
// what makes repeated begin calls safe for clients that went offline.
func (s *attemptService) Resume(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	bypass, err := s.authz.CanBypassAvailability(ctx, userID, quiz)
	if err != nil {
		return nil, err
	}

	return s.buildAttemptResponse(ctx, attempt, quiz, AttemptModeResumed, bypass), nil
}

// Abandon transitions an in-progress attempt to abandoned. Abandoning an
// already-terminal attempt is a no-op, so retries are harmless.
func (s *attemptService) Abandon(ctx context.Context, attemptID uint, userID string) error {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil
	}

	return s.markAbandoned(ctx, attempt)
}

// ===== PROGRESS =====

// SaveProgress merges a partial update into the attempt's durable snapshot.
func (s *attemptService) SaveProgress(ctx context.Context, attemptID uint, req *SaveProgressRequest, userID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	snapshot, err := attempt.ProgressSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}

	merged := mergeProgress(snapshot, req, time.Now())
	if err := attempt.SetProgressSnapshot(merged); err != nil {
		return nil, fmt.Errorf("failed to encode progress: %w", err)
	}
	projectProgress(attempt, merged, req.RemainingTimeSeconds)

	if err := s.repo.Attempt().Update(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	s.logger.Debug("Progress saved",
		"attempt_id", attempt.ID,
		"answered", merged.AnsweredQuestions,
		"completion", merged.CompletionPercentage)

	return &AttemptResponse{QuizAttempt: attempt}, nil
}

// ===== SUBMISSION =====

// Submit grades the attempt and finalizes it inside one transaction: old
// answer rows are deleted, normalized rows inserted and the attempt row
// completed together, or not at all.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, userID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting quiz attempt",
		"attempt_id", attemptID,
		"user_id", userID,
		"answers_count", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questions := quiz.SortedQuestions()

	// Submitted answers win key-by-key over the saved snapshot, so a client
	// that saved as it went can submit a partial payload without losing
	// anything.
	snapshot, err := attempt.ProgressSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	rawAnswers := mergeSubmittedAnswers(snapshot.Answers, req.Answers)

	timeSpent := resolveTimeSpent(req.TimeSpentSeconds, attempt, time.Now())

	results := make([]grading.Result, len(questions))
	for i := range questions {
		results[i] = grading.Normalize(&questions[i], rawAnswers[questionKey(questions[i].ID)])
	}
	summary := grading.Aggregate(questions, results, quiz.NegativeMarking, quiz.NegativeMarkValue)

	rows := buildAnswerRows(attempt.ID, questions, results, timeSpent)
	finalizeAttempt(attempt, summary, rawAnswers, timeSpent, time.Now())

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		// Defensive: answer rows normally don't exist yet, but a replaced
		// submission must never leave stale rows behind.
		if err := tx.Answer().DeleteByAttempt(ctx, attempt.ID); err != nil {
			return fmt.Errorf("failed to clear previous answers: %w", err)
		}
		if err := tx.Answer().CreateBatch(ctx, rows); err != nil {
			return fmt.Errorf("failed to persist answers: %w", err)
		}
		if err := tx.Attempt().Update(ctx, attempt); err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Submit transaction failed",
			"attempt_id", attempt.ID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info("Quiz attempt submitted",
		"attempt_id", attempt.ID,
		"score", summary.FinalScore,
		"correct", summary.Correct,
		"incorrect", summary.Incorrect,
		"pending", summary.Pending)

	s.publishEvent(ctx, events.NewEvent(events.EventAttemptCompleted, events.AttemptCompletedEvent{
		AttemptID:        attempt.ID,
		QuizID:           quiz.ID,
		UserID:           userID,
		Score:            summary.FinalScore,
		EarnedPoints:     summary.EarnedPoints,
		PenaltyPoints:    summary.PenaltyPoints,
		CorrectAnswers:   summary.Correct,
		IncorrectAnswers: summary.Incorrect,
		PendingAnswers:   summary.Pending,
		TimeSpentSeconds: timeSpent,
		CompletedAt:      *attempt.CompletedAt,
	}))

	if summary.Pending > 0 {
		s.publishEvent(ctx, events.NewEvent(events.EventManualGradingRequired, events.ManualGradingRequiredEvent{
			AttemptID:      attempt.ID,
			QuizID:         quiz.ID,
			UserID:         userID,
			QuizOwnerID:    quiz.OwnerID,
			PendingAnswers: summary.Pending,
		}))
	}

	// The attempt is completed now, so option correctness may be included.
	return s.buildAttemptResponse(ctx, attempt, quiz, "", true), nil
}
