package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/edulearn/quiz-service/internal/events"
	"github.com/edulearn/quiz-service/internal/grading"
	"github.com/edulearn/quiz-service/internal/models"
	"github.com/edulearn/quiz-service/internal/repositories"
)

const quizCacheTTL = 5 * time.Minute

// ===== GET / LIST OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	bypass, err := s.authz.CanBypassAvailability(ctx, userID, quiz)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID && !bypass {
		// Reported as not-found rather than forbidden so strangers cannot
		// probe for attempt existence.
		return nil, ErrAttemptNotFound
	}

	return s.buildAttemptResponse(ctx, attempt, quiz, "", bypass), nil
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error) {
	// Non-elevated callers only ever see their own attempts.
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.Role.IsElevated() {
		filters.UserID = &userID
	}

	attempts, total, err := s.repo.Attempt().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = &AttemptResponse{QuizAttempt: attempt}
		if attempt.Status == models.AttemptCompleted {
			responses[i].Results = buildResults(attempt)
		}
	}
	return responses, total, nil
}

func (s *attemptService) GetStats(ctx context.Context, userID string, quizID *uint) (*repositories.AttemptStats, error) {
	stats, err := s.repo.Attempt().GetStats(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// ===== ADMISSION HELPERS =====

// checkAttemptQuota enforces the completed-attempt quota policy: a single
// completed attempt unless the quiz allows retakes, and the hard max_attempts
// cap when one is set.
func (s *attemptService) checkAttemptQuota(ctx context.Context, quiz *models.Quiz, userID string, forceNew bool) error {
	completed, err := s.repo.Attempt().CountByStatus(ctx, userID, quiz.ID, models.AttemptCompleted)
	if err != nil {
		return fmt.Errorf("failed to count completed attempts: %w", err)
	}

	if !quiz.AllowMultipleAttempts && completed > 0 && !forceNew {
		return ErrAttemptQuotaExceeded
	}
	if quiz.MaxAttempts != nil && completed >= int64(*quiz.MaxAttempts) {
		// The hard cap holds regardless of force_new.
		return ErrAttemptQuotaExceeded
	}
	return nil
}

func (s *attemptService) createAttempt(ctx context.Context, quiz *models.Quiz, userID string) (*models.QuizAttempt, error) {
	totalQuestions := len(quiz.Questions)

	attempt := &models.QuizAttempt{
		UserID:               userID,
		QuizID:               quiz.ID,
		Status:               models.AttemptInProgress,
		TotalQuestions:       totalQuestions,
		RemainingTimeSeconds: quiz.TimerSeconds,
		StartedAt:            time.Now(),
	}
	if err := attempt.SetProgressSnapshot(models.NewProgressSnapshot(totalQuestions)); err != nil {
		return nil, err
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *attemptService) markAbandoned(ctx context.Context, attempt *models.QuizAttempt) error {
	attempt.Status = models.AttemptAbandoned
	if err := s.repo.Attempt().Update(ctx, attempt); err != nil {
		return fmt.Errorf("failed to abandon attempt: %w", err)
	}

	s.logger.Info("Attempt abandoned", "attempt_id", attempt.ID, "user_id", attempt.UserID)

	s.publishEvent(ctx, events.NewEvent(events.EventAttemptAbandoned, events.AttemptAbandonedEvent{
		AttemptID:   attempt.ID,
		QuizID:      attempt.QuizID,
		UserID:      attempt.UserID,
		AbandonedAt: time.Now(),
	}))
	return nil
}

// getOwnedAttempt loads an attempt and verifies ownership. A foreign attempt
// is reported as not-found, deliberately, to avoid leaking existence.
func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID string) (*models.QuizAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

// getQuiz loads the quiz with its questions and options, read-through the
// redis cache. The definition is treated as immutable for one request.
func (s *attemptService) getQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	key := quizCacheKey(quizID)

	var cached models.Quiz
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.cache.Set(ctx, key, quiz, quizCacheTTL); err != nil {
		s.logger.Debug("quiz cache population failed", "quiz_id", quizID, "error", err)
	}
	return quiz, nil
}

func quizCacheKey(quizID uint) string {
	return "quiz:" + strconv.FormatUint(uint64(quizID), 10)
}

// ===== SUBMISSION HELPERS =====

func questionKey(questionID uint) string {
	return strconv.FormatUint(uint64(questionID), 10)
}

// mergeSubmittedAnswers overlays the submitted payload onto the saved
// snapshot answers, submitted keys winning. An explicit null in the payload
// still overwrites, which is how a client clears a saved answer at submit.
func mergeSubmittedAnswers(saved, submitted map[string]any) map[string]any {
	merged := make(map[string]any, len(saved)+len(submitted))
	for k, v := range saved {
		merged[k] = v
	}
	for k, v := range submitted {
		merged[k] = v
	}
	return merged
}

// resolveTimeSpent applies the resolution chain for elapsed time: the
// caller's explicit value, then the last saved value, then wall time since
// the attempt started. Guards against clients that never send elapsed time.
func resolveTimeSpent(explicit *int, attempt *models.QuizAttempt, now time.Time) int {
	if explicit != nil {
		return *explicit
	}
	if attempt.TimeSpentSeconds > 0 {
		return attempt.TimeSpentSeconds
	}
	if !attempt.StartedAt.IsZero() {
		return int(now.Sub(attempt.StartedAt).Seconds())
	}
	return 0
}

func buildAnswerRows(attemptID uint, questions []models.Question, results []grading.Result, totalTimeSpent int) []*models.AttemptAnswer {
	perQuestion := 0
	if len(questions) > 0 {
		perQuestion = totalTimeSpent / len(questions)
	}

	rows := make([]*models.AttemptAnswer, len(questions))
	for i := range questions {
		rows[i] = &models.AttemptAnswer{
			AttemptID:        attemptID,
			QuestionID:       questions[i].ID,
			SelectedOptionID: results[i].SelectedOptionID,
			AnswerText:       results[i].AnswerText,
			IsCorrect:        results[i].IsCorrect,
			TimeSpentSeconds: perQuestion,
		}
	}
	return rows
}

// finalizeAttempt freezes the result fields and writes the final snapshot.
// Completion percentage reflects every question that was graded into one of
// the three buckets.
func finalizeAttempt(attempt *models.QuizAttempt, summary grading.Summary, answers map[string]any, timeSpent int, now time.Time) {
	attempt.Status = models.AttemptCompleted
	attempt.CompletedAt = timePtr(now)
	attempt.Score = &summary.FinalScore
	attempt.MaxScore = summary.TotalPoints
	attempt.EarnedPoints = summary.EarnedPoints
	attempt.PenaltyPoints = summary.PenaltyPoints
	attempt.CorrectAnswers = summary.Correct
	attempt.IncorrectAnswers = summary.Incorrect
	attempt.PendingAnswers = summary.Pending
	attempt.TimeSpentSeconds = timeSpent

	graded := summary.Correct + summary.Incorrect + summary.Pending
	snapshot := models.ProgressSnapshot{
		CurrentQuestionIndex: attempt.CurrentQuestionIndex,
		TotalQuestions:       attempt.TotalQuestions,
		AnsweredQuestions:    countAnswered(answers),
		Answers:              answers,
		TimeSpent:            timeSpent,
		LastActivityAt:       timePtr(now),
		CompletionPercentage: completionPercentage(graded, attempt.TotalQuestions),
	}
	// Snapshot encoding of plain maps and scalars cannot fail.
	_ = attempt.SetProgressSnapshot(snapshot)
}

// ===== RESPONSE BUILDING =====

func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, mode AttemptMode, bypass bool) *AttemptResponse {
	response := &AttemptResponse{
		QuizAttempt: attempt,
		Mode:        mode,
	}

	if attempt.Status == models.AttemptCompleted {
		response.Results = buildResults(attempt)
	}

	includeCorrectness := bypass || attempt.Status == models.AttemptCompleted
	response.Questions = buildQuestionPayload(quiz, includeCorrectness)

	return response
}

func buildResults(attempt *models.QuizAttempt) *AttemptResults {
	score := 0.0
	if attempt.Score != nil {
		score = *attempt.Score
	}

	pct := 0.0
	if snapshot, err := attempt.ProgressSnapshot(); err == nil {
		pct = snapshot.CompletionPercentage
	}

	return &AttemptResults{
		Score:                score,
		MaxScore:             attempt.MaxScore,
		EarnedPoints:         attempt.EarnedPoints,
		PenaltyPoints:        attempt.PenaltyPoints,
		CorrectAnswers:       attempt.CorrectAnswers,
		IncorrectAnswers:     attempt.IncorrectAnswers,
		PendingAnswers:       attempt.PendingAnswers,
		CompletionPercentage: pct,
		TimeSpent:            attempt.TimeSpentSeconds,
	}
}

func buildQuestionPayload(quiz *models.Quiz, includeCorrectness bool) []QuestionForAttempt {
	questions := quiz.SortedQuestions()
	payload := make([]QuestionForAttempt, len(questions))
	for i := range questions {
		q := &questions[i]
		item := QuestionForAttempt{
			ID:                    q.ID,
			Type:                  q.Type,
			Text:                  q.Text,
			OrderIndex:            q.OrderIndex,
			Points:                q.Points,
			MultipleCorrect:       q.MultipleCorrect,
			RequiresManualGrading: q.IsManuallyGraded(),
		}
		options := q.SortedOptions()
		for _, opt := range options {
			o := OptionForAttempt{
				ID:         opt.ID,
				Text:       opt.Text,
				OrderIndex: opt.OrderIndex,
			}
			if includeCorrectness {
				isCorrect := opt.IsCorrect
				o.IsCorrect = &isCorrect
			}
			item.Options = append(item.Options, o)
		}
		payload[i] = item
	}
	return payload
}

// ===== EVENTS =====

// publishEvent is fire-and-forget: a broker outage must not fail the
// learner's request.
func (s *attemptService) publishEvent(ctx context.Context, event *events.Event) {
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt event",
			"event_type", event.Type,
			"error", err)
	}
}
