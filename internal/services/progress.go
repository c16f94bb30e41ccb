package services

import (
	"time"

	"github.com/edulearn/quiz-service/internal/grading"
	"github.com/edulearn/quiz-service/internal/models"
)

// mergeProgress folds a partial update into the stored snapshot.
//
// The answer merge is per-key overwrite: every key present in the incoming
// map replaces the stored value, keys absent from the update are left alone.
// Updates touching disjoint keys therefore commute, and re-applying the same
// update is a no-op, which is what makes client retries safe.
func mergeProgress(prev models.ProgressSnapshot, req *SaveProgressRequest, now time.Time) models.ProgressSnapshot {
	next := prev
	if next.Answers == nil {
		next.Answers = map[string]any{}
	} else {
		merged := make(map[string]any, len(prev.Answers)+len(req.Answers))
		for k, v := range prev.Answers {
			merged[k] = v
		}
		next.Answers = merged
	}

	for questionID, value := range req.Answers {
		next.Answers[questionID] = value
	}

	if req.CurrentQuestionIndex != nil {
		next.CurrentQuestionIndex = *req.CurrentQuestionIndex
	}
	if req.TimeSpentSeconds != nil {
		next.TimeSpent = *req.TimeSpentSeconds
	}

	next.AnsweredQuestions = countAnswered(next.Answers)
	next.CompletionPercentage = completionPercentage(next.AnsweredQuestions, next.TotalQuestions)
	next.LastActivityAt = timePtr(now)

	return next
}

// countAnswered counts keys whose value is actually provided: a non-null,
// non-empty-string scalar, or an array that is non-empty after filtering out
// null and empty-string elements. Explicitly cleared answers (null or "")
// stay in the map but do not count.
func countAnswered(answers map[string]any) int {
	count := 0
	for _, value := range answers {
		if isProvided(value) {
			count++
		}
	}
	return count
}

func isProvided(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		for _, item := range v {
			if isProvided(item) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func completionPercentage(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return grading.Round2(float64(answered) / float64(total) * 100)
}

// projectProgress writes the snapshot's denormalized columns onto the attempt
// row. The snapshot is the source of truth; these columns are a queryable
// projection and this is the only place they get written from a save.
// RemainingTimeSeconds is not tracked inside the snapshot, so the incoming
// value wins only when present.
func projectProgress(attempt *models.QuizAttempt, snapshot models.ProgressSnapshot, remainingTime *int) {
	attempt.CurrentQuestionIndex = snapshot.CurrentQuestionIndex
	attempt.TimeSpentSeconds = snapshot.TimeSpent
	if remainingTime != nil {
		attempt.RemainingTimeSeconds = remainingTime
	}
}
