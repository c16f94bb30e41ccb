package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edulearn/quiz-service/internal/models"
)

func intPtr(v int) *int { return &v }

func TestMergeProgressOverwritesPerKey(t *testing.T) {
	now := time.Now()
	prev := models.NewProgressSnapshot(4)
	prev.Answers = map[string]any{
		"1": float64(0),
		"2": true,
	}

	next := mergeProgress(prev, &SaveProgressRequest{
		Answers: map[string]any{
			"2": false,
			"3": "short answer",
		},
	}, now)

	assert.Equal(t, float64(0), next.Answers["1"], "untouched key survives")
	assert.Equal(t, false, next.Answers["2"], "incoming key overwrites")
	assert.Equal(t, "short answer", next.Answers["3"])
	assert.Equal(t, 3, next.AnsweredQuestions)
	assert.Equal(t, 75.0, next.CompletionPercentage)
	assert.NotNil(t, next.LastActivityAt)

	// The stored snapshot is never mutated in place.
	assert.Len(t, prev.Answers, 2)
	assert.Equal(t, true, prev.Answers["2"])
}

func TestMergeProgressCommutesOnDisjointKeys(t *testing.T) {
	now := time.Now()
	base := models.NewProgressSnapshot(3)

	reqA := &SaveProgressRequest{Answers: map[string]any{"1": float64(2)}}
	reqB := &SaveProgressRequest{Answers: map[string]any{"2": true}}

	ab := mergeProgress(mergeProgress(base, reqA, now), reqB, now)
	ba := mergeProgress(mergeProgress(base, reqB, now), reqA, now)

	assert.Equal(t, ab.Answers, ba.Answers)
	assert.Equal(t, ab.AnsweredQuestions, ba.AnsweredQuestions)
	assert.Equal(t, ab.CompletionPercentage, ba.CompletionPercentage)
}

func TestMergeProgressReapplyIsNoop(t *testing.T) {
	now := time.Now()
	base := models.NewProgressSnapshot(2)
	req := &SaveProgressRequest{
		CurrentQuestionIndex: intPtr(1),
		Answers:              map[string]any{"1": float64(0)},
	}

	once := mergeProgress(base, req, now)
	twice := mergeProgress(once, req, now)

	assert.Equal(t, once.Answers, twice.Answers)
	assert.Equal(t, once.AnsweredQuestions, twice.AnsweredQuestions)
	assert.Equal(t, once.CurrentQuestionIndex, twice.CurrentQuestionIndex)
}

func TestMergeProgressClearedAnswersDoNotCount(t *testing.T) {
	now := time.Now()
	prev := models.NewProgressSnapshot(3)
	prev.Answers = map[string]any{"1": float64(1), "2": "text"}

	next := mergeProgress(prev, &SaveProgressRequest{
		Answers: map[string]any{
			"1": nil,
			"2": "",
		},
	}, now)

	// Cleared keys stay in the map but stop counting as answered.
	assert.Contains(t, next.Answers, "1")
	assert.Contains(t, next.Answers, "2")
	assert.Equal(t, 0, next.AnsweredQuestions)
	assert.Equal(t, 0.0, next.CompletionPercentage)
}

func TestMergeProgressPartialFields(t *testing.T) {
	now := time.Now()
	prev := models.NewProgressSnapshot(5)
	prev.CurrentQuestionIndex = 2
	prev.TimeSpent = 120

	// Nil fields leave stored values untouched.
	next := mergeProgress(prev, &SaveProgressRequest{
		TimeSpentSeconds: intPtr(180),
	}, now)

	assert.Equal(t, 2, next.CurrentQuestionIndex)
	assert.Equal(t, 180, next.TimeSpent)
}

func TestCountAnswered(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]any
		want    int
	}{
		{"empty map", map[string]any{}, 0},
		{"scalar values", map[string]any{"1": float64(0), "2": true, "3": "text"}, 3},
		{"null does not count", map[string]any{"1": nil}, 0},
		{"empty string does not count", map[string]any{"1": ""}, 0},
		{"zero index counts", map[string]any{"1": float64(0)}, 1},
		{"false counts", map[string]any{"1": false}, 1},
		{"empty array does not count", map[string]any{"1": []any{}}, 0},
		{"array of nulls does not count", map[string]any{"1": []any{nil, ""}}, 0},
		{"array with real element counts", map[string]any{"1": []any{nil, float64(2)}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countAnswered(tt.answers))
		})
	}
}

func TestCompletionPercentage(t *testing.T) {
	assert.Equal(t, 0.0, completionPercentage(0, 0), "zero questions never divides")
	assert.Equal(t, 0.0, completionPercentage(0, 4))
	assert.Equal(t, 33.33, completionPercentage(1, 3))
	assert.Equal(t, 100.0, completionPercentage(4, 4))
}

func TestProjectProgress(t *testing.T) {
	attempt := &models.QuizAttempt{
		CurrentQuestionIndex: 0,
		TimeSpentSeconds:     0,
		RemainingTimeSeconds: intPtr(600),
	}
	snapshot := models.ProgressSnapshot{
		CurrentQuestionIndex: 3,
		TimeSpent:            240,
	}

	projectProgress(attempt, snapshot, nil)
	assert.Equal(t, 3, attempt.CurrentQuestionIndex)
	assert.Equal(t, 240, attempt.TimeSpentSeconds)
	assert.Equal(t, 600, *attempt.RemainingTimeSeconds, "nil remaining time leaves the column alone")

	projectProgress(attempt, snapshot, intPtr(360))
	assert.Equal(t, 360, *attempt.RemainingTimeSeconds)
}
