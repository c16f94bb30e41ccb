package grading

import (
	"math"

	"github.com/edulearn/quiz-service/internal/models"
)

// Summary holds attempt-level totals folded from the per-question results.
type Summary struct {
	Correct   int
	Incorrect int
	Pending   int

	TotalPoints   int
	EarnedPoints  int
	PenaltyPoints float64

	// FinalScore is earned/total as a percentage, clamped to [0,100] and
	// rounded to 2 decimals. The penalty is reported separately and is not
	// subtracted here.
	FinalScore float64
}

// Aggregate folds normalized results into attempt totals in one pass over the
// questions in quiz order. questions and results must be parallel slices.
func Aggregate(questions []models.Question, results []Result, negativeMarking bool, negativeMarkValue float64) Summary {
	var summary Summary

	for i := range questions {
		question := &questions[i]
		result := results[i]

		points := question.Points
		if points < 1 {
			points = 1
		}
		// Pending questions count toward the attainable total too.
		summary.TotalPoints += points

		switch {
		case result.IsPending:
			summary.Pending++
		case result.IsCorrect:
			summary.Correct++
			summary.EarnedPoints += points
		default:
			summary.Incorrect++
			if negativeMarking {
				summary.PenaltyPoints += negativeMarkValue
			}
		}
	}

	total := summary.TotalPoints
	if total < 1 {
		total = 1
	}
	score := float64(summary.EarnedPoints) / float64(total) * 100
	summary.FinalScore = Round2(clamp(score, 0, 100))
	summary.PenaltyPoints = Round2(summary.PenaltyPoints)

	return summary
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
