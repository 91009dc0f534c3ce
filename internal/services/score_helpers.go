package services

import (
	"math"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// roundPercentage converts earned/total into a percentage rounded to one
// decimal place (half away from zero) and clamped to [0, 100]. A non-positive
// total yields 0 rather than a division error.
func roundPercentage(earned, total float64) float64 {
	if total <= 0 {
		return 0
	}
	pct := math.Round(earned/total*1000) / 10
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// applyAggregate recomputes the attempt's aggregate score from its answers.
//
// Earned points sum every graded answer; ungraded answers contribute zero, so
// the score is provisional until PendingGradingCount reaches zero. The
// percentage denominator is the quiz's declared total, not the sum of question
// points. A submitted attempt flips to GRADED exactly when nothing is pending.
func applyAggregate(attempt *models.QuizAttempt, quiz *models.Quiz, answers []*models.StudentAnswer) {
	var earned float64
	pending := 0
	for _, ans := range answers {
		if ans.PointsEarned == nil {
			pending++
			continue
		}
		earned += *ans.PointsEarned
	}

	pct := roundPercentage(earned, quiz.TotalPoints)

	attempt.EarnedPoints = &earned
	attempt.Percentage = &pct
	attempt.PendingGradingCount = pending

	if quiz.PassingScore != nil {
		passed := pct >= *quiz.PassingScore
		attempt.IsPassed = &passed
	} else {
		attempt.IsPassed = nil
	}

	if attempt.Status != models.AttemptInProgress {
		if pending == 0 {
			attempt.Status = models.AttemptGraded
		} else {
			attempt.Status = models.AttemptSubmitted
		}
	}
}
