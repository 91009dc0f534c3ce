package services

import (
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func TestRoundPercentage(t *testing.T) {
	tests := []struct {
		name   string
		earned float64
		total  float64
		want   float64
	}{
		{name: "zero total", earned: 5, total: 0, want: 0},
		{name: "negative total", earned: 5, total: -10, want: 0},
		{name: "full score", earned: 10, total: 10, want: 100},
		{name: "zero earned", earned: 0, total: 10, want: 0},
		{name: "one decimal", earned: 1, total: 3, want: 33.3},
		{name: "rounds half up", earned: 1, total: 16, want: 6.3},
		{name: "two thirds", earned: 2, total: 3, want: 66.7},
		{name: "clamps above hundred", earned: 15, total: 10, want: 100},
		{name: "clamps below zero", earned: -5, total: 10, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundPercentage(tt.earned, tt.total); got != tt.want {
				t.Errorf("roundPercentage(%v, %v) = %v, want %v", tt.earned, tt.total, got, tt.want)
			}
		})
	}
}

func ptrFloat(f float64) *float64 { return &f }

func TestApplyAggregate(t *testing.T) {
	quiz := &models.Quiz{TotalPoints: 10, PassingScore: ptrFloat(60)}

	t.Run("pending answers count as zero", func(t *testing.T) {
		attempt := &models.QuizAttempt{Status: models.AttemptSubmitted}
		answers := []*models.StudentAnswer{
			{PointsEarned: ptrFloat(4)},
			{PointsEarned: nil},
			{PointsEarned: ptrFloat(3)},
		}

		applyAggregate(attempt, quiz, answers)

		if attempt.EarnedPoints == nil || *attempt.EarnedPoints != 7 {
			t.Errorf("EarnedPoints = %v, want 7", attempt.EarnedPoints)
		}
		if attempt.PendingGradingCount != 1 {
			t.Errorf("PendingGradingCount = %d, want 1", attempt.PendingGradingCount)
		}
		if attempt.Status != models.AttemptSubmitted {
			t.Errorf("Status = %v, want SUBMITTED while grading pending", attempt.Status)
		}
		if attempt.Percentage == nil || *attempt.Percentage != 70 {
			t.Errorf("Percentage = %v, want 70", attempt.Percentage)
		}
	})

	t.Run("flips to graded when nothing pending", func(t *testing.T) {
		attempt := &models.QuizAttempt{Status: models.AttemptSubmitted}
		answers := []*models.StudentAnswer{
			{PointsEarned: ptrFloat(4)},
			{PointsEarned: ptrFloat(1)},
		}

		applyAggregate(attempt, quiz, answers)

		if attempt.Status != models.AttemptGraded {
			t.Errorf("Status = %v, want GRADED", attempt.Status)
		}
		if attempt.IsPassed == nil || *attempt.IsPassed {
			t.Errorf("IsPassed = %v, want false at 50%% against a 60%% threshold", attempt.IsPassed)
		}
	})

	t.Run("passing at exact threshold", func(t *testing.T) {
		attempt := &models.QuizAttempt{Status: models.AttemptSubmitted}
		answers := []*models.StudentAnswer{{PointsEarned: ptrFloat(6)}}

		applyAggregate(attempt, quiz, answers)

		if attempt.IsPassed == nil || !*attempt.IsPassed {
			t.Errorf("IsPassed = %v, want true at exactly 60%%", attempt.IsPassed)
		}
	})

	t.Run("no passing score configured", func(t *testing.T) {
		noPass := &models.Quiz{TotalPoints: 10}
		attempt := &models.QuizAttempt{Status: models.AttemptSubmitted}

		applyAggregate(attempt, noPass, []*models.StudentAnswer{{PointsEarned: ptrFloat(8)}})

		if attempt.IsPassed != nil {
			t.Errorf("IsPassed = %v, want nil when no threshold is set", attempt.IsPassed)
		}
	})

	t.Run("in-progress attempt keeps its status", func(t *testing.T) {
		attempt := &models.QuizAttempt{Status: models.AttemptInProgress}

		applyAggregate(attempt, quiz, []*models.StudentAnswer{{PointsEarned: ptrFloat(6)}})

		if attempt.Status != models.AttemptInProgress {
			t.Errorf("Status = %v, want IN_PROGRESS unchanged", attempt.Status)
		}
	})

	t.Run("no answers at all", func(t *testing.T) {
		attempt := &models.QuizAttempt{Status: models.AttemptSubmitted}

		applyAggregate(attempt, quiz, nil)

		if attempt.EarnedPoints == nil || *attempt.EarnedPoints != 0 {
			t.Errorf("EarnedPoints = %v, want 0", attempt.EarnedPoints)
		}
		if attempt.Status != models.AttemptGraded {
			t.Errorf("Status = %v, want GRADED with nothing pending", attempt.Status)
		}
	})
}
