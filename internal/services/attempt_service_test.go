package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAttemptService(repo *stubRepository) AttemptService {
	return NewAttemptService(repo, nil, testLogger(), validator.New(), nil)
}

func timeP(t time.Time) *time.Time { return &t }

func TestGetTimeRemaining(t *testing.T) {
	future := time.Now().Add(10 * time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name      string
		attempt   *models.QuizAttempt
		studentID string
		want      int
		wantLow   int
		wantErr   error
	}{
		{
			name:      "no time limit",
			attempt:   &models.QuizAttempt{ID: 1, StudentID: "s1", Status: models.AttemptInProgress},
			studentID: "s1",
			want:      -1,
		},
		{
			name:      "expired reports zero",
			attempt:   &models.QuizAttempt{ID: 1, StudentID: "s1", Status: models.AttemptInProgress, Deadline: timeP(past)},
			studentID: "s1",
			want:      0,
		},
		{
			name:      "running attempt",
			attempt:   &models.QuizAttempt{ID: 1, StudentID: "s1", Status: models.AttemptInProgress, Deadline: timeP(future)},
			studentID: "s1",
			wantLow:   500,
		},
		{
			name:      "submitted attempt",
			attempt:   &models.QuizAttempt{ID: 1, StudentID: "s1", Status: models.AttemptSubmitted},
			studentID: "s1",
			wantErr:   ErrAttemptNotActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepository()
			repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) { return tt.attempt, nil }
			svc := newTestAttemptService(repo)

			got, err := svc.GetTimeRemaining(context.Background(), 1, tt.studentID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantLow > 0 {
				if got < tt.wantLow {
					t.Errorf("remaining = %d, want at least %d", got, tt.wantLow)
				}
				return
			}
			if got != tt.want {
				t.Errorf("remaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetTimeRemainingNotOwner(t *testing.T) {
	repo := newStubRepository()
	repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
		return &models.QuizAttempt{ID: 1, StudentID: "s1", Status: models.AttemptInProgress}, nil
	}
	svc := newTestAttemptService(repo)

	_, err := svc.GetTimeRemaining(context.Background(), 1, "s2")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}

func TestGetResultDisclosure(t *testing.T) {
	earned := 6.0
	pct := 60.0

	makeAttempt := func(status models.AttemptStatus) *models.QuizAttempt {
		return &models.QuizAttempt{
			ID:           5,
			QuizID:       9,
			StudentID:    "s1",
			Status:       status,
			EarnedPoints: &earned,
			Percentage:   &pct,
			StartedAt:    time.Now().Add(-time.Hour),
		}
	}

	t.Run("student blocked while results hidden", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
			return makeAttempt(models.AttemptSubmitted), nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10, ShowResultsImmediately: false}, nil
		}
		svc := newTestAttemptService(repo)

		_, err := svc.GetResult(context.Background(), 5, "s1")
		if !errors.Is(err, ErrReviewDisabled) {
			t.Fatalf("error = %v, want ErrReviewDisabled", err)
		}
	})

	t.Run("grading completion unlocks results", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
			return makeAttempt(models.AttemptGraded), nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10, ShowResultsImmediately: false}, nil
		}
		svc := newTestAttemptService(repo)

		result, err := svc.GetResult(context.Background(), 5, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.EarnedPoints == nil || *result.EarnedPoints != 6 {
			t.Errorf("EarnedPoints = %v, want 6", result.EarnedPoints)
		}
		if result.IsProvisional {
			t.Error("graded attempt must not be provisional")
		}
	})

	t.Run("quiz creator sees submitted result", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
			attempt := makeAttempt(models.AttemptSubmitted)
			attempt.PendingGradingCount = 2
			return attempt, nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10, ShowResultsImmediately: false}, nil
		}
		svc := newTestAttemptService(repo)

		result, err := svc.GetResult(context.Background(), 5, "t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsProvisional {
			t.Error("submitted attempt with pending answers must be provisional")
		}
		if result.PendingCount != 2 {
			t.Errorf("PendingCount = %d, want 2", result.PendingCount)
		}
	})

	t.Run("unrelated student rejected", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
			return makeAttempt(models.AttemptGraded), nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10}, nil
		}
		svc := newTestAttemptService(repo)

		_, err := svc.GetResult(context.Background(), 5, "s2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("error = %v, want PermissionError", err)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByID = func(id uint) (*models.QuizAttempt, error) {
			return makeAttempt(models.AttemptGraded), nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10}, nil
		}
		repo.user.getRole = func(id string) (models.UserRole, error) { return models.RoleAdmin, nil }
		svc := newTestAttemptService(repo)

		if _, err := svc.GetResult(context.Background(), 5, "admin"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGetReviewDisclosure(t *testing.T) {
	earned := 3.0
	correct := true
	feedback := "solid work"
	explanation := "see chapter 4"

	makeAttempt := func() *models.QuizAttempt {
		return &models.QuizAttempt{
			ID:        5,
			QuizID:    9,
			StudentID: "s1",
			Status:    models.AttemptGraded,
			Answers: []models.StudentAnswer{
				{
					QuestionID:     21,
					AnswerData:     datatypes.JSON(`{"selected":"b"}`),
					PointsEarned:   &earned,
					IsCorrect:      &correct,
					AutoGraded:     true,
					GraderFeedback: &feedback,
					Question: models.Question{
						ID:          21,
						Text:        "Pick one",
						Type:        models.SingleChoice,
						Points:      3,
						AnswerKey:   datatypes.JSON(`{"correct":"b"}`),
						Explanation: &explanation,
					},
				},
			},
		}
	}

	t.Run("review disabled for students", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByIDWithAnswers = func(id uint) (*models.QuizAttempt, error) { return makeAttempt(), nil }
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10, AllowReview: false}, nil
		}
		svc := newTestAttemptService(repo)

		_, err := svc.GetReview(context.Background(), 5, "s1")
		if !errors.Is(err, ErrReviewDisabled) {
			t.Fatalf("error = %v, want ErrReviewDisabled", err)
		}
	})

	t.Run("student sees no answer key when undisclosed", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByIDWithAnswers = func(id uint) (*models.QuizAttempt, error) { return makeAttempt(), nil }
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{
				ID: 9, CreatedBy: "t1", TotalPoints: 10,
				AllowReview: true, ShowCorrectAnswers: false, ShowFeedback: true,
			}, nil
		}
		svc := newTestAttemptService(repo)

		review, err := svc.GetReview(context.Background(), 5, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(review.Answers) != 1 {
			t.Fatalf("got %d answers, want 1", len(review.Answers))
		}
		if review.Answers[0].CorrectAnswer != nil {
			t.Error("answer key must stay hidden when disclosure is off")
		}
		if review.Answers[0].Feedback == nil {
			t.Error("feedback should be visible when ShowFeedback is on")
		}
	})

	t.Run("creator always sees answer key", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByIDWithAnswers = func(id uint) (*models.QuizAttempt, error) { return makeAttempt(), nil }
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{
				ID: 9, CreatedBy: "t1", TotalPoints: 10,
				AllowReview: false, ShowCorrectAnswers: false, ShowFeedback: false,
			}, nil
		}
		svc := newTestAttemptService(repo)

		review, err := svc.GetReview(context.Background(), 5, "t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if review.Answers[0].CorrectAnswer == nil {
			t.Error("creator must see the answer key")
		}
		if review.Answers[0].Feedback == nil {
			t.Error("creator must see feedback")
		}
	})

	t.Run("running attempt has no review", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getByIDWithAnswers = func(id uint) (*models.QuizAttempt, error) {
			attempt := makeAttempt()
			attempt.Status = models.AttemptInProgress
			return attempt, nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 9, CreatedBy: "t1", TotalPoints: 10, AllowReview: true}, nil
		}
		svc := newTestAttemptService(repo)

		_, err := svc.GetReview(context.Background(), 5, "s1")
		if !errors.Is(err, ErrAttemptNotSubmitted) {
			t.Fatalf("error = %v, want ErrAttemptNotSubmitted", err)
		}
	})
}

func TestGetStatsPermission(t *testing.T) {
	repo := newStubRepository()
	repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
		return &models.Quiz{ID: 9, CreatedBy: "t1"}, nil
	}
	svc := newTestAttemptService(repo)

	_, err := svc.GetStats(context.Background(), 9, "s1")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}

func TestResumeConcurrentAttempt(t *testing.T) {
	t.Run("resumes the attempt that won the insert race", func(t *testing.T) {
		repo := newStubRepository()
		repo.attempt.getActiveAttempt = func(quizID uint, studentID string) (*models.QuizAttempt, error) {
			return &models.QuizAttempt{
				ID:            17,
				QuizID:        quizID,
				StudentID:     studentID,
				AttemptNumber: 1,
				Status:        models.AttemptInProgress,
			}, nil
		}
		svc := newTestAttemptService(repo).(*attemptService)

		attempt, err := svc.resumeConcurrentAttempt(context.Background(), 3, "s1")
		if err != nil {
			t.Fatalf("resumeConcurrentAttempt() error = %v", err)
		}
		if attempt.ID != 17 {
			t.Errorf("attempt ID = %d, want 17", attempt.ID)
		}
		if attempt.Status != models.AttemptInProgress {
			t.Errorf("status = %v, want IN_PROGRESS", attempt.Status)
		}
	})

	t.Run("fails when the winning attempt is already gone", func(t *testing.T) {
		svc := newTestAttemptService(newStubRepository()).(*attemptService)

		_, err := svc.resumeConcurrentAttempt(context.Background(), 3, "s1")
		if err == nil {
			t.Fatal("expected error when no running attempt remains")
		}
	})
}
