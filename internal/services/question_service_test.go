package services

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

func newTestQuestionService(repo *stubRepository) QuestionService {
	return NewQuestionService(repo, nil, testLogger(), validator.New())
}

func TestQuestionDelete(t *testing.T) {
	t.Run("blocked by existing attempts", func(t *testing.T) {
		repo := newStubRepository()
		repo.question.getByID = func(id uint) (*models.Question, error) {
			return &models.Question{ID: 21, QuizID: 3}, nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 3, CreatedBy: "t1"}, nil
		}
		repo.quiz.hasAttempts = func(quizID uint) (bool, error) { return true, nil }
		svc := newTestQuestionService(repo)

		err := svc.Delete(context.Background(), 21, "t1")
		if !errors.Is(err, ErrQuizHasAttempts) {
			t.Fatalf("error = %v, want ErrQuizHasAttempts", err)
		}
	})

	t.Run("not owner", func(t *testing.T) {
		repo := newStubRepository()
		repo.question.getByID = func(id uint) (*models.Question, error) {
			return &models.Question{ID: 21, QuizID: 3}, nil
		}
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 3, CreatedBy: "t1"}, nil
		}
		svc := newTestQuestionService(repo)

		err := svc.Delete(context.Background(), 21, "someone-else")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("error = %v, want PermissionError", err)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		svc := newTestQuestionService(newStubRepository())

		err := svc.Delete(context.Background(), 404, "t1")
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Fatalf("error = %v, want ErrQuestionNotFound", err)
		}
	})
}

func TestQuestionGetByQuiz(t *testing.T) {
	t.Run("missing quiz", func(t *testing.T) {
		svc := newTestQuestionService(newStubRepository())

		_, err := svc.GetByQuiz(context.Background(), 404, "t1")
		if !errors.Is(err, ErrQuizNotFound) {
			t.Fatalf("error = %v, want ErrQuizNotFound", err)
		}
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 3, CreatedBy: "t1"}, nil
		}
		repo.user.getRole = func(id string) (models.UserRole, error) {
			return models.RoleAdmin, nil
		}
		repo.question.getByQuiz = func(quizID uint) ([]*models.Question, error) {
			return []*models.Question{
				{ID: 1, QuizID: 3, Type: models.SingleChoice},
				{ID: 2, QuizID: 3, Type: models.Essay},
			}, nil
		}
		svc := newTestQuestionService(repo)

		questions, err := svc.GetByQuiz(context.Background(), 3, "admin-1")
		if err != nil {
			t.Fatalf("GetByQuiz() error = %v", err)
		}
		if len(questions) != 2 {
			t.Fatalf("got %d questions, want 2", len(questions))
		}
	})

	t.Run("student rejected", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
			return &models.Quiz{ID: 3, CreatedBy: "t1", IsPublished: true}, nil
		}
		svc := newTestQuestionService(repo)

		_, err := svc.GetByQuiz(context.Background(), 3, "s1")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("error = %v, want PermissionError", err)
		}
	})
}
