package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

func newTestGradingService(repo *stubRepository) GradingService {
	return NewGradingService(repo, nil, testLogger(), validator.New(), nil)
}

func TestListUngraded(t *testing.T) {
	repo := newStubRepository()
	repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
		return &models.Quiz{ID: 9, CreatedBy: "t1"}, nil
	}
	repo.answer.getPendingByQuiz = func(quizID uint, filters repositories.AnswerFilters) ([]*models.StudentAnswer, int64, error) {
		return []*models.StudentAnswer{
			{
				ID:         31,
				AttemptID:  5,
				QuestionID: 21,
				AnswerData: datatypes.JSON(`{"text":"my essay"}`),
				Question: models.Question{
					ID:     21,
					Text:   "Explain your reasoning.",
					Type:   models.Essay,
					Points: 10,
				},
				Attempt: models.QuizAttempt{ID: 5, StudentID: "s1"},
			},
		}, 1, nil
	}
	svc := newTestGradingService(repo)

	queue, err := svc.ListUngraded(context.Background(), 9, repositories.AnswerFilters{Limit: 20}, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queue.Total != 1 || len(queue.Answers) != 1 {
		t.Fatalf("got %d/%d answers, want 1/1", len(queue.Answers), queue.Total)
	}

	entry := queue.Answers[0]
	if entry.QuestionText != "Explain your reasoning." {
		t.Errorf("QuestionText = %q", entry.QuestionText)
	}
	if entry.QuestionType != models.Essay {
		t.Errorf("QuestionType = %v, want ESSAY", entry.QuestionType)
	}
	if entry.MaxPoints != 10 {
		t.Errorf("MaxPoints = %v, want 10", entry.MaxPoints)
	}
	if entry.StudentID != "s1" {
		t.Errorf("StudentID = %q, want s1", entry.StudentID)
	}
	if queue.Page != 1 || queue.Size != 20 {
		t.Errorf("pagination = %d/%d, want 1/20", queue.Page, queue.Size)
	}
}

func TestListUngradedPermission(t *testing.T) {
	repo := newStubRepository()
	repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
		return &models.Quiz{ID: 9, CreatedBy: "t1"}, nil
	}
	svc := newTestGradingService(repo)

	_, err := svc.ListUngraded(context.Background(), 9, repositories.AnswerFilters{}, "someone-else")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}

func TestListUngradedQuizMissing(t *testing.T) {
	repo := newStubRepository()
	svc := newTestGradingService(repo)

	_, err := svc.ListUngraded(context.Background(), 404, repositories.AnswerFilters{}, "t1")
	if !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("error = %v, want ErrQuizNotFound", err)
	}
}

func TestPageFromFilters(t *testing.T) {
	tests := []struct {
		offset, limit  int
		wantPage, size int
	}{
		{offset: 0, limit: 20, wantPage: 1, size: 20},
		{offset: 40, limit: 20, wantPage: 3, size: 20},
		{offset: 0, limit: 0, wantPage: 1, size: 0},
	}
	for _, tt := range tests {
		page, size := pageFromFilters(tt.offset, tt.limit)
		if page != tt.wantPage || size != tt.size {
			t.Errorf("pageFromFilters(%d, %d) = %d/%d, want %d/%d",
				tt.offset, tt.limit, page, size, tt.wantPage, tt.size)
		}
	}
}

func TestGradeAnswerRejectsInvalidRequest(t *testing.T) {
	svc := newTestGradingService(newStubRepository())

	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'x'
	}
	feedback := string(long)

	_, err := svc.GradeAnswer(context.Background(), 1, &GradeAnswerRequest{Score: 5, Feedback: &feedback}, "t1")
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
}
