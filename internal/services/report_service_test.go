package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func newTestReportService(repo *stubRepository) ReportService {
	return NewReportService(repo, nil, testLogger())
}

func TestExportGradingReport(t *testing.T) {
	repo := newStubRepository()
	repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
		return &models.Quiz{ID: 4, Title: "Unit 4 check", CreatedBy: "t1", TotalPoints: 10}, nil
	}
	submitted := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	repo.attempt.getByQuiz = func(quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
		return []*models.QuizAttempt{
			{
				ID:            7,
				QuizID:        4,
				StudentID:     "s1",
				AttemptNumber: 1,
				Status:        models.AttemptSubmitted,
				StartedAt:     submitted.Add(-30 * time.Minute),
				SubmittedAt:   &submitted,
			},
		}, 1, nil
	}
	repo.answer.getPendingByQuiz = func(quizID uint, filters repositories.AnswerFilters) ([]*models.StudentAnswer, int64, error) {
		return []*models.StudentAnswer{
			{
				ID:         31,
				AttemptID:  7,
				QuestionID: 21,
				Attempt:    models.QuizAttempt{ID: 7, StudentID: "s1"},
				Question:   models.Question{ID: 21, Text: "Explain your reasoning.", Type: models.Essay, Points: 10},
			},
		}, 1, nil
	}
	var resolvedIDs []string
	repo.user.getByIDs = func(ids []string) ([]*models.User, error) {
		resolvedIDs = ids
		return []*models.User{{ID: "s1", FullName: "Student One"}}, nil
	}
	svc := newTestReportService(repo)

	data, filename, err := svc.ExportGradingReport(context.Background(), 4, "t1")
	if err != nil {
		t.Fatalf("ExportGradingReport() error = %v", err)
	}
	if !strings.HasPrefix(filename, "quiz-4-grading-") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("filename = %q", filename)
	}
	if len(resolvedIDs) != 1 || resolvedIDs[0] != "s1" {
		t.Errorf("resolved student IDs = %v, want [s1]", resolvedIDs)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Results", "A1"); got != "Student" {
		t.Errorf("Results A1 = %q, want Student", got)
	}
	if got, _ := f.GetCellValue("Results", "B2"); got != "1" {
		t.Errorf("Results B2 = %q, want attempt number 1", got)
	}
	if got, _ := f.GetCellValue("Pending Grading", "C2"); got != "Student One" {
		t.Errorf("Pending Grading C2 = %q, want resolved name", got)
	}
	if got, _ := f.GetCellValue("Pending Grading", "D2"); got != "Explain your reasoning." {
		t.Errorf("Pending Grading D2 = %q", got)
	}
}

func TestExportGradingReportPermission(t *testing.T) {
	repo := newStubRepository()
	repo.quiz.getByID = func(id uint) (*models.Quiz, error) {
		return &models.Quiz{ID: 4, CreatedBy: "t1"}, nil
	}
	svc := newTestReportService(repo)

	_, _, err := svc.ExportGradingReport(context.Background(), 4, "someone-else")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}
