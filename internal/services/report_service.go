package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type reportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ExportGradingReport renders one row per submitted attempt with the score
// breakdown, plus a second sheet listing answers still awaiting grading.
func (s *reportService) ExportGradingReport(ctx context.Context, quizID uint, userID string) ([]byte, string, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrQuizNotFound
		}
		return nil, "", fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkAccess(ctx, quiz, userID); err != nil {
		return nil, "", err
	}

	attempts, _, err := s.repo.Attempt().GetByQuiz(ctx, nil, quizID, repositories.AttemptFilters{
		SortBy:    "student_id",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get attempts: %w", err)
	}

	pending, _, err := s.repo.Answer().GetPendingByQuiz(ctx, nil, quizID, repositories.AnswerFilters{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get pending answers: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const resultsSheet = "Results"
	f.SetSheetName("Sheet1", resultsSheet)

	headers := []string{
		"Student", "Attempt #", "Status", "Started At", "Submitted At",
		"Earned Points", "Total Points", "Percentage", "Passed",
		"Pending Grading", "Submit Reason",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(resultsSheet, cell, h)
	}

	row := 2
	for _, attempt := range attempts {
		if attempt.Status == models.AttemptInProgress {
			continue
		}
		values := []interface{}{
			s.studentLabel(attempt),
			attempt.AttemptNumber,
			string(attempt.Status),
			attempt.StartedAt.Format(time.RFC3339),
			formatTimePtr(attempt.SubmittedAt),
			floatOrEmpty(attempt.EarnedPoints),
			quiz.TotalPoints,
			floatOrEmpty(attempt.Percentage),
			boolOrEmpty(attempt.IsPassed),
			attempt.PendingGradingCount,
			stringOrEmpty(attempt.SubmitReason),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(resultsSheet, cell, v)
		}
		row++
	}

	const pendingSheet = "Pending Grading"
	if _, err := f.NewSheet(pendingSheet); err != nil {
		return nil, "", fmt.Errorf("failed to create sheet: %w", err)
	}
	pendingHeaders := []string{"Answer ID", "Attempt ID", "Student", "Question", "Type", "Max Points"}
	for i, h := range pendingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(pendingSheet, cell, h)
	}
	names := s.resolveStudentNames(ctx, pending)
	for i, ans := range pending {
		student := ans.Attempt.StudentID
		if name, ok := names[student]; ok && name != "" {
			student = name
		}
		values := []interface{}{
			ans.ID,
			ans.AttemptID,
			student,
			ans.Question.Text,
			string(ans.Question.Type),
			ans.Question.Points,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(pendingSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	filename := fmt.Sprintf("quiz-%d-grading-%s.xlsx", quizID, time.Now().Format("2006-01-02"))
	s.logger.Info("Grading report exported",
		"quiz_id", quizID,
		"attempts", row-2,
		"pending_answers", len(pending),
		"user_id", userID)

	return buf.Bytes(), filename, nil
}

func (s *reportService) checkAccess(ctx context.Context, quiz *models.Quiz, userID string) error {
	if quiz.CreatedBy == userID {
		return nil
	}
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, quiz.ID, "quiz", "export_report", "not owner or insufficient permissions")
}

// resolveStudentNames batch-resolves the student directory entries behind the
// pending answers. Resolution failures degrade to raw student IDs.
func (s *reportService) resolveStudentNames(ctx context.Context, answers []*models.StudentAnswer) map[string]string {
	seen := make(map[string]struct{}, len(answers))
	ids := make([]string, 0, len(answers))
	for _, ans := range answers {
		id := ans.Attempt.StudentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names for report", "error", err)
		return nil
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func (s *reportService) studentLabel(attempt *models.QuizAttempt) string {
	if attempt.Student.FullName != "" {
		return attempt.Student.FullName
	}
	return attempt.StudentID
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func floatOrEmpty(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}

func boolOrEmpty(b *bool) interface{} {
	if b == nil {
		return ""
	}
	return *b
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
