package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// ===== TIME MANAGEMENT =====

// GetTimeRemaining returns whole seconds until the deadline, 0 once expired,
// and -1 for attempts without a time limit.
func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAttemptNotFound
		}
		return 0, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return 0, NewPermissionError(studentID, attemptID, "attempt", "get_time_remaining", "not owned by student")
	}
	if !attempt.IsActive() {
		return 0, ErrAttemptNotActive
	}

	if attempt.Deadline == nil {
		return -1, nil
	}
	remaining := int(time.Until(*attempt.Deadline).Seconds())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// HandleTimeouts closes every IN_PROGRESS attempt whose deadline has passed.
// Each attempt is finalized independently so one failure does not block the
// sweep. Returns the number of attempts closed.
func (s *attemptService) HandleTimeouts(ctx context.Context, batchSize int) (int, error) {
	expired, err := s.repo.Attempt().ListExpired(ctx, nil, time.Now(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	closed := 0
	for _, attempt := range expired {
		if err := s.finalizeAttempt(ctx, attempt.ID, models.SubmitReasonTimeout, nil); err != nil {
			s.logger.Error("Failed to finalize expired attempt",
				"attempt_id", attempt.ID,
				"error", err)
			continue
		}
		closed++
	}

	if closed > 0 {
		s.logger.Info("Timeout sweep completed", "closed", closed, "candidates", len(expired))
	}
	return closed, nil
}

// ===== READ MODELS =====

func (s *attemptService) GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResultResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, quiz, userID, "view_result"); err != nil {
		return nil, err
	}

	// Students see nothing before the quiz discloses results; grading
	// completion always unlocks them.
	if attempt.StudentID == userID && attempt.Status == models.AttemptSubmitted && !quiz.ShowResultsImmediately {
		return nil, ErrReviewDisabled
	}

	return buildResultResponse(attempt, quiz), nil
}

func (s *attemptService) GetReview(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, quiz, userID, "review"); err != nil {
		return nil, err
	}
	if attempt.IsActive() {
		return nil, ErrAttemptNotSubmitted
	}

	isStudent := attempt.StudentID == userID
	if isStudent && !quiz.AllowReview {
		return nil, ErrReviewDisabled
	}

	// Teachers always see the full picture; student disclosure follows the
	// quiz flags.
	showKey := !isStudent || quiz.ShowCorrectAnswers
	showFeedback := !isStudent || quiz.ShowFeedback

	reviews := make([]AnswerReview, 0, len(attempt.Answers))
	for i := range attempt.Answers {
		ans := &attempt.Answers[i]
		review := AnswerReview{
			QuestionID:   ans.QuestionID,
			QuestionText: ans.Question.Text,
			QuestionType: ans.Question.Type,
			Points:       ans.Question.Points,
			AnswerData:   json.RawMessage(ans.AnswerData),
			PointsEarned: ans.PointsEarned,
			IsCorrect:    ans.IsCorrect,
			AutoGraded:   ans.AutoGraded,
		}
		if showFeedback {
			review.Feedback = ans.GraderFeedback
			review.Explanation = ans.Question.Explanation
		}
		if showKey && len(ans.Question.AnswerKey) > 0 {
			review.CorrectAnswer = json.RawMessage(ans.Question.AnswerKey)
		}
		reviews = append(reviews, review)
	}

	return &AttemptReviewResponse{
		Result:  buildResultResponse(attempt, quiz),
		Answers: reviews,
	}, nil
}

func (s *attemptService) GetSummary(ctx context.Context, attemptID uint, userID string) (*AttemptSummaryResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, quiz, userID, "view_summary"); err != nil {
		return nil, err
	}

	summary := &AttemptSummaryResponse{QuizAttempt: attempt}
	for i := range attempt.Answers {
		ans := &attempt.Answers[i]
		summary.AnsweredCount++
		if ans.PointsEarned != nil {
			summary.GradedCount++
		}
		if ans.AutoGraded {
			summary.AutoGradedCount++
		}
	}

	if student, err := s.repo.User().GetByID(ctx, attempt.StudentID); err == nil {
		summary.StudentName = student.FullName
	}

	return summary, nil
}

func (s *attemptService) GetMyAttempts(ctx context.Context, quizID uint, studentID string) ([]*AttemptResponse, error) {
	attempts, err := s.repo.Attempt().GetByStudent(ctx, nil, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = &AttemptResponse{QuizAttempt: attempt}
	}
	return responses, nil
}

func (s *attemptService) GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptSummaryResponse, int64, error) {
	if err := s.checkQuizAccess(ctx, quizID, userID, "view_attempts"); err != nil {
		return nil, 0, err
	}

	attempts, total, err := s.repo.Attempt().GetByQuiz(ctx, nil, quizID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get attempts: %w", err)
	}

	summaries := make([]*AttemptSummaryResponse, len(attempts))
	for i, attempt := range attempts {
		summaries[i] = &AttemptSummaryResponse{
			QuizAttempt: attempt,
			StudentName: attempt.Student.FullName,
		}
	}
	return summaries, total, nil
}

// ===== STATISTICS =====

func (s *attemptService) GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error) {
	if err := s.checkQuizAccess(ctx, quizID, userID, "view_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetStats(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// ===== HELPER FUNCTIONS =====

func (s *attemptService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

// checkAttemptAccess allows the owning student, the quiz creator, and admins.
func (s *attemptService) checkAttemptAccess(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, userID, action string) error {
	if attempt.StudentID == userID || quiz.CreatedBy == userID {
		return nil
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, attempt.ID, "attempt", action, "not owner or insufficient permissions")
}

// checkQuizAccess allows the quiz creator and admins.
func (s *attemptService) checkQuizAccess(ctx context.Context, quizID uint, userID, action string) error {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if quiz.CreatedBy == userID {
		return nil
	}
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, quizID, "quiz", action, "not owner or insufficient permissions")
}

// buildAttemptResponse assembles the student view of a running attempt: the
// quiz questions with their answer keys stripped, plus the remaining time.
func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.QuizAttempt, quiz *models.Quiz, resumed bool) (*AttemptResponse, error) {
	response := &AttemptResponse{
		QuizAttempt: attempt,
		Resumed:     resumed,
	}

	if attempt.Deadline != nil {
		remaining := int(time.Until(*attempt.Deadline).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		response.TimeRemainingSeconds = &remaining
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz questions: %w", err)
	}

	response.Questions = make([]QuestionForAttempt, len(questions))
	for i, q := range questions {
		response.Questions[i] = QuestionForAttempt{
			Question: sanitizeQuestion(q),
			IsFirst:  i == 0,
			IsLast:   i == len(questions)-1,
		}
	}

	return response, nil
}

// sanitizeQuestion strips everything a student must not see during an
// attempt: the answer key and the explanation.
func sanitizeQuestion(question *models.Question) *models.Question {
	sanitized := *question
	sanitized.AnswerKey = nil
	sanitized.Explanation = nil
	return &sanitized
}

func buildResultResponse(attempt *models.QuizAttempt, quiz *models.Quiz) *AttemptResultResponse {
	return &AttemptResultResponse{
		AttemptID:     attempt.ID,
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		EarnedPoints:  attempt.EarnedPoints,
		TotalPoints:   quiz.TotalPoints,
		Percentage:    attempt.Percentage,
		IsPassed:      attempt.IsPassed,
		IsProvisional: attempt.IsProvisional(),
		PendingCount:  attempt.PendingGradingCount,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   attempt.SubmittedAt,
		TimeSpent:     attempt.TimeSpent,
		SubmitReason:  attempt.SubmitReason,
	}
}
