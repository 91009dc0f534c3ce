package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
	publisher events.EventPublisher
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(),
		publisher: publisher,
	}
}

// ===== MANUAL GRADING =====

// GradeAnswer records a teacher's grade for one answer. Grading the same
// answer again replaces the previous grade entirely; the attempt aggregate is
// recomputed in the same transaction.
func (s *gradingService) GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, graderID string) (*GradingResult, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	var (
		answer  *models.StudentAnswer
		attempt *models.QuizAttempt
		quiz    *models.Quiz
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		answer, attempt, quiz, err = s.gradeAnswerTx(ctx, tx, answerID, req.Score, req.Feedback, graderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Answer graded",
		"answer_id", answerID,
		"attempt_id", attempt.ID,
		"score", req.Score,
		"grader_id", graderID,
		"pending_grading", attempt.PendingGradingCount)

	s.publishAnswerGraded(ctx, answer, attempt, req.Score, graderID)
	if attempt.Status == models.AttemptGraded {
		s.publishAttemptGraded(ctx, attempt)
	}

	return s.buildGradingResult(answer, attempt, quiz), nil
}

// BulkGrade applies many grades in one call. Items are independent: a
// rejected score or missing answer fails that item only.
func (s *gradingService) BulkGrade(ctx context.Context, quizID uint, req *BulkGradeRequest, graderID string) (*BulkGradeResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}
	if err := s.checkQuizAccess(ctx, quizID, graderID, "grade"); err != nil {
		return nil, err
	}

	response := &BulkGradeResponse{
		Results: make([]BulkGradeResult, 0, len(req.Grades)),
	}

	for _, item := range req.Grades {
		result := BulkGradeResult{AnswerID: item.AnswerID}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			answer, attempt, _, err := s.gradeAnswerTx(ctx, tx, item.AnswerID, item.Score, item.Feedback, graderID)
			if err != nil {
				return err
			}
			if attempt.QuizID != quizID {
				return ErrAnswerNotFound
			}
			s.publishAnswerGraded(ctx, answer, attempt, item.Score, graderID)
			if attempt.Status == models.AttemptGraded {
				s.publishAttemptGraded(ctx, attempt)
			}
			return nil
		})

		if err != nil {
			result.Error = err.Error()
			response.Failed++
		} else {
			result.Success = true
			response.Graded++
		}
		response.Results = append(response.Results, result)
	}

	s.logger.Info("Bulk grading completed",
		"quiz_id", quizID,
		"graded", response.Graded,
		"failed", response.Failed,
		"grader_id", graderID)

	return response, nil
}

// ===== GRADING QUEUE =====

func (s *gradingService) ListUngraded(ctx context.Context, quizID uint, filters repositories.AnswerFilters, userID string) (*GradingQueueResponse, error) {
	if err := s.checkQuizAccess(ctx, quizID, userID, "view_grading_queue"); err != nil {
		return nil, err
	}

	answers, total, err := s.repo.Answer().GetPendingByQuiz(ctx, nil, quizID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending answers: %w", err)
	}

	pending := make([]*PendingAnswer, len(answers))
	for i, ans := range answers {
		pending[i] = &PendingAnswer{
			StudentAnswer: ans,
			QuestionText:  ans.Question.Text,
			QuestionType:  ans.Question.Type,
			MaxPoints:     ans.Question.Points,
			StudentID:     ans.Attempt.StudentID,
		}
	}

	page, size := pageFromFilters(filters.Offset, filters.Limit)
	return &GradingQueueResponse{
		Answers: pending,
		Total:   total,
		Page:    page,
		Size:    size,
	}, nil
}

// ===== STATISTICS =====

func (s *gradingService) GetGradingStats(ctx context.Context, quizID uint, userID string) (*repositories.GradingStats, error) {
	if err := s.checkQuizAccess(ctx, quizID, userID, "view_grading_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Answer().GetGradingStats(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *gradingService) checkQuizAccess(ctx context.Context, quizID uint, userID, action string) error {
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
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user role: %w", err)
	}
	if role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, quizID, "quiz", action, "not owner or insufficient permissions")
}

func pageFromFilters(offset, limit int) (int, int) {
	if limit <= 0 {
		return 1, 0
	}
	return offset/limit + 1, limit
}
