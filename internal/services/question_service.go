package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) Create(ctx context.Context, quizID uint, req *CreateQuestionRequest, userID string) (*QuestionResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkOwner(ctx, quiz, userID, "add_question"); err != nil {
		return nil, err
	}

	var question *models.Question
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		question, err = createQuestionTx(ctx, s.repo, tx, quizID, req, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question created",
		"question_id", question.ID,
		"quiz_id", quizID,
		"type", question.Type)

	return &QuestionResponse{Question: question}, nil
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, question.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkOwner(ctx, quiz, userID, "read_question"); err != nil {
		return nil, err
	}

	return &QuestionResponse{Question: question}, nil
}

// Update modifies a question. Changing the answer key of a question that
// already has graded answers does not rescore them; regrading is an explicit
// operation.
func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, question.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkOwner(ctx, quiz, userID, "update_question"); err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Points != nil {
		question.Points = *req.Points
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if req.IsRequired != nil {
		question.IsRequired = *req.IsRequired
	}
	if req.Explanation != nil {
		question.Explanation = req.Explanation
	}
	if req.Content != nil {
		contentBytes, err := json.Marshal(req.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal question content: %w", err)
		}
		question.Content = contentBytes
	}
	if req.AnswerKey != nil {
		keyBytes, err := json.Marshal(req.AnswerKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer key: %w", err)
		}
		question.AnswerKey = keyBytes
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated", "question_id", id, "user_id", userID)
	return &QuestionResponse{Question: question}, nil
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	question, err := s.getQuestion(ctx, id)
	if err != nil {
		return err
	}
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, question.QuizID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkOwner(ctx, quiz, userID, "delete_question"); err != nil {
		return err
	}

	hasAttempts, err := s.repo.Quiz().HasAttempts(ctx, nil, question.QuizID)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrQuizHasAttempts
	}

	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted", "question_id", id, "user_id", userID)
	return nil
}

func (s *questionService) GetByQuiz(ctx context.Context, quizID uint, userID string) ([]*QuestionResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkOwner(ctx, quiz, userID, "list_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, q := range questions {
		responses[i] = &QuestionResponse{Question: q}
	}
	return responses, nil
}

func (s *questionService) getQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *questionService) checkOwner(ctx context.Context, quiz *models.Quiz, userID, action string) error {
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
	return NewPermissionError(userID, quiz.ID, "quiz", action, "not owner or insufficient permissions")
}
