package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	business  *validator.BusinessValidator
}

func NewQuizService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuizService {
	return &quizService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		business:  validator.NewBusinessValidator(),
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *quizService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "title", req.Title, "creator_id", creatorID)

	if errs := s.business.ValidateQuizCreate(req); errs != nil {
		return nil, errs
	}

	quiz := &models.Quiz{
		Title:            req.Title,
		Description:      req.Description,
		Instructions:     req.Instructions,
		TotalPoints:      req.TotalPoints,
		TimeLimitMinutes: req.TimeLimitMinutes,
		MaxAttempts:      req.MaxAttempts,
		PassingScore:     req.PassingScore,
		AutoGrade:        true,
		AvailableFrom:    req.AvailableFrom,
		AvailableUntil:   req.AvailableUntil,
		CreatedBy:        creatorID,

		ShowResultsImmediately: true,
		ShowFeedback:           true,
		AllowReview:            true,
	}
	applyQuizFlags(quiz, req)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Quiz().Create(ctx, tx, quiz); err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}
		for i := range req.Questions {
			if _, err := createQuestionTx(ctx, s.repo, tx, quiz.ID, &req.Questions[i], creatorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID, "creator_id", creatorID)
	return s.buildQuizResponse(ctx, quiz, creatorID), nil
}

func (s *quizService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReadAccess(ctx, quiz, userID); err != nil {
		return nil, err
	}
	return s.buildQuizResponse(ctx, quiz, userID), nil
}

func (s *quizService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if err := s.checkReadAccess(ctx, quiz, userID); err != nil {
		return nil, err
	}

	// Only the owner (or an admin) may see answer keys.
	if quiz.CreatedBy != userID {
		for i := range quiz.Questions {
			quiz.Questions[i].AnswerKey = nil
			quiz.Questions[i].Explanation = nil
		}
	}
	return s.buildQuizResponse(ctx, quiz, userID), nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error) {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnerAccess(ctx, quiz, userID, "update"); err != nil {
		return nil, err
	}
	if errs := s.business.ValidateQuizUpdate(req, quiz); errs != nil {
		return nil, errs
	}

	applyQuizUpdate(quiz, req)

	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}

	s.logger.Info("Quiz updated", "quiz_id", id, "user_id", userID)
	return s.buildQuizResponse(ctx, quiz, userID), nil
}

func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnerAccess(ctx, quiz, userID, "delete"); err != nil {
		return err
	}

	hasAttempts, err := s.repo.Quiz().HasAttempts(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrQuizHasAttempts
	}

	if err := s.repo.Quiz().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.logger.Info("Quiz deleted", "quiz_id", id, "user_id", userID)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *quizService) List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error) {
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user role: %w", err)
	}

	switch role {
	case models.RoleStudent:
		// Students browse published quizzes only.
		published := true
		filters.IsPublished = &published
	case models.RoleTeacher:
		filters.CreatedBy = &userID
	}

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	responses := make([]*QuizResponse, len(quizzes))
	for i, quiz := range quizzes {
		responses[i] = s.buildQuizResponse(ctx, quiz, userID)
	}

	page, size := pageFromFilters(filters.Offset, filters.Limit)
	return &QuizListResponse{
		Quizzes: responses,
		Total:   total,
		Page:    page,
		Size:    size,
	}, nil
}

// ===== PUBLICATION =====

func (s *quizService) Publish(ctx context.Context, id uint, userID string) error {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnerAccess(ctx, quiz, userID, "publish"); err != nil {
		return err
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}
	if errs := s.business.ValidatePublish(quiz, len(questions)); errs != nil {
		return errs
	}

	sum, err := s.repo.Question().SumPoints(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to sum question points: %w", err)
	}
	if sum != quiz.TotalPoints {
		s.logger.Warn("Question points diverge from quiz total",
			"quiz_id", id,
			"question_points", sum,
			"total_points", quiz.TotalPoints)
	}

	quiz.IsPublished = true
	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return fmt.Errorf("failed to publish quiz: %w", err)
	}

	s.logger.Info("Quiz published", "quiz_id", id, "user_id", userID)
	return nil
}

func (s *quizService) Unpublish(ctx context.Context, id uint, userID string) error {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwnerAccess(ctx, quiz, userID, "unpublish"); err != nil {
		return err
	}

	quiz.IsPublished = false
	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return fmt.Errorf("failed to unpublish quiz: %w", err)
	}

	s.logger.Info("Quiz unpublished", "quiz_id", id, "user_id", userID)
	return nil
}

// ===== STUDENT VIEW =====

// GetForTaking returns a published quiz with its questions sanitized for a
// student who is about to start (or is taking) an attempt.
func (s *quizService) GetForTaking(ctx context.Context, id uint, studentID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if !quiz.IsPublished {
		return nil, ErrQuizNotPublished
	}
	now := time.Now()
	if (quiz.AvailableFrom != nil && now.Before(*quiz.AvailableFrom)) ||
		(quiz.AvailableUntil != nil && now.After(*quiz.AvailableUntil)) {
		return nil, ErrQuizNotAvailable
	}

	for i := range quiz.Questions {
		quiz.Questions[i].AnswerKey = nil
		quiz.Questions[i].Explanation = nil
	}
	quiz.QuestionCount = len(quiz.Questions)

	canTake, err := s.CanTake(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	return &QuizResponse{Quiz: quiz, CanTake: canTake}, nil
}

// ===== STATISTICS =====

func (s *quizService) GetStats(ctx context.Context, id uint, userID string) (*repositories.QuizStats, error) {
	quiz, err := s.getQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnerAccess(ctx, quiz, userID, "view_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Quiz().GetStats(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz stats: %w", err)
	}
	return stats, nil
}

// ===== PERMISSION CHECKS =====

func (s *quizService) CanAccess(ctx context.Context, quizID uint, userID string) (bool, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	if quiz.CreatedBy == userID || quiz.IsPublished {
		return true, nil
	}
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

func (s *quizService) CanTake(ctx context.Context, quizID uint, studentID string) (bool, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if !quiz.IsPublished ||
		(quiz.AvailableFrom != nil && now.Before(*quiz.AvailableFrom)) ||
		(quiz.AvailableUntil != nil && now.After(*quiz.AvailableUntil)) {
		return false, nil
	}

	if quiz.MaxAttempts != nil {
		count, err := s.repo.Attempt().CountByQuizAndStudent(ctx, nil, quizID, studentID)
		if err != nil {
			return false, fmt.Errorf("failed to count attempts: %w", err)
		}
		if count >= int64(*quiz.MaxAttempts) {
			// A still-running attempt can be resumed even at the limit.
			if _, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, quizID, studentID); err == nil {
				return true, nil
			}
			return false, nil
		}
	}
	return true, nil
}

// ===== HELPER FUNCTIONS =====

func (s *quizService) getQuiz(ctx context.Context, id uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

func (s *quizService) checkReadAccess(ctx context.Context, quiz *models.Quiz, userID string) error {
	ok, err := s.canAccessQuiz(ctx, quiz, userID)
	if err != nil {
		return err
	}
	if !ok {
		return NewPermissionError(userID, quiz.ID, "quiz", "read", "not owner or insufficient permissions")
	}
	return nil
}

func (s *quizService) checkOwnerAccess(ctx context.Context, quiz *models.Quiz, userID, action string) error {
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

func (s *quizService) canAccessQuiz(ctx context.Context, quiz *models.Quiz, userID string) (bool, error) {
	if quiz.CreatedBy == userID || quiz.IsPublished {
		return true, nil
	}
	role, err := s.repo.User().GetRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

func (s *quizService) buildQuizResponse(ctx context.Context, quiz *models.Quiz, userID string) *QuizResponse {
	isOwner := quiz.CreatedBy == userID
	response := &QuizResponse{
		Quiz:      quiz,
		CanEdit:   isOwner,
		CanDelete: isOwner,
	}
	if canTake, err := s.CanTake(ctx, quiz.ID, userID); err == nil {
		response.CanTake = canTake
	}
	return response
}

func applyQuizFlags(quiz *models.Quiz, req *CreateQuizRequest) {
	if req.AutoGrade != nil {
		quiz.AutoGrade = *req.AutoGrade
	}
	if req.ShuffleQuestions != nil {
		quiz.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleAnswers != nil {
		quiz.ShuffleAnswers = *req.ShuffleAnswers
	}
	if req.ShowResultsImmediately != nil {
		quiz.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	if req.ShowCorrectAnswers != nil {
		quiz.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.ShowFeedback != nil {
		quiz.ShowFeedback = *req.ShowFeedback
	}
	if req.AllowReview != nil {
		quiz.AllowReview = *req.AllowReview
	}
}

func applyQuizUpdate(quiz *models.Quiz, req *UpdateQuizRequest) {
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = req.Description
	}
	if req.Instructions != nil {
		quiz.Instructions = req.Instructions
	}
	if req.TotalPoints != nil {
		quiz.TotalPoints = *req.TotalPoints
	}
	if req.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = req.TimeLimitMinutes
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = req.MaxAttempts
	}
	if req.PassingScore != nil {
		quiz.PassingScore = req.PassingScore
	}
	if req.AutoGrade != nil {
		quiz.AutoGrade = *req.AutoGrade
	}
	if req.ShuffleQuestions != nil {
		quiz.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleAnswers != nil {
		quiz.ShuffleAnswers = *req.ShuffleAnswers
	}
	if req.ShowResultsImmediately != nil {
		quiz.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	if req.ShowCorrectAnswers != nil {
		quiz.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.ShowFeedback != nil {
		quiz.ShowFeedback = *req.ShowFeedback
	}
	if req.AllowReview != nil {
		quiz.AllowReview = *req.AllowReview
	}
	if req.AvailableFrom != nil {
		quiz.AvailableFrom = req.AvailableFrom
	}
	if req.AvailableUntil != nil {
		quiz.AvailableUntil = req.AvailableUntil
	}
}

// createQuestionTx inserts one question inside an open transaction, encoding
// the content and answer key payloads.
func createQuestionTx(ctx context.Context, repo repositories.Repository, tx *gorm.DB, quizID uint, req *CreateQuestionRequest, creatorID string) (*models.Question, error) {
	contentBytes, err := json.Marshal(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question content: %w", err)
	}

	question := &models.Question{
		QuizID:      quizID,
		Type:        req.Type,
		Text:        req.Text,
		Points:      req.Points,
		Order:       req.Order,
		IsRequired:  true,
		Content:     contentBytes,
		Explanation: req.Explanation,
		CreatedBy:   creatorID,
	}
	if req.IsRequired != nil {
		question.IsRequired = *req.IsRequired
	}
	if req.AnswerKey != nil {
		keyBytes, err := json.Marshal(req.AnswerKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer key: %w", err)
		}
		question.AnswerKey = keyBytes
	}

	if err := repo.Question().Create(ctx, tx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}
