package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

// Start begins a new attempt or resumes the student's running one. The whole
// decision runs inside a transaction with the active-attempt row locked, and
// a partial unique index on (quiz_id, student_id) WHERE IN_PROGRESS backstops
// the case where no row exists yet to lock: the losing insert of a concurrent
// pair fails with a duplicate-key error and resumes the winner's attempt.
func (s *attemptService) Start(ctx context.Context, quizID uint, studentID string, meta ClientMeta) (*AttemptResponse, error) {
	s.logger.Info("Starting quiz attempt",
		"quiz_id", quizID,
		"student_id", studentID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	now := time.Now()
	if !quiz.IsPublished {
		return nil, ErrQuizNotPublished
	}
	if (quiz.AvailableFrom != nil && now.Before(*quiz.AvailableFrom)) ||
		(quiz.AvailableUntil != nil && now.After(*quiz.AvailableUntil)) {
		return nil, ErrQuizNotAvailable
	}

	var attempt *models.QuizAttempt
	resumed := false

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.repo.Attempt().GetActiveAttempt(ctx, tx, quizID, studentID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check active attempt: %w", err)
		}

		if active != nil {
			if !active.IsExpired(now) {
				attempt = active
				resumed = true
				return nil
			}
			// The running attempt timed out; close it before deciding on a
			// new one so it counts toward the limit.
			if err := s.finalizeAttemptTx(ctx, tx, active, quiz, models.SubmitReasonTimeout, nil); err != nil {
				return fmt.Errorf("failed to close expired attempt: %w", err)
			}
		}

		if quiz.MaxAttempts != nil {
			count, err := s.repo.Attempt().CountByQuizAndStudent(ctx, tx, quizID, studentID)
			if err != nil {
				return fmt.Errorf("failed to count attempts: %w", err)
			}
			if count >= int64(*quiz.MaxAttempts) {
				return ErrAttemptLimitReached
			}
		}

		number, err := s.repo.Attempt().GetNextAttemptNumber(ctx, tx, quizID, studentID)
		if err != nil {
			return fmt.Errorf("failed to compute attempt number: %w", err)
		}

		attempt = &models.QuizAttempt{
			QuizID:        quizID,
			StudentID:     studentID,
			AttemptNumber: number,
			Status:        models.AttemptInProgress,
			StartedAt:     now,
		}
		// Deadline is fixed here and never recomputed.
		if quiz.TimeLimitMinutes != nil {
			deadline := now.Add(time.Duration(*quiz.TimeLimitMinutes) * time.Minute)
			attempt.Deadline = &deadline
		}
		if meta.IPAddress != "" {
			attempt.IPAddress = &meta.IPAddress
		}
		if meta.UserAgent != "" {
			attempt.UserAgent = &meta.UserAgent
		}

		return s.repo.Attempt().Create(ctx, tx, attempt)
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		attempt, err = s.resumeConcurrentAttempt(ctx, quizID, studentID)
		if err != nil {
			return nil, err
		}
		resumed = true
	}

	if !resumed {
		s.publishAttemptEvent(ctx, events.AttemptStarted, attempt)
		s.logger.Info("Quiz attempt started",
			"attempt_id", attempt.ID,
			"quiz_id", quizID,
			"attempt_number", attempt.AttemptNumber)
	} else {
		s.logger.Info("Resuming existing attempt", "attempt_id", attempt.ID)
	}

	return s.buildAttemptResponse(ctx, attempt, quiz, resumed)
}

// resumeConcurrentAttempt re-reads the running attempt after an insert lost
// the single-active-attempt race to a concurrent start.
func (s *attemptService) resumeConcurrentAttempt(ctx context.Context, quizID uint, studentID string) (*models.QuizAttempt, error) {
	active, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load concurrent attempt: %w", err)
	}
	s.logger.Info("Concurrent start resolved to existing attempt",
		"attempt_id", active.ID,
		"quiz_id", quizID,
		"student_id", studentID)
	return active, nil
}

// SaveAnswer upserts the student's answer for one question, last write wins.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	if errs := s.validator.Validate(req); errs != nil {
		return errs
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return NewPermissionError(studentID, attemptID, "attempt", "save_answer", "not owned by student")
	}
	if !attempt.IsActive() {
		return ErrAttemptNotActive
	}

	now := time.Now()
	if attempt.IsExpired(now) {
		// Close out the attempt; the late answer is rejected.
		if err := s.finalizeAttempt(ctx, attempt.ID, models.SubmitReasonTimeout, nil); err != nil {
			s.logger.Error("Failed to finalize expired attempt", "attempt_id", attemptID, "error", err)
		}
		return ErrAttemptExpired
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.QuizID != attempt.QuizID {
		return ErrQuestionNotFound
	}

	answerBytes, err := json.Marshal(req.AnswerData)
	if err != nil {
		return fmt.Errorf("failed to marshal answer data: %w", err)
	}

	// Per-question working time is derived from the save timestamps during
	// the upsert, never trusted from the client.
	answer := &models.StudentAnswer{
		AttemptID:  attemptID,
		QuestionID: req.QuestionID,
		AnswerData: answerBytes,
		AnsweredAt: &now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Answer().Upsert(ctx, tx, answer)
	})
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Debug("Answer saved",
		"attempt_id", attemptID,
		"question_id", req.QuestionID)

	return nil
}

// Submit closes the attempt. Submitting an already-submitted attempt is a
// no-op that returns the current result; a late submission is recorded with
// the deadline as its submission time and the timeout reason.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*AttemptResultResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", "submit", "not owned by student")
	}

	if attempt.IsActive() {
		reason := models.SubmitReasonStudent
		if attempt.IsExpired(time.Now()) {
			reason = models.SubmitReasonTimeout
		}
		if err := s.finalizeAttempt(ctx, attemptID, reason, req.TimeSpent); err != nil {
			return nil, err
		}
	}

	attempt, err = s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	result := buildResultResponse(attempt, quiz)
	// Submission always succeeds; score disclosure still follows the quiz
	// settings while grading is incomplete.
	if attempt.Status == models.AttemptSubmitted && !quiz.ShowResultsImmediately {
		result.EarnedPoints = nil
		result.Percentage = nil
		result.IsPassed = nil
	}
	return result, nil
}

// ===== FINALIZATION =====

// finalizeAttempt submits the attempt in its own transaction, then runs the
// machine scoring pass.
func (s *attemptService) finalizeAttempt(ctx context.Context, attemptID uint, reason string, timeSpent *int) error {
	var quiz *models.Quiz

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		if !attempt.IsActive() {
			return nil // Already submitted elsewhere
		}

		quiz, err = s.repo.Quiz().GetByID(ctx, tx, attempt.QuizID)
		if err != nil {
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		return s.finalizeAttemptTx(ctx, tx, attempt, quiz, reason, timeSpent)
	})
	if err != nil {
		return err
	}

	if quiz != nil && quiz.AutoGrade {
		grading := NewGradingService(s.repo, s.db, s.logger, s.validator, s.publisher)
		if err := grading.AutoGradeAttempt(ctx, attemptID); err != nil {
			s.logger.Error("Failed to auto-grade attempt", "attempt_id", attemptID, "error", err)
		}
	}

	if attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID); err == nil {
		s.publishAttemptEvent(ctx, events.AttemptSubmitted, attempt)
		if attempt.Status == models.AttemptGraded {
			s.publishAttemptEvent(ctx, events.AttemptGraded, attempt)
		}
	}

	return nil
}

// finalizeAttemptTx marks the attempt submitted inside an existing
// transaction. SubmittedAt never exceeds the deadline.
func (s *attemptService) finalizeAttemptTx(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt, quiz *models.Quiz, reason string, timeSpent *int) error {
	now := time.Now()
	submittedAt := now
	if attempt.Deadline != nil && submittedAt.After(*attempt.Deadline) {
		submittedAt = *attempt.Deadline
	}

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.SubmitReason = &reason
	if timeSpent != nil {
		attempt.TimeSpent = *timeSpent
	} else {
		attempt.TimeSpent = int(submittedAt.Sub(attempt.StartedAt).Seconds())
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to load answers: %w", err)
	}
	applyAggregate(attempt, quiz, answers)

	if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"reason", reason,
		"pending_grading", attempt.PendingGradingCount)

	return nil
}

func (s *attemptService) publishAttemptEvent(ctx context.Context, eventType string, attempt *models.QuizAttempt) {
	if s.publisher == nil {
		return
	}
	payload := events.AttemptEvent{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		StudentID:     attempt.StudentID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        string(attempt.Status),
		EarnedPoints:  attempt.EarnedPoints,
		Percentage:    attempt.Percentage,
		IsProvisional: attempt.IsProvisional(),
	}
	if attempt.SubmitReason != nil {
		payload.SubmitReason = *attempt.SubmitReason
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", eventType,
			"attempt_id", attempt.ID,
			"error", err)
	}
}
