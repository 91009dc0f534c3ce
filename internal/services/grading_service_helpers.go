package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/scoring"
)

// ===== AUTO GRADING =====

// AutoGradeAttempt runs the machine scoring pass over every pending answer of
// a submitted attempt. Answers whose question type (or configuration) requires
// human judgment stay pending. A misconfigured question is logged and skipped;
// it never aborts the pass.
func (s *gradingService) AutoGradeAttempt(ctx context.Context, attemptID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		if attempt.IsActive() {
			return ErrAttemptNotSubmitted
		}

		quiz, err := s.repo.Quiz().GetByID(ctx, tx, attempt.QuizID)
		if err != nil {
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		return s.autoGradeTx(ctx, tx, attempt, quiz, false)
	})
}

// autoGradeTx scores the attempt's answers in an open transaction and
// recomputes the aggregate. With overwriteAuto set, previously auto-graded
// answers are scored again (used by regrading); manual grades are always
// preserved.
func (s *gradingService) autoGradeTx(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt, quiz *models.Quiz, overwriteAuto bool) error {
	questions, err := s.repo.Question().GetByQuiz(ctx, tx, attempt.QuizID)
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}
	questionsByID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		questionsByID[q.ID] = q
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to get answers: %w", err)
	}

	for _, ans := range answers {
		if !s.shouldAutoGrade(ans, overwriteAuto) {
			continue
		}
		question, ok := questionsByID[ans.QuestionID]
		if !ok || !question.Type.IsAutoGradable() {
			continue
		}

		if err := s.scoreAnswerTx(ctx, tx, ans, question); err != nil {
			return err
		}
	}

	applyAggregate(attempt, quiz, answers)
	if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
		return fmt.Errorf("failed to update attempt aggregate: %w", err)
	}

	s.logger.Info("Auto-grading pass completed",
		"attempt_id", attempt.ID,
		"status", attempt.Status,
		"pending_grading", attempt.PendingGradingCount)

	return nil
}

func (s *gradingService) shouldAutoGrade(ans *models.StudentAnswer, overwriteAuto bool) bool {
	if ans.IsPending() {
		return true
	}
	return overwriteAuto && ans.AutoGraded
}

// scoreAnswerTx grades one answer with the scoring engine and persists the
// outcome. An ungradable result leaves the answer pending for manual review.
func (s *gradingService) scoreAnswerTx(ctx context.Context, tx *gorm.DB, ans *models.StudentAnswer, question *models.Question) error {
	result := scoring.Grade(scoring.Input{
		Type:      question.Type,
		Points:    question.Points,
		Content:   question.Content,
		AnswerKey: question.AnswerKey,
		Answer:    ans.AnswerData,
	})

	if len(result.ConfigErrors) > 0 {
		configErr := &QuestionConfigError{QuestionID: question.ID, Details: result.ConfigErrors}
		s.logger.Warn("Question configuration problem during grading",
			"question_id", question.ID,
			"answer_id", ans.ID,
			"error", configErr.Error())
	}

	if !result.Gradable {
		return nil
	}

	correct := result.IsCorrect
	grade := repositories.AnswerGrade{
		Score:      result.Points,
		IsCorrect:  &correct,
		AutoGraded: true,
	}
	if err := s.repo.Answer().UpdateGrade(ctx, tx, ans.ID, grade); err != nil {
		return fmt.Errorf("failed to store auto grade for answer %d: %w", ans.ID, err)
	}

	// Mirror the write so the in-memory slice feeds the aggregate.
	now := time.Now()
	ans.PointsEarned = &result.Points
	ans.IsCorrect = &correct
	ans.AutoGraded = true
	ans.GradedAt = &now
	return nil
}

// ===== REGRADING =====

// RegradeAttempt re-runs machine scoring over the attempt, replacing previous
// auto grades. Manual grades are kept.
func (s *gradingService) RegradeAttempt(ctx context.Context, attemptID uint, userID string) (*AttemptResultResponse, error) {
	var (
		attempt *models.QuizAttempt
		quiz    *models.Quiz
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempt, err = s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		if attempt.IsActive() {
			return ErrAttemptNotSubmitted
		}

		quiz, err = s.repo.Quiz().GetByID(ctx, tx, attempt.QuizID)
		if err != nil {
			return fmt.Errorf("failed to get quiz: %w", err)
		}
		if quiz.CreatedBy != userID {
			role, err := s.repo.User().GetRole(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to get user role: %w", err)
			}
			if role != models.RoleAdmin {
				return NewPermissionError(userID, attemptID, "attempt", "regrade", "not owner or insufficient permissions")
			}
		}

		return s.autoGradeTx(ctx, tx, attempt, quiz, true)
	})
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptGraded {
		s.publishAttemptGraded(ctx, attempt)
	}
	return buildResultResponse(attempt, quiz), nil
}

// RegradeQuestion re-scores every submitted answer of one question, e.g.
// after its answer key was corrected. Manual grades are preserved; every
// affected attempt's aggregate is recomputed. Returns the number of answers
// regraded.
func (s *gradingService) RegradeQuestion(ctx context.Context, questionID uint, userID string) (int, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrQuestionNotFound
		}
		return 0, fmt.Errorf("failed to get question: %w", err)
	}
	if !question.Type.IsAutoGradable() {
		return 0, nil
	}
	if err := s.checkQuizAccess(ctx, question.QuizID, userID, "regrade"); err != nil {
		return 0, err
	}

	regraded := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quiz, err := s.repo.Quiz().GetByID(ctx, tx, question.QuizID)
		if err != nil {
			return fmt.Errorf("failed to get quiz: %w", err)
		}

		candidates, err := s.collectQuestionAnswers(ctx, tx, question)
		if err != nil {
			return err
		}

		affected := make(map[uint]struct{})
		for _, ans := range candidates {
			// Keep teacher-entered grades.
			if !ans.IsPending() && !ans.AutoGraded {
				continue
			}
			if err := s.scoreAnswerTx(ctx, tx, ans, question); err != nil {
				return err
			}
			if ans.PointsEarned != nil {
				regraded++
			}
			affected[ans.AttemptID] = struct{}{}
		}

		for attemptID := range affected {
			attempt, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
			if err != nil {
				return fmt.Errorf("failed to get attempt %d: %w", attemptID, err)
			}
			if attempt.IsActive() {
				continue
			}
			answers, err := s.repo.Answer().GetByAttempt(ctx, tx, attemptID)
			if err != nil {
				return fmt.Errorf("failed to get answers for attempt %d: %w", attemptID, err)
			}
			applyAggregate(attempt, quiz, answers)
			if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
				return fmt.Errorf("failed to update attempt %d: %w", attemptID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Question regraded",
		"question_id", questionID,
		"answers_regraded", regraded,
		"user_id", userID)

	return regraded, nil
}

// collectQuestionAnswers gathers all answers for the question across
// submitted attempts, both graded and still pending.
func (s *gradingService) collectQuestionAnswers(ctx context.Context, tx *gorm.DB, question *models.Question) ([]*models.StudentAnswer, error) {
	graded, err := s.repo.Answer().GetGradedByQuiz(ctx, tx, question.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get graded answers: %w", err)
	}
	pending, _, err := s.repo.Answer().GetPendingByQuiz(ctx, tx, question.QuizID, repositories.AnswerFilters{QuestionID: &question.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending answers: %w", err)
	}

	var out []*models.StudentAnswer
	for _, ans := range graded {
		if ans.QuestionID == question.ID {
			out = append(out, ans)
		}
	}
	out = append(out, pending...)
	return out, nil
}

// ===== SHARED GRADE WRITE =====

// gradeAnswerTx performs one manual grade inside an open transaction: lock
// the answer, validate the score range, replace the grade, and recompute the
// attempt aggregate.
func (s *gradingService) gradeAnswerTx(ctx context.Context, tx *gorm.DB, answerID uint, score float64, feedback *string, graderID string) (*models.StudentAnswer, *models.QuizAttempt, *models.Quiz, error) {
	answer, err := s.repo.Answer().GetByID(ctx, tx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrAnswerNotFound
		}
		return nil, nil, nil, fmt.Errorf("failed to get answer: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, tx, answer.AttemptID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.IsActive() {
		return nil, nil, nil, ErrAttemptNotSubmitted
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, tx, attempt.QuizID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != graderID {
		role, err := s.repo.User().GetRole(ctx, graderID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to get user role: %w", err)
		}
		if role != models.RoleAdmin {
			return nil, nil, nil, NewPermissionError(graderID, answerID, "answer", "grade", "not owner or insufficient permissions")
		}
	}

	if errs := s.business.ValidateGradeScore(score, answer.Question.Points); errs != nil {
		return nil, nil, nil, &ScoreRangeError{
			AnswerID:  answerID,
			Score:     score,
			MaxPoints: answer.Question.Points,
		}
	}

	correct := score == answer.Question.Points
	grade := repositories.AnswerGrade{
		Score:     score,
		IsCorrect: &correct,
		Feedback:  feedback,
		GraderID:  graderID,
	}
	if err := s.repo.Answer().UpdateGrade(ctx, tx, answerID, grade); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to store grade: %w", err)
	}

	now := time.Now()
	answer.PointsEarned = &score
	answer.IsCorrect = &correct
	answer.AutoGraded = false
	answer.GraderFeedback = feedback
	answer.GradedBy = &graderID
	answer.GradedAt = &now

	answers, err := s.repo.Answer().GetByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load answers: %w", err)
	}
	applyAggregate(attempt, quiz, answers)
	if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to update attempt aggregate: %w", err)
	}

	return answer, attempt, quiz, nil
}

// ===== RESULT AND EVENT HELPERS =====

func (s *gradingService) buildGradingResult(answer *models.StudentAnswer, attempt *models.QuizAttempt, quiz *models.Quiz) *GradingResult {
	result := &GradingResult{
		AnswerID:     answer.ID,
		AttemptID:    attempt.ID,
		QuestionID:   answer.QuestionID,
		MaxScore:     answer.Question.Points,
		IsCorrect:    answer.IsCorrect,
		Feedback:     answer.GraderFeedback,
		GradedBy:     answer.GradedBy,
		AttemptState: buildResultResponse(attempt, quiz),
	}
	if answer.PointsEarned != nil {
		result.Score = *answer.PointsEarned
	}
	if answer.GradedAt != nil {
		result.GradedAt = *answer.GradedAt
	}
	return result
}

func (s *gradingService) publishAnswerGraded(ctx context.Context, answer *models.StudentAnswer, attempt *models.QuizAttempt, score float64, graderID string) {
	if s.publisher == nil {
		return
	}
	payload := events.AnswerGradedEvent{
		AnswerID:   answer.ID,
		AttemptID:  attempt.ID,
		QuestionID: answer.QuestionID,
		Score:      score,
		GraderID:   graderID,
	}
	if err := s.publisher.Publish(ctx, events.AnswerGraded, payload); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", events.AnswerGraded,
			"answer_id", answer.ID,
			"error", err)
	}
}

func (s *gradingService) publishAttemptGraded(ctx context.Context, attempt *models.QuizAttempt) {
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
	if err := s.publisher.Publish(ctx, events.AttemptGraded, payload); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", events.AttemptGraded,
			"attempt_id", attempt.ID,
			"error", err)
	}
}
