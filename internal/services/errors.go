package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	// Quiz domain
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotPublished = errors.New("quiz is not published")
	ErrQuizNotAvailable = errors.New("quiz is not available at this time")
	ErrQuizHasAttempts  = errors.New("quiz has existing attempts")

	// Question domain
	ErrQuestionNotFound = errors.New("question not found")

	// Attempt domain
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptNotActive    = errors.New("attempt is not in progress")
	ErrAttemptLimitReached = errors.New("maximum attempts reached")
	ErrAttemptExpired      = errors.New("attempt time has expired")
	ErrAttemptNotSubmitted = errors.New("attempt has not been submitted")

	// Grading domain
	ErrAnswerNotFound = errors.New("answer not found")
	ErrInvalidScore   = errors.New("score is outside the allowed range")
	ErrReviewDisabled = errors.New("review is not allowed for this quiz")
)

// ===== TYPED ERRORS =====

// PermissionError reports an operation attempted by a user who does not own
// or may not access the target resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ValidationError reports a request that failed business validation.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ScoreRangeError is returned when a manual grade falls outside
// [0, question points]. It unwraps to ErrInvalidScore.
type ScoreRangeError struct {
	AnswerID  uint
	Score     float64
	MaxPoints float64
}

func (e *ScoreRangeError) Error() string {
	return fmt.Sprintf("score %.2f for answer %d must be within [0, %.2f]",
		e.Score, e.AnswerID, e.MaxPoints)
}

func (e *ScoreRangeError) Unwrap() error { return ErrInvalidScore }

// QuestionConfigError reports a misconfigured question encountered during
// grading. It is logged and the affected question contributes zero; it never
// aborts a grading pass.
type QuestionConfigError struct {
	QuestionID uint
	Details    []string
}

func (e *QuestionConfigError) Error() string {
	return fmt.Sprintf("question %d is misconfigured: %v", e.QuestionID, e.Details)
}
