package validator

import (
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// BusinessValidator handles business rule validation beyond struct tags.
type BusinessValidator struct {
	base *Validator
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{base: New()}
}

// ValidateQuizCreate validates quiz creation business rules
func (bv *BusinessValidator) ValidateQuizCreate(req *QuizCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.base.Validate(req)...)
	errors = append(errors, bv.validateAvailabilityWindow(req.AvailableFrom, req.AvailableUntil)...)

	return errors
}

// ValidateQuizUpdate validates quiz update business rules
func (bv *BusinessValidator) ValidateQuizUpdate(req *QuizUpdateRequest, existing *models.Quiz) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.base.Validate(req)...)

	from := existing.AvailableFrom
	until := existing.AvailableUntil
	if req.AvailableFrom != nil {
		from = req.AvailableFrom
	}
	if req.AvailableUntil != nil {
		until = req.AvailableUntil
	}
	errors = append(errors, bv.validateAvailabilityWindow(from, until)...)

	return errors
}

// ValidateGradeScore validates a manual grade against the question's points.
func (bv *BusinessValidator) ValidateGradeScore(score, maxPoints float64) ValidationErrors {
	if score < 0 || score > maxPoints {
		return ValidationErrors{{
			Field:   "score",
			Message: "score must be within the question's point range",
			Value:   score,
			Rule:    "business_logic",
		}}
	}
	return nil
}

// ValidatePublish validates that a quiz is publishable.
func (bv *BusinessValidator) ValidatePublish(quiz *models.Quiz, questionCount int) ValidationErrors {
	var errors ValidationErrors

	if questionCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "quiz must have at least one question before publishing",
			Rule:    "business_logic",
		})
	}

	if quiz.TotalPoints <= 0 {
		errors = append(errors, ValidationError{
			Field:   "total_points",
			Message: "quiz must have positive total points",
			Value:   quiz.TotalPoints,
			Rule:    "business_logic",
		})
	}

	return errors
}

func (bv *BusinessValidator) validateAvailabilityWindow(from, until *time.Time) ValidationErrors {
	if from != nil && until != nil && !until.After(*from) {
		return ValidationErrors{{
			Field:   "available_until",
			Message: "availability window must end after it starts",
			Value:   until,
			Rule:    "business_logic",
		}}
	}
	return nil
}
