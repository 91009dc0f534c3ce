package validator

import (
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// QuizCreateRequest represents the request structure for creating quizzes
type QuizCreateRequest struct {
	Title        string  `json:"title" validate:"required,quiz_title"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	Instructions *string `json:"instructions" validate:"omitempty,max=2000"`

	TotalPoints      float64  `json:"total_points" validate:"required,gt=0"`
	TimeLimitMinutes *int     `json:"time_limit_minutes" validate:"omitempty,time_limit"`
	MaxAttempts      *int     `json:"max_attempts" validate:"omitempty,max_attempts"`
	PassingScore     *float64 `json:"passing_score" validate:"omitempty,passing_score"`

	AutoGrade *bool `json:"auto_grade"`

	ShuffleQuestions       *bool `json:"shuffle_questions"`
	ShuffleAnswers         *bool `json:"shuffle_answers"`
	ShowResultsImmediately *bool `json:"show_results_immediately"`
	ShowCorrectAnswers     *bool `json:"show_correct_answers"`
	ShowFeedback           *bool `json:"show_feedback"`
	AllowReview            *bool `json:"allow_review"`

	AvailableFrom  *time.Time `json:"available_from"`
	AvailableUntil *time.Time `json:"available_until" validate:"omitempty,future_date"`

	Questions []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// QuizUpdateRequest represents the request structure for updating quizzes
type QuizUpdateRequest struct {
	Title        *string `json:"title" validate:"omitempty,quiz_title"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	Instructions *string `json:"instructions" validate:"omitempty,max=2000"`

	TotalPoints      *float64 `json:"total_points" validate:"omitempty,gt=0"`
	TimeLimitMinutes *int     `json:"time_limit_minutes" validate:"omitempty,time_limit"`
	MaxAttempts      *int     `json:"max_attempts" validate:"omitempty,max_attempts"`
	PassingScore     *float64 `json:"passing_score" validate:"omitempty,passing_score"`

	AutoGrade *bool `json:"auto_grade"`

	ShuffleQuestions       *bool `json:"shuffle_questions"`
	ShuffleAnswers         *bool `json:"shuffle_answers"`
	ShowResultsImmediately *bool `json:"show_results_immediately"`
	ShowCorrectAnswers     *bool `json:"show_correct_answers"`
	ShowFeedback           *bool `json:"show_feedback"`
	AllowReview            *bool `json:"allow_review"`

	AvailableFrom  *time.Time `json:"available_from"`
	AvailableUntil *time.Time `json:"available_until"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Type        models.QuestionType `json:"type" validate:"required,question_type"`
	Text        string              `json:"text" validate:"required,min=1,max=2000"`
	Content     interface{}         `json:"content" validate:"required"`
	AnswerKey   interface{}         `json:"answer_key"`
	Points      float64             `json:"points" validate:"required,points_range"`
	Order       int                 `json:"order" validate:"omitempty,min=0"`
	IsRequired  *bool               `json:"is_required"`
	Explanation *string             `json:"explanation" validate:"omitempty,max=1000"`
}

// QuestionUpdateRequest represents the request structure for updating questions
type QuestionUpdateRequest struct {
	Text        *string     `json:"text" validate:"omitempty,min=1,max=2000"`
	Content     interface{} `json:"content"`
	AnswerKey   interface{} `json:"answer_key"`
	Points      *float64    `json:"points" validate:"omitempty,points_range"`
	Order       *int        `json:"order" validate:"omitempty,min=0"`
	IsRequired  *bool       `json:"is_required"`
	Explanation *string     `json:"explanation" validate:"omitempty,max=1000"`
}
