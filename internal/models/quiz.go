package models

import (
	"time"

	"gorm.io/gorm"
)

type Quiz struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Title        string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description  *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Instructions *string `json:"instructions" gorm:"type:text"`

	// TotalPoints is the declared maximum for the quiz and is authoritative
	// over the sum of question points when computing percentages.
	TotalPoints float64 `json:"total_points" gorm:"not null" validate:"required,gt=0"`

	// Timing and attempt limits. Nil means no limit.
	TimeLimitMinutes *int `json:"time_limit_minutes" validate:"omitempty,min=1,max=600"`
	MaxAttempts      *int `json:"max_attempts" validate:"omitempty,min=1,max=10"`

	// PassingScore is a percentage threshold. Nil means pass/fail is not reported.
	PassingScore *float64 `json:"passing_score" validate:"omitempty,min=0,max=100"`

	AutoGrade bool `json:"auto_grade" gorm:"default:true"`

	// Presentation flags. These must never change grading identity.
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShuffleAnswers   bool `json:"shuffle_answers" gorm:"default:false"`

	// Post-submission disclosure flags.
	ShowResultsImmediately bool `json:"show_results_immediately" gorm:"default:true"`
	ShowCorrectAnswers     bool `json:"show_correct_answers" gorm:"default:false"`
	ShowFeedback           bool `json:"show_feedback" gorm:"default:true"`
	AllowReview            bool `json:"allow_review" gorm:"default:true"`

	IsPublished    bool       `json:"is_published" gorm:"default:false;index"`
	AvailableFrom  *time.Time `json:"available_from"`
	AvailableUntil *time.Time `json:"available_until"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	Attempts  []QuizAttempt `json:"attempts,omitempty" gorm:"foreignKey:QuizID"`
	Creator   User          `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionCount int     `json:"question_count" gorm:"-"`
	AttemptCount  int     `json:"attempt_count" gorm:"-"`
	AvgScore      float64 `json:"avg_score" gorm:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
