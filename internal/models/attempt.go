package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptGraded     AttemptStatus = "GRADED"
)

const (
	SubmitReasonStudent = "student"
	SubmitReasonTimeout = "time_out"
)

type QuizAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QuizID        uint          `json:"quiz_id" gorm:"not null;index:idx_quiz_student"`
	StudentID     string        `json:"student_id" gorm:"not null;index:idx_quiz_student;size:255"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null"`
	Status        AttemptStatus `json:"status" gorm:"default:IN_PROGRESS;index"`

	// Timing. Deadline is fixed at creation as StartedAt + time limit and is
	// never recomputed; nil when the quiz has no time limit.
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	Deadline    *time.Time `json:"deadline"`
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeSpent   int        `json:"time_spent_seconds"`

	// Aggregate scoring. All nil until at least one scoring pass has run.
	EarnedPoints *float64 `json:"earned_points"`
	Percentage   *float64 `json:"percentage"`
	IsPassed     *bool    `json:"is_passed"`

	// PendingGradingCount tracks answers whose points_earned is still null.
	// The attempt reaches GRADED exactly when this hits zero.
	PendingGradingCount int    `json:"pending_grading_count"`
	SubmitReason        *string `json:"submit_reason" gorm:"size:50"`

	// Metadata
	IPAddress *string        `json:"ip_address" gorm:"size:45"`
	UserAgent *string        `json:"user_agent" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Relations
	Quiz    Quiz            `json:"-" gorm:"foreignKey:QuizID"`
	Student User            `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Answers []StudentAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// IsActive reports whether the attempt can still receive answers.
func (a *QuizAttempt) IsActive() bool {
	return a.Status == AttemptInProgress
}

// IsExpired reports whether t is at or past the attempt deadline.
// The boundary is inclusive: exactly at the deadline counts as expired.
func (a *QuizAttempt) IsExpired(t time.Time) bool {
	return a.Deadline != nil && !t.Before(*a.Deadline)
}

// IsProvisional reports whether the exposed score still treats ungraded
// answers as zero.
func (a *QuizAttempt) IsProvisional() bool {
	return a.Status == AttemptSubmitted && a.PendingGradingCount > 0
}

type StudentAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`

	// Answer content, shape depends on the question type. Grading never
	// mutates this field.
	AnswerData datatypes.JSON `json:"answer_data" gorm:"type:jsonb"`

	// Grading. PointsEarned nil means the answer is still pending; this is
	// the single authoritative definition of "ungraded".
	PointsEarned   *float64   `json:"points_earned"`
	IsCorrect      *bool      `json:"is_correct"`
	AutoGraded     bool       `json:"auto_graded"`
	GraderFeedback *string    `json:"grader_feedback" gorm:"type:text"`
	GradedBy       *string    `json:"graded_by" gorm:"size:255"`
	GradedAt       *time.Time `json:"graded_at"`

	// Timing
	FirstAnsweredAt *time.Time `json:"first_answered_at"`
	AnsweredAt      *time.Time `json:"answered_at"`
	TimeSpent       int        `json:"time_spent_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  QuizAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question    `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	Grader   *User       `json:"grader,omitempty" gorm:"foreignKey:GradedBy"`
}

func (StudentAnswer) TableName() string {
	return "quiz_student_answers"
}

// IsPending reports whether the answer still awaits grading.
func (sa *StudentAnswer) IsPending() bool {
	return sa.PointsEarned == nil
}

// DeriveTimeSpent computes per-question working time in whole seconds from
// the first and latest save timestamps, floored at zero. Clock skew between
// saves never produces a negative duration.
func DeriveTimeSpent(first, last *time.Time) int {
	if first == nil || last == nil {
		return 0
	}
	seconds := int(last.Sub(*first).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
