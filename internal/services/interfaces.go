package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateQuizRequest = validator.QuizCreateRequest
type UpdateQuizRequest = validator.QuizUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest

type QuizResponse struct {
	*models.Quiz
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanTake   bool `json:"can_take"`
}

type QuizListResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

type QuestionResponse struct {
	*models.Question
}

// ===== ATTEMPT RELATED DTOs =====

// ClientMeta carries request metadata recorded on the attempt.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type SaveAnswerRequest struct {
	QuestionID uint        `json:"question_id" validate:"required"`
	AnswerData interface{} `json:"answer" validate:"required"`
}

type SubmitAttemptRequest struct {
	TimeSpent *int `json:"time_spent"`
}

type GradeAnswerRequest struct {
	Score    float64 `json:"score"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type BulkGradeItem struct {
	AnswerID uint    `json:"answer_id" validate:"required"`
	Score    float64 `json:"score"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type BulkGradeRequest struct {
	Grades []BulkGradeItem `json:"grades" validate:"required,min=1,dive"`
}

type BulkGradeResult struct {
	AnswerID uint   `json:"answer_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type BulkGradeResponse struct {
	Results []BulkGradeResult `json:"results"`
	Graded  int               `json:"graded"`
	Failed  int               `json:"failed"`
}

// AttemptResponse is the student-facing view of an attempt. Resumed is true
// when a start call returned an already-running attempt instead of creating
// a new one.
type AttemptResponse struct {
	*models.QuizAttempt
	Resumed              bool                 `json:"resumed,omitempty"`
	TimeRemainingSeconds *int                 `json:"time_remaining_seconds,omitempty"`
	Questions            []QuestionForAttempt `json:"questions,omitempty"`
}

// QuestionForAttempt is a question as shown during an attempt: content only,
// never the answer key.
type QuestionForAttempt struct {
	*models.Question
	IsFirst bool `json:"is_first"`
	IsLast  bool `json:"is_last"`
}

// AttemptResultResponse exposes the aggregate outcome of an attempt. While
// grading is still pending the score treats ungraded answers as zero and
// IsProvisional is true.
type AttemptResultResponse struct {
	AttemptID     uint                 `json:"attempt_id"`
	QuizID        uint                 `json:"quiz_id"`
	QuizTitle     string               `json:"quiz_title"`
	AttemptNumber int                  `json:"attempt_number"`
	Status        models.AttemptStatus `json:"status"`

	EarnedPoints  *float64 `json:"earned_points"`
	TotalPoints   float64  `json:"total_points"`
	Percentage    *float64 `json:"percentage"`
	IsPassed      *bool    `json:"is_passed"`
	IsProvisional bool     `json:"is_provisional"`
	PendingCount  int      `json:"pending_grading_count"`

	StartedAt    time.Time  `json:"started_at"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	TimeSpent    int        `json:"time_spent_seconds"`
	SubmitReason *string    `json:"submit_reason"`
}

// AnswerReview is one answered question in the post-submission review.
// CorrectAnswer is populated only when the quiz discloses correct answers.
type AnswerReview struct {
	QuestionID    uint                `json:"question_id"`
	QuestionText  string              `json:"question_text"`
	QuestionType  models.QuestionType `json:"question_type"`
	Points        float64             `json:"points"`
	AnswerData    interface{}         `json:"answer"`
	PointsEarned  *float64            `json:"points_earned"`
	IsCorrect     *bool               `json:"is_correct"`
	AutoGraded    bool                `json:"auto_graded"`
	Feedback      *string             `json:"feedback,omitempty"`
	Explanation   *string             `json:"explanation,omitempty"`
	CorrectAnswer interface{}         `json:"correct_answer,omitempty"`
}

type AttemptReviewResponse struct {
	Result  *AttemptResultResponse `json:"result"`
	Answers []AnswerReview         `json:"answers"`
}

// AttemptSummaryResponse is the teacher-facing per-attempt grading overview.
type AttemptSummaryResponse struct {
	*models.QuizAttempt
	StudentName     string `json:"student_name,omitempty"`
	AnsweredCount   int    `json:"answered_count"`
	GradedCount     int    `json:"graded_count"`
	AutoGradedCount int    `json:"auto_graded_count"`
}

// ===== GRADING RELATED DTOs =====

type GradingResult struct {
	AnswerID     uint       `json:"answer_id"`
	AttemptID    uint       `json:"attempt_id"`
	QuestionID   uint       `json:"question_id"`
	Score        float64    `json:"score"`
	MaxScore     float64    `json:"max_score"`
	IsCorrect    *bool      `json:"is_correct"`
	Feedback     *string    `json:"feedback"`
	GradedAt     time.Time  `json:"graded_at"`
	GradedBy     *string    `json:"graded_by"`
	AttemptState *AttemptResultResponse `json:"attempt_state,omitempty"`
}

// PendingAnswer is one grading-queue entry.
type PendingAnswer struct {
	*models.StudentAnswer
	QuestionText string              `json:"question_text"`
	QuestionType models.QuestionType `json:"question_type"`
	MaxPoints    float64             `json:"max_points"`
	StudentID    string              `json:"student_id"`
}

type GradingQueueResponse struct {
	Answers []*PendingAnswer `json:"answers"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

// ===== SERVICE INTERFACES =====

type QuizService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error)

	// Publication
	Publish(ctx context.Context, id uint, userID string) error
	Unpublish(ctx context.Context, id uint, userID string) error

	// Student view: published quiz with sanitized questions
	GetForTaking(ctx context.Context, id uint, studentID string) (*QuizResponse, error)

	// Statistics
	GetStats(ctx context.Context, id uint, userID string) (*repositories.QuizStats, error)

	// Permission checks
	CanAccess(ctx context.Context, quizID uint, userID string) (bool, error)
	CanTake(ctx context.Context, quizID uint, studentID string) (bool, error)
}

type QuestionService interface {
	Create(ctx context.Context, quizID uint, req *CreateQuestionRequest, userID string) (*QuestionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	GetByQuiz(ctx context.Context, quizID uint, userID string) ([]*QuestionResponse, error)
}

type AttemptService interface {
	// Lifecycle. Start resumes an existing IN_PROGRESS attempt instead of
	// creating a second one; Submit is idempotent for already-submitted
	// attempts.
	Start(ctx context.Context, quizID uint, studentID string, meta ClientMeta) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*AttemptResultResponse, error)

	// Time management
	GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error)
	HandleTimeouts(ctx context.Context, batchSize int) (int, error)

	// Read models
	GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResultResponse, error)
	GetReview(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error)
	GetSummary(ctx context.Context, attemptID uint, userID string) (*AttemptSummaryResponse, error)
	GetMyAttempts(ctx context.Context, quizID uint, studentID string) ([]*AttemptResponse, error)
	GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptSummaryResponse, int64, error)

	// Statistics
	GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error)
}

type GradingService interface {
	// Manual grading
	GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, graderID string) (*GradingResult, error)
	BulkGrade(ctx context.Context, quizID uint, req *BulkGradeRequest, graderID string) (*BulkGradeResponse, error)

	// Grading queue
	ListUngraded(ctx context.Context, quizID uint, filters repositories.AnswerFilters, userID string) (*GradingQueueResponse, error)

	// Auto grading
	AutoGradeAttempt(ctx context.Context, attemptID uint) error
	RegradeAttempt(ctx context.Context, attemptID uint, userID string) (*AttemptResultResponse, error)
	RegradeQuestion(ctx context.Context, questionID uint, userID string) (int, error)

	// Statistics
	GetGradingStats(ctx context.Context, quizID uint, userID string) (*repositories.GradingStats, error)
}

type ReportService interface {
	// ExportGradingReport renders the per-student grading breakdown of a quiz
	// as an xlsx workbook.
	ExportGradingReport(ctx context.Context, quizID uint, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Quiz() QuizService
	Question() QuestionService
	Attempt() AttemptService
	Grading() GradingService
	Report() ReportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
