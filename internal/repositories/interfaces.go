package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ===== REPOSITORY INTERFACES =====

// All methods accept an optional tx so services can compose them inside a
// transaction; nil tx falls back to the base connection.

type QuizRepository interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
	HasAttempts(ctx context.Context, tx *gorm.DB, quizID uint) (bool, error)
	GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*QuizStats, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error)
	SumPoints(ctx context.Context, tx *gorm.DB, quizID uint) (float64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error

	// GetActiveAttempt returns the IN_PROGRESS attempt for (quiz, student),
	// or gorm.ErrRecordNotFound. Locks the row when called inside a transaction.
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error)
	CountByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int64, error)
	GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int, error)

	GetByStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) ([]*models.QuizAttempt, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)

	// ListExpired returns IN_PROGRESS attempts whose deadline is at or before
	// now, for the timeout sweep.
	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.QuizAttempt, error)

	GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*AttemptStats, error)
}

type AnswerRepository interface {
	// Upsert writes the answer keyed by (attempt_id, question_id), last write
	// wins. Serializes concurrent saves for the same key.
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.StudentAnswer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error)

	// UpdateGrade replaces the grading fields of an answer. AnswerData is
	// never touched.
	UpdateGrade(ctx context.Context, tx *gorm.DB, answerID uint, grade AnswerGrade) error

	// GetPendingByQuiz returns answers of submitted attempts of the quiz with
	// null points_earned.
	GetPendingByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters AnswerFilters) ([]*models.StudentAnswer, int64, error)

	GetGradingStats(ctx context.Context, tx *gorm.DB, quizID uint) (*GradingStats, error)
	GetGradedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.StudentAnswer, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	GetRole(ctx context.Context, id string) (models.UserRole, error)
}

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	IsPublished *bool      `json:"is_published"`
	CreatedBy   *string    `json:"created_by"`
	DateFrom    *time.Time `json:"date_from"`
	DateTo      *time.Time `json:"date_to"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
	SortBy      string     `json:"sort_by"`    // "created_at", "title"
	SortOrder   string     `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type AnswerFilters struct {
	QuestionID *uint `json:"question_id"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// AnswerGrade carries one grading write. Nil Score is not allowed; grading
// always produces a concrete value.
type AnswerGrade struct {
	Score      float64 `json:"score"`
	IsCorrect  *bool   `json:"is_correct"`
	Feedback   *string `json:"feedback"`
	GraderID   string  `json:"grader_id"`
	AutoGraded bool    `json:"auto_graded"`
}

// ===== SHARED STATISTICS STRUCTS =====

type QuizStats struct {
	QuestionCount     int     `json:"question_count"`
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	StudentCount      int     `json:"student_count"`
	AverageScore      float64 `json:"average_score"`
	PassedCount       int     `json:"passed_count"`
}

type AttemptStats struct {
	TotalAttempts    int                          `json:"total_attempts"`
	StatusBreakdown  map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore     float64                      `json:"average_score"`
	AverageTimeSpent int                          `json:"average_time_spent"`
	PassRate         float64                      `json:"pass_rate"`
}

type GradingStats struct {
	TotalAnswers   int     `json:"total_answers"`
	GradedAnswers  int     `json:"graded_answers"`
	PendingAnswers int     `json:"pending_answers"`
	AutoGraded     int     `json:"auto_graded"`
	ManualGraded   int     `json:"manual_graded"`
	AverageScore   float64 `json:"average_score"`
}
