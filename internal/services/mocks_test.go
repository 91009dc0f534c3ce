package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

var errNotStubbed = errors.New("not stubbed")

// ===== STUB SUB-REPOSITORIES =====

type stubQuizRepo struct {
	getByID              func(id uint) (*models.Quiz, error)
	getByIDWithQuestions func(id uint) (*models.Quiz, error)
	hasAttempts          func(quizID uint) (bool, error)
	list                 func(filters repositories.QuizFilters) ([]*models.Quiz, int64, error)
	update               func(quiz *models.Quiz) error
}

func (r *stubQuizRepo) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	return errNotStubbed
}

func (r *stubQuizRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	if r.getByID != nil {
		return r.getByID(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubQuizRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	if r.getByIDWithQuestions != nil {
		return r.getByIDWithQuestions(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubQuizRepo) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	if r.update != nil {
		return r.update(quiz)
	}
	return errNotStubbed
}

func (r *stubQuizRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return errNotStubbed
}

func (r *stubQuizRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	if r.list != nil {
		return r.list(filters)
	}
	return nil, 0, errNotStubbed
}

func (r *stubQuizRepo) HasAttempts(ctx context.Context, tx *gorm.DB, quizID uint) (bool, error) {
	if r.hasAttempts != nil {
		return r.hasAttempts(quizID)
	}
	return false, nil
}

func (r *stubQuizRepo) GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.QuizStats, error) {
	return nil, errNotStubbed
}

type stubQuestionRepo struct {
	getByQuiz func(quizID uint) ([]*models.Question, error)
	getByID   func(id uint) (*models.Question, error)
	sumPoints func(quizID uint) (float64, error)
}

func (r *stubQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return errNotStubbed
}

func (r *stubQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if r.getByID != nil {
		return r.getByID(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return errNotStubbed
}

func (r *stubQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return errNotStubbed
}

func (r *stubQuestionRepo) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	if r.getByQuiz != nil {
		return r.getByQuiz(quizID)
	}
	return nil, nil
}

func (r *stubQuestionRepo) SumPoints(ctx context.Context, tx *gorm.DB, quizID uint) (float64, error) {
	if r.sumPoints != nil {
		return r.sumPoints(quizID)
	}
	return 0, nil
}

type stubAttemptRepo struct {
	getActiveAttempt      func(quizID uint, studentID string) (*models.QuizAttempt, error)
	countByQuizAndStudent func(quizID uint, studentID string) (int64, error)

	getByID            func(id uint) (*models.QuizAttempt, error)
	getByIDWithAnswers func(id uint) (*models.QuizAttempt, error)
	getByStudent       func(quizID uint, studentID string) ([]*models.QuizAttempt, error)
	getByQuiz          func(quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error)
	listExpired        func(now time.Time, limit int) ([]*models.QuizAttempt, error)
	getStats           func(quizID uint) (*repositories.AttemptStats, error)
}

func (r *stubAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	return errNotStubbed
}

func (r *stubAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	if r.getByID != nil {
		return r.getByID(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAttemptRepo) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	if r.getByIDWithAnswers != nil {
		return r.getByIDWithAnswers(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	return errNotStubbed
}

func (r *stubAttemptRepo) GetActiveAttempt(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error) {
	if r.getActiveAttempt != nil {
		return r.getActiveAttempt(quizID, studentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAttemptRepo) CountByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int64, error) {
	if r.countByQuizAndStudent != nil {
		return r.countByQuizAndStudent(quizID, studentID)
	}
	return 0, nil
}

func (r *stubAttemptRepo) GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int, error) {
	return 0, errNotStubbed
}

func (r *stubAttemptRepo) GetByStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) ([]*models.QuizAttempt, error) {
	if r.getByStudent != nil {
		return r.getByStudent(quizID, studentID)
	}
	return nil, nil
}

func (r *stubAttemptRepo) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	if r.getByQuiz != nil {
		return r.getByQuiz(quizID, filters)
	}
	return nil, 0, nil
}

func (r *stubAttemptRepo) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.QuizAttempt, error) {
	if r.listExpired != nil {
		return r.listExpired(now, limit)
	}
	return nil, nil
}

func (r *stubAttemptRepo) GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	if r.getStats != nil {
		return r.getStats(quizID)
	}
	return nil, errNotStubbed
}

type stubAnswerRepo struct {
	getPendingByQuiz func(quizID uint, filters repositories.AnswerFilters) ([]*models.StudentAnswer, int64, error)
	getGradingStats  func(quizID uint) (*repositories.GradingStats, error)
}

func (r *stubAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	return errNotStubbed
}

func (r *stubAnswerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.StudentAnswer, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	return nil, nil
}

func (r *stubAnswerRepo) UpdateGrade(ctx context.Context, tx *gorm.DB, answerID uint, grade repositories.AnswerGrade) error {
	return errNotStubbed
}

func (r *stubAnswerRepo) GetPendingByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AnswerFilters) ([]*models.StudentAnswer, int64, error) {
	if r.getPendingByQuiz != nil {
		return r.getPendingByQuiz(quizID, filters)
	}
	return nil, 0, nil
}

func (r *stubAnswerRepo) GetGradingStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.GradingStats, error) {
	if r.getGradingStats != nil {
		return r.getGradingStats(quizID)
	}
	return nil, errNotStubbed
}

func (r *stubAnswerRepo) GetGradedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.StudentAnswer, error) {
	return nil, nil
}

type stubUserRepo struct {
	getByID  func(id string) (*models.User, error)
	getByIDs func(ids []string) ([]*models.User, error)
	getRole  func(id string) (models.UserRole, error)
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.getByID != nil {
		return r.getByID(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if r.getByIDs != nil {
		return r.getByIDs(ids)
	}
	return nil, nil
}

func (r *stubUserRepo) GetRole(ctx context.Context, id string) (models.UserRole, error) {
	if r.getRole != nil {
		return r.getRole(id)
	}
	return models.RoleStudent, nil
}

// ===== STUB REPOSITORY =====

type stubRepository struct {
	quiz     *stubQuizRepo
	question *stubQuestionRepo
	attempt  *stubAttemptRepo
	answer   *stubAnswerRepo
	user     *stubUserRepo
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		quiz:     &stubQuizRepo{},
		question: &stubQuestionRepo{},
		attempt:  &stubAttemptRepo{},
		answer:   &stubAnswerRepo{},
		user:     &stubUserRepo{},
	}
}

func (r *stubRepository) Quiz() repositories.QuizRepository         { return r.quiz }
func (r *stubRepository) Question() repositories.QuestionRepository { return r.question }
func (r *stubRepository) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *stubRepository) Answer() repositories.AnswerRepository     { return r.answer }
func (r *stubRepository) User() repositories.UserRepository         { return r.user }

func (r *stubRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *stubRepository) Ping(ctx context.Context) error { return nil }
func (r *stubRepository) Close() error                   { return nil }
