package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// ===== ATTEMPT REPOSITORY =====

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.getDB(tx)

	// Transactional reads bypass the cache so checks see committed state only.
	if tx != nil {
		var attempt models.QuizAttempt
		if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
			return nil, err
		}
		return &attempt, nil
	}

	cacheKey := fmt.Sprintf("attempt:%d", id)
	var attempt models.QuizAttempt
	err := a.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &attempt, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.QuizAttempt
		if err := db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, err
		}
		return &dbAttempt, nil
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempt models.QuizAttempt
	if err := db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		Preload("Answers.Question").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return err
	}
	cache.SafeDelete(ctx, a.cacheManager.Fast, fmt.Sprintf("attempt:%d", attempt.ID))
	return nil
}

// GetActiveAttempt finds the single IN_PROGRESS attempt for (quiz, student).
// Inside a transaction the row is locked so two concurrent starts serialize.
func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (*models.QuizAttempt, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ? AND status = ?", quizID, studentID, models.AttemptInProgress)
	if tx != nil {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var attempt models.QuizAttempt
	if err := query.First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByQuizAndStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int64, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return count, err
}

func (a *AttemptPostgreSQL) GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) (int, error) {
	db := a.getDB(tx)
	var maxNumber int
	err := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, quizID uint, studentID string) ([]*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.QuizAttempt
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.QuizAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.QuizAttempt{}).Where("quiz_id = ?", quizID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "started_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Preload("Student").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.QuizAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.QuizAttempt
	query := db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", models.AttemptInProgress, now).
		Order("deadline ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)

	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}

	var rows []struct {
		Status models.AttemptStatus
		Count  int
	}
	if err := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select("status, COUNT(*) AS count").
		Where("quiz_id = ?", quizID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.StatusBreakdown[r.Status] = r.Count
		stats.TotalAttempts += r.Count
	}

	row := db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select(`COALESCE(AVG(percentage), 0),
			COALESCE(AVG(time_spent), 0),
			COALESCE(AVG(CASE WHEN is_passed THEN 1.0 ELSE 0.0 END) * 100, 0)`).
		Where("quiz_id = ? AND status <> ?", quizID, models.AttemptInProgress).
		Row()
	var avgTime float64
	if err := row.Scan(&stats.AverageScore, &avgTime, &stats.PassRate); err != nil {
		return nil, fmt.Errorf("failed to scan attempt stats: %w", err)
	}
	stats.AverageTimeSpent = int(avgTime)

	return stats, nil
}

// ===== ANSWER REPOSITORY =====

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

// Upsert writes an answer keyed by (attempt_id, question_id). The existing
// row is locked first so concurrent autosaves for the same question serialize
// and the last committed write wins. FirstAnsweredAt is preserved across
// rewrites and time_spent is derived from the stored timestamps, never taken
// from the caller; grading fields are never touched here.
func (ar *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	db := ar.getDB(tx)

	var existing models.StudentAnswer
	query := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID)
	if tx != nil {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	err := query.First(&existing).Error
	switch {
	case err == nil:
		first := existing.FirstAnsweredAt
		if first == nil {
			first = answer.AnsweredAt
		}
		answer.TimeSpent = models.DeriveTimeSpent(first, answer.AnsweredAt)

		updates := map[string]interface{}{
			"answer_data": answer.AnswerData,
			"answered_at": answer.AnsweredAt,
			"time_spent":  answer.TimeSpent,
		}
		if existing.FirstAnsweredAt == nil {
			updates["first_answered_at"] = answer.AnsweredAt
		}
		if err := db.WithContext(ctx).
			Model(&models.StudentAnswer{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		answer.ID = existing.ID
		answer.FirstAnsweredAt = first
		return nil

	case err == gorm.ErrRecordNotFound:
		answer.FirstAnsweredAt = answer.AnsweredAt
		answer.TimeSpent = 0
		return db.WithContext(ctx).Create(answer).Error

	default:
		return fmt.Errorf("failed to look up answer: %w", err)
	}
}

func (ar *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.StudentAnswer, error) {
	db := ar.getDB(tx)
	var answer models.StudentAnswer
	query := db.WithContext(ctx).Preload("Question")
	if tx != nil {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	db := ar.getDB(tx)
	var answers []*models.StudentAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

// UpdateGrade replaces the grading fields of an answer. A later grade fully
// overwrites an earlier one; answer_data is left untouched.
func (ar *AnswerPostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, answerID uint, grade repositories.AnswerGrade) error {
	db := ar.getDB(tx)
	now := time.Now()

	updates := map[string]interface{}{
		"points_earned":   grade.Score,
		"is_correct":      grade.IsCorrect,
		"grader_feedback": grade.Feedback,
		"graded_at":       now,
		"auto_graded":     grade.AutoGraded,
	}
	if grade.GraderID != "" {
		updates["graded_by"] = grade.GraderID
	}

	result := db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Where("id = ?", answerID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (ar *AnswerPostgreSQL) GetPendingByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AnswerFilters) ([]*models.StudentAnswer, int64, error) {
	db := ar.getDB(tx)
	var answers []*models.StudentAnswer
	var total int64

	query := db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Joins("JOIN quiz_attempts ON quiz_attempts.id = quiz_student_answers.attempt_id").
		Where("quiz_attempts.quiz_id = ?", quizID).
		Where("quiz_attempts.status <> ?", models.AttemptInProgress).
		Where("quiz_student_answers.points_earned IS NULL")
	if filters.QuestionID != nil {
		query = query.Where("quiz_student_answers.question_id = ?", *filters.QuestionID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("quiz_student_answers.attempt_id ASC, quiz_student_answers.question_id ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Preload("Question").Preload("Attempt").Find(&answers).Error; err != nil {
		return nil, 0, err
	}
	return answers, total, nil
}

func (ar *AnswerPostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.GradingStats, error) {
	db := ar.getDB(tx)

	stats := &repositories.GradingStats{}
	row := db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Joins("JOIN quiz_attempts ON quiz_attempts.id = quiz_student_answers.attempt_id").
		Where("quiz_attempts.quiz_id = ? AND quiz_attempts.status <> ?", quizID, models.AttemptInProgress).
		Select(`COUNT(*),
			COUNT(points_earned),
			COUNT(*) - COUNT(points_earned),
			COUNT(*) FILTER (WHERE auto_graded),
			COUNT(*) FILTER (WHERE points_earned IS NOT NULL AND NOT auto_graded),
			COALESCE(AVG(points_earned), 0)`).
		Row()
	if err := row.Scan(&stats.TotalAnswers, &stats.GradedAnswers, &stats.PendingAnswers,
		&stats.AutoGraded, &stats.ManualGraded, &stats.AverageScore); err != nil {
		return nil, fmt.Errorf("failed to scan grading stats: %w", err)
	}
	return stats, nil
}

func (ar *AnswerPostgreSQL) GetGradedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.StudentAnswer, error) {
	db := ar.getDB(tx)
	var answers []*models.StudentAnswer
	if err := db.WithContext(ctx).
		Joins("JOIN quiz_attempts ON quiz_attempts.id = quiz_student_answers.attempt_id").
		Where("quiz_attempts.quiz_id = ? AND quiz_student_answers.points_earned IS NOT NULL", quizID).
		Order("quiz_student_answers.attempt_id ASC, quiz_student_answers.question_id ASC").
		Preload("Question").
		Preload("Attempt").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
