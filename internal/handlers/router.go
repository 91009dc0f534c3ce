package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type HandlerManager struct {
	quizHandler     *QuizHandler
	questionHandler *QuestionHandler
	attemptHandler  *AttemptHandler
	gradingHandler  *GradingHandler
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		quizHandler:     NewQuizHandler(serviceManager.Quiz(), validator, logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), validator, logger),
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler:  NewGradingHandler(serviceManager.Grading(), serviceManager.Report(), validator, logger),
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

		// Quiz routes
		quizzes := v1.Group("/quizzes")
		{
			// Authoring - Teachers and Admins only
			quizzes.POST("", teacherOnly, hm.quizHandler.CreateQuiz)
			quizzes.PUT("/:id", teacherOnly, hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", teacherOnly, hm.quizHandler.DeleteQuiz)
			quizzes.POST("/:id/publish", teacherOnly, hm.quizHandler.PublishQuiz)
			quizzes.POST("/:id/unpublish", teacherOnly, hm.quizHandler.UnpublishQuiz)
			quizzes.GET("/:id/details", teacherOnly, hm.quizHandler.GetQuizWithQuestions)
			quizzes.GET("/:id/stats", teacherOnly, hm.quizHandler.GetQuizStats)

			// Question management - Teachers and Admins only
			quizzes.POST("/:id/questions", teacherOnly, hm.questionHandler.CreateQuestion)
			quizzes.GET("/:id/questions", teacherOnly, hm.questionHandler.GetQuestionsByQuiz)

			// Viewing - all authenticated users
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/take", hm.quizHandler.GetQuizForTaking)

			// Attempts on a quiz
			quizzes.POST("/:id/attempts/start", hm.attemptHandler.StartAttempt)
			quizzes.GET("/:id/my-attempts", hm.attemptHandler.GetMyAttempts)
			quizzes.GET("/:id/attempts", teacherOnly, hm.attemptHandler.GetAttemptsByQuiz)
			quizzes.GET("/:id/attempts/stats", teacherOnly, hm.attemptHandler.GetAttemptStats)

			// Grading views - Teachers and Admins only
			quizzes.GET("/:id/grading", teacherOnly, hm.gradingHandler.ListUngraded)
			quizzes.GET("/:id/grading/stats", teacherOnly, hm.gradingHandler.GetGradingStats)
			quizzes.GET("/:id/grading/report", teacherOnly, hm.gradingHandler.ExportGradingReport)
			quizzes.POST("/:id/grading/bulk", teacherOnly, hm.gradingHandler.BulkGrade)
		}

		// Question routes - Teachers and Admins only
		questions := v1.Group("/questions")
		questions.Use(teacherOnly)
		{
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
			questions.POST("/:id/regrade", hm.gradingHandler.RegradeQuestion)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/:id/answers", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
			attempts.GET("/:id/review", hm.attemptHandler.GetReview)

			// Teacher views
			attempts.GET("/:id/summary", teacherOnly, hm.attemptHandler.GetSummary)
			attempts.POST("/:id/regrade", teacherOnly, hm.gradingHandler.RegradeAttempt)
		}

		// Manual grading - Teachers and Admins only
		answers := v1.Group("/answers")
		answers.Use(teacherOnly)
		{
			answers.POST("/:id/grade", hm.gradingHandler.GradeAnswer)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})
}
