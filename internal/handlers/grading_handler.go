package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	reportService  services.ReportService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	reportService services.ReportService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		reportService:  reportService,
		validator:      validator,
	}
}

// GradeAnswer records a manual grade for one answer. Grading an already
// graded answer replaces the prior grade.
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	h.LogRequest(c, "Grading answer", "answer_id", answerID)

	var req services.GradeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingService.GradeAnswer(c.Request.Context(), answerID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// BulkGrade grades multiple answers of one quiz. Failures are reported
// per item; one bad grade does not abort the rest.
func (h *GradingHandler) BulkGrade(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Bulk grading answers", "quiz_id", quizID)

	var req services.BulkGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	response, err := h.gradingService.BulkGrade(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListUngraded returns the grading queue of a quiz
func (h *GradingHandler) ListUngraded(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := h.parseAnswerFilters(c)

	queue, err := h.gradingService.ListUngraded(c.Request.Context(), quizID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, queue)
}

// RegradeAttempt rescores the auto-gradable answers of a submitted attempt.
// Manual grades are preserved.
func (h *GradingHandler) RegradeAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Regrading attempt", "attempt_id", attemptID)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingService.RegradeAttempt(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegradeQuestion rescores every auto-graded answer to one question, across
// all attempts of its quiz. Used after fixing a wrong answer key.
func (h *GradingHandler) RegradeQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	h.LogRequest(c, "Regrading question", "question_id", questionID)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	count, err := h.gradingService.RegradeQuestion(c.Request.Context(), questionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id":      questionID,
		"regraded_answers": count,
	})
}

// GetGradingStats returns grading progress for a quiz
func (h *GradingHandler) GetGradingStats(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	stats, err := h.gradingService.GetGradingStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Grading stats retrieved successfully",
		Data:    stats,
	})
}

// ExportGradingReport streams the grading workbook for a quiz
func (h *GradingHandler) ExportGradingReport(c *gin.Context) {
	quizID := h.parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Exporting grading report", "quiz_id", quizID)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.reportService.ExportGradingReport(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *GradingHandler) parseAnswerFilters(c *gin.Context) repositories.AnswerFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.AnswerFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if questionID := h.parseIntQuery(c, "question_id", 0); questionID > 0 {
		qid := uint(questionID)
		filters.QuestionID = &qid
	}

	return filters
}
