package handler

import (
	"net/http"

	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GradingHandler handles manual grading endpoints for free text answers.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// ListPendingGrading godoc
// GET /api/v1/admin/grading/pending
func (h *GradingHandler) ListPendingGrading(c *gin.Context) {
	page, perPage, limit, offset := parsePagination(c)

	var examID *uuid.UUID
	if raw := c.Query("exam_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		examID = &id
	}

	attempts, total, err := h.gradingService.ListPendingGrading(c.Request.Context(), examID, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []repository.PendingGradingAttempt{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts},
		buildPagination(page, perPage, total))
}

// GradeAnswer godoc
// PUT /api/v1/admin/attempts/:id/answers/:answer_id/grade
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	answerID, err := uuid.Parse(c.Param("answer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.gradingService.GradeAnswer(c.Request.Context(), attemptID, answerID, claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// BulkGrade godoc
// PUT /api/v1/admin/attempts/:id/grade
func (h *GradingHandler) BulkGrade(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.BulkGradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.gradingService.BulkGrade(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// SetFeedback godoc
// PUT /api/v1/admin/attempts/:id/feedback
func (h *GradingHandler) SetFeedback(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.FeedbackRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.gradingService.SetFeedback(c.Request.Context(), attemptID, claims.UserID, req.Feedback); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "feedback saved"})
}
