package handler

import (
	"errors"
	"net/http"

	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttemptHandler handles the exam attempt lifecycle endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartOrResume godoc
// POST /api/v1/student/exams/:id/attempts
func (h *AttemptHandler) StartOrResume(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.attemptService.StartOrResume(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		var completed *service.AlreadyCompletedError
		if errors.As(err, &completed) {
			response.FailWithFields(c, http.StatusConflict, response.ErrAlreadyCompleted,
				map[string]string{"attempt_id": completed.AttemptID.String()})
			return
		}
		failFromError(c, err)
		return
	}

	status := http.StatusCreated
	if paper.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"attempt": paper})
}

// SaveAnswer godoc
// PUT /api/v1/student/attempts/:id/answers
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, claims.UserID, &req); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit godoc
// POST /api/v1/student/attempts/:id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, summary, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}

	data := gin.H{
		"attempt_id":   attempt.ID,
		"status":       attempt.Status,
		"submitted_at": attempt.SubmittedAt,
	}
	if summary != nil {
		data["result"] = summary
	}
	response.Success(c, http.StatusOK, data)
}

// GetResult godoc
// GET /api/v1/student/attempts/:id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetResult(c.Request.Context(), attemptID, claims.UserID, claims.Role)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// MyResults godoc
// GET /api/v1/student/results
func (h *AttemptHandler) MyResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := parsePagination(c)

	attempts, total, err := h.attemptService.ListStudentResults(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts},
		buildPagination(page, perPage, total))
}

// ListExamAttempts godoc
// GET /api/v1/admin/exams/:id/attempts
func (h *AttemptHandler) ListExamAttempts(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, perPage, limit, offset := parsePagination(c)

	attempts, total, err := h.attemptService.ListExamAttempts(c.Request.Context(), examID, c.Query("status"), limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts},
		buildPagination(page, perPage, total))
}
