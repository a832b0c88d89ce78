package handler

import (
	"net/http"

	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProctoringHandler handles proctoring event and session endpoints.
type ProctoringHandler struct {
	proctoringService *service.ProctoringService
}

// NewProctoringHandler creates a new ProctoringHandler.
func NewProctoringHandler(proctoringService *service.ProctoringService) *ProctoringHandler {
	return &ProctoringHandler{proctoringService: proctoringService}
}

// RecordEvent godoc
// POST /api/v1/student/proctoring/events
func (h *ProctoringHandler) RecordEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.RecordEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	eventLog, err := h.proctoringService.Record(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"event": eventLog})
}

// TerminateAttempt godoc
// POST /api/v1/proctor/attempts/:id/terminate
func (h *ProctoringHandler) TerminateAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.TerminateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.proctoringService.Terminate(c.Request.Context(), attemptID, claims.UserID, req.Reason)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ListExamLogs godoc
// GET /api/v1/proctor/exams/:id/logs
func (h *ProctoringHandler) ListExamLogs(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, perPage, limit, offset := parsePagination(c)
	unreviewedOnly := c.Query("unreviewed_only") == "true"

	logs, total, err := h.proctoringService.ListLogs(c.Request.Context(), examID,
		c.Query("severity"), c.Query("event_type"), unreviewedOnly, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if logs == nil {
		logs = []model.ProctoringLog{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"logs": logs},
		buildPagination(page, perPage, total))
}

// ListAttemptLogs godoc
// GET /api/v1/proctor/attempts/:id/logs
func (h *ProctoringHandler) ListAttemptLogs(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	logs, err := h.proctoringService.AttemptLogs(c.Request.Context(), attemptID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if logs == nil {
		logs = []model.ProctoringLog{}
	}
	response.Success(c, http.StatusOK, gin.H{"logs": logs})
}

// ReviewLog godoc
// PUT /api/v1/proctor/logs/:id/review
func (h *ProctoringHandler) ReviewLog(c *gin.Context) {
	claims := middleware.GetClaims(c)

	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReviewLogRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.proctoringService.ReviewLog(c.Request.Context(), logID, claims.UserID, req.ReviewNotes); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "log reviewed"})
}

// ExamProctoringStats godoc
// GET /api/v1/proctor/exams/:id/stats
func (h *ProctoringHandler) ExamProctoringStats(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.proctoringService.Stats(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// FlaggedAttempts godoc
// GET /api/v1/proctor/exams/:id/flagged
func (h *ProctoringHandler) FlaggedAttempts(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, perPage, limit, offset := parsePagination(c)

	attempts, total, err := h.proctoringService.FlaggedAttempts(c.Request.Context(), examID, limit, offset)
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

// ActiveSessions godoc
// GET /api/v1/proctor/sessions
func (h *ProctoringHandler) ActiveSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessions, err := h.proctoringService.ActiveSessions(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}
