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

// ExamHandler handles exam management and enrollment endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// ListExams godoc
// GET /api/v1/admin/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, perPage, limit, offset := parsePagination(c)

	exams, total, err := h.examService.List(c.Request.Context(), c.Query("status"), c.Query("category"), limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams},
		buildPagination(page, perPage, total))
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "exam deleted"})
}

// SetExamQuestions godoc
// PUT /api/v1/admin/exams/:id/questions
func (h *ExamHandler) SetExamQuestions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ModifyExamQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.SetQuestions(c.Request.Context(), id, req.QuestionIDs)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// AddExamQuestions godoc
// POST /api/v1/admin/exams/:id/questions
func (h *ExamHandler) AddExamQuestions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ModifyExamQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.AddQuestions(c.Request.Context(), id, req.QuestionIDs)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// RemoveExamQuestion godoc
// DELETE /api/v1/admin/exams/:id/questions/:question_id
func (h *ExamHandler) RemoveExamQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.RemoveQuestion(c.Request.Context(), id, questionID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ListExamQuestions godoc
// GET /api/v1/admin/exams/:id/questions
func (h *ExamHandler) ListExamQuestions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.examService.Questions(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AssignProctors godoc
// PUT /api/v1/admin/exams/:id/proctors
func (h *ExamHandler) AssignProctors(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AssignProctorsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.AssignProctors(c.Request.Context(), id, req.ProctorIDs); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "proctors assigned"})
}

// RemoveProctor godoc
// DELETE /api/v1/admin/exams/:id/proctors/:proctor_id
func (h *ExamHandler) RemoveProctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	proctorID, err := uuid.Parse(c.Param("proctor_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.RemoveProctor(c.Request.Context(), id, proctorID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "proctor removed"})
}

// ExamRoster godoc
// GET /api/v1/admin/exams/:id/students
func (h *ExamHandler) ExamRoster(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	students, err := h.examService.Roster(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"students": students, "count": len(students)})
}

// SendReminders godoc
// POST /api/v1/admin/exams/:id/reminders
func (h *ExamHandler) SendReminders(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	count, err := h.examService.SendReminders(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"queued": count})
}

// ExamStats godoc
// GET /api/v1/admin/exams/stats
func (h *ExamHandler) ExamStats(c *gin.Context) {
	byStatus, byCategory, err := h.examService.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"by_status":   byStatus,
		"by_category": byCategory,
	})
}

// ProctorExams godoc
// GET /api/v1/proctor/exams
func (h *ExamHandler) ProctorExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := parsePagination(c)

	exams, total, err := h.examService.ProctorExams(c.Request.Context(), claims.UserID, c.Query("status"), limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams},
		buildPagination(page, perPage, total))
}

// AvailableExams godoc
// GET /api/v1/student/exams/available
func (h *ExamHandler) AvailableExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage, limit, offset := parsePagination(c)

	exams, total, err := h.examService.AvailableExams(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams},
		buildPagination(page, perPage, total))
}

// EnrolledExams godoc
// GET /api/v1/student/exams/enrolled
func (h *ExamHandler) EnrolledExams(c *gin.Context) {
	claims := middleware.GetClaims(c)

	exams, err := h.examService.EnrolledExams(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.EnrolledExam{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// EnrollInExam godoc
// POST /api/v1/student/exams/:id/enroll
func (h *ExamHandler) EnrollInExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Enroll(c.Request.Context(), id, claims.UserID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"message": "enrolled"})
}

// UnenrollFromExam godoc
// DELETE /api/v1/student/exams/:id/enroll
func (h *ExamHandler) UnenrollFromExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.examService.Unenroll(c.Request.Context(), id, claims.UserID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "unenrolled"})
}
