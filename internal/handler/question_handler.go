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

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// BulkCreateQuestions godoc
// POST /api/v1/admin/questions/bulk
func (h *QuestionHandler) BulkCreateQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.BulkCreateQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.questionService.BulkCreate(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"questions": questions, "count": len(questions)})
}

// ListQuestions godoc
// GET /api/v1/admin/questions
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	page, perPage, limit, offset := parsePagination(c)
	activeOnly := c.DefaultQuery("active_only", "true") != "false"

	questions, total, err := h.questionService.List(c.Request.Context(),
		c.Query("category"), c.Query("topic"), c.Query("difficulty"), c.Query("type"),
		activeOnly, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions},
		buildPagination(page, perPage, total))
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	question, err := h.questionService.Get(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// RetireQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *QuestionHandler) RetireQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Retire(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question retired"})
}

// ListCategories godoc
// GET /api/v1/admin/questions/categories
func (h *QuestionHandler) ListCategories(c *gin.Context) {
	categories, err := h.questionService.Categories(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{"categories": categories})
}

// ListTopics godoc
// GET /api/v1/admin/questions/topics
func (h *QuestionHandler) ListTopics(c *gin.Context) {
	topics, err := h.questionService.Topics(c.Request.Context(), c.Query("category"))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{"topics": topics})
}

// QuestionStats godoc
// GET /api/v1/admin/questions/stats
func (h *QuestionHandler) QuestionStats(c *gin.Context) {
	byType, byDifficulty, total, err := h.questionService.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"total":         total,
		"by_type":       byType,
		"by_difficulty": byDifficulty,
	})
}
