package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AnalyticsHandler handles reporting and export endpoints.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// ExamAnalytics godoc
// GET /api/v1/admin/analytics/exams/:id
func (h *AnalyticsHandler) ExamAnalytics(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	analytics, err := h.analyticsService.ExamAnalytics(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": analytics})
}

// StudentAnalytics godoc
// GET /api/v1/admin/analytics/students/:id
func (h *AnalyticsHandler) StudentAnalytics(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	analytics, err := h.analyticsService.StudentAnalytics(c.Request.Context(), studentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": analytics})
}

// MyAnalytics godoc
// GET /api/v1/student/analytics
func (h *AnalyticsHandler) MyAnalytics(c *gin.Context) {
	claims := middleware.GetClaims(c)

	analytics, err := h.analyticsService.StudentAnalytics(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": analytics})
}

// Dashboard godoc
// GET /api/v1/admin/analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	stats, err := h.analyticsService.Dashboard(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"dashboard": stats})
}

// ExportResults godoc
// GET /api/v1/admin/analytics/exams/:id/export
func (h *AnalyticsHandler) ExportResults(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var buf bytes.Buffer
	title, err := h.analyticsService.ExportResultsCSV(c.Request.Context(), examID, &buf)
	if err != nil {
		failFromError(c, err)
		return
	}

	filename := exportFilename(title)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// exportFilename builds a safe CSV filename from the exam title.
func exportFilename(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, slug)
	if slug == "" {
		slug = "results"
	}
	return slug + "_results.csv"
}
