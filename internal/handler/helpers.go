package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// failFromError maps service sentinel errors onto the response taxonomy.
// Anything unrecognized is an internal error.
func failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, service.ErrLimitReached):
		response.Fail(c, http.StatusConflict, response.ErrLimitReached)
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrExamNotEnrollable):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrMarksOutOfRange),
		errors.Is(err, service.ErrOptionsRequired),
		errors.Is(err, service.ErrCorrectAnswerInvalid),
		errors.Is(err, service.ErrUnknownQuestionRef),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrAlreadyVerified):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Fail(c, http.StatusForbidden, response.ErrEmailNotVerified)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parsePagination reads ?page and ?per_page with sane bounds.
func parsePagination(c *gin.Context) (page, perPage, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, perPage, (page - 1) * perPage
}

// buildPagination assembles the envelope pagination block.
func buildPagination(page, perPage, total int) *response.Pagination {
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
