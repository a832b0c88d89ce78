package handler

import (
	"net/http"

	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminUserHandler handles account administration endpoints.
type AdminUserHandler struct {
	userService *service.UserService
}

// NewAdminUserHandler creates a new AdminUserHandler.
func NewAdminUserHandler(userService *service.UserService) *AdminUserHandler {
	return &AdminUserHandler{userService: userService}
}

// ListUsers godoc
// GET /api/v1/admin/users
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	page, perPage, limit, offset := parsePagination(c)

	users, total, err := h.userService.ListUsers(c.Request.Context(), c.Query("role"), limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users},
		buildPagination(page, perPage, total))
}

// ListProctors godoc
// GET /api/v1/admin/proctors
func (h *AdminUserHandler) ListProctors(c *gin.Context) {
	proctors, err := h.userService.ListProctors(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if proctors == nil {
		proctors = []model.User{}
	}
	response.Success(c, http.StatusOK, gin.H{"proctors": proctors})
}

// UpdateRole godoc
// PUT /api/v1/admin/users/:id/role
func (h *AdminUserHandler) UpdateRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), userID, req.Role)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:id
func (h *AdminUserHandler) DeleteUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), userID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "user deleted"})
}
