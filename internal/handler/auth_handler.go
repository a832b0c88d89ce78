package handler

import (
	"net/http"

	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, login and account self-service.
type AuthHandler struct {
	userService *service.UserService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Register godoc
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// Login godoc
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, token, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user, "token": token})
}

// Logout godoc
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.userService.Logout(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}

// VerifyEmail godoc
// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req model.VerifyEmailRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ResendVerification godoc
// POST /api/v1/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req model.ResendVerificationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.userService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "verification email sent if the account exists"})
}

// ForgotPassword godoc
// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.userService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "reset email sent if the account exists"})
}

// ResetPassword godoc
// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "password reset"})
}

// GetProfile godoc
// GET /api/v1/me
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	user, err := h.userService.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile godoc
// PUT /api/v1/me
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ChangePassword godoc
// PUT /api/v1/me/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.ChangePasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), claims.UserID, &req); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password changed"})
}
