package model

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the platform roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleProctor Role = "proctor"
)

// User represents a platform account (student, admin or proctor).
type User struct {
	ID           uuid.UUID  `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FullName joins first and last name for display and mail salutations.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// RegisterRequest is the payload for student self-registration.
type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Phone     string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest carries the one-time email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResendVerificationRequest asks for a fresh verification mail.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordRequest starts the password-reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the password-reset flow.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// UpdateProfileRequest is the payload for profile edits.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone     string `json:"phone" binding:"omitempty,max=20"`
}

// ChangePasswordRequest is the payload for an authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// UpdateRoleRequest is the admin payload for changing a user's role.
type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=student admin proctor"`
}
