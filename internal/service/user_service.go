package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/mailer"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// User flow errors.
var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrEmailNotVerified = errors.New("email address is not verified")
	ErrTokenExpired     = errors.New("token is invalid or expired")
	ErrAlreadyVerified  = errors.New("email is already verified")
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// UserService covers registration, login, email verification, password
// reset and account administration.
type UserService struct {
	userRepo  *repository.UserRepository
	auth      *AuthService
	mailQueue *mailer.Queue
	log       zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo *repository.UserRepository, auth *AuthService, mailQueue *mailer.Queue, log zerolog.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		auth:      auth,
		mailQueue: mailQueue,
		log:       logger.Component(log, "user_service"),
	}
}

// Register creates a student account and queues a verification mail.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	user := &model.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Phone:        req.Phone,
	}
	err = s.userRepo.Create(ctx, user, token, time.Now().Add(verificationTokenTTL))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.mailQueue.Enqueue(ctx, &mailer.Message{
		Kind:  mailer.KindVerification,
		To:    user.Email,
		Name:  user.FullName(),
		Token: token,
	})

	return user, nil
}

// Login verifies credentials and issues a token. Unverified accounts are
// rejected before the password check result leaks anything.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := s.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, "", ErrEmailNotVerified
	}

	token, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to update last login")
	}

	return user, token, nil
}

// Logout drops the active session.
func (s *UserService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.auth.InvalidateSession(ctx, userID)
}

// VerifyEmail consumes a verification token.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	user, err := s.userRepo.VerifyByToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return user, nil
}

// ResendVerification requeues a verification mail for an unverified
// account. Unknown emails return nil so the endpoint cannot be used as an
// account oracle.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := s.userRepo.SetVerificationToken(ctx, user.ID, token, time.Now().Add(verificationTokenTTL)); err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}

	s.mailQueue.Enqueue(ctx, &mailer.Message{
		Kind:  mailer.KindVerification,
		To:    user.Email,
		Name:  user.FullName(),
		Token: token,
	})
	return nil
}

// ForgotPassword issues a reset token. Unknown emails return nil.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	s.mailQueue.Enqueue(ctx, &mailer.Message{
		Kind:  mailer.KindPasswordReset,
		To:    user.Email,
		Name:  user.FullName(),
		Token: token,
	})
	return nil
}

// ResetPassword consumes a reset token and invalidates any live session.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userRepo.ResetPasswordByToken(ctx, token, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTokenExpired
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.auth.InvalidateSession(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to invalidate session after reset")
	}
	return nil
}

// GetProfile returns the account of one user.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// UpdateProfile edits name and phone.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.UpdateProfile(ctx, userID, req.FirstName, req.LastName, req.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// ChangePassword verifies the current password before swapping in the new
// one.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, req *model.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, hash)
}

// ListUsers pages accounts for admins, optionally filtered by role.
func (s *UserService) ListUsers(ctx context.Context, role string, limit, offset int) ([]model.User, int, error) {
	return s.userRepo.List(ctx, role, limit, offset)
}

// ListProctors returns all proctor and admin accounts for assignment UIs.
func (s *UserService) ListProctors(ctx context.Context) ([]model.User, error) {
	return s.userRepo.ListByRoles(ctx, []string{string(model.RoleProctor), string(model.RoleAdmin)})
}

// UpdateRole changes one account's role.
func (s *UserService) UpdateRole(ctx context.Context, userID uuid.UUID, role model.Role) (*model.User, error) {
	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// DeleteUser removes an account and its session.
func (s *UserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	affected, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	if err := s.auth.InvalidateSession(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to invalidate session after delete")
	}
	return nil
}

// randomToken produces a 64-char hex one-time token.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
