package repository

import (
	"context"
	"time"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, password_hash, role, phone, is_verified, last_login, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Role, &u.Phone, &u.IsVerified, &u.LastLogin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user with a pending verification token.
func (r *UserRepository) Create(ctx context.Context, u *model.User, verificationToken string, tokenExpires time.Time) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email, password_hash, role, phone, verification_token, verification_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Phone, verificationToken, tokenExpires,
	).Scan(&u.ID, &u.CreatedAt)
}

// CreateVerified inserts an account that skips email verification. Used by
// the admin bootstrap CLI.
func (r *UserRepository) CreateVerified(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email, password_hash, role, phone, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		 RETURNING id, created_at`,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Phone,
	).Scan(&u.ID, &u.CreatedAt)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// VerifyByToken marks the matching user as verified and clears the token.
// Returns the verified user, or pgx.ErrNoRows if the token is unknown or expired.
func (r *UserRepository) VerifyByToken(ctx context.Context, token string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET is_verified = TRUE, verification_token = NULL, verification_expires = NULL
		 WHERE verification_token = $1 AND verification_expires > NOW()
		 RETURNING `+userColumns, token))
}

// SetVerificationToken stores a fresh verification token for an unverified user.
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET verification_token = $1, verification_expires = $2
		 WHERE id = $3 AND is_verified = FALSE`,
		token, expires, id)
	return err
}

// SetResetToken stores a password-reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = $1, reset_expires = $2 WHERE id = $3`,
		token, expires, id)
	return err
}

// ResetPasswordByToken swaps the password for the matching unexpired token.
func (r *UserRepository) ResetPasswordByToken(ctx context.Context, token, passwordHash string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET password_hash = $2, reset_token = NULL, reset_expires = NULL
		 WHERE reset_token = $1 AND reset_expires > NOW()
		 RETURNING `+userColumns, token, passwordHash))
}

// UpdatePassword sets a new password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	return err
}

// UpdateProfile updates mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, firstName, lastName, phone string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET first_name = COALESCE(NULLIF($2, ''), first_name),
		     last_name  = COALESCE(NULLIF($3, ''), last_name),
		     phone      = COALESCE(NULLIF($4, ''), phone)
		 WHERE id = $1
		 RETURNING `+userColumns, id, firstName, lastName, phone))
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// List retrieves users with optional role filter and pagination.
func (r *UserRepository) List(ctx context.Context, role string, limit, offset int) ([]model.User, int, error) {
	where := ``
	args := []any{}
	if role != "" {
		args = append(args, role)
		where = ` WHERE role = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// ListByRoles retrieves all users holding one of the given roles.
func (r *UserRepository) ListByRoles(ctx context.Context, roles []string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ANY($1) ORDER BY first_name, last_name`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateRole changes a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, role))
}

// Delete removes a user account.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return tag.RowsAffected(), err
}
