package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrolledStudent is a student row joined with enrollment data, used for
// rosters and reminder mail.
type EnrolledStudent struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// EnrollmentRepository handles exam enrollment data access.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Enroll inserts an enrollment. Returns false when the student was already
// enrolled, so concurrent double-enrollment collapses into one row.
func (r *EnrollmentRepository) Enroll(ctx context.Context, examID, studentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO exam_enrollments (exam_id, student_id) VALUES ($1, $2)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		examID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Unenroll removes an enrollment.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, examID, studentID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_enrollments WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID)
	return tag.RowsAffected(), err
}

// IsEnrolled reports whether the student is enrolled in the exam.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, examID, studentID uuid.UUID) (bool, error) {
	var enrolled bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_enrollments WHERE exam_id = $1 AND student_id = $2
		 )`, examID, studentID).Scan(&enrolled)
	return enrolled, err
}

// ListStudents retrieves the roster of an exam.
func (r *EnrollmentRepository) ListStudents(ctx context.Context, examID uuid.UUID) ([]EnrolledStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.first_name || ' ' || u.last_name, u.email, en.enrolled_at
		 FROM exam_enrollments en
		 JOIN users u ON u.id = en.student_id
		 WHERE en.exam_id = $1
		 ORDER BY en.enrolled_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []EnrolledStudent
	for rows.Next() {
		var s EnrolledStudent
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.EnrolledAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// CountByExam returns the enrollment count for an exam.
func (r *EnrollmentRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_enrollments WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}
