package repository

import (
	"context"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access, including the ordered question
// set and the derived total-marks column.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, description, instructions, category, total_marks, passing_marks,
	duration_minutes, per_question_seconds, scheduled_date, start_time, end_time,
	is_proctored, video_monitoring, browser_lockdown, identity_verification, tab_switch_limit,
	shuffle_questions, shuffle_options, show_result_immediately, allow_review,
	max_attempts, status, created_by, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Instructions, &e.Category,
		&e.TotalMarks, &e.PassingMarks, &e.DurationMinutes, &e.PerQuestionSeconds,
		&e.ScheduledDate, &e.StartTime, &e.EndTime,
		&e.IsProctored, &e.Proctoring.VideoMonitoring, &e.Proctoring.BrowserLockdown,
		&e.Proctoring.IdentityVerification, &e.Proctoring.TabSwitchLimit,
		&e.ShuffleQuestions, &e.ShuffleOptions, &e.ShowResultImmediately, &e.AllowReview,
		&e.MaxAttempts, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exam in draft status.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, instructions, category, passing_marks,
			duration_minutes, per_question_seconds, scheduled_date, start_time, end_time,
			is_proctored, video_monitoring, browser_lockdown, identity_verification, tab_switch_limit,
			shuffle_questions, shuffle_options, show_result_immediately, allow_review,
			max_attempts, status, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		 RETURNING id, total_marks, created_at, updated_at`,
		e.Title, e.Description, e.Instructions, e.Category, e.PassingMarks,
		e.DurationMinutes, e.PerQuestionSeconds, e.ScheduledDate, e.StartTime, e.EndTime,
		e.IsProctored, e.Proctoring.VideoMonitoring, e.Proctoring.BrowserLockdown,
		e.Proctoring.IdentityVerification, e.Proctoring.TabSwitchLimit,
		e.ShuffleQuestions, e.ShuffleOptions, e.ShowResultImmediately, e.AllowReview,
		e.MaxAttempts, e.Status, e.CreatedBy,
	).Scan(&e.ID, &e.TotalMarks, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// List retrieves exams with optional status/category filters and pagination.
func (r *ExamRepository) List(ctx context.Context, status, category string, limit, offset int) ([]model.Exam, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $` + itoa(len(args))
	}
	if category != "" {
		args = append(args, category)
		where += ` AND category = $` + itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM exams` + where +
		` ORDER BY scheduled_date DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams, err := collectExams(rows)
	return exams, total, err
}

// ListAvailableForStudent retrieves upcoming scheduled/active exams the
// student is not yet enrolled in.
func (r *ExamRepository) ListAvailableForStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	where := `
		FROM exams e
		WHERE e.status IN ('scheduled', 'active')
		  AND e.scheduled_date >= CURRENT_DATE
		  AND NOT EXISTS (
			SELECT 1 FROM exam_enrollments en
			WHERE en.exam_id = e.id AND en.student_id = $1
		  )`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, studentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.status IN ('scheduled', 'active')
		   AND e.scheduled_date >= CURRENT_DATE
		   AND NOT EXISTS (
			SELECT 1 FROM exam_enrollments en
			WHERE en.exam_id = e.id AND en.student_id = $1
		   )
		 ORDER BY e.scheduled_date ASC LIMIT $2 OFFSET $3`,
		studentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams, err := collectExams(rows)
	return exams, total, err
}

// ListEnrolledForStudent retrieves the exams a student is enrolled in,
// overlaid with the latest submitted/evaluated attempt if any.
func (r *ExamRepository) ListEnrolledForStudent(ctx context.Context, studentID uuid.UUID) ([]model.EnrolledExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`,
			a.submitted_at, a.obtained_marks, a.percentage, a.is_passed
		 FROM exams e
		 JOIN exam_enrollments en ON en.exam_id = e.id AND en.student_id = $1
		 LEFT JOIN LATERAL (
			SELECT submitted_at, obtained_marks, percentage, is_passed
			FROM attempts
			WHERE exam_id = e.id AND student_id = $1 AND status IN ('submitted', 'evaluated')
			ORDER BY attempt_number DESC LIMIT 1
		 ) a ON TRUE
		 ORDER BY e.scheduled_date DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrolled []model.EnrolledExam
	for rows.Next() {
		var ee model.EnrolledExam
		e := &ee.Exam
		err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Instructions, &e.Category,
			&e.TotalMarks, &e.PassingMarks, &e.DurationMinutes, &e.PerQuestionSeconds,
			&e.ScheduledDate, &e.StartTime, &e.EndTime,
			&e.IsProctored, &e.Proctoring.VideoMonitoring, &e.Proctoring.BrowserLockdown,
			&e.Proctoring.IdentityVerification, &e.Proctoring.TabSwitchLimit,
			&e.ShuffleQuestions, &e.ShuffleOptions, &e.ShowResultImmediately, &e.AllowReview,
			&e.MaxAttempts, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
			&ee.SubmittedAt, &ee.ObtainedMarks, &ee.Percentage, &ee.IsPassed)
		if err != nil {
			return nil, err
		}
		ee.Completed = ee.SubmittedAt != nil
		enrolled = append(enrolled, ee)
	}
	return enrolled, rows.Err()
}

// Update persists mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET title = $2, description = $3, instructions = $4, category = $5,
			passing_marks = $6, duration_minutes = $7, per_question_seconds = $8,
			scheduled_date = $9, start_time = $10, end_time = $11,
			is_proctored = $12, video_monitoring = $13, browser_lockdown = $14,
			identity_verification = $15, tab_switch_limit = $16,
			shuffle_questions = $17, shuffle_options = $18, show_result_immediately = $19,
			allow_review = $20, max_attempts = $21, status = $22, updated_at = NOW()
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Instructions, e.Category, e.PassingMarks,
		e.DurationMinutes, e.PerQuestionSeconds, e.ScheduledDate, e.StartTime, e.EndTime,
		e.IsProctored, e.Proctoring.VideoMonitoring, e.Proctoring.BrowserLockdown,
		e.Proctoring.IdentityVerification, e.Proctoring.TabSwitchLimit,
		e.ShuffleQuestions, e.ShuffleOptions, e.ShowResultImmediately, e.AllowReview,
		e.MaxAttempts, e.Status)
	return err
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return tag.RowsAffected(), err
}

// ReplaceQuestions atomically rewrites the ordered question set and
// recomputes total_marks from the referenced questions.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID uuid.UUID, questionIDs []uuid.UUID) (float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, examID); err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(questionIDs))
	for i, qid := range questionIDs {
		rows = append(rows, []any{examID, qid, i})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"exam_questions"},
			[]string{"exam_id", "question_id", "position"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return 0, err
		}
	}

	var total float64
	if err := tx.QueryRow(ctx,
		`UPDATE exams SET total_marks = COALESCE((
			SELECT SUM(q.marks) FROM questions q
			JOIN exam_questions eq ON eq.question_id = q.id
			WHERE eq.exam_id = $1
		 ), 0), updated_at = NOW()
		 WHERE id = $1
		 RETURNING total_marks`, examID).Scan(&total); err != nil {
		return 0, err
	}

	return total, tx.Commit(ctx)
}

// QuestionIDs retrieves the ordered question references of an exam.
func (r *ExamRepository) QuestionIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM exam_questions WHERE exam_id = $1 ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatus changes the exam lifecycle status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

// ReplaceProctors atomically rewrites the assigned-proctor set.
func (r *ExamRepository) ReplaceProctors(ctx context.Context, examID uuid.UUID, proctorIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exam_proctors WHERE exam_id = $1`, examID); err != nil {
		return err
	}
	for _, pid := range proctorIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_proctors (exam_id, proctor_id) VALUES ($1, $2)`, examID, pid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// RemoveProctor drops one proctor assignment.
func (r *ExamRepository) RemoveProctor(ctx context.Context, examID, proctorID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM exam_proctors WHERE exam_id = $1 AND proctor_id = $2`, examID, proctorID)
	return err
}

// ListForProctor retrieves proctored exams assigned to a proctor.
func (r *ExamRepository) ListForProctor(ctx context.Context, proctorID uuid.UUID, status string, limit, offset int) ([]model.Exam, int, error) {
	where := ` FROM exams e
		JOIN exam_proctors ep ON ep.exam_id = e.id AND ep.proctor_id = $1
		WHERE e.is_proctored = TRUE`
	args := []any{proctorID}
	if status != "" {
		args = append(args, status)
		where += ` AND e.status = $` + itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + where +
		` ORDER BY e.scheduled_date DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams, err := collectExams(rows)
	return exams, total, err
}

// CountByStatus returns exam totals grouped by status plus category counts.
func (r *ExamRepository) CountByStatus(ctx context.Context) (map[string]int, map[string]int, error) {
	byStatus := map[string]int{}
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM exams GROUP BY status`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, nil, err
		}
		byStatus[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	byCategory := map[string]int{}
	catRows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM exams GROUP BY category`)
	if err != nil {
		return nil, nil, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var c string
		var n int
		if err := catRows.Scan(&c, &n); err != nil {
			return nil, nil, err
		}
		byCategory[c] = n
	}
	return byStatus, byCategory, catRows.Err()
}

func collectExams(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Exam, error) {
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
