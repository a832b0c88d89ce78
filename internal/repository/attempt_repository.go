package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateInProgress signals that another in-progress attempt already
// exists for the same exam and student. Callers refetch the winner's row.
var ErrDuplicateInProgress = errors.New("in-progress attempt already exists")

// PendingGradingAttempt is an attempt waiting for manual free-text grading.
type PendingGradingAttempt struct {
	Attempt       model.Attempt `json:"attempt"`
	StudentName   string        `json:"student_name"`
	StudentEmail  string        `json:"student_email"`
	ExamTitle     string        `json:"exam_title"`
	PendingCount  int           `json:"pending_count"`
}

// AttemptRepository handles attempt and answer-slot data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, student_id, attempt_number, shuffle_seed, total_marks,
	obtained_marks, percentage, is_passed, correct_answers, wrong_answers, unanswered,
	time_taken, started_at, submitted_at, status, proctoring_flags, feedback, reviewed_by, created_at`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	var flags []byte
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNumber, &a.ShuffleSeed,
		&a.TotalMarks, &a.ObtainedMarks, &a.Percentage, &a.IsPassed,
		&a.CorrectAnswers, &a.WrongAnswers, &a.Unanswered, &a.TimeTaken,
		&a.StartedAt, &a.SubmittedAt, &a.Status, &flags, &a.Feedback, &a.ReviewedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flags, &a.ProctoringFlags); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateWithAnswers inserts the attempt and its answer slots in one
// transaction. A unique-violation on the in-progress partial index maps to
// ErrDuplicateInProgress so the caller can pick up the concurrent winner.
func (r *AttemptRepository) CreateWithAnswers(ctx context.Context, a *model.Attempt, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, student_id, attempt_number, shuffle_seed, total_marks)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, started_at, status, created_at`,
		a.ExamID, a.StudentID, a.AttemptNumber, a.ShuffleSeed, a.TotalMarks,
	).Scan(&a.ID, &a.StartedAt, &a.Status, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateInProgress
		}
		return err
	}

	rows := make([][]any, 0, len(questionIDs))
	for _, qid := range questionIDs {
		rows = append(rows, []any{a.ID, qid})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"attempt_answers"},
		[]string{"attempt_id", "question_id"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves an attempt with its answer slots.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	a.Answers, err = r.answersOf(ctx, a.ID)
	return a, err
}

// GetInProgress retrieves the student's in-progress attempt on an exam, with
// answer slots, or pgx.ErrNoRows when none exists.
func (r *AttemptRepository) GetInProgress(ctx context.Context, examID, studentID uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status = 'in_progress'`,
		examID, studentID))
	if err != nil {
		return nil, err
	}
	a.Answers, err = r.answersOf(ctx, a.ID)
	return a, err
}

// GetLatestCompleted retrieves the student's newest submitted or evaluated
// attempt on an exam, or pgx.ErrNoRows.
func (r *AttemptRepository) GetLatestCompleted(ctx context.Context, examID, studentID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status IN ('submitted', 'evaluated')
		 ORDER BY attempt_number DESC LIMIT 1`,
		examID, studentID))
}

// CountCompleted returns the number of submitted/evaluated attempts the
// student holds on an exam. Flagged attempts consume their ordinal but are
// not completed.
func (r *AttemptRepository) CountCompleted(ctx context.Context, examID, studentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status IN ('submitted', 'evaluated')`,
		examID, studentID).Scan(&n)
	return n, err
}

// NextAttemptNumber returns one past the highest attempt number the student
// holds on an exam.
func (r *AttemptRepository) NextAttemptNumber(ctx context.Context, examID, studentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID).Scan(&n)
	return n, err
}

func (r *AttemptRepository) answersOf(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT aa.id, aa.attempt_id, aa.question_id, aa.selected_option,
			aa.is_correct, aa.marks_obtained, aa.time_taken
		 FROM attempt_answers aa
		 WHERE aa.attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var ans model.AttemptAnswer
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOption,
			&ans.IsCorrect, &ans.MarksObtained, &ans.TimeTaken); err != nil {
			return nil, err
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

// SaveAnswer updates a single in-flight answer slot. Returns affected rows
// so the caller can reject unknown question IDs.
func (r *AttemptRepository) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selected *string, timeTaken int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempt_answers SET selected_option = $3, time_taken = $4
		 WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID, selected, timeTaken)
	return tag.RowsAffected(), err
}

// FinalizeSubmission applies the scored result and flips in_progress to the
// terminal status in one guarded update. Zero rows means the attempt was
// concurrently submitted or terminated.
func (r *AttemptRepository) FinalizeSubmission(ctx context.Context, a *model.Attempt, status model.AttemptStatus) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var submittedAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE attempts SET status = $2, obtained_marks = $3, percentage = $4, is_passed = $5,
			correct_answers = $6, wrong_answers = $7, unanswered = $8, time_taken = $9,
			submitted_at = NOW()
		 WHERE id = $1 AND status = 'in_progress'
		 RETURNING submitted_at`,
		a.ID, status, a.ObtainedMarks, a.Percentage, a.IsPassed,
		a.CorrectAnswers, a.WrongAnswers, a.Unanswered, a.TimeTaken).Scan(&submittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.SubmittedAt = &submittedAt
	a.Status = status

	for _, ans := range a.Answers {
		if _, err := tx.Exec(ctx,
			`UPDATE attempt_answers SET selected_option = $2, is_correct = $3,
				marks_obtained = $4, time_taken = $5
			 WHERE id = $1`,
			ans.ID, ans.SelectedOption, ans.IsCorrect, ans.MarksObtained, ans.TimeTaken); err != nil {
			return false, err
		}
	}

	return true, tx.Commit(ctx)
}

// Terminate flips an in-progress attempt to flagged with a termination flag
// appended. Zero rows means the attempt already left in_progress.
func (r *AttemptRepository) Terminate(ctx context.Context, attemptID uuid.UUID, flag model.ProctoringFlag) (bool, error) {
	payload, err := json.Marshal(flag)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = 'flagged', submitted_at = NOW(),
			proctoring_flags = proctoring_flags || $2::jsonb
		 WHERE id = $1 AND status = 'in_progress'`,
		attemptID, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendFlag attaches a monitoring flag to an attempt regardless of status.
func (r *AttemptRepository) AppendFlag(ctx context.Context, attemptID uuid.UUID, flag model.ProctoringFlag) error {
	payload, err := json.Marshal(flag)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE attempts SET proctoring_flags = proctoring_flags || $2::jsonb WHERE id = $1`,
		attemptID, payload)
	return err
}

// GetAnswer retrieves one answer slot joined with its question type.
func (r *AttemptRepository) GetAnswer(ctx context.Context, answerID uuid.UUID) (*model.AttemptAnswer, model.QuestionType, error) {
	var ans model.AttemptAnswer
	var qType model.QuestionType
	err := r.pool.QueryRow(ctx,
		`SELECT aa.id, aa.attempt_id, aa.question_id, aa.selected_option,
			aa.is_correct, aa.marks_obtained, aa.time_taken, q.question_type
		 FROM attempt_answers aa
		 JOIN questions q ON q.id = aa.question_id
		 WHERE aa.id = $1`, answerID).
		Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOption,
			&ans.IsCorrect, &ans.MarksObtained, &ans.TimeTaken, &qType)
	if err != nil {
		return nil, "", err
	}
	return &ans, qType, nil
}

// GradeAnswer applies a manual grade to one answer slot.
func (r *AttemptRepository) GradeAnswer(ctx context.Context, answerID uuid.UUID, marks float64, isCorrect bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempt_answers SET marks_obtained = $2, is_correct = $3 WHERE id = $1`,
		answerID, marks, isCorrect)
	return err
}

// ApplyRecompute rewrites the attempt aggregates after manual grading and,
// when done, promotes submitted to evaluated.
func (r *AttemptRepository) ApplyRecompute(ctx context.Context, a *model.Attempt, reviewedBy uuid.UUID, feedback string, evaluated bool) error {
	status := a.Status
	if evaluated && status == model.AttemptStatusSubmitted {
		status = model.AttemptStatusEvaluated
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET obtained_marks = $2, percentage = $3, is_passed = $4,
			correct_answers = $5, wrong_answers = $6, unanswered = $7,
			status = $8, reviewed_by = $9,
			feedback = CASE WHEN $10 <> '' THEN $10 ELSE feedback END
		 WHERE id = $1`,
		a.ID, a.ObtainedMarks, a.Percentage, a.IsPassed,
		a.CorrectAnswers, a.WrongAnswers, a.Unanswered,
		status, reviewedBy, feedback)
	if err == nil {
		a.Status = status
	}
	return err
}

// SetFeedback attaches reviewer feedback without touching scores.
func (r *AttemptRepository) SetFeedback(ctx context.Context, attemptID, reviewedBy uuid.UUID, feedback string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET feedback = $2, reviewed_by = $3 WHERE id = $1`,
		attemptID, feedback, reviewedBy)
	return tag.RowsAffected(), err
}

// ListByStudent retrieves a student's attempt history, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE student_id = $1`, studentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		studentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts, err := collectAttempts(rows)
	return attempts, total, err
}

// ListByExam retrieves attempts on an exam with optional status filter.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID, status string, limit, offset int) ([]model.Attempt, int, error) {
	where := ` WHERE exam_id = $1`
	args := []any{examID}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $` + itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attempts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + attemptColumns + ` FROM attempts` + where +
		` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts, err := collectAttempts(rows)
	return attempts, total, err
}

// ListPendingGrading finds submitted attempts that still hold ungraded
// free-text answers: answered slots with zero marks and not marked correct.
func (r *AttemptRepository) ListPendingGrading(ctx context.Context, examID *uuid.UUID, limit, offset int) ([]PendingGradingAttempt, int, error) {
	where := `
		FROM attempts a
		JOIN users u ON u.id = a.student_id
		JOIN exams e ON e.id = a.exam_id
		WHERE a.status = 'submitted'
		  AND EXISTS (
			SELECT 1 FROM attempt_answers aa
			JOIN questions q ON q.id = aa.question_id
			WHERE aa.attempt_id = a.id AND q.question_type = 'free_text'
			  AND aa.selected_option IS NOT NULL AND aa.selected_option <> ''
			  AND aa.marks_obtained = 0 AND NOT aa.is_correct
		  )`
	args := []any{}
	if examID != nil {
		args = append(args, *examID)
		where += ` AND a.exam_id = $` + itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prefixColumns("a.", attemptColumns) + `, u.first_name || ' ' || u.last_name, u.email, e.title,
		(SELECT COUNT(*) FROM attempt_answers aa
		 JOIN questions q ON q.id = aa.question_id
		 WHERE aa.attempt_id = a.id AND q.question_type = 'free_text'
		   AND aa.selected_option IS NOT NULL AND aa.selected_option <> ''
		   AND aa.marks_obtained = 0 AND NOT aa.is_correct)` + where +
		` ORDER BY a.submitted_at ASC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pending []PendingGradingAttempt
	for rows.Next() {
		var p PendingGradingAttempt
		a := &p.Attempt
		var flags []byte
		err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNumber, &a.ShuffleSeed,
			&a.TotalMarks, &a.ObtainedMarks, &a.Percentage, &a.IsPassed,
			&a.CorrectAnswers, &a.WrongAnswers, &a.Unanswered, &a.TimeTaken,
			&a.StartedAt, &a.SubmittedAt, &a.Status, &flags, &a.Feedback, &a.ReviewedBy, &a.CreatedAt,
			&p.StudentName, &p.StudentEmail, &p.ExamTitle, &p.PendingCount)
		if err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(flags, &a.ProctoringFlags); err != nil {
			return nil, 0, err
		}
		pending = append(pending, p)
	}
	return pending, total, rows.Err()
}

func collectAttempts(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Attempt, error) {
	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
