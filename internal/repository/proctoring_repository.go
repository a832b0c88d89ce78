package repository

import (
	"context"
	"time"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProctoringStats aggregates event counts for one exam.
type ProctoringStats struct {
	TotalEvents      int            `json:"total_events"`
	ByType           map[string]int `json:"by_type"`
	BySeverity       map[string]int `json:"by_severity"`
	FlaggedStudents  int            `json:"flagged_students"`
	UnreviewedEvents int            `json:"unreviewed_events"`
}

// ActiveSession is one live attempt on a proctored exam, with its high and
// critical event count so far.
type ActiveSession struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	StudentID     uuid.UUID `json:"student_id"`
	StudentName   string    `json:"student_name"`
	ExamID        uuid.UUID `json:"exam_id"`
	ExamTitle     string    `json:"exam_title"`
	StartedAt     time.Time `json:"started_at"`
	SevereEvents  int       `json:"severe_events"`
}

// ProctoringRepository handles proctoring log data access.
type ProctoringRepository struct {
	pool *pgxpool.Pool
}

// NewProctoringRepository creates a new ProctoringRepository.
func NewProctoringRepository(pool *pgxpool.Pool) *ProctoringRepository {
	return &ProctoringRepository{pool: pool}
}

const proctoringLogColumns = `id, exam_id, student_id, attempt_id, event_type, description,
	severity, metadata, is_reviewed, reviewed_by, review_notes, recorded_at`

func scanProctoringLog(row interface{ Scan(...any) error }) (*model.ProctoringLog, error) {
	l := &model.ProctoringLog{}
	err := row.Scan(&l.ID, &l.ExamID, &l.StudentID, &l.AttemptID, &l.EventType, &l.Description,
		&l.Severity, &l.Metadata, &l.IsReviewed, &l.ReviewedBy, &l.ReviewNotes, &l.RecordedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Create inserts one proctoring log row.
func (r *ProctoringRepository) Create(ctx context.Context, l *model.ProctoringLog) error {
	metadata := l.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctoring_logs (exam_id, student_id, attempt_id, event_type, description, severity, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, recorded_at`,
		l.ExamID, l.StudentID, l.AttemptID, l.EventType, l.Description, l.Severity, metadata,
	).Scan(&l.ID, &l.RecordedAt)
}

// BulkInsert writes a batch of logs with COPY. Used by the event worker.
func (r *ProctoringRepository) BulkInsert(ctx context.Context, logs []model.ProctoringLog) error {
	rows := make([][]any, 0, len(logs))
	for _, l := range logs {
		metadata := l.Metadata
		if len(metadata) == 0 {
			metadata = []byte(`{}`)
		}
		rows = append(rows, []any{
			l.ExamID, l.StudentID, l.AttemptID, l.EventType, l.Description,
			l.Severity, metadata, l.RecordedAt,
		})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"proctoring_logs"},
		[]string{"exam_id", "student_id", "attempt_id", "event_type", "description", "severity", "metadata", "recorded_at"},
		pgx.CopyFromRows(rows))
	return err
}

// ListByExam retrieves logs for an exam with optional filters, newest first.
func (r *ProctoringRepository) ListByExam(ctx context.Context, examID uuid.UUID, severity, eventType string, unreviewedOnly bool, limit, offset int) ([]model.ProctoringLog, int, error) {
	where := ` WHERE exam_id = $1`
	args := []any{examID}
	if severity != "" {
		args = append(args, severity)
		where += ` AND severity = $` + itoa(len(args))
	}
	if eventType != "" {
		args = append(args, eventType)
		where += ` AND event_type = $` + itoa(len(args))
	}
	if unreviewedOnly {
		where += ` AND is_reviewed = FALSE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM proctoring_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + proctoringLogColumns + ` FROM proctoring_logs` + where +
		` ORDER BY recorded_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs, err := collectProctoringLogs(rows)
	return logs, total, err
}

// ListByAttempt retrieves all logs linked to one attempt, oldest first.
func (r *ProctoringRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.ProctoringLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+proctoringLogColumns+` FROM proctoring_logs
		 WHERE attempt_id = $1 ORDER BY recorded_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProctoringLogs(rows)
}

// Review marks a log as reviewed. Returns affected rows.
func (r *ProctoringRepository) Review(ctx context.Context, logID, reviewerID uuid.UUID, notes string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE proctoring_logs SET is_reviewed = TRUE, reviewed_by = $2, review_notes = $3
		 WHERE id = $1`,
		logID, reviewerID, notes)
	return tag.RowsAffected(), err
}

// Stats aggregates event counts for an exam.
func (r *ProctoringRepository) Stats(ctx context.Context, examID uuid.UUID) (*ProctoringStats, error) {
	stats := &ProctoringStats{
		ByType:     map[string]int{},
		BySeverity: map[string]int{},
	}

	rows, err := r.pool.Query(ctx,
		`SELECT event_type, severity, COUNT(*) FROM proctoring_logs
		 WHERE exam_id = $1 GROUP BY event_type, severity`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var eventType, severity string
		var n int
		if err := rows.Scan(&eventType, &severity, &n); err != nil {
			return nil, err
		}
		stats.ByType[eventType] += n
		stats.BySeverity[severity] += n
		stats.TotalEvents += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(DISTINCT student_id) FROM proctoring_logs
			 WHERE exam_id = $1 AND severity IN ('high', 'critical')),
			(SELECT COUNT(*) FROM proctoring_logs
			 WHERE exam_id = $1 AND is_reviewed = FALSE)`,
		examID).Scan(&stats.FlaggedStudents, &stats.UnreviewedEvents)
	return stats, err
}

// ActiveSessions lists live attempts on proctored exams assigned to a
// proctor, with their severe-event counts.
func (r *ProctoringRepository) ActiveSessions(ctx context.Context, proctorID uuid.UUID) ([]ActiveSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.first_name || ' ' || u.last_name, a.exam_id, e.title, a.started_at,
			(SELECT COUNT(*) FROM proctoring_logs pl
			 WHERE pl.attempt_id = a.id AND pl.severity IN ('high', 'critical'))
		 FROM attempts a
		 JOIN exams e ON e.id = a.exam_id AND e.is_proctored = TRUE
		 JOIN exam_proctors ep ON ep.exam_id = e.id AND ep.proctor_id = $1
		 JOIN users u ON u.id = a.student_id
		 WHERE a.status = 'in_progress'
		 ORDER BY a.started_at ASC`, proctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ActiveSession
	for rows.Next() {
		var s ActiveSession
		if err := rows.Scan(&s.AttemptID, &s.StudentID, &s.StudentName, &s.ExamID,
			&s.ExamTitle, &s.StartedAt, &s.SevereEvents); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func collectProctoringLogs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.ProctoringLog, error) {
	var logs []model.ProctoringLog
	for rows.Next() {
		l, err := scanProctoringLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
