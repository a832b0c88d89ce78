package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionStat is per-question performance across all scored attempts of an
// exam.
type QuestionStat struct {
	QuestionID   uuid.UUID `json:"question_id"`
	Text         string    `json:"text"`
	Type         string    `json:"type"`
	Marks        float64   `json:"marks"`
	Attempted    int       `json:"attempted"`
	Correct      int       `json:"correct"`
	Accuracy     float64   `json:"accuracy"`
	AvgTimeTaken float64   `json:"avg_time_taken"`
}

// ScoreBucket is one slab of the score distribution histogram.
type ScoreBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ExamAnalytics is the aggregated performance view of one exam.
type ExamAnalytics struct {
	ExamID        uuid.UUID      `json:"exam_id"`
	Title         string         `json:"title"`
	TotalAttempts int            `json:"total_attempts"`
	AvgPercentage float64        `json:"avg_percentage"`
	MaxPercentage float64        `json:"max_percentage"`
	MinPercentage float64        `json:"min_percentage"`
	PassRate      float64        `json:"pass_rate"`
	Distribution  []ScoreBucket  `json:"distribution"`
	Questions     []QuestionStat `json:"questions"`
}

// CategoryPerformance is a student's averages within one exam category.
type CategoryPerformance struct {
	Category      string  `json:"category"`
	Attempts      int     `json:"attempts"`
	AvgPercentage float64 `json:"avg_percentage"`
}

// RecentResult is one row of a student's recent scored attempts.
type RecentResult struct {
	AttemptID   uuid.UUID  `json:"attempt_id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	ExamTitle   string     `json:"exam_title"`
	Percentage  float64    `json:"percentage"`
	IsPassed    bool       `json:"is_passed"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// StudentAnalytics is the aggregated performance view of one student.
type StudentAnalytics struct {
	StudentID     uuid.UUID             `json:"student_id"`
	TotalAttempts int                   `json:"total_attempts"`
	ExamsPassed   int                   `json:"exams_passed"`
	AvgPercentage float64               `json:"avg_percentage"`
	BestScore     float64               `json:"best_score"`
	ByCategory    []CategoryPerformance `json:"by_category"`
	Recent        []RecentResult        `json:"recent"`
}

// MonthlyTrend is one month of platform attempt volume.
type MonthlyTrend struct {
	Month    string `json:"month"`
	Attempts int    `json:"attempts"`
	Passed   int    `json:"passed"`
}

// DashboardStats is the admin landing-page summary.
type DashboardStats struct {
	TotalStudents  int            `json:"total_students"`
	TotalExams     int            `json:"total_exams"`
	TotalQuestions int            `json:"total_questions"`
	TotalAttempts  int            `json:"total_attempts"`
	PassPercentage float64        `json:"pass_percentage"`
	Recent         []RecentResult `json:"recent"`
	Trend          []MonthlyTrend `json:"trend"`
}

// ResultExportRow is one attempt row of a per-exam CSV export.
type ResultExportRow struct {
	StudentName   string
	StudentEmail  string
	AttemptNumber int
	ObtainedMarks float64
	TotalMarks    float64
	Percentage    float64
	IsPassed      bool
	Status        string
	TimeTaken     int
	SubmittedAt   *time.Time
}

// AnalyticsRepository serves read-only derived views over scored attempts.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// ExamAnalytics aggregates scored attempts of one exam. Only submitted and
// evaluated attempts count; flagged ones are excluded.
func (r *AnalyticsRepository) ExamAnalytics(ctx context.Context, examID uuid.UUID) (*ExamAnalytics, error) {
	a := &ExamAnalytics{ExamID: examID}

	err := r.pool.QueryRow(ctx,
		`SELECT e.title,
			COUNT(a.id),
			COALESCE(AVG(a.percentage), 0),
			COALESCE(MAX(a.percentage), 0),
			COALESCE(MIN(a.percentage), 0),
			COALESCE(AVG(CASE WHEN a.is_passed THEN 100.0 ELSE 0.0 END), 0)
		 FROM exams e
		 LEFT JOIN attempts a ON a.exam_id = e.id AND a.status IN ('submitted', 'evaluated')
		 WHERE e.id = $1
		 GROUP BY e.title`, examID).
		Scan(&a.Title, &a.TotalAttempts, &a.AvgPercentage, &a.MaxPercentage,
			&a.MinPercentage, &a.PassRate)
	if err != nil {
		return nil, err
	}

	distRows, err := r.pool.Query(ctx,
		`SELECT bucket, COUNT(*) FROM (
			SELECT CASE
				WHEN percentage < 25 THEN '0-24'
				WHEN percentage < 50 THEN '25-49'
				WHEN percentage < 75 THEN '50-74'
				ELSE '75-100'
			END AS bucket
			FROM attempts
			WHERE exam_id = $1 AND status IN ('submitted', 'evaluated')
		 ) b GROUP BY bucket ORDER BY bucket`, examID)
	if err != nil {
		return nil, err
	}
	defer distRows.Close()
	for distRows.Next() {
		var b ScoreBucket
		if err := distRows.Scan(&b.Label, &b.Count); err != nil {
			return nil, err
		}
		a.Distribution = append(a.Distribution, b)
	}
	if err := distRows.Err(); err != nil {
		return nil, err
	}

	qRows, err := r.pool.Query(ctx,
		`SELECT q.id, q.question_text, q.question_type, q.marks,
			COUNT(*) FILTER (WHERE aa.selected_option IS NOT NULL AND aa.selected_option <> ''),
			COUNT(*) FILTER (WHERE aa.is_correct),
			COALESCE(AVG(aa.time_taken), 0)
		 FROM exam_questions eq
		 JOIN questions q ON q.id = eq.question_id
		 LEFT JOIN attempts a ON a.exam_id = eq.exam_id
			AND a.status IN ('submitted', 'evaluated')
		 LEFT JOIN attempt_answers aa ON aa.attempt_id = a.id
			AND aa.question_id = q.id
		 WHERE eq.exam_id = $1
		 GROUP BY q.id, q.question_text, q.question_type, q.marks, eq.position
		 ORDER BY eq.position`, examID)
	if err != nil {
		return nil, err
	}
	defer qRows.Close()
	for qRows.Next() {
		var s QuestionStat
		if err := qRows.Scan(&s.QuestionID, &s.Text, &s.Type, &s.Marks,
			&s.Attempted, &s.Correct, &s.AvgTimeTaken); err != nil {
			return nil, err
		}
		if s.Attempted > 0 {
			s.Accuracy = float64(s.Correct) / float64(s.Attempted) * 100
		}
		a.Questions = append(a.Questions, s)
	}
	return a, qRows.Err()
}

// StudentAnalytics aggregates one student's scored attempts.
func (r *AnalyticsRepository) StudentAnalytics(ctx context.Context, studentID uuid.UUID) (*StudentAnalytics, error) {
	a := &StudentAnalytics{StudentID: studentID}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_passed),
			COALESCE(AVG(percentage), 0),
			COALESCE(MAX(percentage), 0)
		 FROM attempts
		 WHERE student_id = $1 AND status IN ('submitted', 'evaluated')`, studentID).
		Scan(&a.TotalAttempts, &a.ExamsPassed, &a.AvgPercentage, &a.BestScore)
	if err != nil {
		return nil, err
	}

	catRows, err := r.pool.Query(ctx,
		`SELECT e.category, COUNT(*), AVG(a.percentage)
		 FROM attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.student_id = $1 AND a.status IN ('submitted', 'evaluated')
		 GROUP BY e.category ORDER BY e.category`, studentID)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var c CategoryPerformance
		if err := catRows.Scan(&c.Category, &c.Attempts, &c.AvgPercentage); err != nil {
			return nil, err
		}
		a.ByCategory = append(a.ByCategory, c)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	a.Recent, err = r.recentResults(ctx, &studentID, 10)
	return a, err
}

// Dashboard aggregates platform-wide totals and the last six months of
// attempt volume.
func (r *AnalyticsRepository) Dashboard(ctx context.Context) (*DashboardStats, error) {
	d := &DashboardStats{}

	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM questions WHERE is_active),
			(SELECT COUNT(*) FROM attempts WHERE status IN ('submitted', 'evaluated')),
			COALESCE((SELECT AVG(CASE WHEN is_passed THEN 100.0 ELSE 0.0 END)
				FROM attempts WHERE status IN ('submitted', 'evaluated')), 0)`).
		Scan(&d.TotalStudents, &d.TotalExams, &d.TotalQuestions, &d.TotalAttempts, &d.PassPercentage)
	if err != nil {
		return nil, err
	}

	trendRows, err := r.pool.Query(ctx,
		`SELECT to_char(date_trunc('month', submitted_at), 'YYYY-MM'),
			COUNT(*), COUNT(*) FILTER (WHERE is_passed)
		 FROM attempts
		 WHERE status IN ('submitted', 'evaluated')
		   AND submitted_at >= date_trunc('month', NOW()) - INTERVAL '5 months'
		 GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer trendRows.Close()
	for trendRows.Next() {
		var t MonthlyTrend
		if err := trendRows.Scan(&t.Month, &t.Attempts, &t.Passed); err != nil {
			return nil, err
		}
		d.Trend = append(d.Trend, t)
	}
	if err := trendRows.Err(); err != nil {
		return nil, err
	}

	d.Recent, err = r.recentResults(ctx, nil, 10)
	return d, err
}

func (r *AnalyticsRepository) recentResults(ctx context.Context, studentID *uuid.UUID, limit int) ([]RecentResult, error) {
	query := `SELECT a.id, a.exam_id, e.title, a.percentage, a.is_passed, a.submitted_at
		 FROM attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.status IN ('submitted', 'evaluated')`
	args := []any{}
	if studentID != nil {
		args = append(args, *studentID)
		query += ` AND a.student_id = $1`
	}
	args = append(args, limit)
	query += ` ORDER BY a.submitted_at DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recent []RecentResult
	for rows.Next() {
		var rr RecentResult
		if err := rows.Scan(&rr.AttemptID, &rr.ExamID, &rr.ExamTitle, &rr.Percentage,
			&rr.IsPassed, &rr.SubmittedAt); err != nil {
			return nil, err
		}
		recent = append(recent, rr)
	}
	return recent, rows.Err()
}

// ResultExportRows reads every scored and flagged attempt of an exam for
// CSV export, ordered by student name then attempt number.
func (r *AnalyticsRepository) ResultExportRows(ctx context.Context, examID uuid.UUID) ([]ResultExportRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.first_name || ' ' || u.last_name, u.email, a.attempt_number, a.obtained_marks, a.total_marks,
			a.percentage, a.is_passed, a.status, a.time_taken, a.submitted_at
		 FROM attempts a
		 JOIN users u ON u.id = a.student_id
		 WHERE a.exam_id = $1 AND a.status <> 'in_progress'
		 ORDER BY u.last_name, u.first_name, a.attempt_number`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var export []ResultExportRow
	for rows.Next() {
		var row ResultExportRow
		if err := rows.Scan(&row.StudentName, &row.StudentEmail, &row.AttemptNumber,
			&row.ObtainedMarks, &row.TotalMarks, &row.Percentage, &row.IsPassed,
			&row.Status, &row.TimeTaken, &row.SubmittedAt); err != nil {
			return nil, err
		}
		export = append(export, row)
	}
	return export, rows.Err()
}
