package repository

import (
	"context"
	"encoding/json"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, question_text, question_type, options, correct_answer, category, topic, difficulty, marks, negative_marks, explanation, created_by, is_active, created_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	q := &model.Question{}
	var options []byte
	err := row.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &options, &q.CorrectAnswer,
		&q.Category, &q.Topic, &q.Difficulty, &q.Marks, &q.NegativeMarks,
		&q.Explanation, &q.CreatedBy, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question_text, question_type, options, correct_answer, category, topic, difficulty, marks, negative_marks, explanation, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, is_active, created_at, updated_at`,
		q.QuestionText, q.QuestionType, options, q.CorrectAnswer, q.Category, q.Topic,
		q.Difficulty, q.Marks, q.NegativeMarks, q.Explanation, q.CreatedBy,
	).Scan(&q.ID, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
}

// GetByID retrieves a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

// ListByIDs retrieves all questions matching the given IDs.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListByExam retrieves an exam's questions in their defined order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.question_text, q.question_type, q.options, q.correct_answer, q.category, q.topic, q.difficulty, q.marks, q.negative_marks, q.explanation, q.created_by, q.is_active, q.created_at, q.updated_at
		 FROM questions q
		 JOIN exam_questions eq ON eq.question_id = q.id
		 WHERE eq.exam_id = $1
		 ORDER BY eq.position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// List retrieves questions with optional filters and pagination.
func (r *QuestionRepository) List(ctx context.Context, category, topic, difficulty, questionType string, activeOnly bool, limit, offset int) ([]model.Question, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if category != "" {
		args = append(args, category)
		where += ` AND category = $` + itoa(len(args))
	}
	if topic != "" {
		args = append(args, topic)
		where += ` AND topic = $` + itoa(len(args))
	}
	if difficulty != "" {
		args = append(args, difficulty)
		where += ` AND difficulty = $` + itoa(len(args))
	}
	if questionType != "" {
		args = append(args, questionType)
		where += ` AND question_type = $` + itoa(len(args))
	}
	if activeOnly {
		where += ` AND is_active = TRUE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + questionColumns + ` FROM questions` + where +
		` ORDER BY created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions, err := collectQuestions(rows)
	return questions, total, err
}

// Update applies non-zero fields of the patch to a question.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_text = $2, options = $3, correct_answer = $4, category = $5,
		     topic = $6, difficulty = $7, marks = $8, negative_marks = $9,
		     explanation = $10, updated_at = NOW()
		 WHERE id = $1`,
		q.ID, q.QuestionText, options, q.CorrectAnswer, q.Category, q.Topic,
		q.Difficulty, q.Marks, q.NegativeMarks, q.Explanation)
	return err
}

// Retire deactivates a question. Attempts that already scored it keep their
// history; the question simply stops being offered for new exams.
func (r *QuestionRepository) Retire(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return tag.RowsAffected(), err
}

// Categories lists the distinct categories of active questions.
func (r *QuestionRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT category FROM questions WHERE is_active = TRUE ORDER BY category`)
}

// Topics lists the distinct topics of active questions, optionally per category.
func (r *QuestionRepository) Topics(ctx context.Context, category string) ([]string, error) {
	if category != "" {
		return r.distinctArgs(ctx,
			`SELECT DISTINCT topic FROM questions WHERE is_active = TRUE AND category = $1 ORDER BY topic`, category)
	}
	return r.distinct(ctx, `SELECT DISTINCT topic FROM questions WHERE is_active = TRUE ORDER BY topic`)
}

// CountStats returns totals grouped by type and difficulty.
func (r *QuestionRepository) CountStats(ctx context.Context) (map[string]int, map[string]int, int, error) {
	byType := map[string]int{}
	byDifficulty := map[string]int{}
	total := 0

	rows, err := r.pool.Query(ctx,
		`SELECT question_type, difficulty, COUNT(*) FROM questions WHERE is_active = TRUE GROUP BY question_type, difficulty`)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var qt, diff string
		var n int
		if err := rows.Scan(&qt, &diff, &n); err != nil {
			return nil, nil, 0, err
		}
		byType[qt] += n
		byDifficulty[diff] += n
		total += n
	}
	return byType, byDifficulty, total, rows.Err()
}

func (r *QuestionRepository) distinct(ctx context.Context, query string) ([]string, error) {
	return r.distinctArgs(ctx, query)
}

func (r *QuestionRepository) distinctArgs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func collectQuestions(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}
