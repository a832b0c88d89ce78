package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Question validation errors.
var (
	ErrOptionsRequired      = errors.New("single-choice questions need at least two options with exactly one flagged correct")
	ErrCorrectAnswerInvalid = errors.New("true/false questions need a canonical answer of true or false")
)

// QuestionService covers the question bank.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		log:          logger.Component(log, "question_service"),
	}
}

// Create validates and stores one question.
func (s *QuestionService) Create(ctx context.Context, createdBy uuid.UUID, req *model.CreateQuestionRequest) (*model.Question, error) {
	q, err := questionFromRequest(createdBy, req)
	if err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// BulkCreate validates every entry before storing any, so an import is all
// or nothing from the caller's point of view.
func (s *QuestionService) BulkCreate(ctx context.Context, createdBy uuid.UUID, req *model.BulkCreateQuestionsRequest) ([]model.Question, error) {
	questions := make([]*model.Question, 0, len(req.Questions))
	for i := range req.Questions {
		q, err := questionFromRequest(createdBy, &req.Questions[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}

	created := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if err := s.questionRepo.Create(ctx, q); err != nil {
			return nil, fmt.Errorf("create question: %w", err)
		}
		created = append(created, *q)
	}
	return created, nil
}

// Get retrieves one question.
func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// List pages the question bank with filters.
func (s *QuestionService) List(ctx context.Context, category, topic, difficulty, questionType string, activeOnly bool, limit, offset int) ([]model.Question, int, error) {
	return s.questionRepo.List(ctx, category, topic, difficulty, questionType, activeOnly, limit, offset)
}

// Update edits a question in place. Type is immutable; retire and recreate
// to change it.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}

	if req.QuestionText != "" {
		q.QuestionText = req.QuestionText
	}
	if req.Options != nil {
		q.Options = req.Options
	}
	if req.CorrectAnswer != "" {
		q.CorrectAnswer = req.CorrectAnswer
	}
	if req.Category != "" {
		q.Category = req.Category
	}
	if req.Topic != "" {
		q.Topic = req.Topic
	}
	if req.Difficulty != "" {
		q.Difficulty = req.Difficulty
	}
	if req.Marks != nil {
		q.Marks = *req.Marks
	}
	if req.NegativeMarks != nil {
		q.NegativeMarks = *req.NegativeMarks
	}
	if req.Explanation != "" {
		q.Explanation = req.Explanation
	}

	if err := validateQuestionShape(q); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// Retire deactivates a question. Attempts that referenced it keep their
// scores; the question simply stops appearing in new exams.
func (s *QuestionService) Retire(ctx context.Context, id uuid.UUID) error {
	affected, err := s.questionRepo.Retire(ctx, id)
	if err != nil {
		return fmt.Errorf("retire question: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories lists distinct categories of the bank.
func (s *QuestionService) Categories(ctx context.Context) ([]string, error) {
	return s.questionRepo.Categories(ctx)
}

// Topics lists distinct topics, optionally within one category.
func (s *QuestionService) Topics(ctx context.Context, category string) ([]string, error) {
	return s.questionRepo.Topics(ctx, category)
}

// Stats returns bank counts grouped by type and difficulty.
func (s *QuestionService) Stats(ctx context.Context) (map[string]int, map[string]int, int, error) {
	return s.questionRepo.CountStats(ctx)
}

func questionFromRequest(createdBy uuid.UUID, req *model.CreateQuestionRequest) (*model.Question, error) {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}

	q := &model.Question{
		QuestionText:  strings.TrimSpace(req.QuestionText),
		QuestionType:  req.QuestionType,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Category:      req.Category,
		Topic:         req.Topic,
		Difficulty:    difficulty,
		Marks:         req.Marks,
		NegativeMarks: req.NegativeMarks,
		Explanation:   req.Explanation,
		CreatedBy:     createdBy,
		IsActive:      true,
	}
	if err := validateQuestionShape(q); err != nil {
		return nil, err
	}
	return q, nil
}

// validateQuestionShape enforces the per-type payload rules the binding
// tags cannot express.
func validateQuestionShape(q *model.Question) error {
	switch q.QuestionType {
	case model.QuestionTypeSingleChoice:
		if len(q.Options) < 2 {
			return ErrOptionsRequired
		}
		correct := 0
		for i := range q.Options {
			if q.Options[i].ID == "" {
				q.Options[i].ID = uuid.New().String()
			}
			if q.Options[i].IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return ErrOptionsRequired
		}
		q.CorrectAnswer = ""
	case model.QuestionTypeTrueFalse:
		answer := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		if answer != "true" && answer != "false" {
			return ErrCorrectAnswerInvalid
		}
		q.CorrectAnswer = answer
		q.Options = nil
	case model.QuestionTypeFreeText:
		q.Options = nil
		q.CorrectAnswer = ""
	default:
		return ErrValidation
	}
	return nil
}
