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

// ErrMarksOutOfRange rejects a grade above the question's worth.
var ErrMarksOutOfRange = errors.New("marks exceed the question's maximum")

// GradingService covers manual grading of free-text answers and the
// aggregate recomputation that follows.
type GradingService struct {
	attemptRepo  *repository.AttemptRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	log          zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		attemptRepo:  attemptRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		log:          logger.Component(log, "grading_service"),
	}
}

// ListPendingGrading lists submitted attempts that still carry at least one
// ungraded free-text answer. The filter is derived on read, never stored.
func (s *GradingService) ListPendingGrading(ctx context.Context, examID *uuid.UUID, limit, offset int) ([]repository.PendingGradingAttempt, int, error) {
	return s.attemptRepo.ListPendingGrading(ctx, examID, limit, offset)
}

// GradeAnswer applies a manual grade to one answer, then recomputes the
// whole attempt by full re-scan. The attempt moves to evaluated only once
// no ungraded free-text answer remains.
func (s *GradingService) GradeAnswer(ctx context.Context, attemptID, answerID, reviewerID uuid.UUID, req *model.GradeAnswerRequest) (*model.Attempt, error) {
	attempt, questions, err := s.loadGradableAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	answer, qType, err := s.attemptRepo.GetAnswer(ctx, answerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	if answer.AttemptID != attemptID {
		return nil, ErrNotFound
	}
	if qType != model.QuestionTypeFreeText {
		return nil, ErrValidation
	}

	q, ok := questions[answer.QuestionID.String()]
	if !ok || req.Marks < 0 || req.Marks > q.Marks {
		return nil, ErrMarksOutOfRange
	}

	if err := s.attemptRepo.GradeAnswer(ctx, answerID, req.Marks, req.IsCorrect); err != nil {
		return nil, fmt.Errorf("grade answer: %w", err)
	}

	for i := range attempt.Answers {
		if attempt.Answers[i].ID == answerID {
			attempt.Answers[i].MarksObtained = req.Marks
			attempt.Answers[i].IsCorrect = req.IsCorrect
		}
	}

	return s.recompute(ctx, attempt, questions, reviewerID, req.Feedback,
		!hasUngradedFreeText(attempt, questions))
}

// BulkGrade applies grades for a whole attempt in one pass and moves it to
// evaluated unconditionally.
func (s *GradingService) BulkGrade(ctx context.Context, attemptID, reviewerID uuid.UUID, req *model.BulkGradeRequest) (*model.Attempt, error) {
	attempt, questions, err := s.loadGradableAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*model.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		byID[attempt.Answers[i].ID] = &attempt.Answers[i]
	}

	for _, g := range req.Grades {
		slot, ok := byID[g.AnswerID]
		if !ok {
			return nil, ErrNotFound
		}
		q, ok := questions[slot.QuestionID.String()]
		if !ok || g.Marks < 0 || g.Marks > q.Marks {
			return nil, ErrMarksOutOfRange
		}
	}

	for _, g := range req.Grades {
		if err := s.attemptRepo.GradeAnswer(ctx, g.AnswerID, g.Marks, g.IsCorrect); err != nil {
			return nil, fmt.Errorf("grade answer: %w", err)
		}
		slot := byID[g.AnswerID]
		slot.MarksObtained = g.Marks
		slot.IsCorrect = g.IsCorrect
	}

	return s.recompute(ctx, attempt, questions, reviewerID, req.Feedback, true)
}

// SetFeedback attaches reviewer feedback without touching the score.
func (s *GradingService) SetFeedback(ctx context.Context, attemptID, reviewerID uuid.UUID, feedback string) error {
	affected, err := s.attemptRepo.SetFeedback(ctx, attemptID, reviewerID, feedback)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GradingService) loadGradableAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, map[string]*model.Question, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusSubmitted && attempt.Status != model.AttemptStatusEvaluated {
		return nil, nil, ErrInvalidState
	}

	questionIDs := make([]uuid.UUID, 0, len(attempt.Answers))
	for _, ans := range attempt.Answers {
		questionIDs = append(questionIDs, ans.QuestionID)
	}
	questions, err := s.questionRepo.ListByIDs(ctx, questionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	questionMap := make(map[string]*model.Question, len(questions))
	for i := range questions {
		questionMap[questions[i].ID.String()] = &questions[i]
	}
	return attempt, questionMap, nil
}

func (s *GradingService) recompute(ctx context.Context, attempt *model.Attempt, questions map[string]*model.Question, reviewerID uuid.UUID, feedback string, evaluated bool) (*model.Attempt, error) {
	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	recomputeAggregates(attempt, exam.PassingMarks)

	if err := s.attemptRepo.ApplyRecompute(ctx, attempt, reviewerID, feedback, evaluated); err != nil {
		return nil, fmt.Errorf("apply recompute: %w", err)
	}
	if reviewerID != uuid.Nil {
		attempt.ReviewedBy = &reviewerID
	}
	if feedback != "" {
		attempt.Feedback = feedback
	}
	return attempt, nil
}

// hasUngradedFreeText reports whether any answered free-text slot still
// carries the ungraded signature: zero marks and not marked correct.
func hasUngradedFreeText(attempt *model.Attempt, questions map[string]*model.Question) bool {
	for _, ans := range attempt.Answers {
		q, ok := questions[ans.QuestionID.String()]
		if !ok || q.QuestionType != model.QuestionTypeFreeText {
			continue
		}
		if ans.SelectedOption == nil || strings.TrimSpace(*ans.SelectedOption) == "" {
			continue
		}
		if ans.MarksObtained == 0 && !ans.IsCorrect {
			return true
		}
	}
	return false
}
