package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/mailer"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AlreadyCompletedError is returned by StartOrResume when the student has
// used up their attempts; it carries the completed attempt's ID so the
// client can jump straight to the result.
type AlreadyCompletedError struct {
	AttemptID uuid.UUID
}

func (e *AlreadyCompletedError) Error() string { return ErrAlreadyCompleted.Error() }

// Unwrap lets errors.Is(err, ErrAlreadyCompleted) match.
func (e *AlreadyCompletedError) Unwrap() error { return ErrAlreadyCompleted }

// AttemptService drives the attempt lifecycle: start/resume, answer saving,
// submission and scoring.
type AttemptService struct {
	attemptRepo    *repository.AttemptRepository
	examRepo       *repository.ExamRepository
	questionRepo   *repository.QuestionRepository
	enrollmentRepo *repository.EnrollmentRepository
	proctoringRepo *repository.ProctoringRepository
	userRepo       *repository.UserRepository
	mailQueue      *mailer.Queue
	log            zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	proctoringRepo *repository.ProctoringRepository,
	userRepo *repository.UserRepository,
	mailQueue *mailer.Queue,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:    attemptRepo,
		examRepo:       examRepo,
		questionRepo:   questionRepo,
		enrollmentRepo: enrollmentRepo,
		proctoringRepo: proctoringRepo,
		userRepo:       userRepo,
		mailQueue:      mailQueue,
		log:            logger.Component(log, "attempt_service"),
	}
}

// StartOrResume begins a new attempt or resumes the in-progress one.
// Resuming reproduces the creation-time question and option order from the
// stored shuffle seed.
func (s *AttemptService) StartOrResume(ctx context.Context, examID, studentID uuid.UUID) (*model.AttemptPaper, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrInvalidState
	}

	// Resume path first so a live attempt always wins.
	attempt, err := s.attemptRepo.GetInProgress(ctx, examID, studentID)
	if err == nil {
		return s.buildPaper(exam, questions, attempt, true), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get in-progress attempt: %w", err)
	}

	completed, err := s.attemptRepo.CountCompleted(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("count completed attempts: %w", err)
	}
	if completed >= exam.MaxAttempts {
		last, lerr := s.attemptRepo.GetLatestCompleted(ctx, examID, studentID)
		if lerr == nil {
			return nil, &AlreadyCompletedError{AttemptID: last.ID}
		}
		return nil, ErrAlreadyCompleted
	}

	number, err := s.attemptRepo.NextAttemptNumber(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("next attempt number: %w", err)
	}
	if number > exam.MaxAttempts {
		return nil, ErrLimitReached
	}

	questionIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}

	attempt = &model.Attempt{
		ExamID:        examID,
		StudentID:     studentID,
		AttemptNumber: number,
		ShuffleSeed:   rand.Int63(),
		TotalMarks:    exam.TotalMarks,
	}
	err = s.attemptRepo.CreateWithAnswers(ctx, attempt, questionIDs)
	if errors.Is(err, repository.ErrDuplicateInProgress) {
		// Lost the creation race; the winner's attempt is ours to resume.
		attempt, err = s.attemptRepo.GetInProgress(ctx, examID, studentID)
		if err != nil {
			return nil, fmt.Errorf("refetch racing attempt: %w", err)
		}
		return s.buildPaper(exam, questions, attempt, true), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.recordLifecycleEvent(ctx, attempt, model.EventExamStarted, "Attempt started")

	return s.buildPaper(exam, questions, attempt, false), nil
}

func (s *AttemptService) buildPaper(exam *model.Exam, questions []model.Question, attempt *model.Attempt, resumed bool) *model.AttemptPaper {
	remaining := int64(exam.DurationMinutes)*60 - int64(time.Since(attempt.StartedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &model.AttemptPaper{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		Resumed:       resumed,
		Exam: model.PaperExam{
			ID:          exam.ID,
			Title:       exam.Title,
			TotalMarks:  exam.TotalMarks,
			IsProctored: exam.IsProctored,
			Proctoring:  exam.Proctoring,
		},
		Questions: shuffledPaper(questions, attempt.ShuffleSeed, exam.ShuffleQuestions, exam.ShuffleOptions),
		Timer: model.ExamTimer{
			DurationMinutes:    exam.DurationMinutes,
			PerQuestionSeconds: exam.PerQuestionSeconds,
			RemainingSeconds:   remaining,
		},
	}
}

// SaveAnswer overwrites one in-flight answer slot. A question that is not
// part of the attempt is a no-op. No scoring happens here.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID, studentID uuid.UUID, req *model.SaveAnswerRequest) error {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return ErrForbidden
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return ErrInvalidState
	}

	if _, err := s.attemptRepo.SaveAnswer(ctx, attemptID, req.QuestionID, req.SelectedOption, req.TimeTaken); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// VerifyActiveAttempt checks that the attempt belongs to the student and is
// still in progress. Used to gate the live answer stream.
func (s *AttemptService) VerifyActiveAttempt(ctx context.Context, attemptID, studentID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrForbidden
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrInvalidState
	}
	return attempt, nil
}

// Submit merges final client answers, scores the attempt and flips it to
// submitted. The status flip is a conditional update, so a concurrent
// Terminate (or double submit) makes exactly one side win.
func (s *AttemptService) Submit(ctx context.Context, attemptID, studentID uuid.UUID, req *model.SubmitRequest) (*model.Attempt, *model.ResultSummary, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, nil, ErrForbidden
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, nil, ErrInvalidState
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
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

	// Final client answers win per question over earlier saves.
	if req != nil {
		slotByQuestion := make(map[uuid.UUID]*model.AttemptAnswer, len(attempt.Answers))
		for i := range attempt.Answers {
			slotByQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
		}
		for _, final := range req.Answers {
			slot, ok := slotByQuestion[final.QuestionID]
			if !ok {
				continue
			}
			slot.SelectedOption = final.SelectedOption
			if final.TimeTaken > 0 {
				slot.TimeTaken = final.TimeTaken
			}
		}
	}

	scoreAttempt(attempt, questionMap, exam.PassingMarks)
	attempt.TimeTaken = int(time.Since(attempt.StartedAt).Seconds())

	ok, err := s.attemptRepo.FinalizeSubmission(ctx, attempt, model.AttemptStatusSubmitted)
	if err != nil {
		return nil, nil, fmt.Errorf("finalize submission: %w", err)
	}
	if !ok {
		return nil, nil, ErrInvalidState
	}

	s.recordLifecycleEvent(ctx, attempt, model.EventExamSubmitted, "Attempt submitted")
	s.queueResultMail(ctx, attempt, exam)

	if !exam.ShowResultImmediately {
		return attempt, nil, nil
	}
	return attempt, &model.ResultSummary{
		AttemptID:      attempt.ID,
		ObtainedMarks:  attempt.ObtainedMarks,
		TotalMarks:     attempt.TotalMarks,
		Percentage:     attempt.Percentage,
		IsPassed:       attempt.IsPassed,
		CorrectAnswers: attempt.CorrectAnswers,
		WrongAnswers:   attempt.WrongAnswers,
		Unanswered:     attempt.Unanswered,
		TimeTaken:      attempt.TimeTaken,
	}, nil
}

// GetResult returns one attempt with answers. Students only read their own;
// staff read any.
func (s *AttemptService) GetResult(ctx context.Context, attemptID, requesterID uuid.UUID, requesterRole model.Role) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if requesterRole == model.RoleStudent && attempt.StudentID != requesterID {
		return nil, ErrForbidden
	}
	return attempt, nil
}

// ListStudentResults returns a student's attempt history.
func (s *AttemptService) ListStudentResults(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	return s.attemptRepo.ListByStudent(ctx, studentID, limit, offset)
}

// ListExamAttempts returns attempts on one exam for staff review.
func (s *AttemptService) ListExamAttempts(ctx context.Context, examID uuid.UUID, status string, limit, offset int) ([]model.Attempt, int, error) {
	return s.attemptRepo.ListByExam(ctx, examID, status, limit, offset)
}

func (s *AttemptService) recordLifecycleEvent(ctx context.Context, attempt *model.Attempt, event model.EventType, desc string) {
	attemptID := attempt.ID
	err := s.proctoringRepo.Create(ctx, &model.ProctoringLog{
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		AttemptID:   &attemptID,
		EventType:   event,
		Description: desc,
		Severity:    model.SeverityLow,
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Str("event", string(event)).
			Msg("Failed to record lifecycle event")
	}
}

func (s *AttemptService) queueResultMail(ctx context.Context, attempt *model.Attempt, exam *model.Exam) {
	student, err := s.userRepo.GetByID(ctx, attempt.StudentID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("student_id", attempt.StudentID.String()).
			Msg("Failed to load student for result mail")
		return
	}
	s.mailQueue.Enqueue(ctx, &mailer.Message{
		Kind:          mailer.KindResult,
		To:            student.Email,
		Name:          student.FullName(),
		ExamTitle:     exam.Title,
		ObtainedMarks: attempt.ObtainedMarks,
		TotalMarks:    attempt.TotalMarks,
		Percentage:    attempt.Percentage,
		IsPassed:      attempt.IsPassed,
	})
}
