package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/mailer"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Exam lifecycle errors.
var (
	ErrNoQuestions        = errors.New("exam has no questions")
	ErrExamNotEnrollable  = errors.New("exam is not open for enrollment")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled")
	ErrInvalidTransition  = errors.New("invalid exam status transition")
	ErrUnknownQuestionRef = errors.New("question reference does not exist or is inactive")
)

// ExamService covers exam CRUD, the question set, enrollment and proctor
// assignment.
type ExamService struct {
	examRepo       *repository.ExamRepository
	questionRepo   *repository.QuestionRepository
	enrollmentRepo *repository.EnrollmentRepository
	userRepo       *repository.UserRepository
	mailQueue      *mailer.Queue
	log            zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	userRepo *repository.UserRepository,
	mailQueue *mailer.Queue,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:       examRepo,
		questionRepo:   questionRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		mailQueue:      mailQueue,
		log:            logger.Component(log, "exam_service"),
	}
}

// Create stores a draft exam, optionally with an initial question set.
func (s *ExamService) Create(ctx context.Context, createdBy uuid.UUID, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:              req.Title,
		Description:        req.Description,
		Instructions:       req.Instructions,
		Category:           req.Category,
		PassingMarks:       req.PassingMarks,
		DurationMinutes:    req.DurationMinutes,
		PerQuestionSeconds: req.PerQuestionSeconds,
		ScheduledDate:      req.ScheduledDate,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		IsProctored:        req.IsProctored,
		ShuffleQuestions:   req.ShuffleQuestions,
		ShuffleOptions:     req.ShuffleOptions,
		AllowReview:        true,
		MaxAttempts:        req.MaxAttempts,
		Status:             model.ExamStatusDraft,
		CreatedBy:          createdBy,
	}
	if req.Proctoring != nil {
		exam.Proctoring = *req.Proctoring
	}
	if req.ShowResultImmediately != nil {
		exam.ShowResultImmediately = *req.ShowResultImmediately
	}
	if req.AllowReview != nil {
		exam.AllowReview = *req.AllowReview
	}
	if exam.MaxAttempts < 1 {
		exam.MaxAttempts = 1
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if len(req.QuestionIDs) > 0 {
		if err := s.replaceQuestions(ctx, exam, req.QuestionIDs); err != nil {
			return nil, err
		}
	}
	return exam, nil
}

// Get retrieves one exam.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exam, err
}

// List pages exams with filters.
func (s *ExamService) List(ctx context.Context, status, category string, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.List(ctx, status, category, limit, offset)
}

// Update edits a draft or scheduled exam. Active and finished exams are
// frozen except for the status field.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if req.Status != "" && req.Status != exam.Status {
		if err := s.transition(ctx, exam, req.Status); err != nil {
			return nil, err
		}
	}

	if exam.Status != model.ExamStatusDraft && exam.Status != model.ExamStatusScheduled {
		return exam, nil
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.Instructions != nil {
		exam.Instructions = *req.Instructions
	}
	if req.Category != "" {
		exam.Category = req.Category
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.PerQuestionSeconds != nil {
		exam.PerQuestionSeconds = req.PerQuestionSeconds
	}
	if req.ScheduledDate != nil {
		exam.ScheduledDate = *req.ScheduledDate
	}
	if req.StartTime != "" {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		exam.EndTime = req.EndTime
	}
	if req.IsProctored != nil {
		exam.IsProctored = *req.IsProctored
	}
	if req.Proctoring != nil {
		exam.Proctoring = *req.Proctoring
	}
	if req.ShuffleQuestions != nil {
		exam.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		exam.ShuffleOptions = *req.ShuffleOptions
	}
	if req.ShowResultImmediately != nil {
		exam.ShowResultImmediately = *req.ShowResultImmediately
	}
	if req.AllowReview != nil {
		exam.AllowReview = *req.AllowReview
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = *req.MaxAttempts
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// transition validates and applies a status change. draft → scheduled needs
// a non-empty question set; cancelled and completed are terminal.
func (s *ExamService) transition(ctx context.Context, exam *model.Exam, next model.ExamStatus) error {
	allowed := map[model.ExamStatus][]model.ExamStatus{
		model.ExamStatusDraft:     {model.ExamStatusScheduled, model.ExamStatusCancelled},
		model.ExamStatusScheduled: {model.ExamStatusActive, model.ExamStatusCancelled},
		model.ExamStatusActive:    {model.ExamStatusCompleted, model.ExamStatusCancelled},
	}

	ok := false
	for _, a := range allowed[exam.Status] {
		if a == next {
			ok = true
			break
		}
	}
	if !ok {
		return ErrInvalidTransition
	}

	if next == model.ExamStatusScheduled {
		ids, err := s.examRepo.QuestionIDs(ctx, exam.ID)
		if err != nil {
			return fmt.Errorf("list exam questions: %w", err)
		}
		if len(ids) == 0 {
			return ErrNoQuestions
		}
	}

	if err := s.examRepo.UpdateStatus(ctx, exam.ID, next); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	exam.Status = next
	return nil
}

// Delete removes a draft or cancelled exam. Exams with attempt history are
// protected by FK constraints and should be cancelled instead.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft && exam.Status != model.ExamStatusCancelled {
		return ErrInvalidState
	}

	affected, err := s.examRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetQuestions replaces the ordered question set of a draft/scheduled exam
// and recomputes total marks.
func (s *ExamService) SetQuestions(ctx context.Context, examID uuid.UUID, questionIDs []uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft && exam.Status != model.ExamStatusScheduled {
		return nil, ErrInvalidState
	}
	if err := s.replaceQuestions(ctx, exam, questionIDs); err != nil {
		return nil, err
	}
	return exam, nil
}

// AddQuestions appends question references, skipping ones already present.
func (s *ExamService) AddQuestions(ctx context.Context, examID uuid.UUID, questionIDs []uuid.UUID) (*model.Exam, error) {
	existing, err := s.examRepo.QuestionIDs(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	present := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}
	merged := existing
	for _, id := range questionIDs {
		if !present[id] {
			merged = append(merged, id)
			present[id] = true
		}
	}
	return s.SetQuestions(ctx, examID, merged)
}

// RemoveQuestion drops one question reference and recomputes total marks.
func (s *ExamService) RemoveQuestion(ctx context.Context, examID, questionID uuid.UUID) (*model.Exam, error) {
	existing, err := s.examRepo.QuestionIDs(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	remaining := make([]uuid.UUID, 0, len(existing))
	for _, id := range existing {
		if id != questionID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == len(existing) {
		return nil, ErrNotFound
	}
	return s.SetQuestions(ctx, examID, remaining)
}

func (s *ExamService) replaceQuestions(ctx context.Context, exam *model.Exam, questionIDs []uuid.UUID) error {
	// Every reference must point at a live question.
	questions, err := s.questionRepo.ListByIDs(ctx, questionIDs)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	active := make(map[uuid.UUID]bool, len(questions))
	for _, q := range questions {
		if q.IsActive {
			active[q.ID] = true
		}
	}
	for _, id := range questionIDs {
		if !active[id] {
			return ErrUnknownQuestionRef
		}
	}

	total, err := s.examRepo.ReplaceQuestions(ctx, exam.ID, questionIDs)
	if err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	exam.TotalMarks = total
	return nil
}

// Questions returns the ordered question set with full details for staff.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questionRepo.ListByExam(ctx, examID)
}

// Enroll registers a student for a scheduled or active exam. The insert is
// one statement, so concurrent double-enrollment collapses to one row.
func (s *ExamService) Enroll(ctx context.Context, examID, studentID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusScheduled && exam.Status != model.ExamStatusActive {
		return ErrExamNotEnrollable
	}

	inserted, err := s.enrollmentRepo.Enroll(ctx, examID, studentID)
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	if !inserted {
		return ErrAlreadyEnrolled
	}
	return nil
}

// Unenroll removes a student's enrollment.
func (s *ExamService) Unenroll(ctx context.Context, examID, studentID uuid.UUID) error {
	affected, err := s.enrollmentRepo.Unenroll(ctx, examID, studentID)
	if err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AvailableExams lists upcoming exams the student can still enroll in.
func (s *ExamService) AvailableExams(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListAvailableForStudent(ctx, studentID, limit, offset)
}

// EnrolledExams lists the student's enrollments with completion overlay.
func (s *ExamService) EnrolledExams(ctx context.Context, studentID uuid.UUID) ([]model.EnrolledExam, error) {
	return s.examRepo.ListEnrolledForStudent(ctx, studentID)
}

// Roster lists the enrolled students of an exam.
func (s *ExamService) Roster(ctx context.Context, examID uuid.UUID) ([]repository.EnrolledStudent, error) {
	return s.enrollmentRepo.ListStudents(ctx, examID)
}

// AssignProctors replaces the proctor set. Every ID must belong to a
// proctor or admin account.
func (s *ExamService) AssignProctors(ctx context.Context, examID uuid.UUID, proctorIDs []uuid.UUID) error {
	if _, err := s.Get(ctx, examID); err != nil {
		return err
	}
	for _, pid := range proctorIDs {
		user, err := s.userRepo.GetByID(ctx, pid)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get proctor: %w", err)
		}
		if user.Role != model.RoleProctor && user.Role != model.RoleAdmin {
			return ErrValidation
		}
	}
	if err := s.examRepo.ReplaceProctors(ctx, examID, proctorIDs); err != nil {
		return fmt.Errorf("replace proctors: %w", err)
	}
	return nil
}

// RemoveProctor drops one proctor assignment.
func (s *ExamService) RemoveProctor(ctx context.Context, examID, proctorID uuid.UUID) error {
	return s.examRepo.RemoveProctor(ctx, examID, proctorID)
}

// ProctorExams lists proctored exams assigned to one proctor.
func (s *ExamService) ProctorExams(ctx context.Context, proctorID uuid.UUID, status string, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListForProctor(ctx, proctorID, status, limit, offset)
}

// SendReminders queues a reminder mail for every enrolled student.
func (s *ExamService) SendReminders(ctx context.Context, examID uuid.UUID) (int, error) {
	exam, err := s.Get(ctx, examID)
	if err != nil {
		return 0, err
	}

	students, err := s.enrollmentRepo.ListStudents(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list roster: %w", err)
	}
	for _, st := range students {
		s.mailQueue.Enqueue(ctx, &mailer.Message{
			Kind:          mailer.KindReminder,
			To:            st.Email,
			Name:          st.Name,
			ExamTitle:     exam.Title,
			ScheduledDate: exam.ScheduledDate.Format("2006-01-02"),
			StartTime:     exam.StartTime,
		})
	}
	return len(students), nil
}

// Stats returns platform exam counts by status and category.
func (s *ExamService) Stats(ctx context.Context) (map[string]int, map[string]int, error) {
	return s.examRepo.CountByStatus(ctx)
}
