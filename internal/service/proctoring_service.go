package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// defaultSeverity maps event types to a severity when the client sends none.
var defaultSeverity = map[model.EventType]model.Severity{
	model.EventTabSwitch:          model.SeverityMedium,
	model.EventWindowBlur:         model.SeverityLow,
	model.EventCopyPaste:          model.SeverityHigh,
	model.EventRightClick:         model.SeverityLow,
	model.EventFullscreenExit:     model.SeverityMedium,
	model.EventFaceNotDetected:    model.SeverityHigh,
	model.EventMultipleFaces:      model.SeverityCritical,
	model.EventSuspiciousMovement: model.SeverityMedium,
	model.EventBrowserResize:      model.SeverityLow,
	model.EventDevtoolsOpen:       model.SeverityHigh,
	model.EventScreenshotAttempt:  model.SeverityHigh,
	model.EventIdentityMismatch:   model.SeverityCritical,
	model.EventNetworkDisconnect:  model.SeverityMedium,
	model.EventExamStarted:        model.SeverityLow,
	model.EventExamSubmitted:      model.SeverityLow,
	model.EventExamTerminated:     model.SeverityCritical,
}

// ProctoringService records monitoring events and drives attempt
// termination.
type ProctoringService struct {
	proctoringRepo *repository.ProctoringRepository
	attemptRepo    *repository.AttemptRepository
	log            zerolog.Logger
}

// NewProctoringService creates a new ProctoringService.
func NewProctoringService(
	proctoringRepo *repository.ProctoringRepository,
	attemptRepo *repository.AttemptRepository,
	log zerolog.Logger,
) *ProctoringService {
	return &ProctoringService{
		proctoringRepo: proctoringRepo,
		attemptRepo:    attemptRepo,
		log:            logger.Component(log, "proctoring_service"),
	}
}

// Record stores one proctoring event. When it is linked to an attempt, a
// flag is also mirrored onto the attempt itself so reviewers see the
// history without joining logs.
func (s *ProctoringService) Record(ctx context.Context, studentID uuid.UUID, req *model.RecordEventRequest) (*model.ProctoringLog, error) {
	severity := req.Severity
	if severity == "" {
		severity = defaultSeverity[req.EventType]
	}
	if severity == "" {
		severity = model.SeverityLow
	}

	entry := &model.ProctoringLog{
		ExamID:      req.ExamID,
		StudentID:   studentID,
		AttemptID:   req.AttemptID,
		EventType:   req.EventType,
		Description: req.Description,
		Severity:    severity,
		Metadata:    req.Metadata,
	}
	if err := s.proctoringRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create log: %w", err)
	}

	if req.AttemptID != nil {
		err := s.attemptRepo.AppendFlag(ctx, *req.AttemptID, model.ProctoringFlag{
			Type:        string(req.EventType),
			Timestamp:   entry.RecordedAt,
			Description: req.Description,
		})
		if err != nil {
			s.log.Warn().Err(err).
				Str("attempt_id", req.AttemptID.String()).
				Msg("Failed to mirror flag onto attempt")
		}
	}

	return entry, nil
}

// Terminate force-ends an in-progress attempt. The status flip is a
// conditional update, so a racing Submit makes exactly one side win; the
// loser reports InvalidState.
func (s *ProctoringService) Terminate(ctx context.Context, attemptID, proctorID uuid.UUID, reason string) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if reason == "" {
		reason = "Terminated by proctor"
	}
	ok, err := s.attemptRepo.Terminate(ctx, attemptID, model.ProctoringFlag{
		Type:        string(model.EventExamTerminated),
		Timestamp:   time.Now(),
		Description: reason,
	})
	if err != nil {
		return nil, fmt.Errorf("terminate attempt: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	err = s.proctoringRepo.Create(ctx, &model.ProctoringLog{
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		AttemptID:   &attemptID,
		EventType:   model.EventExamTerminated,
		Description: reason,
		Severity:    model.SeverityCritical,
		ReviewedBy:  &proctorID,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Failed to write termination log")
	}

	return s.attemptRepo.GetByID(ctx, attemptID)
}

// ListLogs pages an exam's proctoring logs with filters.
func (s *ProctoringService) ListLogs(ctx context.Context, examID uuid.UUID, severity, eventType string, unreviewedOnly bool, limit, offset int) ([]model.ProctoringLog, int, error) {
	return s.proctoringRepo.ListByExam(ctx, examID, severity, eventType, unreviewedOnly, limit, offset)
}

// AttemptLogs returns all events of one attempt in order.
func (s *ProctoringService) AttemptLogs(ctx context.Context, attemptID uuid.UUID) ([]model.ProctoringLog, error) {
	return s.proctoringRepo.ListByAttempt(ctx, attemptID)
}

// ReviewLog marks a log entry as reviewed.
func (s *ProctoringService) ReviewLog(ctx context.Context, logID, reviewerID uuid.UUID, notes string) error {
	affected, err := s.proctoringRepo.Review(ctx, logID, reviewerID, notes)
	if err != nil {
		return fmt.Errorf("review log: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates an exam's event counts.
func (s *ProctoringService) Stats(ctx context.Context, examID uuid.UUID) (*repository.ProctoringStats, error) {
	return s.proctoringRepo.Stats(ctx, examID)
}

// FlaggedAttempts lists terminated/flagged attempts on one exam.
func (s *ProctoringService) FlaggedAttempts(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.Attempt, int, error) {
	return s.attemptRepo.ListByExam(ctx, examID, string(model.AttemptStatusFlagged), limit, offset)
}

// ActiveSessions lists live attempts visible to one proctor.
func (s *ProctoringService) ActiveSessions(ctx context.Context, proctorID uuid.UUID) ([]repository.ActiveSession, error) {
	return s.proctoringRepo.ActiveSessions(ctx, proctorID)
}
