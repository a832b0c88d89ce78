package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AnalyticsService serves read-only derived views and the CSV export.
type AnalyticsService struct {
	analyticsRepo *repository.AnalyticsRepository
	examRepo      *repository.ExamRepository
	log           zerolog.Logger
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(analyticsRepo *repository.AnalyticsRepository, examRepo *repository.ExamRepository, log zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		examRepo:      examRepo,
		log:           logger.Component(log, "analytics_service"),
	}
}

// ExamAnalytics aggregates scored attempts of one exam.
func (s *AnalyticsService) ExamAnalytics(ctx context.Context, examID uuid.UUID) (*repository.ExamAnalytics, error) {
	analytics, err := s.analyticsRepo.ExamAnalytics(ctx, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return analytics, err
}

// StudentAnalytics aggregates one student's performance.
func (s *AnalyticsService) StudentAnalytics(ctx context.Context, studentID uuid.UUID) (*repository.StudentAnalytics, error) {
	return s.analyticsRepo.StudentAnalytics(ctx, studentID)
}

// Dashboard returns platform totals and a six-month attempt trend.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*repository.DashboardStats, error) {
	return s.analyticsRepo.Dashboard(ctx)
}

// ExportResultsCSV streams one exam's results as CSV. Returns the exam
// title for the download filename.
func (s *AnalyticsService) ExportResultsCSV(ctx context.Context, examID uuid.UUID, w io.Writer) (string, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get exam: %w", err)
	}

	rows, err := s.analyticsRepo.ResultExportRows(ctx, examID)
	if err != nil {
		return "", fmt.Errorf("load export rows: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"student_name", "student_email", "attempt_number", "obtained_marks",
		"total_marks", "percentage", "passed", "status", "time_taken_seconds", "submitted_at"}
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		submittedAt := ""
		if row.SubmittedAt != nil {
			submittedAt = row.SubmittedAt.UTC().Format("2006-01-02 15:04:05")
		}
		record := []string{
			row.StudentName,
			row.StudentEmail,
			strconv.Itoa(row.AttemptNumber),
			strconv.FormatFloat(row.ObtainedMarks, 'f', 2, 64),
			strconv.FormatFloat(row.TotalMarks, 'f', 2, 64),
			strconv.FormatFloat(row.Percentage, 'f', 2, 64),
			strconv.FormatBool(row.IsPassed),
			row.Status,
			strconv.Itoa(row.TimeTaken),
			submittedAt,
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return exam.Title, cw.Error()
}
