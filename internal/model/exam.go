package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusActive    ExamStatus = "active"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusCancelled ExamStatus = "cancelled"
)

// ProctoringSettings configures attempt monitoring for a proctored exam.
type ProctoringSettings struct {
	VideoMonitoring      bool `json:"video_monitoring"`
	BrowserLockdown      bool `json:"browser_lockdown"`
	IdentityVerification bool `json:"identity_verification"`
	TabSwitchLimit       int  `json:"tab_switch_limit"`
}

// Exam represents an exam entity. TotalMarks is derived from the referenced
// questions and recomputed whenever the question set changes; attempts
// snapshot it at start so later edits never rewrite history.
type Exam struct {
	ID                    uuid.UUID          `json:"id"`
	Title                 string             `json:"title"`
	Description           string             `json:"description,omitempty"`
	Instructions          string             `json:"instructions,omitempty"`
	Category              string             `json:"category"`
	TotalMarks            float64            `json:"total_marks"`
	PassingMarks          float64            `json:"passing_marks"`
	DurationMinutes       int                `json:"duration_minutes"`
	PerQuestionSeconds    *int               `json:"per_question_seconds,omitempty"`
	ScheduledDate         time.Time          `json:"scheduled_date"`
	StartTime             string             `json:"start_time"`
	EndTime               string             `json:"end_time"`
	IsProctored           bool               `json:"is_proctored"`
	Proctoring            ProctoringSettings `json:"proctoring_settings"`
	ShuffleQuestions      bool               `json:"shuffle_questions"`
	ShuffleOptions        bool               `json:"shuffle_options"`
	ShowResultImmediately bool               `json:"show_result_immediately"`
	AllowReview           bool               `json:"allow_review"`
	MaxAttempts           int                `json:"max_attempts"`
	Status                ExamStatus         `json:"status"`
	CreatedBy             uuid.UUID          `json:"created_by"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title                 string              `json:"title" binding:"required,min=3,max=255"`
	Description           string              `json:"description" binding:"omitempty,max=2000"`
	Instructions          string              `json:"instructions" binding:"omitempty,max=5000"`
	Category              string              `json:"category" binding:"required,max=100"`
	PassingMarks          float64             `json:"passing_marks" binding:"omitempty,gte=0"`
	DurationMinutes       int                 `json:"duration_minutes" binding:"required,min=1,max=480"`
	PerQuestionSeconds    *int                `json:"per_question_seconds" binding:"omitempty,min=5"`
	ScheduledDate         time.Time           `json:"scheduled_date" binding:"required"`
	StartTime             string              `json:"start_time" binding:"required"`
	EndTime               string              `json:"end_time" binding:"required"`
	IsProctored           bool                `json:"is_proctored"`
	Proctoring            *ProctoringSettings `json:"proctoring_settings" binding:"omitempty"`
	ShuffleQuestions      bool                `json:"shuffle_questions"`
	ShuffleOptions        bool                `json:"shuffle_options"`
	ShowResultImmediately *bool               `json:"show_result_immediately" binding:"omitempty"`
	AllowReview           *bool               `json:"allow_review" binding:"omitempty"`
	MaxAttempts           int                 `json:"max_attempts" binding:"omitempty,min=1,max=10"`
	QuestionIDs           []uuid.UUID         `json:"question_ids" binding:"omitempty"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title                 string              `json:"title" binding:"omitempty,min=3,max=255"`
	Description           *string             `json:"description" binding:"omitempty"`
	Instructions          *string             `json:"instructions" binding:"omitempty"`
	Category              string              `json:"category" binding:"omitempty,max=100"`
	PassingMarks          *float64            `json:"passing_marks" binding:"omitempty,gte=0"`
	DurationMinutes       *int                `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	PerQuestionSeconds    *int                `json:"per_question_seconds" binding:"omitempty,min=5"`
	ScheduledDate         *time.Time          `json:"scheduled_date" binding:"omitempty"`
	StartTime             string              `json:"start_time" binding:"omitempty"`
	EndTime               string              `json:"end_time" binding:"omitempty"`
	IsProctored           *bool               `json:"is_proctored" binding:"omitempty"`
	Proctoring            *ProctoringSettings `json:"proctoring_settings" binding:"omitempty"`
	ShuffleQuestions      *bool               `json:"shuffle_questions" binding:"omitempty"`
	ShuffleOptions        *bool               `json:"shuffle_options" binding:"omitempty"`
	ShowResultImmediately *bool               `json:"show_result_immediately" binding:"omitempty"`
	AllowReview           *bool               `json:"allow_review" binding:"omitempty"`
	MaxAttempts           *int                `json:"max_attempts" binding:"omitempty,min=1,max=10"`
	Status                ExamStatus          `json:"status" binding:"omitempty,oneof=draft scheduled active completed cancelled"`
}

// ModifyExamQuestionsRequest adds question references to an exam.
type ModifyExamQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1"`
}

// AssignProctorsRequest replaces the assigned-proctor set of an exam.
type AssignProctorsRequest struct {
	ProctorIDs []uuid.UUID `json:"proctor_ids" binding:"required,min=1"`
}

// EnrolledExam overlays an enrolled exam with the student's completion state.
type EnrolledExam struct {
	Exam
	Completed     bool       `json:"completed"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ObtainedMarks *float64   `json:"obtained_marks,omitempty"`
	Percentage    *float64   `json:"percentage,omitempty"`
	IsPassed      *bool      `json:"is_passed,omitempty"`
}
