package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. Transitions are
// monotonic: in_progress → submitted|flagged, submitted → evaluated.
// flagged is terminal.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusEvaluated  AttemptStatus = "evaluated"
	AttemptStatusFlagged    AttemptStatus = "flagged"
)

// AttemptAnswer is one answer slot of an attempt. Slots are created once at
// attempt creation, exactly one per question of the exam at that moment, and
// only SelectedOption/IsCorrect/MarksObtained/TimeTaken mutate afterwards.
type AttemptAnswer struct {
	ID             uuid.UUID `json:"id"`
	AttemptID      uuid.UUID `json:"attempt_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
	MarksObtained  float64   `json:"marks_obtained"`
	TimeTaken      int       `json:"time_taken"`
}

// ProctoringFlag is a monitoring event embedded in an attempt.
type ProctoringFlag struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Attempt is one student's single try at one exam. TotalMarks is a snapshot
// copied from the exam at start and never recomputed; ObtainedMarks is
// clamped at zero even when per-question contributions go negative.
type Attempt struct {
	ID              uuid.UUID        `json:"id"`
	ExamID          uuid.UUID        `json:"exam_id"`
	StudentID       uuid.UUID        `json:"student_id"`
	AttemptNumber   int              `json:"attempt_number"`
	ShuffleSeed     int64            `json:"-"`
	Answers         []AttemptAnswer  `json:"answers,omitempty"`
	TotalMarks      float64          `json:"total_marks"`
	ObtainedMarks   float64          `json:"obtained_marks"`
	Percentage      float64          `json:"percentage"`
	IsPassed        bool             `json:"is_passed"`
	CorrectAnswers  int              `json:"correct_answers"`
	WrongAnswers    int              `json:"wrong_answers"`
	Unanswered      int              `json:"unanswered"`
	TimeTaken       int              `json:"time_taken"`
	StartedAt       time.Time        `json:"started_at"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	Status          AttemptStatus    `json:"status"`
	ProctoringFlags []ProctoringFlag `json:"proctoring_flags"`
	Feedback        string           `json:"feedback,omitempty"`
	ReviewedBy      *uuid.UUID       `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ExamTimer is the metadata a client needs to drive the countdown UI.
type ExamTimer struct {
	DurationMinutes    int   `json:"duration_minutes"`
	PerQuestionSeconds *int  `json:"per_question_seconds,omitempty"`
	RemainingSeconds   int64 `json:"remaining_seconds"`
}

// AttemptPaper is the student-facing view of a started or resumed attempt:
// sanitized questions in the attempt's stable shuffle order plus timer data.
type AttemptPaper struct {
	AttemptID     uuid.UUID           `json:"attempt_id"`
	AttemptNumber int                 `json:"attempt_number"`
	Resumed       bool                `json:"resumed"`
	Exam          PaperExam           `json:"exam"`
	Questions     []SanitizedQuestion `json:"questions"`
	Timer         ExamTimer           `json:"timer"`
}

// PaperExam is the subset of exam metadata delivered with a paper.
type PaperExam struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	TotalMarks  float64            `json:"total_marks"`
	IsProctored bool               `json:"is_proctored"`
	Proctoring  ProctoringSettings `json:"proctoring_settings"`
}

// SaveAnswerRequest is the payload for persisting a single in-flight answer.
type SaveAnswerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption *string   `json:"selected_option"`
	TimeTaken      int       `json:"time_taken" binding:"omitempty,gte=0"`
}

// SubmittedAnswer is one entry of a final client answer sheet.
type SubmittedAnswer struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption *string   `json:"selected_option"`
	TimeTaken      int       `json:"time_taken" binding:"omitempty,gte=0"`
}

// SubmitRequest is the payload for submitting an attempt. Answers already
// saved server-side may be omitted; entries here win per question.
type SubmitRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"omitempty,dive"`
}

// ResultSummary is the scored breakdown returned after submission when the
// exam allows immediate results.
type ResultSummary struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	ObtainedMarks  float64   `json:"obtained_marks"`
	TotalMarks     float64   `json:"total_marks"`
	Percentage     float64   `json:"percentage"`
	IsPassed       bool      `json:"is_passed"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Unanswered     int       `json:"unanswered"`
	TimeTaken      int       `json:"time_taken"`
}

// GradeAnswerRequest is the staff payload for grading one free-text answer.
type GradeAnswerRequest struct {
	Marks     float64 `json:"marks" binding:"gte=0"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback" binding:"omitempty,max=2000"`
}

// BulkGradeEntry grades one answer inside a bulk grading request.
type BulkGradeEntry struct {
	AnswerID  uuid.UUID `json:"answer_id" binding:"required"`
	Marks     float64   `json:"marks" binding:"gte=0"`
	IsCorrect bool      `json:"is_correct"`
}

// BulkGradeRequest finalizes grading for a whole attempt.
type BulkGradeRequest struct {
	Grades   []BulkGradeEntry `json:"grades" binding:"required,min=1,dive"`
	Feedback string           `json:"feedback" binding:"omitempty,max=2000"`
}

// FeedbackRequest attaches reviewer feedback to an attempt.
type FeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required,max=2000"`
}
