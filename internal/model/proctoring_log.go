package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates recordable proctoring events.
type EventType string

const (
	EventTabSwitch          EventType = "tab_switch"
	EventWindowBlur         EventType = "window_blur"
	EventCopyPaste          EventType = "copy_paste"
	EventRightClick         EventType = "right_click"
	EventFullscreenExit     EventType = "fullscreen_exit"
	EventFaceNotDetected    EventType = "face_not_detected"
	EventMultipleFaces      EventType = "multiple_faces"
	EventSuspiciousMovement EventType = "suspicious_movement"
	EventBrowserResize      EventType = "browser_resize"
	EventDevtoolsOpen       EventType = "devtools_open"
	EventScreenshotAttempt  EventType = "screenshot_attempt"
	EventIdentityMismatch   EventType = "identity_mismatch"
	EventNetworkDisconnect  EventType = "network_disconnect"
	EventExamStarted        EventType = "exam_started"
	EventExamSubmitted      EventType = "exam_submitted"
	EventExamTerminated     EventType = "exam_terminated"
)

// Severity grades how suspicious an event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ProctoringLog is a standalone monitoring event, optionally linked to an
// attempt. Linked events are mirrored into the attempt's embedded flag list.
type ProctoringLog struct {
	ID          uuid.UUID       `json:"id"`
	ExamID      uuid.UUID       `json:"exam_id"`
	StudentID   uuid.UUID       `json:"student_id"`
	AttemptID   *uuid.UUID      `json:"attempt_id,omitempty"`
	EventType   EventType       `json:"event_type"`
	Description string          `json:"description,omitempty"`
	Severity    Severity        `json:"severity"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IsReviewed  bool            `json:"is_reviewed"`
	ReviewedBy  *uuid.UUID      `json:"reviewed_by,omitempty"`
	ReviewNotes string          `json:"review_notes,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// RecordEventRequest is the payload for recording a proctoring event.
type RecordEventRequest struct {
	ExamID      uuid.UUID       `json:"exam_id" binding:"required"`
	AttemptID   *uuid.UUID      `json:"attempt_id" binding:"omitempty"`
	EventType   EventType       `json:"event_type" binding:"required"`
	Description string          `json:"description" binding:"omitempty,max=1000"`
	Severity    Severity        `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	Metadata    json.RawMessage `json:"metadata" binding:"omitempty"`
}

// ReviewLogRequest marks a proctoring log as reviewed.
type ReviewLogRequest struct {
	ReviewNotes string `json:"review_notes" binding:"omitempty,max=2000"`
}

// TerminateRequest force-flags an in-progress attempt.
type TerminateRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=1000"`
}
