package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType is a tagged variant over the supported question shapes.
// single_choice carries options, true_false carries a canonical answer,
// free_text carries neither and is graded manually.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeTrueFalse    QuestionType = "true_false"
	QuestionTypeFreeText     QuestionType = "free_text"
)

// Difficulty enumerates question difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Option is one selectable answer of a single-choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question represents a single exam question. A question referenced by a
// submitted attempt is never rewritten; retiring it (IsActive=false) keeps
// already-computed scores intact.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Category      string       `json:"category"`
	Topic         string       `json:"topic"`
	Difficulty    Difficulty   `json:"difficulty"`
	Marks         float64      `json:"marks"`
	NegativeMarks float64      `json:"negative_marks"`
	Explanation   string       `json:"explanation,omitempty"`
	CreatedBy     uuid.UUID    `json:"created_by"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SanitizedOption is an option with its correctness flag stripped, safe to
// hand to a student during an attempt.
type SanitizedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SanitizedQuestion is a question as delivered inside an attempt paper.
type SanitizedQuestion struct {
	ID            uuid.UUID         `json:"id"`
	QuestionText  string            `json:"question_text"`
	QuestionType  QuestionType      `json:"question_type"`
	Options       []SanitizedOption `json:"options,omitempty"`
	Marks         float64           `json:"marks"`
	NegativeMarks float64           `json:"negative_marks"`
}

// Sanitize strips the correctness flags and canonical answer.
func (q *Question) Sanitize() SanitizedQuestion {
	sq := SanitizedQuestion{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		QuestionType:  q.QuestionType,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
	}
	for _, o := range q.Options {
		sq.Options = append(sq.Options, SanitizedOption{ID: o.ID, Text: o.Text})
	}
	return sq
}

// CreateQuestionRequest is the payload for creating a question.
type CreateQuestionRequest struct {
	QuestionText  string       `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType  QuestionType `json:"question_type" binding:"required,oneof=single_choice true_false free_text"`
	Options       []Option     `json:"options" binding:"omitempty,dive"`
	CorrectAnswer string       `json:"correct_answer" binding:"omitempty,max=255"`
	Category      string       `json:"category" binding:"required,max=100"`
	Topic         string       `json:"topic" binding:"required,max=100"`
	Difficulty    Difficulty   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Marks         float64      `json:"marks" binding:"required,gt=0"`
	NegativeMarks float64      `json:"negative_marks" binding:"omitempty,gte=0"`
	Explanation   string       `json:"explanation" binding:"omitempty,max=2000"`
}

// BulkCreateQuestionsRequest is the payload for bulk question import.
type BulkCreateQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// UpdateQuestionRequest is the payload for editing a question.
type UpdateQuestionRequest struct {
	QuestionText  string     `json:"question_text" binding:"omitempty,min=1,max=2000"`
	Options       []Option   `json:"options" binding:"omitempty,dive"`
	CorrectAnswer string     `json:"correct_answer" binding:"omitempty,max=255"`
	Category      string     `json:"category" binding:"omitempty,max=100"`
	Topic         string     `json:"topic" binding:"omitempty,max=100"`
	Difficulty    Difficulty `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Marks         *float64   `json:"marks" binding:"omitempty,gt=0"`
	NegativeMarks *float64   `json:"negative_marks" binding:"omitempty,gte=0"`
	Explanation   string     `json:"explanation" binding:"omitempty,max=2000"`
}
