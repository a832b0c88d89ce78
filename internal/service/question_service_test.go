package service

import (
	"testing"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuestionShapeSingleChoice(t *testing.T) {
	t.Run("needs at least two options", func(t *testing.T) {
		q := &model.Question{
			QuestionType: model.QuestionTypeSingleChoice,
			Options:      []model.Option{{Text: "only one", IsCorrect: true}},
		}
		assert.ErrorIs(t, validateQuestionShape(q), ErrOptionsRequired)
	})

	t.Run("needs exactly one correct option", func(t *testing.T) {
		none := &model.Question{
			QuestionType: model.QuestionTypeSingleChoice,
			Options:      []model.Option{{Text: "a"}, {Text: "b"}},
		}
		assert.ErrorIs(t, validateQuestionShape(none), ErrOptionsRequired)

		two := &model.Question{
			QuestionType: model.QuestionTypeSingleChoice,
			Options: []model.Option{
				{Text: "a", IsCorrect: true},
				{Text: "b", IsCorrect: true},
			},
		}
		assert.ErrorIs(t, validateQuestionShape(two), ErrOptionsRequired)
	})

	t.Run("assigns missing option ids and clears correct answer", func(t *testing.T) {
		q := &model.Question{
			QuestionType:  model.QuestionTypeSingleChoice,
			CorrectAnswer: "stray",
			Options: []model.Option{
				{Text: "a", IsCorrect: true},
				{ID: "keep-me", Text: "b"},
			},
		}
		require.NoError(t, validateQuestionShape(q))
		assert.Empty(t, q.CorrectAnswer)
		assert.Equal(t, "keep-me", q.Options[1].ID)
		_, err := uuid.Parse(q.Options[0].ID)
		assert.NoError(t, err, "generated option id should be a UUID")
	})
}

func TestValidateQuestionShapeTrueFalse(t *testing.T) {
	t.Run("canonicalizes the answer", func(t *testing.T) {
		q := &model.Question{
			QuestionType:  model.QuestionTypeTrueFalse,
			CorrectAnswer: "  TRUE ",
			Options:       []model.Option{{Text: "leftover"}},
		}
		require.NoError(t, validateQuestionShape(q))
		assert.Equal(t, "true", q.CorrectAnswer)
		assert.Nil(t, q.Options)
	})

	t.Run("rejects anything but true or false", func(t *testing.T) {
		for _, answer := range []string{"", "yes", "1", "truthy"} {
			q := &model.Question{
				QuestionType:  model.QuestionTypeTrueFalse,
				CorrectAnswer: answer,
			}
			assert.ErrorIs(t, validateQuestionShape(q), ErrCorrectAnswerInvalid, "answer %q", answer)
		}
	})
}

func TestValidateQuestionShapeFreeText(t *testing.T) {
	q := &model.Question{
		QuestionType:  model.QuestionTypeFreeText,
		CorrectAnswer: "model answer",
		Options:       []model.Option{{Text: "leftover"}},
	}
	require.NoError(t, validateQuestionShape(q))
	assert.Nil(t, q.Options)
	assert.Empty(t, q.CorrectAnswer)
}

func TestValidateQuestionShapeUnknownType(t *testing.T) {
	q := &model.Question{QuestionType: "matching"}
	assert.ErrorIs(t, validateQuestionShape(q), ErrValidation)
}

func TestQuestionFromRequestDefaults(t *testing.T) {
	req := &model.CreateQuestionRequest{
		QuestionText:  "  What is 2+2?  ",
		QuestionType:  model.QuestionTypeTrueFalse,
		CorrectAnswer: "false",
		Marks:         3,
	}

	creator := uuid.New()
	q, err := questionFromRequest(creator, req)
	require.NoError(t, err)

	assert.Equal(t, "What is 2+2?", q.QuestionText)
	assert.Equal(t, model.DifficultyMedium, q.Difficulty)
	assert.Equal(t, creator, q.CreatedBy)
	assert.True(t, q.IsActive)
}
