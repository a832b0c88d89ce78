package service

import (
	"testing"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paperQuestions(n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:           uuid.New(),
			QuestionType: model.QuestionTypeSingleChoice,
			Options: []model.Option{
				{ID: "a", Text: "first"},
				{ID: "b", Text: "second", IsCorrect: true},
				{ID: "c", Text: "third"},
				{ID: "d", Text: "fourth"},
			},
			Marks: 1,
		})
	}
	return qs
}

func questionOrder(paper []model.SanitizedQuestion) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(paper))
	for _, q := range paper {
		ids = append(ids, q.ID)
	}
	return ids
}

func TestShuffledPaperDeterminism(t *testing.T) {
	qs := paperQuestions(10)

	first := shuffledPaper(qs, 42, true, true)
	second := shuffledPaper(qs, 42, true, true)

	require.Len(t, first, len(qs))
	assert.Equal(t, questionOrder(first), questionOrder(second))
	for i := range first {
		assert.Equal(t, first[i].Options, second[i].Options)
	}
}

func TestShuffledPaperSeedChangesOrder(t *testing.T) {
	qs := paperQuestions(20)

	a := shuffledPaper(qs, 1, true, false)
	b := shuffledPaper(qs, 2, true, false)

	// With 20 questions two seeds landing on the same permutation is
	// effectively impossible.
	assert.NotEqual(t, questionOrder(a), questionOrder(b))
}

func TestShuffledPaperNoShuffle(t *testing.T) {
	qs := paperQuestions(5)

	paper := shuffledPaper(qs, 99, false, false)

	require.Len(t, paper, 5)
	for i := range qs {
		assert.Equal(t, qs[i].ID, paper[i].ID)
		require.Len(t, paper[i].Options, 4)
		assert.Equal(t, "a", paper[i].Options[0].ID)
		assert.Equal(t, "d", paper[i].Options[3].ID)
	}
}

func TestShuffledPaperOptionlessQuestions(t *testing.T) {
	qs := []model.Question{
		{
			ID:            uuid.New(),
			QuestionType:  model.QuestionTypeTrueFalse,
			CorrectAnswer: "true",
			Marks:         2,
		},
		{
			ID:           uuid.New(),
			QuestionType: model.QuestionTypeFreeText,
			Marks:        10,
		},
	}

	paper := shuffledPaper(qs, 7, true, true)

	require.Len(t, paper, 2)
	for _, q := range paper {
		assert.Empty(t, q.Options)
	}
}

func TestShuffledPaperOptionOrderIndependentOfQuestionShuffle(t *testing.T) {
	qs := paperQuestions(6)

	shuffledBoth := shuffledPaper(qs, 13, true, true)
	optionsOnly := shuffledPaper(qs, 13, false, true)

	// Option order depends on the slot position, not on which question
	// occupies it, so position i gets the same option permutation either way.
	for i := range shuffledBoth {
		var ids1, ids2 []string
		for _, o := range shuffledBoth[i].Options {
			ids1 = append(ids1, o.ID)
		}
		for _, o := range optionsOnly[i].Options {
			ids2 = append(ids2, o.ID)
		}
		assert.Equal(t, ids1, ids2, "slot %d", i)
	}
}
