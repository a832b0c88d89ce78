package service

import (
	"testing"

	"github.com/examind/examind-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func singleChoiceQuestion(marks, negative float64) *model.Question {
	return &model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeSingleChoice,
		Options: []model.Option{
			{ID: "opt-a", Text: "3"},
			{ID: "opt-b", Text: "4", IsCorrect: true},
			{ID: "opt-c", Text: "5"},
		},
		Marks:         marks,
		NegativeMarks: negative,
	}
}

func trueFalseQuestion(marks, negative float64) *model.Question {
	return &model.Question{
		ID:            uuid.New(),
		QuestionType:  model.QuestionTypeTrueFalse,
		CorrectAnswer: "true",
		Marks:         marks,
		NegativeMarks: negative,
	}
}

func TestScoreAnswer(t *testing.T) {
	q := singleChoiceQuestion(5, 2)

	t.Run("blank is unanswered", func(t *testing.T) {
		v := scoreAnswer(q, nil)
		assert.False(t, v.Answered)
		assert.Zero(t, v.Marks)

		v = scoreAnswer(q, strPtr("   "))
		assert.False(t, v.Answered)
	})

	t.Run("correct option earns full marks", func(t *testing.T) {
		v := scoreAnswer(q, strPtr("opt-b"))
		assert.True(t, v.Answered)
		assert.True(t, v.IsCorrect)
		assert.Equal(t, 5.0, v.Marks)
	})

	t.Run("wrong option applies negative marks", func(t *testing.T) {
		v := scoreAnswer(q, strPtr("opt-a"))
		assert.True(t, v.Answered)
		assert.False(t, v.IsCorrect)
		assert.Equal(t, -2.0, v.Marks)
	})

	t.Run("unknown option id is wrong", func(t *testing.T) {
		v := scoreAnswer(q, strPtr("opt-zzz"))
		assert.True(t, v.Answered)
		assert.False(t, v.IsCorrect)
		assert.Equal(t, -2.0, v.Marks)
	})

	t.Run("true false is case insensitive", func(t *testing.T) {
		tf := trueFalseQuestion(3, 1)
		for _, answer := range []string{"true", "TRUE", "True", " true "} {
			v := scoreAnswer(tf, strPtr(answer))
			assert.True(t, v.IsCorrect, "answer %q should be correct", answer)
			assert.Equal(t, 3.0, v.Marks)
		}

		v := scoreAnswer(tf, strPtr("false"))
		assert.False(t, v.IsCorrect)
		assert.Equal(t, -1.0, v.Marks)
	})

	t.Run("free text is deferred at zero marks", func(t *testing.T) {
		ft := &model.Question{
			ID:           uuid.New(),
			QuestionType: model.QuestionTypeFreeText,
			Marks:        10,
		}
		v := scoreAnswer(ft, strPtr("an essay of some length"))
		assert.True(t, v.Answered)
		assert.True(t, v.Deferred)
		assert.False(t, v.IsCorrect)
		assert.Zero(t, v.Marks)
	})
}

func buildAttempt(total float64, qs []*model.Question, selections []*string) (*model.Attempt, map[string]*model.Question) {
	attempt := &model.Attempt{
		ID:         uuid.New(),
		TotalMarks: total,
	}
	index := make(map[string]*model.Question, len(qs))
	for i, q := range qs {
		index[q.ID.String()] = q
		attempt.Answers = append(attempt.Answers, model.AttemptAnswer{
			QuestionID:     q.ID,
			SelectedOption: selections[i],
		})
	}
	return attempt, index
}

func TestScoreAttempt(t *testing.T) {
	q1 := singleChoiceQuestion(5, 2)
	q2 := trueFalseQuestion(3, 1)

	t.Run("one correct one wrong", func(t *testing.T) {
		attempt, index := buildAttempt(8, []*model.Question{q1, q2},
			[]*string{strPtr("opt-b"), strPtr("false")})

		scoreAttempt(attempt, index, 5)

		assert.Equal(t, 4.0, attempt.ObtainedMarks)
		assert.Equal(t, 50.0, attempt.Percentage)
		assert.Equal(t, 1, attempt.CorrectAnswers)
		assert.Equal(t, 1, attempt.WrongAnswers)
		assert.Equal(t, 0, attempt.Unanswered)
		assert.False(t, attempt.IsPassed)
	})

	t.Run("blank answer avoids the penalty", func(t *testing.T) {
		attempt, index := buildAttempt(8, []*model.Question{q1, q2},
			[]*string{strPtr("opt-b"), nil})

		scoreAttempt(attempt, index, 5)

		assert.Equal(t, 5.0, attempt.ObtainedMarks)
		assert.Equal(t, 62.5, attempt.Percentage)
		assert.Equal(t, 1, attempt.CorrectAnswers)
		assert.Equal(t, 0, attempt.WrongAnswers)
		assert.Equal(t, 1, attempt.Unanswered)
		assert.True(t, attempt.IsPassed)
	})

	t.Run("negative total clamps to zero", func(t *testing.T) {
		attempt, index := buildAttempt(8, []*model.Question{q1, q2},
			[]*string{strPtr("opt-a"), strPtr("false")})

		scoreAttempt(attempt, index, 5)

		assert.Equal(t, 0.0, attempt.ObtainedMarks)
		assert.Equal(t, 0.0, attempt.Percentage)
		assert.Equal(t, 2, attempt.WrongAnswers)
		assert.False(t, attempt.IsPassed)
	})

	t.Run("question removed from bank counts as unanswered", func(t *testing.T) {
		attempt, index := buildAttempt(8, []*model.Question{q1, q2},
			[]*string{strPtr("opt-b"), strPtr("true")})
		delete(index, q2.ID.String())

		scoreAttempt(attempt, index, 5)

		assert.Equal(t, 5.0, attempt.ObtainedMarks)
		assert.Equal(t, 1, attempt.CorrectAnswers)
		assert.Equal(t, 1, attempt.Unanswered)
	})

	t.Run("zero passing marks always passes", func(t *testing.T) {
		attempt, index := buildAttempt(8, []*model.Question{q1, q2},
			[]*string{nil, nil})

		scoreAttempt(attempt, index, 0)

		assert.Equal(t, 0.0, attempt.ObtainedMarks)
		assert.True(t, attempt.IsPassed)
	})
}

func TestRecomputeAggregates(t *testing.T) {
	attempt := &model.Attempt{
		TotalMarks: 20,
		Answers: []model.AttemptAnswer{
			{QuestionID: uuid.New(), SelectedOption: strPtr("opt-b"), IsCorrect: true, MarksObtained: 5},
			{QuestionID: uuid.New(), SelectedOption: strPtr("a graded essay"), IsCorrect: true, MarksObtained: 8},
			{QuestionID: uuid.New(), SelectedOption: strPtr("opt-a"), IsCorrect: false, MarksObtained: -2},
			{QuestionID: uuid.New(), SelectedOption: nil},
		},
	}

	recomputeAggregates(attempt, 10)

	assert.InDelta(t, 11.0, attempt.ObtainedMarks, 1e-9)
	assert.InDelta(t, 55.0, attempt.Percentage, 1e-9)
	assert.Equal(t, 2, attempt.CorrectAnswers)
	assert.Equal(t, 1, attempt.WrongAnswers)
	assert.Equal(t, 1, attempt.Unanswered)
	assert.True(t, attempt.IsPassed)
}

func TestPercentageOf(t *testing.T) {
	assert.Equal(t, 0.0, percentageOf(5, 0))
	assert.Equal(t, 0.0, percentageOf(5, -1))
	assert.Equal(t, 50.0, percentageOf(4, 8))
	assert.Equal(t, 100.0, percentageOf(8, 8))
}
