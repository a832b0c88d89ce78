package service

import (
	"strings"

	"github.com/examind/examind-backend/internal/model"
)

// answerVerdict is the scored outcome of one answer slot.
type answerVerdict struct {
	IsCorrect bool
	Marks     float64
	Answered  bool
	Deferred  bool
}

// scoreAnswer grades one answer against its question. Free-text answers are
// deferred: non-empty text stays at zero marks until a reviewer grades it,
// blank text counts as unanswered. True/false comparison is
// case-insensitive; single-choice compares against the option flagged
// correct.
func scoreAnswer(q *model.Question, selected *string) answerVerdict {
	if selected == nil || strings.TrimSpace(*selected) == "" {
		return answerVerdict{}
	}

	answer := strings.TrimSpace(*selected)

	switch q.QuestionType {
	case model.QuestionTypeFreeText:
		return answerVerdict{Answered: true, Deferred: true}
	case model.QuestionTypeTrueFalse:
		if strings.EqualFold(answer, q.CorrectAnswer) {
			return answerVerdict{Answered: true, IsCorrect: true, Marks: q.Marks}
		}
	case model.QuestionTypeSingleChoice:
		for _, opt := range q.Options {
			if opt.ID == answer {
				if opt.IsCorrect {
					return answerVerdict{Answered: true, IsCorrect: true, Marks: q.Marks}
				}
				break
			}
		}
	}

	return answerVerdict{Answered: true, Marks: -q.NegativeMarks}
}

// scoreAttempt grades every answer slot in place and rewrites the attempt
// aggregates. Questions missing from the map count as unanswered; the
// obtained total is clamped at zero before the pass check.
func scoreAttempt(a *model.Attempt, questions map[string]*model.Question, passingMarks float64) {
	var obtained float64
	var correct, wrong, unanswered int

	for i := range a.Answers {
		ans := &a.Answers[i]
		q, ok := questions[ans.QuestionID.String()]
		if !ok {
			ans.IsCorrect = false
			ans.MarksObtained = 0
			unanswered++
			continue
		}

		v := scoreAnswer(q, ans.SelectedOption)
		ans.IsCorrect = v.IsCorrect
		ans.MarksObtained = v.Marks

		switch {
		case !v.Answered:
			unanswered++
		case v.IsCorrect:
			correct++
		default:
			// deferred free-text stays here until manually graded
			wrong++
		}
		obtained += v.Marks
	}

	if obtained < 0 {
		obtained = 0
	}
	a.ObtainedMarks = obtained
	a.CorrectAnswers = correct
	a.WrongAnswers = wrong
	a.Unanswered = unanswered
	a.Percentage = percentageOf(obtained, a.TotalMarks)
	a.IsPassed = obtained >= passingMarks
}

// recomputeAggregates rebuilds attempt totals from already-graded answer
// slots, used after manual grading rewrites individual marks.
func recomputeAggregates(a *model.Attempt, passingMarks float64) {
	var obtained float64
	var correct, wrong, unanswered int

	for i := range a.Answers {
		ans := &a.Answers[i]
		if ans.SelectedOption == nil || strings.TrimSpace(*ans.SelectedOption) == "" {
			unanswered++
			continue
		}
		if ans.IsCorrect {
			correct++
		} else {
			wrong++
		}
		obtained += ans.MarksObtained
	}

	if obtained < 0 {
		obtained = 0
	}
	a.ObtainedMarks = obtained
	a.CorrectAnswers = correct
	a.WrongAnswers = wrong
	a.Unanswered = unanswered
	a.Percentage = percentageOf(obtained, a.TotalMarks)
	a.IsPassed = obtained >= passingMarks
}

// percentageOf guards the zero-total case: an exam worth nothing scores 0%.
func percentageOf(obtained, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return obtained / total * 100
}
