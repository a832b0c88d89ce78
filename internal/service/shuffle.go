package service

import (
	"math/rand"

	"github.com/examind/examind-backend/internal/model"
)

// shuffledPaper orders sanitized questions for one attempt. The seed is
// stored on the attempt, so resuming always reproduces the same question and
// option order. Each paper slot gets its own rng stream derived from the
// seed and the slot position, so the option permutation at a slot is the
// same whether or not question shuffling is on.
func shuffledPaper(questions []model.Question, seed int64, shuffleQuestions, shuffleOptions bool) []model.SanitizedQuestion {
	order := make([]int, len(questions))
	for i := range order {
		order[i] = i
	}
	if shuffleQuestions {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	paper := make([]model.SanitizedQuestion, 0, len(questions))
	for pos, idx := range order {
		sq := questions[idx].Sanitize()
		if shuffleOptions && len(sq.Options) > 1 {
			rng := rand.New(rand.NewSource(seed + int64(pos) + 1))
			rng.Shuffle(len(sq.Options), func(i, j int) {
				sq.Options[i], sq.Options[j] = sq.Options[j], sq.Options[i]
			})
		}
		paper = append(paper, sq)
	}
	return paper
}
