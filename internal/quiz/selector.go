package quiz

import "github.com/skulanov/OP-test/internal/model"

// Rand is the random source used for question draws. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Eligible returns the records of the selected chapters that are not
// mastered yet, in bank order.
func Eligible(bank model.Bank, selected ChapterSet, mastery *Mastery) model.Bank {
	var out model.Bank
	for _, q := range FilterByChapters(bank, selected) {
		if !mastery.IsMastered(q.ID()) {
			out = append(out, q)
		}
	}
	return out
}

// SelectNext draws one eligible record uniformly at random. The draw has no
// memory besides the mastery set, so unmastered questions may repeat.
func SelectNext(bank model.Bank, selected ChapterSet, mastery *Mastery, rng Rand) (model.Question, bool) {
	eligible := Eligible(bank, selected, mastery)
	if len(eligible) == 0 {
		return model.Question{}, false
	}
	return eligible[rng.IntN(len(eligible))], true
}
