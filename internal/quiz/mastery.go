package quiz

import "github.com/skulanov/OP-test/internal/model"

// Mastery is the session-scoped set of correctly answered questions.
type Mastery struct {
	solved map[model.QuestionID]struct{}
}

// NewMastery returns an empty tracker.
func NewMastery() *Mastery {
	return &Mastery{solved: make(map[model.QuestionID]struct{})}
}

// Mark records the question as mastered. Marking twice is a no-op.
func (m *Mastery) Mark(id model.QuestionID) {
	m.solved[id] = struct{}{}
}

// IsMastered reports whether the question was answered correctly since the
// last reset.
func (m *Mastery) IsMastered(id model.QuestionID) bool {
	_, ok := m.solved[id]
	return ok
}

// Reset forgets every mastered question.
func (m *Mastery) Reset() {
	clear(m.solved)
}

// Len returns the number of mastered identities.
func (m *Mastery) Len() int {
	return len(m.solved)
}

// Count returns how many records of the bank are mastered.
func (m *Mastery) Count(bank model.Bank) int {
	n := 0
	for _, q := range bank {
		if m.IsMastered(q.ID()) {
			n++
		}
	}
	return n
}
