package quiz

import (
	"sort"

	"github.com/skulanov/OP-test/internal/model"
)

// ChapterSet is a set of chapter titles.
type ChapterSet map[string]struct{}

// NewChapterSet builds a set from the given titles.
func NewChapterSet(chapters ...string) ChapterSet {
	s := make(ChapterSet, len(chapters))
	for _, ch := range chapters {
		s[ch] = struct{}{}
	}
	return s
}

// Has reports whether the chapter is in the set.
func (s ChapterSet) Has(chapter string) bool {
	_, ok := s[chapter]
	return ok
}

// Equal reports whether both sets hold the same chapters.
func (s ChapterSet) Equal(other ChapterSet) bool {
	if len(s) != len(other) {
		return false
	}
	for ch := range s {
		if !other.Has(ch) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s ChapterSet) Clone() ChapterSet {
	c := make(ChapterSet, len(s))
	for ch := range s {
		c[ch] = struct{}{}
	}
	return c
}

// Sorted returns the chapters in code-point order.
func (s ChapterSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ch := range s {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// DeriveChapters returns the distinct chapters of the bank in code-point
// order. The order drives the chapter selector and is stable across runs.
func DeriveChapters(bank model.Bank) []string {
	seen := make(ChapterSet)
	for _, q := range bank {
		seen[q.Chapter] = struct{}{}
	}
	return seen.Sorted()
}

// FilterByChapters returns the records whose chapter is selected, in bank order.
func FilterByChapters(bank model.Bank, selected ChapterSet) model.Bank {
	if len(selected) == 0 {
		return nil
	}
	var out model.Bank
	for _, q := range bank {
		if selected.Has(q.Chapter) {
			out = append(out, q)
		}
	}
	return out
}
