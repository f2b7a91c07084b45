// Package parser turns the line-oriented question bank format into
// model.Question records:
//
//	# 1. Chapter title
//	1. Question prompt
//	  А. option
//	  Б. option✅
//	---
//
// Blank lines and "---" separators are ignored.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/skulanov/OP-test/internal/model"
)

const (
	// DefaultAlphabet is the option alphabet of the reference corpus.
	DefaultAlphabet = "АБВ"
	// DefaultMarker flags the correct option.
	DefaultMarker = "✅"

	minOptions = 2
)

var (
	chapterPattern  = regexp.MustCompile(`^#\s*\d+\.`)
	chapterPrefix   = regexp.MustCompile(`^#\s*`)
	questionPattern = regexp.MustCompile(`^\d+\.\s*(.+)$`)
)

// IssueKind classifies a parse diagnostic.
type IssueKind string

const (
	// IssueTooFewOptions: the question had fewer than two options and was dropped.
	IssueTooFewOptions IssueKind = "too_few_options"
	// IssueNoChapter: the question appeared before any chapter heading and was dropped.
	IssueNoChapter IssueKind = "no_chapter"
	// IssueNoCorrect: no option was flagged; the question is kept but can never be mastered.
	IssueNoCorrect IssueKind = "no_correct"
	// IssueMultipleCorrect: several options were flagged; the first one wins.
	IssueMultipleCorrect IssueKind = "multiple_correct"
)

// Dropped reports whether questions with this issue are left out of the bank.
func (k IssueKind) Dropped() bool {
	return k == IssueTooFewOptions || k == IssueNoChapter
}

// Issue is a diagnostic attached to the question starting at Line (1-based).
type Issue struct {
	Line   int
	Prompt string
	Kind   IssueKind
}

// Result holds the parsed bank and the diagnostics collected on the way.
type Result struct {
	Questions model.Bank
	Issues    []Issue
}

// Parser parses bank text for one option alphabet and correctness marker.
type Parser struct {
	marker        string
	optionPattern *regexp.Regexp
}

// New creates a parser. The alphabet lists the option letters; its size is
// not fixed.
func New(alphabet, marker string) (*Parser, error) {
	if alphabet == "" {
		return nil, errors.New("option alphabet is empty")
	}
	if marker == "" {
		return nil, errors.New("correctness marker is empty")
	}
	// An alternation of quoted letters, not a character class: inside a
	// class "-" and "^" would change meaning.
	letters := make([]string, 0, utf8.RuneCountInString(alphabet))
	for _, r := range alphabet {
		if r == utf8.RuneError {
			return nil, fmt.Errorf("option alphabet %q is not valid UTF-8", alphabet)
		}
		letters = append(letters, regexp.QuoteMeta(string(r)))
	}
	return &Parser{
		marker:        marker,
		optionPattern: regexp.MustCompile(`^\s*(` + strings.Join(letters, "|") + `)\.\s*(.+)$`),
	}, nil
}

var defaultParser, _ = New(DefaultAlphabet, DefaultMarker)

// Default returns the parser for the reference alphabet and marker.
func Default() *Parser {
	return defaultParser
}

// Parse parses raw text with the default alphabet and marker. It returns an
// empty bank when nothing in the text forms a complete question.
func Parse(raw string) model.Bank {
	return defaultParser.Parse(raw).Questions
}

type pending struct {
	line    int
	chapter string
	prompt  string
	options []model.Option
}

// Parse parses raw text. It is deterministic and has no side effects.
func (p *Parser) Parse(raw string) Result {
	var (
		res     Result
		chapter string
		cur     *pending
	)

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" {
			continue
		}

		if chapterPattern.MatchString(line) {
			chapter = strings.TrimSpace(chapterPrefix.ReplaceAllString(line, ""))
			continue
		}

		if m := questionPattern.FindStringSubmatch(line); m != nil {
			res.finalize(cur)
			cur = &pending{line: i + 1, chapter: chapter, prompt: strings.TrimSpace(m[1])}
			continue
		}

		if m := p.optionPattern.FindStringSubmatch(line); m != nil && cur != nil {
			text, correct := p.stripMarker(m[2])
			cur.options = append(cur.options, model.Option{
				Letter:    m[1],
				Text:      text,
				IsCorrect: correct,
			})
		}
	}
	res.finalize(cur)

	if res.Questions == nil {
		res.Questions = model.Bank{}
	}
	return res
}

// stripMarker removes every occurrence of the marker and the whitespace it
// leaves behind.
func (p *Parser) stripMarker(text string) (string, bool) {
	if !strings.Contains(text, p.marker) {
		return strings.TrimSpace(text), false
	}
	var parts []string
	for _, part := range strings.Split(text, p.marker) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " "), true
}

func (r *Result) finalize(q *pending) {
	if q == nil {
		return
	}
	issue := func(kind IssueKind) {
		r.Issues = append(r.Issues, Issue{Line: q.line, Prompt: q.prompt, Kind: kind})
	}
	if q.chapter == "" {
		issue(IssueNoChapter)
		return
	}
	if len(q.options) < minOptions {
		issue(IssueTooFewOptions)
		return
	}

	// First flagged option wins when several are marked.
	var correct string
	flagged := 0
	for _, o := range q.options {
		if !o.IsCorrect {
			continue
		}
		if flagged == 0 {
			correct = o.Letter
		}
		flagged++
	}
	switch {
	case flagged == 0:
		issue(IssueNoCorrect)
	case flagged > 1:
		issue(IssueMultipleCorrect)
	}

	r.Questions = append(r.Questions, model.Question{
		Chapter:       q.chapter,
		Prompt:        q.prompt,
		Options:       q.options,
		CorrectLetter: correct,
	})
}
