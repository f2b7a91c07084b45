package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/skulanov/OP-test/internal/model"
)

const sample = `# 1. Intro
1. What is X?
  А. foo
  Б. bar✅
  В. baz
---

2. Second question
  А. yes ✅
  Б. no

# 2. Details
3. Only one option
  А. lonely✅
4. Last one
  А. one
  Б. two
  В. three ✅
`

func TestParseReferenceExample(t *testing.T) {
	bank := Parse("# 1. Intro\n1. What is X?\n  А. foo\n  Б. bar✅\n  В. baz\n")

	want := model.Bank{{
		Chapter: "1. Intro",
		Prompt:  "What is X?",
		Options: []model.Option{
			{Letter: "А", Text: "foo"},
			{Letter: "Б", Text: "bar", IsCorrect: true},
			{Letter: "В", Text: "baz"},
		},
		CorrectLetter: "Б",
	}}
	if !reflect.DeepEqual(bank, want) {
		t.Errorf("Parse() = %+v, want %+v", bank, want)
	}
}

func TestParseSample(t *testing.T) {
	bank := Parse(sample)

	if len(bank) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(bank))
	}
	wantPrompts := []string{"What is X?", "Second question", "Last one"}
	for i, q := range bank {
		if q.Prompt != wantPrompts[i] {
			t.Errorf("question %d prompt = %q, want %q", i, q.Prompt, wantPrompts[i])
		}
	}
	if bank[1].Chapter != "1. Intro" {
		t.Errorf("expected chapter '1. Intro', got %q", bank[1].Chapter)
	}
	if bank[2].Chapter != "2. Details" {
		t.Errorf("expected chapter '2. Details', got %q", bank[2].Chapter)
	}
	if bank[2].CorrectLetter != "В" {
		t.Errorf("expected correct letter В, got %q", bank[2].CorrectLetter)
	}
}

func TestParseInvariants(t *testing.T) {
	bank := Parse(sample)
	for _, q := range bank {
		if len(q.Options) < 2 {
			t.Errorf("question %q has %d options", q.Prompt, len(q.Options))
		}
		if q.Chapter == "" {
			t.Errorf("question %q has empty chapter", q.Prompt)
		}
		first := ""
		for _, o := range q.Options {
			if strings.Contains(o.Text, DefaultMarker) {
				t.Errorf("option text %q still contains the marker", o.Text)
			}
			if o.IsCorrect && first == "" {
				first = o.Letter
			}
		}
		if q.CorrectLetter != first {
			t.Errorf("question %q correct letter = %q, want %q", q.Prompt, q.CorrectLetter, first)
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	a := Parse(sample)
	b := Parse(sample)
	if !reflect.DeepEqual(a, b) {
		t.Error("parsing the same text twice gave different banks")
	}
}

func TestParseEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
	}{
		{"empty", "", 0},
		{"only separators", "---\n\n---\n", 0},
		{"no question lines", "# 1. Chapter\nsome prose\n", 0},
		{"question without options", "# 1. C\n1. Q\n", 0},
		{"truncated last question", "# 1. C\n1. Q\n А. a\n Б. b\n2. R\n А. a\n", 1},
		{"question before chapter", "1. Q\n А. a\n Б. b\n# 1. C\n2. R\n А. a\n Б. b\n", 1},
		{"option without question", "# 1. C\nА. stray\n1. Q\n А. a\n Б. b\n", 1},
		{"foreign letters ignored", "# 1. C\n1. Q\n А. a\n Г. d\n", 0},
		{"crlf line endings", "# 1. C\r\n1. Q\r\n А. a\r\n Б. b✅\r\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := Parse(tt.input)
			if bank == nil {
				t.Fatal("Parse returned nil bank")
			}
			if len(bank) != tt.wantCount {
				t.Errorf("expected %d questions, got %d", tt.wantCount, len(bank))
			}
		})
	}
}

func TestParseMarkerStripping(t *testing.T) {
	tests := []struct {
		name    string
		option  string
		want    string
		correct bool
	}{
		{"suffix", "bar✅", "bar", true},
		{"suffix with space", "bar ✅", "bar", true},
		{"prefix", "✅ bar", "bar", true},
		{"middle", "foo ✅ bar", "foo bar", true},
		{"twice", "✅foo✅", "foo", true},
		{"absent", "plain  text ", "plain  text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := Parse("# 1. C\n1. Q\n А. " + tt.option + "\n Б. other\n")
			if len(bank) != 1 {
				t.Fatalf("expected 1 question, got %d", len(bank))
			}
			got := bank[0].Options[0]
			if got.Text != tt.want {
				t.Errorf("text = %q, want %q", got.Text, tt.want)
			}
			if got.IsCorrect != tt.correct {
				t.Errorf("IsCorrect = %v, want %v", got.IsCorrect, tt.correct)
			}
		})
	}
}

func TestParseMultipleCorrectFirstWins(t *testing.T) {
	p, err := New(DefaultAlphabet, DefaultMarker)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := p.Parse("# 1. C\n1. Q\n А. a\n Б. b✅\n В. c✅\n")

	if len(res.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(res.Questions))
	}
	if res.Questions[0].CorrectLetter != "Б" {
		t.Errorf("expected first flagged letter Б, got %q", res.Questions[0].CorrectLetter)
	}
	if len(res.Issues) != 1 || res.Issues[0].Kind != IssueMultipleCorrect {
		t.Errorf("expected one multiple_correct issue, got %+v", res.Issues)
	}
}

func TestParseIssues(t *testing.T) {
	p, err := New(DefaultAlphabet, DefaultMarker)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	input := "1. Orphan\n А. a\n Б. b\n# 1. C\n2. Short\n А. a\n3. Unmarked\n А. a\n Б. b\n"
	res := p.Parse(input)

	want := []Issue{
		{Line: 1, Prompt: "Orphan", Kind: IssueNoChapter},
		{Line: 5, Prompt: "Short", Kind: IssueTooFewOptions},
		{Line: 7, Prompt: "Unmarked", Kind: IssueNoCorrect},
	}
	if !reflect.DeepEqual(res.Issues, want) {
		t.Errorf("issues = %+v, want %+v", res.Issues, want)
	}
	if len(res.Questions) != 1 || res.Questions[0].HasCorrect() {
		t.Errorf("expected a single unmarked question, got %+v", res.Questions)
	}
	for _, is := range want {
		if is.Kind.Dropped() != (is.Kind != IssueNoCorrect) {
			t.Errorf("%s.Dropped() = %v", is.Kind, is.Kind.Dropped())
		}
	}
}

func TestCustomAlphabet(t *testing.T) {
	p, err := New("abcd", "*")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := p.Parse("# 3. Latin\n1. Pick\n a. one\n b. two\n c. three\n d. four*\n")

	if len(res.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(res.Questions))
	}
	q := res.Questions[0]
	if len(q.Options) != 4 {
		t.Errorf("expected 4 options, got %d", len(q.Options))
	}
	if q.CorrectLetter != "d" || q.Options[3].Text != "four" {
		t.Errorf("unexpected last option %+v (correct %q)", q.Options[3], q.CorrectLetter)
	}
}

func TestCustomAlphabetLiteralLetters(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		input    string
		letters  []string
	}{
		{
			name:     "dash is a letter, not a range",
			alphabet: "A-C",
			input:    "# 1. C\n1. Q\nB. not in alphabet\nA. a*\n-. dash\nC. c\n",
			letters:  []string{"A", "-", "C"},
		},
		{
			name:     "caret and bracket",
			alphabet: "^]",
			input:    "# 1. C\n1. Q\n^. caret*\n]. bracket\nx. other\n",
			letters:  []string{"^", "]"},
		},
		{
			name:     "backslash",
			alphabet: `\z`,
			input:    "# 1. C\n1. Q\n\\. slash*\nz. zed\n",
			letters:  []string{`\`, "z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.alphabet, "*")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			res := p.Parse(tt.input)
			if len(res.Questions) != 1 {
				t.Fatalf("expected 1 question, got %d", len(res.Questions))
			}
			var got []string
			for _, o := range res.Questions[0].Options {
				got = append(got, o.Letter)
			}
			if strings.Join(got, ",") != strings.Join(tt.letters, ",") {
				t.Errorf("letters = %v, want %v", got, tt.letters)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", DefaultMarker); err == nil {
		t.Error("expected error for empty alphabet")
	}
	if _, err := New(DefaultAlphabet, ""); err == nil {
		t.Error("expected error for empty marker")
	}
	if _, err := New("a]b", "!"); err != nil {
		t.Errorf("alphabet with regexp metacharacters should be accepted: %v", err)
	}
}
