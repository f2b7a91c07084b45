// Package quiz holds the question-selection and mastery state machine.
//
// A Controller reacts to one event at a time and returns a View describing
// what must be visible afterwards. It is not safe for concurrent use;
// adapters serialize events per controller.
package quiz

import (
	"errors"
	"math/rand/v2"

	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/parser"
)

// ErrNoQuestions is reported when a bank parses to zero questions.
var ErrNoQuestions = errors.New("no questions found in bank")

// Controller is the Session Controller of one application instance.
type Controller struct {
	parser *parser.Parser
	rng    Rand

	bank     model.Bank
	chapters []string
	all      ChapterSet
	draft    ChapterSet
	selected ChapterSet
	mastery  *Mastery

	state    State
	errKind  ErrorKind
	loadErr  error
	current  *model.Question
	picked   string
	feedback *Feedback
}

// NewController returns a controller in StateLoading. A nil parser means
// the reference alphabet and marker; a nil rng a randomly seeded PCG.
func NewController(p *parser.Parser, rng Rand) *Controller {
	if p == nil {
		p = parser.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Controller{
		parser:  p,
		rng:     rng,
		mastery: NewMastery(),
		state:   StateLoading,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Err returns the load failure cause once the controller is in StateError
// because of a failed load.
func (c *Controller) Err() error {
	return c.loadErr
}

// Load completes the startup fetch: fetchErr is the transport failure, if
// any, and raw the delivered text.
func (c *Controller) Load(raw string, fetchErr error) View {
	if c.state != StateLoading {
		return c.View()
	}
	if fetchErr != nil {
		c.loadErr = fetchErr
		return c.fail(ErrorLoad)
	}
	return c.LoadBank(c.parser.Parse(raw).Questions)
}

// LoadBank completes loading with an already parsed bank. The bank is
// shared read-only and must not be modified afterwards.
func (c *Controller) LoadBank(bank model.Bank) View {
	if c.state != StateLoading {
		return c.View()
	}
	if len(bank) == 0 {
		c.loadErr = ErrNoQuestions
		return c.fail(ErrorLoad)
	}
	c.bank = bank
	c.chapters = DeriveChapters(bank)
	c.all = NewChapterSet(c.chapters...)
	c.selected = c.all.Clone()
	c.draft = c.all.Clone()
	c.state = StateReady
	c.next()
	return c.View()
}

// ToggleChapter flips a chapter in the draft selection. Unknown chapters
// are ignored.
func (c *Controller) ToggleChapter(chapter string) View {
	if c.interactive() && c.all.Has(chapter) {
		if c.draft.Has(chapter) {
			delete(c.draft, chapter)
		} else {
			c.draft[chapter] = struct{}{}
		}
	}
	return c.View()
}

// SelectAllChapters checks every chapter in the draft selection.
func (c *Controller) SelectAllChapters() View {
	if c.interactive() {
		c.draft = c.all.Clone()
	}
	return c.View()
}

// DeselectAllChapters clears the draft selection.
func (c *Controller) DeselectAllChapters() View {
	if c.interactive() {
		c.draft = make(ChapterSet)
	}
	return c.View()
}

// ApplyFilter commits the draft selection, resets mastery even when the
// selection did not change, and selects a new question.
func (c *Controller) ApplyFilter() View {
	if !c.interactive() {
		return c.View()
	}
	c.selected = c.draft.Clone()
	c.mastery.Reset()
	c.next()
	if len(c.selected) == 0 {
		c.feedback.MessageID = MsgSelectAtLeastOne
	}
	return c.View()
}

// PickOption chooses a letter for the question on display. The last pick
// before submission wins; letters the question does not offer are ignored.
func (c *Controller) PickOption(letter string) View {
	if c.state != StateUnanswered || c.current == nil {
		return c.View()
	}
	for _, o := range c.current.Options {
		if o.Letter == letter {
			c.picked = letter
			break
		}
	}
	return c.View()
}

// SubmitOrNext grades the picked option, or moves on once the question is
// answered. Submitting without a pick does nothing.
func (c *Controller) SubmitOrNext() View {
	switch c.state {
	case StateUnanswered:
		if c.picked != "" {
			c.grade()
		}
	case StateAnswered:
		c.state = StateReady
		c.next()
	}
	return c.View()
}

// Progress returns how many questions of the applied filter are mastered.
func (c *Controller) Progress() (mastered, total int) {
	filtered := FilterByChapters(c.bank, c.selected)
	return c.mastery.Count(filtered), len(filtered)
}

func (c *Controller) interactive() bool {
	return c.state != StateLoading && c.state != StateError
}

func (c *Controller) fail(kind ErrorKind) View {
	c.state = StateError
	c.errKind = kind
	c.current = nil
	c.picked = ""
	c.feedback = nil
	return c.View()
}

// next runs the selection step of StateReady.
func (c *Controller) next() {
	c.current = nil
	c.picked = ""
	c.feedback = nil

	if q, ok := SelectNext(c.bank, c.selected, c.mastery, c.rng); ok {
		c.current = &q
		c.state = StateUnanswered
		return
	}

	if len(c.selected) == 0 {
		c.state = StateReady
		c.feedback = &Feedback{Kind: FeedbackInfo, MessageID: MsgChooseChapters}
		return
	}

	_, total := c.Progress()
	if total == 0 {
		c.fail(ErrorFilter)
		return
	}

	c.state = StateExhausted
	id := MsgCompletedSelected
	if c.selected.Equal(c.all) {
		id = MsgCompletedAll
	}
	c.feedback = &Feedback{
		Kind:      FeedbackInfo,
		MessageID: id,
		Data:      map[string]any{"Total": total},
	}
}

func (c *Controller) grade() {
	c.state = StateAnswered
	if !c.current.HasCorrect() || c.picked != c.current.CorrectLetter {
		c.feedback = &Feedback{Kind: FeedbackIncorrect, MessageID: MsgIncorrect}
		return
	}

	c.mastery.Mark(c.current.ID())
	mastered, total := c.Progress()
	c.feedback = &Feedback{Kind: FeedbackCorrect, MessageID: MsgCorrect}
	if mastered < total {
		c.feedback.MessageID = MsgCorrectProgress
		c.feedback.Data = map[string]any{"Mastered": mastered, "Total": total}
	}
}

// View snapshots the current state.
func (c *Controller) View() View {
	v := View{State: c.state, Error: c.errKind}
	if c.state == StateLoading || c.state == StateError {
		return v
	}

	v.Chapters = make([]ChapterItem, 0, len(c.chapters))
	for _, ch := range c.chapters {
		v.Chapters = append(v.Chapters, ChapterItem{
			Name:    ch,
			Checked: c.draft.Has(ch),
			Active:  c.selected.Has(ch),
		})
	}
	v.Summary = c.summary()

	if c.feedback != nil {
		fb := *c.feedback
		v.Feedback = &fb
	}

	if c.current != nil {
		answered := c.state == StateAnswered
		qv := &QuestionView{
			Chapter:  c.current.Chapter,
			Prompt:   c.current.Prompt,
			Picked:   c.picked,
			Answered: answered,
		}
		for _, o := range c.current.Options {
			qv.Options = append(qv.Options, OptionView{
				Letter:  o.Letter,
				Text:    o.Text,
				Picked:  o.Letter == c.picked,
				Correct: answered && o.Letter == c.current.CorrectLetter,
			})
		}
		v.Question = qv
	}

	switch c.state {
	case StateUnanswered:
		v.Submit = SubmitControl{Label: MsgSubmit, Enabled: c.picked != "", Visible: true}
	case StateAnswered:
		v.Submit = SubmitControl{Label: MsgNext, Enabled: true, Visible: true}
	default:
		v.Submit = SubmitControl{Label: MsgSubmit}
	}
	return v
}

func (c *Controller) summary() ChapterSummary {
	switch n := len(c.selected); {
	case n == 0:
		return ChapterSummary{MessageID: MsgChaptersNone}
	case c.selected.Equal(c.all):
		return ChapterSummary{MessageID: MsgChaptersAll}
	case n == 1:
		return ChapterSummary{Chapter: c.selected.Sorted()[0]}
	default:
		return ChapterSummary{MessageID: MsgChaptersCount, Data: map[string]any{"Count": n}}
	}
}
