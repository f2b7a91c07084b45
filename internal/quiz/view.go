package quiz

import "github.com/skulanov/OP-test/internal/model"

// State is a Session Controller state.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateUnanswered State = "unanswered"
	StateAnswered   State = "answered"
	StateExhausted  State = "exhausted"
	StateError      State = "error"
)

// ErrorKind tells why the controller entered StateError.
type ErrorKind string

const (
	// ErrorLoad: the bank could not be fetched or parsed to zero questions.
	ErrorLoad ErrorKind = "load_failure"
	// ErrorFilter: non-empty chapter selection with no questions behind it.
	ErrorFilter ErrorKind = "filter_inconsistent"
)

// FeedbackKind selects how feedback is styled.
type FeedbackKind string

const (
	FeedbackCorrect   FeedbackKind = "correct"
	FeedbackIncorrect FeedbackKind = "incorrect"
	FeedbackInfo      FeedbackKind = "info"
)

// Message IDs of the catalogue entries the controller refers to.
const (
	MsgChooseChapters    = "ChooseChapters"
	MsgSelectAtLeastOne  = "SelectAtLeastOne"
	MsgCorrect           = "Correct"
	MsgCorrectProgress   = "CorrectProgress"
	MsgIncorrect         = "Incorrect"
	MsgCompletedAll      = "CompletedAll"
	MsgCompletedSelected = "CompletedSelected"
	MsgSubmit            = "Submit"
	MsgNext              = "Next"
	MsgLoadError         = "LoadError"
	MsgFilterError       = "FilterError"
	MsgChaptersNone      = "ChaptersNone"
	MsgChaptersAll       = "ChaptersAll"
	MsgChaptersCount     = "ChaptersCount"
)

// Feedback is a message for the feedback area. Text is produced by the
// adapter from MessageID and Data.
type Feedback struct {
	Kind      FeedbackKind   `json:"kind"`
	MessageID string         `json:"message_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// OptionView is one answer choice as displayed.
type OptionView struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
	Picked bool   `json:"picked"`

	// Correct is only revealed once the question is answered.
	Correct bool `json:"correct"`
}

// QuestionView is the question on display.
type QuestionView struct {
	Chapter  string       `json:"chapter"`
	Prompt   string       `json:"prompt"`
	Options  []OptionView `json:"options"`
	Picked   string       `json:"picked,omitempty"`
	Answered bool         `json:"answered"`
}

// ChapterItem is one row of the chapter selector. Checked mirrors the draft
// selection, Active the applied filter.
type ChapterItem struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
	Active  bool   `json:"active"`
}

// ChapterSummary describes the applied filter for the chapter button.
type ChapterSummary struct {
	MessageID string         `json:"message_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`

	// Chapter is set instead of MessageID when exactly one chapter is active.
	Chapter string `json:"chapter,omitempty"`
}

// SubmitControl is the state of the submit/next button. Label is a message ID.
type SubmitControl struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Visible bool   `json:"visible"`
}

// View is everything an adapter needs to draw the current state. A fresh
// View is returned by every controller transition.
type View struct {
	State    State          `json:"state"`
	Error    ErrorKind      `json:"error,omitempty"`
	Chapters []ChapterItem  `json:"chapters"`
	Summary  ChapterSummary `json:"summary"`
	Question *QuestionView  `json:"question,omitempty"`
	Feedback *Feedback      `json:"feedback,omitempty"`
	Submit   SubmitControl  `json:"submit"`
}

// Translator renders a catalogue message.
type Translator func(messageID string, data map[string]any) string

// Renderer is the view layer collaborator. The core never reads from it.
type Renderer interface {
	RenderQuestion(prompt string, options []model.Option)
	RenderFeedback(kind FeedbackKind, text string)
	RenderChapterList(chapters []string, selected ChapterSet)
	SetSubmitControl(label string, enabled, visible bool)
	RenderError(text string)
}

// Present replays a View onto a Renderer.
func Present(v View, r Renderer, tr Translator) {
	if v.State == StateError {
		id := MsgLoadError
		if v.Error == ErrorFilter {
			id = MsgFilterError
		}
		r.RenderError(tr(id, nil))
		return
	}

	names := make([]string, 0, len(v.Chapters))
	checked := make(ChapterSet)
	for _, ch := range v.Chapters {
		names = append(names, ch.Name)
		if ch.Checked {
			checked[ch.Name] = struct{}{}
		}
	}
	r.RenderChapterList(names, checked)

	if v.Question != nil {
		opts := make([]model.Option, 0, len(v.Question.Options))
		for _, o := range v.Question.Options {
			opts = append(opts, model.Option{Letter: o.Letter, Text: o.Text, IsCorrect: o.Correct})
		}
		r.RenderQuestion(v.Question.Prompt, opts)
	}

	if v.Feedback != nil {
		r.RenderFeedback(v.Feedback.Kind, tr(v.Feedback.MessageID, v.Feedback.Data))
	} else {
		r.RenderFeedback(FeedbackInfo, "")
	}

	r.SetSubmitControl(tr(v.Submit.Label, nil), v.Submit.Enabled, v.Submit.Visible)
}

// Text renders the chapter button label.
func (s ChapterSummary) Text(tr Translator) string {
	if s.Chapter != "" {
		return s.Chapter
	}
	return tr(s.MessageID, s.Data)
}
