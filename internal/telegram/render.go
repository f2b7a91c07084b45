package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/quiz"
)

// Callback data stays far below Telegram's 64 byte limit: chapters and
// options are addressed by index, never by text.
const (
	cbPick        = "o"
	cbSubmit      = "s"
	cbToggle      = "c"
	cbSelectAll   = "ca"
	cbDeselectAll = "cn"
	cbApply       = "cp"
	cbMenu        = "cm"
)

type callback struct {
	action string
	index  int
}

func encodeCallback(action string, index int) string {
	return action + ":" + strconv.Itoa(index)
}

func parseCallback(data string) (callback, bool) {
	action, idx, found := strings.Cut(data, ":")
	switch action {
	case cbSubmit, cbSelectAll, cbDeselectAll, cbApply, cbMenu:
		return callback{action: action}, !found
	case cbPick, cbToggle:
		if !found {
			return callback{}, false
		}
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return callback{}, false
		}
		return callback{action: action, index: n}, true
	}
	return callback{}, false
}

// chatRenderer collects a View into one chat message. It shows either the
// question screen or the chapter menu.
type chatRenderer struct {
	tr          quiz.Translator
	chapterMenu bool

	// Set from the View before presenting; the Renderer calls do not carry them.
	chapter  string
	summary  string
	picked   string
	answered bool

	prompt      string
	options     []model.Option
	feedback    string
	chapters    []string
	selected    quiz.ChapterSet
	submitLabel string
	submitOn    bool
	errText     string
}

func newChatRenderer(tr quiz.Translator, v quiz.View, chapterMenu bool) *chatRenderer {
	r := &chatRenderer{tr: tr, chapterMenu: chapterMenu}
	if v.State != quiz.StateError {
		r.summary = v.Summary.Text(tr)
	}
	if v.Question != nil {
		r.chapter = v.Question.Chapter
		r.picked = v.Question.Picked
		r.answered = v.Question.Answered
	}
	return r
}

func (r *chatRenderer) RenderQuestion(prompt string, options []model.Option) {
	r.prompt = prompt
	r.options = options
}

func (r *chatRenderer) RenderFeedback(_ quiz.FeedbackKind, text string) {
	r.feedback = text
}

func (r *chatRenderer) RenderChapterList(chapters []string, selected quiz.ChapterSet) {
	r.chapters = chapters
	r.selected = selected
}

func (r *chatRenderer) SetSubmitControl(label string, enabled, visible bool) {
	r.submitLabel = label
	r.submitOn = enabled && visible
}

func (r *chatRenderer) RenderError(text string) {
	r.errText = text
}

// content returns the message text and keyboard rows.
func (r *chatRenderer) content() (string, [][]tgbotapi.InlineKeyboardButton) {
	if r.errText != "" {
		return "⚠️ " + r.errText, nil
	}
	if r.chapterMenu {
		return r.menuContent()
	}
	return r.questionContent()
}

func (r *chatRenderer) menuContent() (string, [][]tgbotapi.InlineKeyboardButton) {
	text := fmt.Sprintf("📚 %s: %s", r.tr("Chapters", nil), r.summary)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, ch := range r.chapters {
		mark := "☐ "
		if r.selected.Has(ch) {
			mark = "☑ "
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark+ch, encodeCallback(cbToggle, i)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.tr("SelectAll", nil), cbSelectAll),
			tgbotapi.NewInlineKeyboardButtonData(r.tr("DeselectAll", nil), cbDeselectAll),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✔️ "+r.tr("Apply", nil), cbApply),
		),
	)
	return text, rows
}

func (r *chatRenderer) questionContent() (string, [][]tgbotapi.InlineKeyboardButton) {
	var b strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton

	if r.prompt != "" {
		fmt.Fprintf(&b, "📖 %s\n\n❓ %s\n\n", r.chapter, r.prompt)
		var letters []tgbotapi.InlineKeyboardButton
		for i, o := range r.options {
			mark := ""
			switch {
			case r.answered && o.IsCorrect:
				mark = " ✅"
			case r.answered && o.Letter == r.picked:
				mark = " ❌"
			case o.Letter == r.picked:
				mark = " 👈"
			}
			fmt.Fprintf(&b, "%s. %s%s\n", o.Letter, o.Text, mark)

			label := o.Letter
			if o.Letter == r.picked {
				label = "• " + label + " •"
			}
			if !r.answered {
				letters = append(letters, tgbotapi.NewInlineKeyboardButtonData(label, encodeCallback(cbPick, i)))
			}
		}
		if len(letters) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(letters...))
		}
	}

	if r.feedback != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.feedback)
	}

	if r.submitOn {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.submitLabel, cbSubmit),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📚 "+r.summary, cbMenu),
	))

	return strings.TrimRight(b.String(), "\n"), rows
}
