// Package views holds the templ components of the quiz pages. Edit
// quiz.templ and run `templ generate` to refresh quiz_templ.go.
package views

import (
	"context"

	appI18n "github.com/skulanov/OP-test/internal/i18n"
	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/quiz"
)

// Page is the data of the single quiz page.
type Page struct {
	View     quiz.View
	BankSize int
}

type hiddenField struct {
	Name  string
	Value string
}

// Path prefixes p with the base path stored in ctx.
func Path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func tr(ctx context.Context, msgID string, data map[string]any) string {
	return appI18n.Translator(ctx)(msgID, data)
}

func summaryText(ctx context.Context, s quiz.ChapterSummary) string {
	return s.Text(appI18n.Translator(ctx))
}

func errorMessage(kind quiz.ErrorKind) string {
	if kind == quiz.ErrorFilter {
		return quiz.MsgFilterError
	}
	return quiz.MsgLoadError
}

func chapterLabel(ch quiz.ChapterItem) string {
	if ch.Checked {
		return "☑ " + ch.Name
	}
	return "☐ " + ch.Name
}

func optionClass(q *quiz.QuestionView, o quiz.OptionView) string {
	switch {
	case q.Answered && o.Correct:
		return "option correct"
	case q.Answered && o.Picked:
		return "option wrong"
	case o.Picked:
		return "option picked"
	}
	return "option"
}
