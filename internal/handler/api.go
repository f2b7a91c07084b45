package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	appI18n "github.com/skulanov/OP-test/internal/i18n"
	"github.com/skulanov/OP-test/internal/quiz"
)

// Event types accepted by POST /api/events.
const (
	EventToggleChapter = "toggle_chapter"
	EventSelectAll     = "select_all"
	EventDeselectAll   = "deselect_all"
	EventApplyFilter   = "apply_filter"
	EventPickOption    = "pick_option"
	EventSubmit        = "submit"
)

type apiEvent struct {
	Type    string `json:"type"`
	Chapter string `json:"chapter,omitempty"`
	Letter  string `json:"letter,omitempty"`
}

// apiText carries the rendered catalogue strings of a view.
type apiText struct {
	Summary  string `json:"summary"`
	Feedback string `json:"feedback,omitempty"`
	Submit   string `json:"submit"`
	Error    string `json:"error,omitempty"`
}

type apiState struct {
	Session string `json:"session"`
	quiz.View
	Text apiText `json:"text"`
}

func newAPIState(ctx context.Context, sid string, v quiz.View) apiState {
	tr := appI18n.Translator(ctx)
	st := apiState{Session: sid, View: v}
	switch v.State {
	case quiz.StateError:
		msg := quiz.MsgLoadError
		if v.Error == quiz.ErrorFilter {
			msg = quiz.MsgFilterError
		}
		st.Text.Error = tr(msg, nil)
		return st
	case quiz.StateLoading:
		return st
	}
	st.Text.Summary = v.Summary.Text(tr)
	st.Text.Submit = tr(v.Submit.Label, nil)
	if v.Feedback != nil {
		st.Text.Feedback = tr(v.Feedback.MessageID, v.Feedback.Data)
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (h *Handler) handleAPIState(w http.ResponseWriter, r *http.Request) {
	ctrl, release := h.session(w, r)
	view := ctrl.View()
	release()
	writeJSON(w, http.StatusOK, newAPIState(r.Context(), w.Header().Get(sessionHeader), view))
}

func (h *Handler) handleAPIEvent(w http.ResponseWriter, r *http.Request) {
	var ev apiEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&ev); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var apply func(*quiz.Controller) quiz.View
	switch ev.Type {
	case EventToggleChapter:
		apply = func(c *quiz.Controller) quiz.View { return c.ToggleChapter(ev.Chapter) }
	case EventSelectAll:
		apply = (*quiz.Controller).SelectAllChapters
	case EventDeselectAll:
		apply = (*quiz.Controller).DeselectAllChapters
	case EventApplyFilter:
		apply = (*quiz.Controller).ApplyFilter
	case EventPickOption:
		apply = func(c *quiz.Controller) quiz.View { return c.PickOption(ev.Letter) }
	case EventSubmit:
		apply = (*quiz.Controller).SubmitOrNext
	default:
		http.Error(w, "unknown event type: "+ev.Type, http.StatusBadRequest)
		return
	}

	ctrl, release := h.session(w, r)
	view := apply(ctrl)
	release()
	writeJSON(w, http.StatusOK, newAPIState(r.Context(), w.Header().Get(sessionHeader), view))
}
