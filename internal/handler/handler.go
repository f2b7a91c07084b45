package handler

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/skulanov/OP-test/internal/handler/views"
	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/quiz"
	"github.com/skulanov/OP-test/internal/session"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	bank     model.Bank
	loadErr  error
	config   model.QuizConfig
	sessions *session.Registry[string, *quiz.Controller]
	seq      atomic.Uint64
}

// New creates a new Handler serving bank. A non-nil loadErr puts every
// session into the load failure state.
func New(bank model.Bank, loadErr error, cfg model.QuizConfig) (*Handler, error) {
	h := &Handler{bank: bank, loadErr: loadErr, config: cfg}
	h.sessions = session.NewRegistry[string](h.newController, cfg.SessionTTL, cfg.MaxSessions)
	return h, nil
}

// Sessions returns the browser session registry.
func (h *Handler) Sessions() *session.Registry[string, *quiz.Controller] {
	return h.sessions
}

func (h *Handler) newController() *quiz.Controller {
	var rng quiz.Rand
	if h.config.Seed != 0 {
		rng = rand.New(rand.NewPCG(h.config.Seed, h.seq.Add(1)))
	}
	c := quiz.NewController(nil, rng)
	if h.loadErr != nil {
		c.Load("", h.loadErr)
	} else {
		c.LoadBank(h.bank)
	}
	return c
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/", h.handleIndex)
		r.Post("/chapters/toggle", h.formAction(func(c *quiz.Controller, r *http.Request) {
			c.ToggleChapter(r.FormValue("chapter"))
		}))
		r.Post("/chapters/all", h.formAction(func(c *quiz.Controller, _ *http.Request) {
			c.SelectAllChapters()
		}))
		r.Post("/chapters/none", h.formAction(func(c *quiz.Controller, _ *http.Request) {
			c.DeselectAllChapters()
		}))
		r.Post("/chapters/apply", h.formAction(func(c *quiz.Controller, _ *http.Request) {
			c.ApplyFilter()
		}))
		r.Post("/pick", h.formAction(func(c *quiz.Controller, r *http.Request) {
			c.PickOption(r.FormValue("letter"))
		}))
		r.Post("/submit", h.formAction(func(c *quiz.Controller, _ *http.Request) {
			c.SubmitOrNext()
		}))
	})

	r.Route("/api", func(r chi.Router) {
		if len(h.config.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   h.config.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", sessionHeader},
				ExposedHeaders:   []string{sessionHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Get("/state", h.handleAPIState)
		r.Post("/events", h.handleAPIEvent)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl, release := h.session(w, r)
	view := ctrl.View()
	release()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	page := views.Page{View: view, BankSize: len(h.bank)}
	if err := views.QuizPage(page).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// formAction applies one controller event and redirects back to the page.
func (h *Handler) formAction(event func(*quiz.Controller, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, release := h.session(w, r)
		event(ctrl, r)
		release()
		http.Redirect(w, r, views.Path(r.Context(), "/"), http.StatusSeeOther)
	}
}
