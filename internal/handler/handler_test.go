package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/skulanov/OP-test/internal/i18n"
	"github.com/skulanov/OP-test/internal/model"
	"github.com/skulanov/OP-test/internal/parser"
	"github.com/skulanov/OP-test/internal/quiz"
)

const testBankText = `# 1. Основы
1. Что такое HTTP?
А. Протокол ✅
Б. Язык <b>разметки</b>
`

func TestMain(m *testing.M) {
	if err := appI18n.Init("ru"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig() model.QuizConfig {
	return model.QuizConfig{Seed: 7, SessionTTL: time.Hour}
}

func newTestRouter(t *testing.T, bank model.Bank, loadErr error, cfg model.QuizConfig) http.Handler {
	t.Helper()
	h, err := New(bank, loadErr, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("ru"))
	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r
}

type testClient struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestClient(t *testing.T, router http.Handler) *testClient {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testClient{t: t, srv: srv, client: &http.Client{Jar: jar}}
}

func (c *testClient) cookie(name string) string {
	return c.cookieAt("/", name)
}

func (c *testClient) cookieAt(path, name string) string {
	u, _ := url.Parse(c.srv.URL + path)
	for _, ck := range c.client.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *testClient) get(path string) (int, string) {
	c.t.Helper()
	resp, err := c.client.Get(c.srv.URL + path)
	if err != nil {
		c.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (c *testClient) post(path string, form url.Values) (int, string) {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", c.cookieAt(path, csrfCookieName))
	}
	resp, err := c.client.PostForm(c.srv.URL+path, form)
	if err != nil {
		c.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (c *testClient) event(ev apiEvent) (int, apiState) {
	c.t.Helper()
	data, _ := json.Marshal(ev)
	resp, err := c.client.Post(c.srv.URL+"/api/events", "application/json", bytes.NewReader(data))
	if err != nil {
		c.t.Fatalf("POST /api/events: %v", err)
	}
	defer resp.Body.Close()
	var st apiState
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			c.t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, st
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))
	code, body := c.get("/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Errorf("expected 200 ok, got %d %q", code, body)
	}
}

func TestIndexRendersQuestion(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))

	code, body := c.get("/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, want := range []string{
		"Что такое HTTP?",
		"Все главы",
		"Ответить",
		"Выбрать все",
		"Снять все",
		"Применить",
		"Язык &lt;b&gt;разметки&lt;/b&gt;",
		`name="csrf_token"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "✅") {
		t.Error("correctness marker leaked into the page")
	}
	if c.cookie(sessionCookieName) == "" || c.cookie(csrfCookieName) == "" {
		t.Error("expected session and csrf cookies")
	}
}

func TestFormFlow(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))
	c.get("/")
	sid := c.cookie(sessionCookieName)

	code, body := c.post("/pick", url.Values{"letter": {"А"}})
	if code != http.StatusOK {
		t.Fatalf("expected redirect to page, got %d", code)
	}
	if !strings.Contains(body, "option picked") {
		t.Error("expected picked option on the page")
	}

	_, body = c.post("/submit", nil)
	if !strings.Contains(body, "Верно!") || !strings.Contains(body, "Следующий вопрос") {
		t.Errorf("expected correct feedback and next button, got:\n%s", body)
	}

	_, body = c.post("/submit", nil)
	if !strings.Contains(body, "Поздравляем! Вы правильно ответили на все 1 вопросов из всех глав!") {
		t.Errorf("expected completion message, got:\n%s", body)
	}

	if got := c.cookie(sessionCookieName); got != sid {
		t.Errorf("session changed from %s to %s", sid, got)
	}
}

func TestChapterForms(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))
	c.get("/")

	c.post("/chapters/none", nil)
	_, body := c.post("/chapters/apply", nil)
	if !strings.Contains(body, "Выберите хотя бы одну главу для изучения") {
		t.Error("expected empty selection feedback")
	}
	if !strings.Contains(body, "Главы не выбраны") {
		t.Error("expected empty summary")
	}

	c.post("/chapters/toggle", url.Values{"chapter": {"1. Основы"}})
	_, body = c.post("/chapters/apply", nil)
	if !strings.Contains(body, "Что такое HTTP?") {
		t.Error("expected question after re-applying the chapter")
	}

	c.post("/chapters/none", nil)
	_, body = c.post("/chapters/all", nil)
	if !strings.Contains(body, "☑ 1. Основы") {
		t.Error("expected chapter checked again")
	}
}

func TestCSRFRejected(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))
	c.get("/")

	code, _ := c.post("/pick", url.Values{"letter": {"А"}, "csrf_token": {"forged"}})
	if code != http.StatusForbidden {
		t.Errorf("expected 403 for forged token, got %d", code)
	}

	resp, err := http.PostForm(c.srv.URL+"/submit", url.Values{})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 without cookie, got %d", resp.StatusCode)
	}
}

func TestAPIFlow(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, testConfig()))

	code, body := c.get("/api/state")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var st apiState
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Session == "" || st.State != quiz.StateUnanswered {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Text.Summary != "Все главы" || st.Text.Submit != "Ответить" {
		t.Errorf("unexpected texts %+v", st.Text)
	}

	_, st = c.event(apiEvent{Type: EventPickOption, Letter: "Б"})
	if st.Question == nil || st.Question.Picked != "Б" || !st.Submit.Enabled {
		t.Fatalf("expected pick to register, got %+v", st.View)
	}

	_, st = c.event(apiEvent{Type: EventSubmit})
	if st.State != quiz.StateAnswered || st.Text.Feedback != "Неверно!" {
		t.Errorf("expected incorrect answer, got %s %q", st.State, st.Text.Feedback)
	}
	if !st.Question.Options[0].Correct {
		t.Error("expected correct option revealed after grading")
	}
}

func TestAPISessionHeader(t *testing.T) {
	router := newTestRouter(t, parser.Parse(testBankText), nil, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	sid := rec.Header().Get(sessionHeader)
	if sid == "" {
		t.Fatal("expected session header")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"type":"pick_option","letter":"А"}`))
	req.Header.Set(sessionHeader, sid)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var st apiState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Session != sid || st.Question.Picked != "А" {
		t.Errorf("expected event applied to session %s, got %s picked=%q", sid, st.Session, st.Question.Picked)
	}
}

func TestAPIBadRequests(t *testing.T) {
	router := newTestRouter(t, parser.Parse(testBankText), nil, testConfig())
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"type":`},
		{"unknown type", `{"type":"explode"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestLoadFailure(t *testing.T) {
	c := newTestClient(t, newTestRouter(t, nil, errors.New("no such file"), testConfig()))

	_, body := c.get("/")
	if !strings.Contains(body, "Не удалось загрузить вопросы") {
		t.Errorf("expected load error on page, got:\n%s", body)
	}

	_, st := c.event(apiEvent{Type: EventSubmit})
	if st.State != quiz.StateError || st.Error != quiz.ErrorLoad || st.Text.Error == "" {
		t.Errorf("expected load error state, got %+v", st)
	}
}

func TestBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.BasePath = "/op"
	c := newTestClient(t, newTestRouter(t, parser.Parse(testBankText), nil, cfg))

	code, body := c.get("/op/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(body, `action="/op/pick"`) {
		t.Error("expected form actions under the base path")
	}

	code, body = c.post("/op/pick", url.Values{"letter": {"А"}})
	if code != http.StatusOK || !strings.Contains(body, "option picked") {
		t.Errorf("expected redirect back to /op/, got %d", code)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = []string{"https://quiz.example.com"}
	router := newTestRouter(t, parser.Parse(testBankText), nil, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://quiz.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://quiz.example.com" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}

func TestSessionCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	router := newTestRouter(t, parser.Parse(testBankText), nil, cfg)

	state := func(sid string) string {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		if sid != "" {
			req.Header.Set(sessionHeader, sid)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Header().Get(sessionHeader)
	}

	first := state("")
	if got := state(first); got != first {
		t.Fatalf("expected session %s to be reused, got %s", first, got)
	}
	second := state("")
	if second == first {
		t.Fatal("expected a new session")
	}
	if got := state(first); got == first {
		t.Error("oldest session should be evicted once the cap is reached")
	}
}
