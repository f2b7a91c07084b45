package model

import (
	"context"
	"time"
)

// Option is a single lettered answer choice of a question.
type Option struct {
	Letter    string `json:"letter"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is one multiple-choice record of a bank. Records are never
// modified after the parser finalizes them.
type Question struct {
	Chapter string   `json:"chapter"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`

	// CorrectLetter is empty when no option was flagged correct.
	CorrectLetter string `json:"correct_letter,omitempty"`
}

// QuestionID identifies a question by chapter and prompt, so identity
// survives shuffling and re-filtering of the bank.
type QuestionID struct {
	Chapter string
	Prompt  string
}

// ID returns the identity of the question.
func (q Question) ID() QuestionID {
	return QuestionID{Chapter: q.Chapter, Prompt: q.Prompt}
}

// String renders the identity as "chapter:prompt".
func (id QuestionID) String() string {
	return id.Chapter + ":" + id.Prompt
}

// HasCorrect reports whether the question can ever be answered correctly.
func (q Question) HasCorrect() bool {
	return q.CorrectLetter != ""
}

// Bank is the ordered question sequence produced by one parse pass.
type Bank []Question

// BankInfo describes a bank stored in the catalogue.
type BankInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Questions  int       `json:"questions"`
	ImportedAt time.Time `json:"imported_at"`
}

// QuizConfig holds runtime quiz parameters set via CLI flags.
type QuizConfig struct {
	Seed          uint64        // 0 means a random seed per session
	BasePath      string        // URL prefix for sub-path deployments (e.g. "/op")
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	SessionTTL    time.Duration // idle browser sessions are dropped after this
	MaxSessions   int           // live browser sessions kept at most (0 = no cap)
	CORSOrigins   []string      // allowed origins for /api
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
