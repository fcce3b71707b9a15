// Package genai provides the text-generation backends used by the router: OpenAI chat
// completions and Google Gemini, behind a single Generator interface.
package genai

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
)

var (
	// ErrNoChoicesReturned is returned when a completion carries no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrEmptyResponse is returned when a backend answers with empty text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoAPIKey is returned by constructors when no API key was provided.
	ErrNoAPIKey = errors.New("API key not set")
)

const (
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultGeminiModel  = "gemini-2.0-flash"
	DefaultTemperature  = 0.7
	DefaultHistoryLimit = 20
)

var tracer = otel.Tracer("github.com/BTreeMap/CareRouter/internal/genai")

// Request is a single generation call.
// An empty SessionID makes the call stateless; otherwise prior exchanges of the
// session are replayed to the backend.
type Request struct {
	SessionID string
	System    string
	Prompt    string
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Opts holds configuration shared by the backends.
type Opts struct {
	APIKey       string
	Model        string
	Temperature  float64
	HistoryLimit int // max messages remembered per session
}

// Option configures a backend client.
type Option func(*Opts)

// WithAPIKey sets the backend API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(o *Opts) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithHistoryLimit bounds the number of messages kept per session.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.HistoryLimit = n
		}
	}
}

func buildOpts(defaultModel string, opts []Option) Opts {
	o := Opts{
		Model:        defaultModel,
		Temperature:  DefaultTemperature,
		HistoryLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// exchange is one remembered prompt/reply pair.
type exchange struct {
	prompt string
	reply  string
}

// sessionMemory keeps bounded per-session exchanges keyed by session id.
type sessionMemory struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]exchange
}

func newSessionMemory(limitMessages int) *sessionMemory {
	limit := limitMessages / 2
	if limit < 1 {
		limit = 1
	}
	return &sessionMemory{limit: limit, sessions: make(map[string][]exchange)}
}

// history returns a copy of the remembered exchanges for id.
func (m *sessionMemory) history(id string) []exchange {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.sessions[id]
	out := make([]exchange, len(src))
	copy(out, src)
	return out
}

func (m *sessionMemory) remember(id, prompt, reply string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := append(m.sessions[id], exchange{prompt: prompt, reply: reply})
	if over := len(ex) - m.limit; over > 0 {
		ex = append([]exchange(nil), ex[over:]...)
	}
	m.sessions[id] = ex
}
