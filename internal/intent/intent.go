// Package intent classifies a user message into one of the router intents. The
// generation backend is asked for a single label; keyword scoring takes over whenever
// the backend is absent, fails or times out.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/models"
)

// Source names the path that produced a classification.
type Source string

const (
	SourceBackend  Source = "backend"
	SourceKeywords Source = "keywords"
)

// DefaultTimeout bounds a backend classification call.
const DefaultTimeout = 30 * time.Second

// recentLines is how much history the classification prompt embeds.
const recentLines = 4

// Result is a classification with its provenance.
type Result struct {
	Intent models.Intent
	Source Source
}

// Opts configures a Classifier.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Classifier.
type Option func(*Opts)

// WithTimeout sets the per-call backend timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// Classifier maps free text to an intent.
type Classifier struct {
	gen     genai.Generator
	timeout time.Duration
}

// NewClassifier creates a classifier. A nil generator yields a keyword-only classifier.
func NewClassifier(gen genai.Generator, opts ...Option) *Classifier {
	o := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Classifier{gen: gen, timeout: o.Timeout}
}

// Classify never fails; backend errors degrade to keyword scoring.
func (c *Classifier) Classify(ctx context.Context, input string, history []string, active models.Handler) Result {
	if c.gen == nil {
		return Result{Intent: KeywordIntent(input), Source: SourceKeywords}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	label, err := c.gen.Generate(callCtx, genai.Request{
		System: RouterInstruction,
		Prompt: buildPrompt(input, history, active),
	})
	if err != nil {
		fallback := KeywordIntent(input)
		slog.Warn("Classifier.Classify: backend failed, using keyword fallback", "active", active, "intent", fallback, "error", err)
		return Result{Intent: fallback, Source: SourceKeywords}
	}

	result := Result{Intent: models.ParseIntentLabel(label), Source: SourceBackend}
	slog.Debug("Classifier.Classify: backend label", "label", strings.TrimSpace(label), "intent", result.Intent, "active", active)
	return result
}

func buildPrompt(input string, history []string, active models.Handler) string {
	recent := "No previous conversation"
	if n := len(history); n > 0 {
		from := max(n-recentLines, 0)
		recent = strings.Join(history[from:], "\n")
	}
	if active == "" {
		active = models.HandlerOrchestrator
	}
	return fmt.Sprintf(`CONVERSATION CONTEXT:
%s

CURRENT ACTIVE AGENT: %s
USER MESSAGE: %q

Which agent should handle this message?`, recent, active, input)
}
