// Package suggest produces follow-up questions a user might ask next. The generation
// backend writes them when available; per-handler templates cover every other case.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/models"
)

// DefaultTimeout bounds a backend suggestion call.
const DefaultTimeout = 30 * time.Second

const (
	historyLines = 6
	minLen       = 5
	maxLen       = 60
)

const instruction = `You write short follow-up questions for the user of a healthcare assistant.
Every question must be written as the USER would type it to the assistant.
Never write questions the assistant would ask the user, such as "What are your symptoms?" or "Which hospital do you prefer?".
Never repeat a question about information that is already known.`

var listMarker = regexp.MustCompile(`^(?:[•\-*]|\d+[.)])\s*`)

// Opts configures a Suggester.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Suggester.
type Option func(*Opts)

// WithTimeout sets the per-call backend timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// Suggester generates suggested replies.
type Suggester struct {
	gen     genai.Generator
	timeout time.Duration
}

// NewSuggester creates a Suggester. A nil generator yields a template-only Suggester.
func NewSuggester(gen genai.Generator, opts ...Option) *Suggester {
	o := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Suggester{gen: gen, timeout: o.Timeout}
}

// Suggest returns at most models.MaxSuggestedReplies questions. It never fails.
func (s *Suggester) Suggest(ctx context.Context, input, reply string, st *models.ConversationState, h models.Handler) []string {
	if s.gen == nil {
		return Fallback(st, h)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(callCtx, genai.Request{
		System: instruction,
		Prompt: buildPrompt(input, reply, st, h),
	})
	if err != nil {
		slog.Warn("Suggester.Suggest: backend failed, using templates", "handler", h, "error", err)
		return Fallback(st, h)
	}
	out := Parse(text)
	if len(out) == 0 {
		slog.Debug("Suggester.Suggest: nothing usable in backend output, using templates", "handler", h)
		return Fallback(st, h)
	}
	return out
}

// Parse extracts suggestion lines from bulleted or numbered backend output.
func Parse(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		line = strings.Trim(line, `"`)
		if n := utf8.RuneCountInString(line); n <= minLen || n >= maxLen {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "format:") || strings.HasPrefix(lower, "guidelines:") {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, line)
		if len(out) == models.MaxSuggestedReplies {
			break
		}
	}
	return out
}

func buildPrompt(input, reply string, st *models.ConversationState, h models.Handler) string {
	recent := "No previous conversation"
	if lines := st.RecentHistory(historyLines); len(lines) > 0 {
		recent = strings.Join(lines, "\n")
	}

	var known []string
	m := st.SharedMemory
	if m.CurrentCondition != "" {
		known = append(known, "condition: "+m.CurrentCondition)
	}
	if len(m.SymptomsDiscussed) > 0 {
		known = append(known, "symptoms: "+strings.Join(m.SymptomsDiscussed, ", "))
	}
	if m.SchedulingInfo.Location != "" {
		known = append(known, "location: "+m.SchedulingInfo.Location)
	}
	if m.SchedulingInfo.HospitalPreference != "" {
		known = append(known, "hospital: "+m.SchedulingInfo.HospitalPreference)
	}
	if tb := m.TestBookingInfo; tb != nil && tb.IsTestBooking {
		known = append(known, fmt.Sprintf("test booking: location=%q lab=%q visit=%q", tb.Location, tb.LabPreference, tb.VisitType))
	}
	if m.PharmacyInfo.MedicineSelected != "" {
		known = append(known, "medicine: "+m.PharmacyInfo.MedicineSelected)
	}
	slots := "none"
	if len(known) > 0 {
		slots = strings.Join(known, "\n")
	}

	return fmt.Sprintf(`RECENT CONVERSATION:
%s

AGENT: %s
USER MESSAGE: %s
ASSISTANT REPLY: %s

KNOWN INFORMATION:
%s

Write %d short questions the user could ask next, from the user's perspective.

FORMAT:
- one question per line, each starting with "- "
- no numbering, no extra text`, recent, h.Label(), input, reply, slots, models.MaxSuggestedReplies)
}
