package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestChatRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  ChatRequest
		want error
	}{
		{"valid", ChatRequest{Message: "hello"}, nil},
		{"empty", ChatRequest{}, ErrMissingMessage},
		{"whitespace", ChatRequest{Message: "   "}, ErrMissingMessage},
		{"too long", ChatRequest{Message: strings.Repeat("a", MaxMessageLength+1)}, ErrMessageTooLong},
		{"multibyte within limit", ChatRequest{Message: strings.Repeat("बु", 1000)}, nil},
		{"multibyte over limit", ChatRequest{Message: strings.Repeat("ब", MaxMessageLength+1)}, ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := TruncateMessage("hello"); got != "hello" {
		t.Errorf("short message changed: %q", got)
	}
	long := strings.Repeat("a", MaxMessageLength-1) + "नमस्ते"
	got := TruncateMessage(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune")
	}
	if n := utf8.RuneCountInString(got); n != MaxMessageLength {
		t.Errorf("expected %d characters, got %d", MaxMessageLength, n)
	}
	if !strings.HasSuffix(got, "न") {
		t.Errorf("expected the first multibyte rune to be kept, got suffix %q", got[len(got)-6:])
	}
}

func TestChatRequestEffectiveUserID(t *testing.T) {
	if got := (ChatRequest{}).EffectiveUserID(); got != DefaultUserID {
		t.Errorf("expected %q, got %q", DefaultUserID, got)
	}
	if got := (ChatRequest{UserID: " u1 "}).EffectiveUserID(); got != "u1" {
		t.Errorf("expected trimmed user id, got %q", got)
	}
}

func TestParseIntentLabel(t *testing.T) {
	tests := map[string]Intent{
		"SYMPTOM":       IntentSymptom,
		" pharmacy\n":   IntentPharmacy,
		"\"LAB_TEST\"":  IntentLabTest,
		"CARE_PLAN.":    IntentCarePlan,
		"INSURANCE":     IntentInsurance,
		"SCHEDULING":    IntentScheduling,
		"I think it is": IntentGeneral,
		"":              IntentGeneral,
	}
	for label, want := range tests {
		if got := ParseIntentLabel(label); got != want {
			t.Errorf("ParseIntentLabel(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestIntentHandler(t *testing.T) {
	if _, ok := IntentGeneral.Handler(); ok {
		t.Error("general intent must not map to a handler")
	}
	h, ok := IntentInsurance.Handler()
	if !ok || h != HandlerInsurance {
		t.Errorf("expected insurance handler, got %q (%v)", h, ok)
	}
}

func TestHandlerLabels(t *testing.T) {
	for _, h := range AllHandlers() {
		if !h.IsValid() {
			t.Errorf("%q should be valid", h)
		}
		if h.Label() == "" || h.Icon() == "" {
			t.Errorf("%q missing label or icon", h)
		}
	}
	if HandlerOrchestrator.Label() != "Wellness Assistant" {
		t.Errorf("unexpected orchestrator label %q", HandlerOrchestrator.Label())
	}
	if Handler("nope").IsValid() {
		t.Error("unknown handler should be invalid")
	}
}

func TestAppendHistoryBound(t *testing.T) {
	s := NewConversationState("u1", time.Now())
	for i := 0; i < 25; i++ {
		s.AppendHistory("hi", "hello")
		if len(s.ConversationHistory) > MaxHistoryLines {
			t.Fatalf("history length %d exceeds bound after %d turns", len(s.ConversationHistory), i+1)
		}
	}
	if len(s.ConversationHistory) != MaxHistoryLines {
		t.Errorf("expected %d lines, got %d", MaxHistoryLines, len(s.ConversationHistory))
	}
	if s.ConversationHistory[0] != "User: hi" {
		t.Errorf("expected oldest retained line to be a user line, got %q", s.ConversationHistory[0])
	}
}

func TestRecentHistory(t *testing.T) {
	s := NewConversationState("u1", time.Now())
	if got := s.RecentHistory(4); got != nil {
		t.Errorf("expected nil for empty history, got %v", got)
	}
	s.AppendHistory("a", "b")
	s.AppendHistory("c", "d")
	got := s.RecentHistory(3)
	if len(got) != 3 || got[0] != "Agent: b" || got[2] != "Agent: d" {
		t.Errorf("unexpected recent history %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewConversationState("u1", time.Now())
	s.SharedMemory.AddSymptom("fever")
	s.SharedMemory.TestBookingInfo = NewTestBookingInfo()
	s.AppendHistory("x", "y")

	c := s.Clone()
	c.SharedMemory.AddSymptom("cough")
	c.SharedMemory.TestBookingInfo.Location = "Delhi"
	c.ConversationHistory[0] = "changed"
	c.SharedMemory.SchedulingInfo.Location = "Pune"

	if len(s.SharedMemory.SymptomsDiscussed) != 1 {
		t.Errorf("clone leaked symptoms: %v", s.SharedMemory.SymptomsDiscussed)
	}
	if s.SharedMemory.TestBookingInfo.Location != "" {
		t.Error("clone leaked test booking info")
	}
	if s.ConversationHistory[0] != "User: x" {
		t.Error("clone leaked history")
	}
	if s.SharedMemory.SchedulingInfo.Location != "" {
		t.Error("clone leaked scheduling info")
	}
}

func TestAddSymptomDeduplicates(t *testing.T) {
	var m SharedMemory
	if !m.AddSymptom("fever") || m.AddSymptom("fever") {
		t.Error("expected first add to succeed and second to be suppressed")
	}
	if m.AddSymptom("") {
		t.Error("empty tag must be ignored")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	env := NewEnvelope("hi", HandlerLabTest, now)
	env.Cards = []Card{QuickReplyCard{Type: CardQuickReply, Title: "Yes", SelectionText: "Yes"}}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["agent"] != "lab_test" || decoded["icon"] != "🔬" || decoded["timestamp"] != "2026-03-01T09:30:00Z" {
		t.Errorf("unexpected envelope fields: %v", decoded)
	}
	if _, ok := decoded["suggested_replies"]; ok {
		t.Error("empty suggestions should be omitted")
	}
	cards := decoded["cards"].([]any)
	if cards[0].(map[string]any)["type"] != "quick_reply" {
		t.Errorf("card missing type discriminator: %v", cards[0])
	}
}
