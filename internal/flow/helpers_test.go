package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/state"
	"github.com/BTreeMap/CareRouter/internal/store"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// scriptedAgent replies from a queue, repeating the last reply once the queue drains.
type scriptedAgent struct {
	mu       sync.Mutex
	replies  []string
	err      error
	payloads []string
	sessions []string
}

func newScriptedAgent(replies ...string) *scriptedAgent {
	return &scriptedAgent{replies: replies}
}

func (a *scriptedAgent) Respond(_ context.Context, sessionID, payload string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payloads = append(a.payloads, payload)
	a.sessions = append(a.sessions, sessionID)
	if a.err != nil {
		return "", a.err
	}
	if len(a.replies) == 0 {
		return "ok", nil
	}
	reply := a.replies[0]
	if len(a.replies) > 1 {
		a.replies = a.replies[1:]
	}
	return reply, nil
}

func (a *scriptedAgent) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.payloads)
}

func (a *scriptedAgent) lastPayload() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.payloads) == 0 {
		return ""
	}
	return a.payloads[len(a.payloads)-1]
}

type panicAgent struct{}

func (panicAgent) Respond(context.Context, string, string) (string, error) {
	panic("boom")
}

type recordSink struct {
	mu      sync.Mutex
	records []store.Record
}

func (s *recordSink) Record(r store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, genai.Request) (string, error) {
	return g.reply, g.err
}

// cannedWithout returns the canned handler set with lab_test removed.
func cannedWithout() Handlers {
	hs := NewCannedHandlers()
	hs.LabTest = nil
	return hs
}

func newTestManager(t *testing.T, hs Handlers, opts ...Option) (*Manager, *state.MemoryStore) {
	t.Helper()
	st := state.NewMemoryStore(state.WithClock(clock))
	all := append([]Option{WithClock(clock), WithStateStore(st)}, opts...)
	m, err := NewManager(hs, all...)
	require.NoError(t, err)
	return m, st
}

func seed(t *testing.T, st state.Store, fn func(*models.ConversationState)) {
	t.Helper()
	s := models.NewConversationState("u1", fixedNow)
	fn(s)
	require.NoError(t, st.Save(context.Background(), s))
}

func stored(t *testing.T, st state.Store) *models.ConversationState {
	t.Helper()
	s, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	return s
}
