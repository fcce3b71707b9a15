package genai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go"
	gemini "google.golang.org/genai"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp  openai.ChatCompletion
	err   error
	calls []openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls = append(m.calls, params)
	return m.resp, m.err
}

func completion(text string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func newTestClient(chat chatService) *Client {
	return &Client{chat: chat, model: "test-model", temperature: 0.1, memory: newSessionMemory(4)}
}

func TestGenerate_Success(t *testing.T) {
	client := newTestClient(&mockChatService{resp: completion("Hello World")})
	out, err := client.Generate(context.Background(), Request{System: "system prompt", Prompt: "user prompt"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.Generate(context.Background(), Request{System: "sys", Prompt: "usr"})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}})
	_, err := client.Generate(context.Background(), Request{System: "sys", Prompt: "usr"})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerate_EmptyContent(t *testing.T) {
	client := newTestClient(&mockChatService{resp: completion("")})
	_, err := client.Generate(context.Background(), Request{System: "sys", Prompt: "usr"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected empty response error, got %v", err)
	}
}

func TestGenerate_SessionMemoryReplayed(t *testing.T) {
	mock := &mockChatService{resp: completion("reply")}
	client := newTestClient(mock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(ctx, Request{SessionID: "u1-symptom-0", System: "sys", Prompt: "hi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// system + 2 remembered exchanges (limit 4 messages) + prompt
	if got := len(mock.calls[2].Messages); got != 6 {
		t.Errorf("expected 6 messages on third call, got %d", got)
	}

	if _, err := client.Generate(ctx, Request{SessionID: "u1-symptom-0", System: "sys", Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(mock.calls[3].Messages); got != 6 {
		t.Errorf("expected memory to stay bounded at 6 messages, got %d", got)
	}
}

func TestGenerate_StatelessCallsNotRemembered(t *testing.T) {
	mock := &mockChatService{resp: completion("reply")}
	client := newTestClient(mock)
	ctx := context.Background()

	client.Generate(ctx, Request{System: "sys", Prompt: "one"})
	client.Generate(ctx, Request{System: "sys", Prompt: "two"})
	if got := len(mock.calls[1].Messages); got != 2 {
		t.Errorf("expected stateless call to send 2 messages, got %d", got)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.model != "gpt-4o" {
		t.Errorf("expected client with overridden model, got %+v", cli)
	}
}

// mockModels implements contentModels for testing.
type mockModels struct {
	text     string
	err      error
	contents [][]*gemini.Content
	configs  []*gemini.GenerateContentConfig
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
	m.contents = append(m.contents, contents)
	m.configs = append(m.configs, config)
	if m.err != nil {
		return nil, m.err
	}
	return &gemini.GenerateContentResponse{
		Candidates: []*gemini.Candidate{{Content: gemini.NewContentFromText(m.text, gemini.RoleModel)}},
	}, nil
}

func TestGeminiGenerate(t *testing.T) {
	models := &mockModels{text: "SYMPTOM"}
	g := &GeminiClient{models: models, model: "gemini-test", temperature: 0.2, memory: newSessionMemory(10)}

	out, err := g.Generate(context.Background(), Request{SessionID: "s1", System: "router", Prompt: "I have a fever"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "SYMPTOM" {
		t.Errorf("expected SYMPTOM, got %q", out)
	}
	if models.configs[0].SystemInstruction == nil || models.configs[0].SystemInstruction.Parts[0].Text != "router" {
		t.Error("expected system instruction to be forwarded")
	}

	g.Generate(context.Background(), Request{SessionID: "s1", System: "router", Prompt: "again"})
	if got := len(models.contents[1]); got != 3 {
		t.Errorf("expected replayed exchange plus prompt (3 contents), got %d", got)
	}
	if models.contents[1][1].Role != gemini.RoleModel {
		t.Errorf("expected remembered reply to carry the model role, got %q", models.contents[1][1].Role)
	}
}

func TestGeminiGenerate_Errors(t *testing.T) {
	g := &GeminiClient{models: &mockModels{err: errors.New("quota")}, model: "m", memory: newSessionMemory(10)}
	if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("expected wrapped quota error, got %v", err)
	}

	g = &GeminiClient{models: &mockModels{text: ""}, model: "m", memory: newSessionMemory(10)}
	if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewGeminiClient_NoKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestSessionsID(t *testing.T) {
	s := NewSessions()
	first := s.ID("alice", "symptom")
	if first != "alice-symptom-0" {
		t.Errorf("unexpected first id %q", first)
	}
	if again := s.ID("alice", "symptom"); again != first {
		t.Errorf("expected id reuse, got %q", again)
	}
	if other := s.ID("bob", "symptom"); other != "bob-symptom-1" {
		t.Errorf("expected counter to advance across users, got %q", other)
	}
	if other := s.ID("alice", "pharmacy"); other != "alice-pharmacy-2" {
		t.Errorf("unexpected id %q", other)
	}
}

func TestSessionsConcurrent(t *testing.T) {
	s := NewSessions()
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = s.ID("u", "scheduling")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected a single session id, got %q and %q", ids[0], id)
		}
	}
}
