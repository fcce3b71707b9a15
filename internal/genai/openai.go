package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	memory      *sessionMemory
}

var _ Generator = (*Client)(nil)

// NewClient initializes an OpenAI-backed generator. WithAPIKey is required.
func NewClient(opts ...Option) (*Client, error) {
	o := buildOpts(DefaultOpenAIModel, opts)
	if o.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	cli := openai.NewClient(option.WithAPIKey(o.APIKey))
	slog.Debug("genai.NewClient: OpenAI client created", "model", o.Model)
	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       o.Model,
		temperature: o.Temperature,
		memory:      newSessionMemory(o.HistoryLimit),
	}, nil
}

// Generate sends the system instruction, the remembered session exchanges and the prompt.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "genai.openai.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("genai.model", c.model), attribute.Bool("genai.stateless", req.SessionID == ""))

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.System)}
	for _, ex := range c.memory.history(req.SessionID) {
		messages = append(messages, openai.UserMessage(ex.prompt), openai.AssistantMessage(ex.reply))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		slog.Error("Client.Generate: completion failed", "model", c.model, "session", req.SessionID, "error", err)
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", ErrNoChoicesReturned
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", ErrEmptyResponse
	}
	c.memory.remember(req.SessionID, req.Prompt, text)
	return text, nil
}
