package genai

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gemini "google.golang.org/genai"
)

// contentModels is the subset of the Gemini models service used here.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error)
}

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	models      contentModels
	model       string
	temperature float32
	memory      *sessionMemory
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini API client. WithAPIKey is required.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	o := buildOpts(DefaultGeminiModel, opts)
	if o.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:  o.APIKey,
		Backend: gemini.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	slog.Debug("genai.NewGeminiClient: Gemini client created", "model", o.Model)
	return &GeminiClient{
		models:      client.Models,
		model:       o.Model,
		temperature: float32(o.Temperature),
		memory:      newSessionMemory(o.HistoryLimit),
	}, nil
}

// Generate replays the session as alternating user/model contents and appends the prompt.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "genai.gemini.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("genai.model", g.model), attribute.Bool("genai.stateless", req.SessionID == ""))

	var contents []*gemini.Content
	for _, ex := range g.memory.history(req.SessionID) {
		contents = append(contents,
			gemini.NewContentFromText(ex.prompt, gemini.RoleUser),
			gemini.NewContentFromText(ex.reply, gemini.RoleModel))
	}
	contents = append(contents, gemini.NewContentFromText(req.Prompt, gemini.RoleUser))

	temp := g.temperature
	cfg := &gemini.GenerateContentConfig{
		SystemInstruction: gemini.NewContentFromText(req.System, gemini.RoleUser),
		Temperature:       &temp,
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		slog.Error("GeminiClient.Generate: generate content failed", "model", g.model, "session", req.SessionID, "error", err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	g.memory.remember(req.SessionID, req.Prompt, text)
	return text, nil
}
