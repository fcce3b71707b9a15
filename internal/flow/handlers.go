package flow

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/models"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// ErrNoOrchestrator is returned when a handler set lacks the orchestrator.
var ErrNoOrchestrator = errors.New("orchestrator handler not configured")

// Agent produces the reply of one conversational handler.
type Agent interface {
	Respond(ctx context.Context, sessionID, payload string) (string, error)
}

// GenAIAgent answers through a generation backend under a fixed system instruction.
type GenAIAgent struct {
	gen    genai.Generator
	system string
}

// NewGenAIAgent creates an agent over gen.
func NewGenAIAgent(gen genai.Generator, system string) *GenAIAgent {
	return &GenAIAgent{gen: gen, system: system}
}

// Respond sends payload to the backend within the agent's session.
func (a *GenAIAgent) Respond(ctx context.Context, sessionID, payload string) (string, error) {
	reply, err := a.gen.Generate(ctx, genai.Request{
		SessionID: sessionID,
		System:    a.system,
		Prompt:    payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	return reply, nil
}

// Handlers is the closed set of conversational handlers. Only Orchestrator is required;
// a nil LabTest is served by Scheduling and any other nil handler by Orchestrator.
type Handlers struct {
	Orchestrator Agent
	Symptom      Agent
	Scheduling   Agent
	Pharmacy     Agent
	Insurance    Agent
	CarePlan     Agent
	LabTest      Agent
}

// Validate checks that the required handlers are present.
func (hs Handlers) Validate() error {
	if hs.Orchestrator == nil {
		return ErrNoOrchestrator
	}
	return nil
}

// agentFor returns the agent serving h and the handler that actually serves it.
func (hs Handlers) agentFor(h models.Handler) (Agent, models.Handler) {
	var a Agent
	switch h {
	case models.HandlerSymptom:
		a = hs.Symptom
	case models.HandlerScheduling:
		a = hs.Scheduling
	case models.HandlerPharmacy:
		a = hs.Pharmacy
	case models.HandlerInsurance:
		a = hs.Insurance
	case models.HandlerCarePlan:
		a = hs.CarePlan
	case models.HandlerLabTest:
		if hs.LabTest == nil {
			return hs.agentFor(models.HandlerScheduling)
		}
		a = hs.LabTest
	case models.HandlerOrchestrator:
		return hs.Orchestrator, models.HandlerOrchestrator
	}
	if a == nil {
		return hs.Orchestrator, models.HandlerOrchestrator
	}
	return a, h
}

// Instruction returns the system instruction of h. A file named <handler>.txt in dir
// overrides the built-in text; an empty dir uses the built-in text.
func Instruction(dir string, h models.Handler) (string, error) {
	name := string(h) + ".txt"
	if dir != "" {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			slog.Debug("flow.Instruction: loaded override", "handler", h, "file", path)
			return strings.TrimSpace(string(content)), nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("failed to read instruction file %s: %w", path, err)
		}
	}
	content, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("no instruction for handler %s: %w", h, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// NewGenAIHandlers builds every handler over gen. When withLabTest is false the lab_test
// handler is left unset and its turns are served by scheduling.
func NewGenAIHandlers(gen genai.Generator, promptsDir string, withLabTest bool) (Handlers, error) {
	agent := func(h models.Handler) (Agent, error) {
		system, err := Instruction(promptsDir, h)
		if err != nil {
			return nil, err
		}
		return NewGenAIAgent(gen, system), nil
	}

	type target struct {
		h   models.Handler
		dst *Agent
	}
	var hs Handlers
	targets := []target{
		{models.HandlerOrchestrator, &hs.Orchestrator},
		{models.HandlerSymptom, &hs.Symptom},
		{models.HandlerScheduling, &hs.Scheduling},
		{models.HandlerPharmacy, &hs.Pharmacy},
		{models.HandlerInsurance, &hs.Insurance},
		{models.HandlerCarePlan, &hs.CarePlan},
	}
	if withLabTest {
		targets = append(targets, target{models.HandlerLabTest, &hs.LabTest})
	}
	for _, t := range targets {
		a, err := agent(t.h)
		if err != nil {
			return Handlers{}, err
		}
		*t.dst = a
	}
	slog.Info("flow.NewGenAIHandlers: handlers ready", "lab_test", withLabTest, "prompts_dir", promptsDir)
	return hs, nil
}

// CannedAgent replies with a fixed text. It serves the handlers when no generation
// backend is configured.
type CannedAgent struct {
	Reply string
}

// Respond returns the fixed reply.
func (a CannedAgent) Respond(context.Context, string, string) (string, error) {
	return a.Reply, nil
}

// NewCannedHandlers returns a full handler set answering with fixed texts.
func NewCannedHandlers() Handlers {
	return Handlers{
		Orchestrator: CannedAgent{"Hi! I'm WellnessGPT. I can help with symptoms, appointments, lab tests, medicines, insurance and care plans. What do you need today?"},
		Symptom:      CannedAgent{"I understand this must be uncomfortable for you. When did it start, and how severe is it on a scale of 1-10?"},
		Scheduling:   CannedAgent{"I can help you book that! Which city or area are you located in?"},
		Pharmacy:     CannedAgent{"Hi! I'm your pharmacy assistant. Please tell me the medicines you need and I'll check availability right away."},
		Insurance:    CannedAgent{"I'd be happy to help with your insurance questions! What would you like to know about your coverage?"},
		CarePlan:     CannedAgent{"I'm excited to help you with your recovery! What are your main goals right now?"},
		LabTest:      CannedAgent{"I can help you book your diagnostic test! Which city are you located in?"},
	}
}
