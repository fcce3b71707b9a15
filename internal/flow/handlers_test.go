package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/suggest"
)

func TestAgentForFallbacks(t *testing.T) {
	orchestrator := CannedAgent{"orchestrator"}
	scheduling := CannedAgent{"scheduling"}
	hs := Handlers{Orchestrator: orchestrator, Scheduling: scheduling}

	a, served := hs.agentFor(models.HandlerLabTest)
	assert.Equal(t, models.HandlerScheduling, served)
	assert.Equal(t, scheduling, a)

	a, served = hs.agentFor(models.HandlerInsurance)
	assert.Equal(t, models.HandlerOrchestrator, served)
	assert.Equal(t, orchestrator, a)

	_, served = Handlers{Orchestrator: orchestrator}.agentFor(models.HandlerLabTest)
	assert.Equal(t, models.HandlerOrchestrator, served, "lab_test falls through scheduling to orchestrator")

	for _, h := range models.AllHandlers() {
		a, served := NewCannedHandlers().agentFor(h)
		assert.NotNil(t, a, h)
		assert.Equal(t, h, served, h)
	}
}

func TestInstructionEmbeddedAndOverride(t *testing.T) {
	for _, h := range models.AllHandlers() {
		text, err := Instruction("", h)
		require.NoError(t, err, h)
		assert.NotEmpty(t, text, h)
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pharmacy.txt"), []byte("  custom pharmacy prompt\n"), 0o644))

	text, err := Instruction(dir, models.HandlerPharmacy)
	require.NoError(t, err)
	assert.Equal(t, "custom pharmacy prompt", text)

	embedded, _ := Instruction("", models.HandlerSymptom)
	text, err = Instruction(dir, models.HandlerSymptom)
	require.NoError(t, err)
	assert.Equal(t, embedded, text, "missing override falls back to the built-in text")

	_, err = Instruction("", models.Handler("billing"))
	assert.Error(t, err)
}

func TestNewGenAIHandlers(t *testing.T) {
	gen := &stubGenerator{reply: "hello from backend"}

	hs, err := NewGenAIHandlers(gen, "", false)
	require.NoError(t, err)
	require.NoError(t, hs.Validate())
	assert.Nil(t, hs.LabTest)
	assert.NotNil(t, hs.CarePlan)

	hs, err = NewGenAIHandlers(gen, "", true)
	require.NoError(t, err)
	require.NotNil(t, hs.LabTest)

	reply, err := hs.Symptom.Respond(context.Background(), "u1-symptom-0", "payload")
	require.NoError(t, err)
	assert.Equal(t, "hello from backend", reply)
}

func TestGenAIAgentWrapsErrors(t *testing.T) {
	cause := errors.New("quota exceeded")
	a := NewGenAIAgent(&stubGenerator{err: cause}, "system")
	_, err := a.Respond(context.Background(), "", "payload")
	assert.ErrorIs(t, err, cause)
}

func TestAssemble(t *testing.T) {
	env := Assemble("hi", models.HandlerPharmacy, nil, []string{"a1234", "b1234", "c1234", "d1234", "e1234"}, fixedNow)
	assert.Equal(t, "Pharmacy Services", env.AgentType)
	assert.Equal(t, "💊", env.Icon)
	assert.Equal(t, fixedNow.Format(time.RFC3339), env.Timestamp)
	assert.Len(t, env.SuggestedReplies, models.MaxSuggestedReplies)
	assert.Nil(t, env.Cards)

	env = Assemble("hi", models.HandlerOrchestrator, nil, nil, fixedNow)
	assert.Nil(t, env.SuggestedReplies)

	apology := Apology(fixedNow)
	assert.Equal(t, ApologyText, apology.Response)
	assert.Equal(t, suggest.Apology(), apology.SuggestedReplies)
}
