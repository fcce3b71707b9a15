package flow

import (
	"time"

	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/suggest"
)

// ApologyText is the reply of a turn that could not be processed.
const ApologyText = "I apologize, I'm having trouble right now. Could you try again?"

// Assemble packages a turn's outcome into the response envelope.
func Assemble(reply string, h models.Handler, cards []models.Card, suggestions []string, now time.Time) models.Envelope {
	env := models.NewEnvelope(reply, h, now)
	if len(suggestions) > models.MaxSuggestedReplies {
		suggestions = suggestions[:models.MaxSuggestedReplies]
	}
	if len(suggestions) > 0 {
		env.SuggestedReplies = suggestions
	}
	if len(cards) > 0 {
		env.Cards = cards
	}
	return env
}

// Apology returns the fixed envelope for a failed turn.
func Apology(now time.Time) models.Envelope {
	return Assemble(ApologyText, models.HandlerOrchestrator, nil, suggest.Apology(), now)
}
