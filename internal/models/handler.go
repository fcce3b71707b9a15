package models

import "strings"

// Handler identifies the conversational responder that owns a user's conversation.
type Handler string

const (
	HandlerOrchestrator Handler = "orchestrator"
	HandlerSymptom      Handler = "symptom"
	HandlerScheduling   Handler = "scheduling"
	HandlerPharmacy     Handler = "pharmacy"
	HandlerInsurance    Handler = "insurance"
	HandlerCarePlan     Handler = "care_plan"
	HandlerLabTest      Handler = "lab_test"
)

// AllHandlers lists every handler in a stable order.
func AllHandlers() []Handler {
	return []Handler{
		HandlerOrchestrator,
		HandlerSymptom,
		HandlerScheduling,
		HandlerPharmacy,
		HandlerInsurance,
		HandlerCarePlan,
		HandlerLabTest,
	}
}

// IsValid reports whether h is one of the known handlers.
func (h Handler) IsValid() bool {
	switch h {
	case HandlerOrchestrator, HandlerSymptom, HandlerScheduling, HandlerPharmacy,
		HandlerInsurance, HandlerCarePlan, HandlerLabTest:
		return true
	default:
		return false
	}
}

// Label returns the human-readable agent_type shown in the envelope.
func (h Handler) Label() string {
	switch h {
	case HandlerSymptom:
		return "Symptom Assessment"
	case HandlerScheduling:
		return "Appointment Scheduling"
	case HandlerPharmacy:
		return "Pharmacy Services"
	case HandlerInsurance:
		return "Insurance Analysis"
	case HandlerCarePlan:
		return "Care Planning"
	case HandlerLabTest:
		return "Lab Test Booking"
	default:
		return "Wellness Assistant"
	}
}

// Icon returns the short symbol shown next to the agent label.
func (h Handler) Icon() string {
	switch h {
	case HandlerSymptom:
		return "🩺"
	case HandlerScheduling:
		return "📅"
	case HandlerPharmacy:
		return "💊"
	case HandlerInsurance:
		return "📄"
	case HandlerCarePlan:
		return "❤️"
	case HandlerLabTest:
		return "🔬"
	default:
		return "🤖"
	}
}

// Intent is the classifier's verdict for a single user message.
type Intent string

const (
	IntentSymptom    Intent = "symptom"
	IntentScheduling Intent = "scheduling"
	IntentPharmacy   Intent = "pharmacy"
	IntentInsurance  Intent = "insurance"
	IntentCarePlan   Intent = "care_plan"
	IntentLabTest    Intent = "lab_test"
	IntentGeneral    Intent = "general"
)

// intentLabels maps backend router labels to intents.
var intentLabels = map[string]Intent{
	"SYMPTOM":    IntentSymptom,
	"SCHEDULING": IntentScheduling,
	"PHARMACY":   IntentPharmacy,
	"INSURANCE":  IntentInsurance,
	"CARE_PLAN":  IntentCarePlan,
	"LAB_TEST":   IntentLabTest,
	"GENERAL":    IntentGeneral,
}

// ParseIntentLabel maps a router label to an intent. Surrounding whitespace, quotes and a
// trailing period are tolerated; anything unmapped resolves to IntentGeneral.
func ParseIntentLabel(label string) Intent {
	cleaned := strings.ToUpper(strings.TrimSpace(label))
	cleaned = strings.Trim(cleaned, "\"'`.")
	if intent, ok := intentLabels[cleaned]; ok {
		return intent
	}
	return IntentGeneral
}

// Handler returns the handler that serves the intent. General has no dedicated handler.
func (i Intent) Handler() (Handler, bool) {
	switch i {
	case IntentSymptom:
		return HandlerSymptom, true
	case IntentScheduling:
		return HandlerScheduling, true
	case IntentPharmacy:
		return HandlerPharmacy, true
	case IntentInsurance:
		return HandlerInsurance, true
	case IntentCarePlan:
		return HandlerCarePlan, true
	case IntentLabTest:
		return HandlerLabTest, true
	default:
		return "", false
	}
}
