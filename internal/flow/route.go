package flow

import (
	"log/slog"

	"github.com/BTreeMap/CareRouter/internal/catalog"
	"github.com/BTreeMap/CareRouter/internal/models"
)

// NextStepsMenu is returned instead of a handler reply once a symptom assessment closes.
const NextStepsMenu = `I understand. Based on the symptom assessment, here's what you can do next:

1. Schedule an appointment - Would you like me to help you book an appointment with the recommended department?
2. Check insurance coverage - I can help you understand what your insurance covers for this visit
3. Get a care plan - After your doctor visit, I can help you with recovery plans
4. What would you like help with?`

// NextStepsOptions are the one-tap replies offered with NextStepsMenu.
var NextStepsOptions = []string{
	"Schedule an appointment",
	"Check insurance coverage",
	"Get a care plan",
}

// Decision is the routing verdict of one turn.
type Decision struct {
	Handler  models.Handler
	Previous models.Handler
	Switched bool
	// NextSteps means no handler runs this turn; the caller replies with NextStepsMenu.
	NextSteps bool
	// Blocked is set when a switch into symptom was refused by the completion guard.
	Blocked bool
	Payload string
}

// Router decides which handler owns a turn and what context it receives.
type Router struct {
	cat *catalog.Catalog
}

// NewRouter creates a Router over cat. A nil cat uses the embedded catalog.
func NewRouter(cat *catalog.Catalog) *Router {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Router{cat: cat}
}

// Route applies intent to st, the turn's working copy, and returns the decision.
func (r *Router) Route(intent models.Intent, input string, st *models.ConversationState) Decision {
	prev := st.ActiveHandler
	if !prev.IsValid() {
		prev = models.HandlerOrchestrator
	}
	d := Decision{Handler: prev, Previous: prev}

	target, ok := intent.Handler()
	switch {
	case !ok || target == prev:
		if prev == models.HandlerSymptom && st.SymptomAssessmentComplete {
			st.ActiveHandler = models.HandlerOrchestrator
			st.SymptomAssessmentComplete = false
			st.InSymptomAssessment = false
			d.Handler = models.HandlerOrchestrator
			d.Switched = true
			d.NextSteps = true
			slog.Debug("Router.Route: symptom assessment closed, offering next steps", "user_id", st.UserID)
			return d
		}
	case target == models.HandlerSymptom && st.SymptomAssessmentComplete:
		// The guard holds for one turn only.
		d.Blocked = true
		st.SymptomAssessmentComplete = false
		slog.Debug("Router.Route: symptom re-entry blocked", "user_id", st.UserID, "active", prev)
	default:
		// Leaving a closed assessment for another handler releases the symptom guard.
		st.SymptomAssessmentComplete = false
		r.enter(target, input, st)
		d.Handler = target
		d.Switched = true
	}

	st.ActiveHandler = d.Handler
	d.Payload = r.Payload(d, input, st)
	slog.Debug("Router.Route: decision", "user_id", st.UserID, "intent", intent, "previous", prev, "handler", d.Handler, "switched", d.Switched)
	return d
}

// enter applies the entry side effects of switching into h.
func (r *Router) enter(h models.Handler, input string, st *models.ConversationState) {
	m := &st.SharedMemory
	switch h {
	case models.HandlerSymptom:
		st.InSymptomAssessment = true
	case models.HandlerScheduling:
		if WantsTestBooking(input, m) {
			enterTestMode(m)
		} else {
			enterHospitalMode(m)
		}
	case models.HandlerLabTest:
		if m.LabTestInfo == nil {
			m.LabTestInfo = models.NewLabTestInfo()
		}
	}
}
