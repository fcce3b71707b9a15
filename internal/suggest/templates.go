package suggest

import (
	"slices"
	"strings"

	"github.com/BTreeMap/CareRouter/internal/models"
)

var templates = map[models.Handler][]string{
	models.HandlerOrchestrator: {
		"I'm feeling sick - can you help?",
		"I need to schedule a doctor's appointment",
		"Can you check my insurance coverage?",
		"I need information about medicines",
	},
	models.HandlerSymptom: {
		"What could be causing this?",
		"Should I be worried about these symptoms?",
		"What home remedies can I try?",
		"When should I see a doctor?",
	},
	models.HandlerScheduling: {
		"What are the available time slots?",
		"Which hospital should I choose?",
		"What should I bring to my appointment?",
		"How do I prepare for the visit?",
	},
	models.HandlerPharmacy: {
		"Do you have alternative medicines?",
		"What's the recommended dosage?",
		"Are there any side effects?",
		"When will my order arrive?",
	},
	models.HandlerInsurance: {
		"What's covered under my policy?",
		"How do I make an insurance claim?",
		"What's not covered by my insurance?",
		"Can I add family members to my policy?",
	},
	models.HandlerCarePlan: {
		"How long will recovery take?",
		"What exercises should I do?",
		"What foods should I avoid?",
		"When should I follow up?",
	},
	models.HandlerLabTest: {
		"Which test package suits me?",
		"Can I get a home sample collection?",
		"How long do reports take?",
		"Do I need to fast before the test?",
	},
}

var (
	feverTemplates = []string{
		"How can I reduce fever quickly?",
		"When is fever considered dangerous?",
		"What medicine is best for fever?",
		"Should I go to emergency for this fever?",
	}
	painTemplates = []string{
		"What's the best pain relief?",
		"Is this pain something serious?",
		"When should I go to the ER?",
		"How can I manage the pain at home?",
	}
	hospitalChosenTemplates = []string{
		"What are the doctor's qualifications?",
		"How long will the appointment take?",
		"What tests might be needed?",
		"Can I get directions to the hospital?",
	}
	locationKnownTemplates = []string{
		"Which hospital do you recommend?",
		"What are the available dates?",
		"Do you have evening appointments?",
		"How do I cancel if needed?",
	}
	medicineChosenTemplates = []string{
		"What's the exact dosage?",
		"Any food interactions?",
		"How should I store this medicine?",
		"Can I get faster delivery?",
	}
	apologyTemplates = []string{"Try again", "Start over", "Help with symptoms", "Medicine inquiry"}
)

// Fallback returns the template suggestions for handler h, refined by the known slots.
func Fallback(st *models.ConversationState, h models.Handler) []string {
	var m models.SharedMemory
	if st != nil {
		m = st.SharedMemory
	}
	switch h {
	case models.HandlerSymptom:
		if hasTag(m.SymptomsDiscussed, "fever") {
			return slices.Clone(feverTemplates)
		}
		if hasTag(m.SymptomsDiscussed, "pain") {
			return slices.Clone(painTemplates)
		}
	case models.HandlerScheduling:
		if m.SchedulingInfo.HospitalPreference != "" {
			return slices.Clone(hospitalChosenTemplates)
		}
		if m.SchedulingInfo.Location != "" {
			return slices.Clone(locationKnownTemplates)
		}
	case models.HandlerPharmacy:
		if m.PharmacyInfo.MedicineSelected != "" {
			return slices.Clone(medicineChosenTemplates)
		}
	}
	if t, ok := templates[h]; ok {
		return slices.Clone(t)
	}
	return slices.Clone(templates[models.HandlerOrchestrator])
}

// Apology returns the fixed suggestions that accompany the apology reply.
func Apology() []string {
	return slices.Clone(apologyTemplates)
}

func hasTag(tags []string, word string) bool {
	for _, t := range tags {
		if strings.Contains(t, word) {
			return true
		}
	}
	return false
}
