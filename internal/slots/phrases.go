package slots

import (
	"slices"
	"strings"
)

var testPhrases = []string{
	"blood test", "lab test", "cbc test", "diagnostic test",
	"pathology test", "medical test", "get tested",
	"book a test", "schedule a test", "test booking",
	"complete blood count", "cbc", "blood work", "lab work",
	"thyroid test", "diabetes test", "sugar test",
	"cholesterol test", "liver test", "kidney test",
	"vitamin test", "hormone test",
	"health checkup", "full body checkup", "medical checkup",
	"test package", "health package", "diagnostic package",
	"comprehensive test", "preventive screening",
	"go to lab", "visit lab", "lab visit", "home collection",
	"sample collection", "get my tests done",
}

var doctorPhrases = []string{
	"see doctor", "doctor appointment", "consult doctor",
	"meet doctor", "visit doctor", "doctor visit",
	"see a doctor", "consultation", "doctor consult",
}

var resetCommands = []string{"start over", "new booking", "book another", "cancel booking", "reset booking"}

// WantsTest reports whether text asks for a diagnostic test and not a doctor.
func WantsTest(text string) bool {
	lower := strings.ToLower(text)
	return anyOf(lower, testPhrases) && !anyOf(lower, doctorPhrases)
}

// WantsDoctor reports whether text asks for a doctor appointment.
func WantsDoctor(text string) bool {
	return anyOf(strings.ToLower(text), doctorPhrases)
}

// IsResetCommand reports whether text asks to start a new booking cycle.
func IsResetCommand(text string) bool {
	return anyOf(strings.ToLower(text), resetCommands)
}

var conditionWords = []string{"fever", "cold", "cough", "pain", "headache", "broken", "fracture"}

// Condition returns the primary complaint named in text, if recognised, and the symptom
// tags it carries.
func Condition(text string) (condition string, tags []string) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "broken") && strings.Contains(lower, "leg") {
		condition = "Broken leg"
		tags = append(tags, "broken leg")
	}
	for _, w := range conditionWords {
		if strings.Contains(lower, w) && !slices.Contains(tags, w) {
			tags = append(tags, w)
		}
	}
	return condition, tags
}

var orderMedicines = []entry{
	{"paracetamol", "Paracetamol"},
	{"ibuprofen", "Ibuprofen"},
	{"levocetirizine", "Levocetirizine"},
	{"cetirizine", "Cetirizine"},
	{"montelukast", "Montelukast"},
	{"azithromycin", "Azithromycin"},
	{"amoxicillin", "Amoxicillin"},
	{"omeprazole", "Omeprazole"},
}

var orderVerbs = []string{"order", "want", "buy"}

// MedicineOrder returns the medicine text orders, or "" if it does not order one.
func MedicineOrder(text string) string {
	lower := strings.ToLower(text)
	if !anyOf(lower, orderVerbs) {
		return ""
	}
	return first(lower, orderMedicines)
}

var quantityPhrases = []string{"how many", "quantity", "strips", "number of"}

// AsksQuantity reports whether a pharmacy reply asks how much to order.
func AsksQuantity(reply string) bool {
	return anyOf(strings.ToLower(reply), quantityPhrases)
}
