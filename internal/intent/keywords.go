package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BTreeMap/CareRouter/internal/models"
)

var labTestTerms = []string{
	"test", "blood test", "lab", "diagnostic", "checkup",
	"health checkup", "full body checkup", "pathology",
	"blood work", "scan", "x-ray", "ultrasound", "mri",
	"ct scan", "ecg", "screening", "thyroid test",
	"diabetes test", "liver function", "kidney function",
	"package", "packages", "test package", "health package",
	"checkup package", "diagnostic package", "medical package",
	"comprehensive checkup", "preventive checkup", "executive checkup",
	"basic checkup", "wellness package", "screening package",
	"full body", "executive health", "basic health", "women wellness",
	"senior citizen", "thyroid package", "diabetes package",
}

// appointmentTerms keep a doctor visit out of the lab_test route.
var appointmentTerms = []string{"doctor", "appointment", "consult", "see a doctor", "physician"}

var medicineNames = []string{
	"paracetamol", "dolo", "crocin", "calpol", "ibuprofen", "aspirin",
	"amoxicillin", "azithromycin", "ciprofloxacin", "augmentin",
	"cetirizine", "levocetirizine", "allegra", "avil", "montair",
	"montelukast", "metformin", "glucophage", "glycomet",
	"atorvastatin", "lipitor", "rosuvastatin", "crestor",
	"omeprazole", "pantoprazole", "rabeprazole", "pan",
	"vitamin", "supplement", "calcium", "iron", "multivitamin",
	"combiflam", "disprin", "saridon", "sinarest",
}

var availabilityPhrases = []string{
	"is available", "available?", "in stock", "do you have",
	"can i get", "where can i buy", "need to buy",
}

var insuranceTerms = []string{
	"insurance", "policy", "coverage", "claim", "premium",
	"sum insured", "maternity", "cashless", "hospitalization",
}

var symptomTerms = []string{
	"symptom", "pain", "fever", "headache", "cough", "cold",
	"nausea", "vomit", "dizzy", "fatigue", "tired", "weak",
	"hurt", "ache", "unwell", "sick", "ill", "not feeling well",
	"broken", "fracture", "sprain", "injury",
}

var carePlanTerms = []string{
	"care plan", "treatment plan", "recovery", "rehab", "rehabilitation",
	"therapy", "medication", "exercise", "diet", "physical therapy",
	"surgery", "surgical", "post-op", "post operative", "recover from",
	"knee surgery", "hip surgery", "shoulder surgery", "operation",
}

var schedulingTerms = []string{
	"schedule", "appointment", "book", "meet doctor", "see doctor",
	"visit doctor", "consult doctor", "fix appointment", "set appointment",
	"make appointment", "arrange appointment", "book appointment",
}

var pharmacyTerms = []string{
	"pharmacy", "medicine", "medication", "prescription", "drug",
	"pill", "tablet", "capsule", "injection", "dose", "dosage",
	"pharmacist", "meds", "prescribed", "refill", "order medicine",
	"buy medicine", "get medicine", "availability", "in stock",
	"out of stock", "delivery", "pickup", "pharmaceutical",
}

// shortTermLen is the length at or below which a term must match a whole word.
const shortTermLen = 3

// Scores holds per-category keyword counts for one input.
type Scores struct {
	LabTest         bool
	AppointmentTerm bool
	MedicineBoost   bool
	Symptom         int
	Scheduling      int
	Pharmacy        int
	Insurance       int
	CarePlan        int
}

// Score counts keyword matches over the lowercased input.
func Score(input string) Scores {
	text := strings.ToLower(input)
	s := Scores{
		LabTest:         anyTerm(text, labTestTerms),
		AppointmentTerm: anyTerm(text, appointmentTerms),
		MedicineBoost:   anyTerm(text, medicineNames) || anyTerm(text, availabilityPhrases),
		Symptom:         countTerms(text, symptomTerms),
		Scheduling:      countTerms(text, schedulingTerms),
		Pharmacy:        countTerms(text, pharmacyTerms),
		Insurance:       countTerms(text, insuranceTerms),
		CarePlan:        countTerms(text, carePlanTerms),
	}
	if s.MedicineBoost {
		s.Pharmacy += 2
	}
	return s
}

// KeywordIntent is the deterministic fallback classifier. It is a pure function of input.
func KeywordIntent(input string) models.Intent {
	s := Score(input)
	switch {
	case s.LabTest && !s.AppointmentTerm:
		return models.IntentLabTest
	case s.Symptom >= 1 && s.Pharmacy < 2:
		return models.IntentSymptom
	case s.Pharmacy >= 1:
		return models.IntentPharmacy
	case s.Scheduling >= 1:
		return models.IntentScheduling
	case s.Insurance >= 1:
		return models.IntentInsurance
	case s.CarePlan >= 1:
		return models.IntentCarePlan
	default:
		return models.IntentGeneral
	}
}

func anyTerm(text string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}

func countTerms(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		if containsTerm(text, term) {
			n++
		}
	}
	return n
}

// containsTerm reports whether term occurs in text. Short terms only match on word
// boundaries so that "ill" does not match "bill".
func containsTerm(text, term string) bool {
	if len(term) > shortTermLen {
		return strings.Contains(text, term)
	}
	return ContainsWord(text, term)
}

// ContainsWord reports whether word occurs in text delimited by non-alphanumeric runes.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if !isWordRuneBefore(text, i) && !isWordRuneAt(text, end) {
			return true
		}
		start = i + 1
	}
}

func isWordRuneBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordRuneAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
