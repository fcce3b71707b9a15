// Package slots is the single place that recognises booking slots, conditions and
// booking phrases in free text. Every table is ordered and first-match-wins.
package slots

import (
	"strings"

	"github.com/BTreeMap/CareRouter/internal/intent"
)

// SlotSet selects which tables Extract consults.
type SlotSet uint

const (
	Location SlotSet = 1 << iota
	Lab
	Hospital
	VisitType
	TestType
	Package
	Time
)

const (
	HospitalSlots = Location | Hospital | Time
	TestSlots     = Location | Lab | VisitType | TestType | Time
	LabTestSlots  = Location | Lab | VisitType | TestType | Package | Time
)

const (
	VisitHome = "Home Visit"
	VisitLab  = "Lab Visit"
)

// Extraction holds the canonical value of each matched slot. Unmatched slots are empty.
type Extraction struct {
	Location  string
	Lab       string
	Hospital  string
	VisitType string
	TestType  string
	Package   string
	Time      string
}

type entry struct {
	key   string
	value string
}

var cities = []entry{
	{"delhi", "Delhi"},
	{"mumbai", "Mumbai"},
	{"bangalore", "Bangalore"},
	{"chennai", "Chennai"},
	{"kolkata", "Kolkata"},
	{"hyderabad", "Hyderabad"},
	{"pune", "Pune"},
	{"ahmedabad", "Ahmedabad"},
}

var labs = []entry{
	{"lal", "Dr. Lal PathLabs"},
	{"thyrocare", "Thyrocare Technologies"},
	{"srl", "SRL Diagnostics"},
	{"suburban", "Suburban Diagnostics"},
	{"metropolis", "Metropolis Healthcare"},
	{"aster", "Aster Labs"},
	{"apollo", "Apollo Diagnostics"},
}

var hospitals = []entry{
	{"apollo", "Apollo Hospital"},
	{"max", "Max Super Specialty Hospital"},
	{"fortis", "Fortis Escorts Heart Institute"},
}

// hospitalMentions also covers hospitals outside the directory.
var hospitalMentions = []string{"apollo", "max", "fortis", "aiims", "manipal", "medanta"}

var homePhrases = []string{"home visit", "at home", "home"}

var labVisitPhrases = []string{"lab visit", "visit lab", "visit the lab", "at the lab", "center", "clinic"}

var testTypes = []entry{
	{"blood", "Blood Test"},
	{"thyroid", "Thyroid Test"},
	{"diabetes", "Diabetes Test"},
	{"sugar", "Blood Sugar Test"},
	{"cholesterol", "Cholesterol Test"},
	{"liver", "Liver Function Test"},
	{"kidney", "Kidney Function Test"},
	{"full body", "Full Body Checkup"},
	{"vitamin", "Vitamin Test"},
	{"cbc", "Complete Blood Count"},
}

var packages = []entry{
	{"basic", "Basic Health Checkup"},
	{"full body", "Full Body Checkup"},
	{"executive", "Executive Health Checkup"},
	{"women", "Women's Wellness Package"},
	{"senior", "Senior Citizen Package"},
}

var times = []entry{
	{"morning", "Morning"},
	{"afternoon", "Afternoon"},
	{"evening", "Evening"},
	{"tomorrow", "Tomorrow"},
	{"today", "Today"},
}

// Extract matches text against the requested tables.
func Extract(text string, set SlotSet) Extraction {
	lower := strings.ToLower(text)
	var ex Extraction
	if set&Location != 0 {
		ex.Location = first(lower, cities)
	}
	if set&Lab != 0 {
		ex.Lab = first(lower, labs)
	}
	if set&Hospital != 0 {
		ex.Hospital = first(lower, hospitals)
	}
	if set&VisitType != 0 {
		ex.VisitType = visitType(lower)
	}
	if set&TestType != 0 {
		ex.TestType = first(lower, testTypes)
	}
	if set&Package != 0 {
		ex.Package = first(lower, packages)
	}
	if set&Time != 0 {
		ex.Time = first(lower, times)
	}
	return ex
}

// NamesLab reports whether text mentions any known lab.
func NamesLab(text string) bool {
	return first(strings.ToLower(text), labs) != ""
}

// NamesHospital reports whether text mentions a hospital, listed or not.
func NamesHospital(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range hospitalMentions {
		if has(lower, h) {
			return true
		}
	}
	return false
}

func visitType(lower string) string {
	if anyOf(lower, homePhrases) {
		return VisitHome
	}
	if strings.TrimSpace(lower) == "lab" || anyOf(lower, labVisitPhrases) {
		return VisitLab
	}
	return ""
}

func first(lower string, table []entry) string {
	for _, e := range table {
		if has(lower, e.key) {
			return e.value
		}
	}
	return ""
}

func anyOf(lower string, phrases []string) bool {
	for _, p := range phrases {
		if has(lower, p) {
			return true
		}
	}
	return false
}

// has applies the shared keyword rule: terms of three characters or fewer must be
// whole words.
func has(lower, term string) bool {
	if len(term) <= 3 {
		return intent.ContainsWord(lower, term)
	}
	return strings.Contains(lower, term)
}
