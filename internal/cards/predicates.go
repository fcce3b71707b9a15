package cards

import (
	"strings"

	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/slots"
)

var (
	hospitalConfirmationPhrases = []string{
		"appointment confirmed", "appointment id", "scheduled", "booked", "confirmed",
		"apt-", "appt-", "booking id", "reservation confirmed", "successfully scheduled",
		"i've scheduled", "your appointment is", "see you on", "arrive at",
	}
	testConfirmationPhrases = []string{"confirmed", "booked", "scheduled", "booking id"}
	labConfirmationPhrases  = []string{"confirmed", "booked", "booking id", "lab-"}
	visitQuestionPhrases    = []string{
		"home visit", "visit the lab", "technician collects", "prefer a home",
		"would you prefer", "home or lab",
	}
	packageVocabulary      = []string{"package", "checkup", "full body", "screening", "health check"}
	availabilityPhrases    = []string{"we have", "available", "in stock", "i can check", "here are the", "these medicines", "following medicines"}
	selectionPromptPhrases = []string{"which one", "would you like to order", "which medicine", "select", "choose"}
)

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ShouldConfirmAppointment reports whether a hospital booking confirmation card is due.
func ShouldConfirmAppointment(reply string, si models.SchedulingInfo) bool {
	return containsAny(reply, hospitalConfirmationPhrases) &&
		si.HospitalPreference != "" && si.Location != "" &&
		!si.ConfirmationShown
}

// HospitalFlowStopped reports whether the hospital sub-flow no longer takes selection cards.
func HospitalFlowStopped(si models.SchedulingInfo) bool {
	return si.AppointmentConfirmed || si.HospitalPreference != ""
}

// ShouldShowHospitalCards reports whether the user should pick a hospital now.
func ShouldShowHospitalCards(input string, m *models.SharedMemory) bool {
	si := m.SchedulingInfo
	return si.Location != "" &&
		si.HospitalPreference == "" &&
		!slots.NamesHospital(input) &&
		!m.InTestBooking()
}

// ShouldConfirmTest reports whether a test booking confirmation card is due.
func ShouldConfirmTest(reply string, tb *models.TestBookingInfo) bool {
	return tb != nil && tb.IsTestBooking &&
		containsAny(reply, testConfirmationPhrases) &&
		tb.Location != "" && tb.LabPreference != "" && tb.VisitType != "" &&
		!tb.ConfirmationShown
}

// ShouldShowTestLabCards reports whether the test sub-flow needs a lab choice.
func ShouldShowTestLabCards(input string, tb *models.TestBookingInfo) bool {
	return tb != nil && tb.IsTestBooking &&
		tb.Location != "" && tb.LabPreference == "" &&
		!slots.NamesLab(input)
}

// ShouldShowTestVisitCards reports whether the reply asks for home or lab collection.
func ShouldShowTestVisitCards(reply string, tb *models.TestBookingInfo) bool {
	return tb != nil && tb.IsTestBooking &&
		tb.LabPreference != "" && tb.VisitType == "" &&
		containsAny(reply, visitQuestionPhrases)
}

// ShouldShowMedicineCards reports whether a pharmacy reply lists or offers medicines
// before anything was selected.
func ShouldShowMedicineCards(reply string, p models.PharmacyInfo) bool {
	offers := containsAny(reply, availabilityPhrases) || containsAny(reply, selectionPromptPhrases)
	return offers && p.MedicineSelected == ""
}

// ShouldShowLabTestLabCards reports whether the lab_test flow needs a lab choice.
func ShouldShowLabTestLabCards(input string, li *models.LabTestInfo) bool {
	return li != nil && li.IsLabBooking &&
		li.Location != "" && li.PreferredLab == "" &&
		!slots.NamesLab(input)
}

// ShouldShowPackageCards reports whether the user is asking about checkup packages.
func ShouldShowPackageCards(input string, li *models.LabTestInfo) bool {
	return li != nil && li.IsLabBooking &&
		li.PreferredLab != "" && li.PackageSelected == "" &&
		containsAny(input, packageVocabulary)
}

// ShouldShowLabTestVisitCards reports whether the lab_test reply asks for a visit type.
func ShouldShowLabTestVisitCards(reply string, li *models.LabTestInfo) bool {
	return li != nil && li.IsLabBooking &&
		li.PreferredLab != "" && li.VisitType == "" &&
		containsAny(reply, visitQuestionPhrases)
}

// ShouldConfirmLabTest reports whether a lab booking confirmation card is due.
func ShouldConfirmLabTest(reply string, li *models.LabTestInfo) bool {
	return li != nil && li.IsLabBooking &&
		containsAny(reply, labConfirmationPhrases) &&
		li.Location != "" && li.PreferredLab != "" && li.VisitType != "" &&
		!li.ConfirmationShown
}
