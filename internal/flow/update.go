package flow

import (
	"strings"

	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/slots"
)

// Update folds one completed exchange into st, the turn's working copy. h is the handler
// that produced reply.
func Update(input, reply string, st *models.ConversationState, h models.Handler) {
	st.AppendHistory(input, reply)

	m := &st.SharedMemory
	condition, tags := slots.Condition(input)
	if condition != "" {
		m.CurrentCondition = condition
	}
	for _, t := range tags {
		m.AddSymptom(t)
	}

	if h != models.HandlerLabTest && WantsTestBooking(input, m) {
		enterTestMode(m)
	}

	switch {
	case h == models.HandlerLabTest:
		if m.LabTestInfo == nil {
			m.LabTestInfo = models.NewLabTestInfo()
		}
		applyLabTestSlots(m.LabTestInfo, slots.Extract(input, slots.LabTestSlots))
	case m.InTestBooking():
		applyTestSlots(m.TestBookingInfo, slots.Extract(input, slots.TestSlots))
	default:
		applyHospitalSlots(&m.SchedulingInfo, slots.Extract(input, slots.HospitalSlots))
		lower := strings.ToLower(reply)
		if strings.Contains(lower, "appointment id") || strings.Contains(lower, "appointment confirmed") {
			m.SchedulingInfo.AppointmentConfirmed = true
		}
	}

	switch h {
	case models.HandlerPharmacy:
		if med := slots.MedicineOrder(input); med != "" {
			m.PharmacyInfo.MedicineSelected = med
		} else if m.PharmacyInfo.MedicineSelected == "" && slots.AsksQuantity(reply) {
			m.PharmacyInfo.MedicineSelected = models.MedicineSelectedSentinel
		}
	case models.HandlerSymptom:
		if closesAssessment(reply) {
			st.SymptomAssessmentComplete = true
			st.InSymptomAssessment = false
		}
	}
}

// closesAssessment reports whether a symptom reply recommends a department.
func closesAssessment(reply string) bool {
	lower := strings.ToLower(reply)
	recommends := strings.Contains(lower, "recommend you see") || strings.Contains(lower, "recommend visiting")
	return recommends && strings.Contains(lower, "department")
}

func applyHospitalSlots(si *models.SchedulingInfo, ex slots.Extraction) {
	if ex.Location != "" {
		si.Location = ex.Location
	}
	if ex.Hospital != "" {
		si.HospitalPreference = ex.Hospital
	}
	if ex.Time != "" {
		si.TimePreference = ex.Time
	}
}

func applyTestSlots(tb *models.TestBookingInfo, ex slots.Extraction) {
	if ex.Location != "" {
		tb.Location = ex.Location
	}
	if ex.Lab != "" {
		tb.LabPreference = ex.Lab
	}
	if ex.VisitType != "" {
		tb.VisitType = ex.VisitType
	}
	if ex.TestType != "" {
		tb.TestType = ex.TestType
	}
	if ex.Time != "" {
		tb.TimePreference = ex.Time
	}
	tb.Step = advance(tb.Step, tb.Location, tb.LabPreference, tb.VisitType)
}

func applyLabTestSlots(li *models.LabTestInfo, ex slots.Extraction) {
	if ex.Location != "" {
		li.Location = ex.Location
	}
	if ex.Lab != "" {
		li.PreferredLab = ex.Lab
	}
	if ex.VisitType != "" {
		li.VisitType = ex.VisitType
	}
	if ex.TestType != "" {
		li.TestType = ex.TestType
	}
	if ex.Package != "" {
		li.PackageSelected = ex.Package
	}
	if ex.Time != "" {
		li.PreferredTime = ex.Time
	}
	li.Step = advance(li.Step, li.Location, li.PreferredLab, li.VisitType)
}

// advance moves a booking step forward to match the filled slots. It never moves back
// and never leaves complete.
func advance(step models.BookingStep, location, lab, visit string) models.BookingStep {
	if step == models.StepComplete {
		return step
	}
	next := models.StepLocation
	switch {
	case location != "" && lab != "" && visit != "":
		next = models.StepConfirmation
	case location != "" && lab != "":
		next = models.StepVisitTypeSelection
	case location != "":
		next = models.StepLabSelection
	}
	if stepRank[next] > stepRank[step] {
		return next
	}
	return step
}

var stepRank = map[models.BookingStep]int{
	models.StepInitial:            0,
	models.StepLocation:           1,
	models.StepLabSelection:       2,
	models.StepVisitTypeSelection: 3,
	models.StepConfirmation:       4,
	models.StepComplete:           5,
}
