package flow

import (
	"log/slog"

	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/slots"
)

// WantsTestBooking reports whether the turn belongs to the test-booking sub-flow: the
// input asks for a test and not a doctor, or a test booking is already under way.
func WantsTestBooking(input string, m *models.SharedMemory) bool {
	return slots.WantsTest(input) || m.InTestBooking()
}

// enterTestMode activates the test sub-flow and clears the hospital sub-flow.
func enterTestMode(m *models.SharedMemory) {
	m.SchedulingInfo = models.SchedulingInfo{}
	if m.TestBookingInfo == nil {
		m.TestBookingInfo = models.NewTestBookingInfo()
		return
	}
	m.TestBookingInfo.IsTestBooking = true
}

// enterHospitalMode clears the test sub-flow.
func enterHospitalMode(m *models.SharedMemory) {
	m.TestBookingInfo = nil
}

// cycleComplete reports whether any booking confirmation was shown in this cycle.
func cycleComplete(m *models.SharedMemory) bool {
	if m.SchedulingInfo.ConfirmationShown {
		return true
	}
	if m.TestBookingInfo != nil && m.TestBookingInfo.ConfirmationShown {
		return true
	}
	return m.LabTestInfo != nil && m.LabTestInfo.ConfirmationShown
}

// ShouldResetCycle reports whether input starts a new booking cycle: an explicit reset
// command, or a new booking request once the current cycle has been confirmed.
func ShouldResetCycle(input string, st *models.ConversationState) bool {
	if slots.IsResetCommand(input) {
		return true
	}
	m := &st.SharedMemory
	return cycleComplete(m) && (slots.WantsDoctor(input) || slots.WantsTest(input))
}

// ResetCycle clears every booking slot and guard and hands the conversation back to the
// orchestrator. History, condition and symptoms are kept.
func ResetCycle(st *models.ConversationState) {
	m := &st.SharedMemory
	m.SchedulingInfo = models.SchedulingInfo{}
	m.PharmacyInfo = models.PharmacyInfo{}
	m.TestBookingInfo = nil
	m.LabTestInfo = nil
	st.ActiveHandler = models.HandlerOrchestrator
	slog.Debug("flow.ResetCycle: booking cycle reset", "user_id", st.UserID)
}
