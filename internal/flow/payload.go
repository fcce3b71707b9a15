package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/CareRouter/internal/models"
)

// payloadHistoryLines is how much history every handler payload embeds.
const payloadHistoryLines = 6

func orUnset(v, unset string) string {
	if v == "" {
		return unset
	}
	return v
}

// Payload builds the context message sent to the handler chosen by d.
func (r *Router) Payload(d Decision, input string, st *models.ConversationState) string {
	var b strings.Builder
	writeBase(&b, input, st)

	m := &st.SharedMemory
	switch d.Handler {
	case models.HandlerSymptom:
		if d.Switched {
			b.WriteString("\nThe user has just been handed to you. Acknowledge their symptoms warmly and start the assessment now with your first diagnostic question. Do not say you are connecting them to anyone.\n")
		}
	case models.HandlerScheduling:
		if tb := m.TestBookingInfo; tb != nil && tb.IsTestBooking {
			fmt.Fprintf(&b, `
USER'S CHOICE: TEST BOOKING
The user wants to book a diagnostic test: %s

Follow the TEST BOOKING workflow:
1. Help them choose a lab
2. Ask about home visit vs lab visit
3. Confirm the test booking

Current status:
- Location: %s
- Lab: %s
- Visit Type: %s

Use the test booking confirmation format with a booking ID starting with TEST-
`, orUnset(tb.TestType, "Blood Test"), orUnset(tb.Location, "Not specified"), orUnset(tb.LabPreference, "Not selected"), orUnset(tb.VisitType, "Not selected"))
		} else {
			b.WriteString(`
USER'S CHOICE: HOSPITAL APPOINTMENT
The user wants to schedule a doctor's appointment.

Follow the HOSPITAL APPOINTMENT workflow:
1. Help them choose a hospital
2. Schedule the appointment time
3. Confirm the appointment details

Use the hospital appointment confirmation format with an appointment ID starting with APPT-
`)
		}
	case models.HandlerInsurance:
		fmt.Fprintf(&b, "\nYOUR CURRENT INSURANCE POLICY DETAILS:\n```json\n%s\n```\nUse this policy data to answer their question.\n", r.cat.InsurancePolicyJSON())
	case models.HandlerPharmacy:
		fmt.Fprintf(&b, "\nYOUR PHARMACY INVENTORY DATA:\n```json\n%s\n```\n", r.cat.InventoryJSON())
		fmt.Fprintf(&b, `USER IS ASKING ABOUT: %q
INSTRUCTIONS:
1. Check medicine availability using the inventory data above
2. When a medicine is selected, process the order and give an order confirmation
3. For common pain or fever medicines use a standard dosage such as "1 tablet as needed for pain/fever"
4. Ask for a prescription if needed, but do not require it for common medicines
`, input)
	case models.HandlerLabTest:
		li := m.LabTestInfo
		if li == nil {
			li = models.NewLabTestInfo()
		}
		fmt.Fprintf(&b, `
LAB TEST BOOKING STATUS:
- Location: %s
- Preferred Lab: %s
- Test Type: %s
- Package: %s
- Visit Type: %s
- Preferred Time: %s

AVAILABLE TEST PACKAGES:
`, orUnset(li.Location, "Not specified"), orUnset(li.PreferredLab, "Not selected"), orUnset(li.TestType, "Not specified"),
			orUnset(li.PackageSelected, "Not selected"), orUnset(li.VisitType, "Not selected"), orUnset(li.PreferredTime, "Not specified"))
		for i, p := range r.cat.TestPackages {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.Title, p.Subtitle)
		}
		b.WriteString("\nUse the lab booking confirmation format with a booking ID starting with LAB-\n")
	}
	return strings.TrimSpace(b.String())
}

func writeBase(b *strings.Builder, input string, st *models.ConversationState) {
	recent := "No previous conversation"
	if lines := st.RecentHistory(payloadHistoryLines); len(lines) > 0 {
		recent = strings.Join(lines, "\n")
	}
	m := st.SharedMemory
	symptoms := "None"
	if len(m.SymptomsDiscussed) > 0 {
		symptoms = strings.Join(m.SymptomsDiscussed, ", ")
	}
	fmt.Fprintf(b, `SHARED CONVERSATION CONTEXT:
%s

KNOWN INFORMATION:
- Current Condition: %s
- Symptoms Discussed: %s
- Scheduling Info: Location: %s, Hospital: %s

CURRENT USER MESSAGE: %q

IMPORTANT:
- Do not ask for information that's already in the context above
- Acknowledge relevant previous conversation when appropriate
`, recent, orUnset(m.CurrentCondition, "Not specified"), symptoms,
		orUnset(m.SchedulingInfo.Location, "Not specified"), orUnset(m.SchedulingInfo.HospitalPreference, "Not specified"), input)
}
