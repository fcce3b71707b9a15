// Package models defines state management structures for CareRouter conversations.
package models

import (
	"slices"
	"time"
)

// MaxHistoryLines bounds ConversationState.ConversationHistory (10 exchanges).
const MaxHistoryLines = 20

// MedicineSelectedSentinel marks a pharmacy selection inferred from the handler asking
// about quantity rather than from a named medicine.
const MedicineSelectedSentinel = "selected"

// BookingStep tracks progress through a test or lab booking.
type BookingStep string

const (
	StepInitial            BookingStep = "initial"
	StepLocation           BookingStep = "location"
	StepLabSelection       BookingStep = "lab_selection"
	StepVisitTypeSelection BookingStep = "visit_type_selection"
	StepConfirmation       BookingStep = "confirmation"
	StepComplete           BookingStep = "complete"
)

// SchedulingInfo holds the hospital-appointment sub-flow slots.
type SchedulingInfo struct {
	Location             string `json:"location,omitempty"`
	HospitalPreference   string `json:"hospital_preference,omitempty"`
	TimePreference       string `json:"time_preference,omitempty"`
	AppointmentConfirmed bool   `json:"appointment_confirmed,omitempty"`
	ConfirmationShown    bool   `json:"confirmation_shown,omitempty"`
}

// IsEmpty reports whether no scheduling slot is set.
func (s SchedulingInfo) IsEmpty() bool {
	return s == SchedulingInfo{}
}

// PharmacyInfo holds the pharmacy selection slot.
type PharmacyInfo struct {
	MedicineSelected string `json:"medicine_selected,omitempty"`
}

// TestBookingInfo holds the diagnostic-test sub-flow served by the scheduling handler.
type TestBookingInfo struct {
	IsTestBooking     bool        `json:"is_test_booking"`
	Location          string      `json:"location,omitempty"`
	LabPreference     string      `json:"lab_preference,omitempty"`
	VisitType         string      `json:"visit_type,omitempty"`
	TestType          string      `json:"test_type,omitempty"`
	TimePreference    string      `json:"time_preference,omitempty"`
	Step              BookingStep `json:"step"`
	ConfirmationShown bool        `json:"confirmation_shown,omitempty"`
}

// NewTestBookingInfo returns an active test booking at its initial step.
func NewTestBookingInfo() *TestBookingInfo {
	return &TestBookingInfo{
		IsTestBooking: true,
		TestType:      "Blood Test",
		Step:          StepInitial,
	}
}

// LabTestInfo holds the slots of the dedicated lab_test handler.
type LabTestInfo struct {
	IsLabBooking      bool        `json:"is_lab_booking"`
	Location          string      `json:"location,omitempty"`
	PreferredLab      string      `json:"preferred_lab,omitempty"`
	VisitType         string      `json:"visit_type,omitempty"`
	TestType          string      `json:"test_type,omitempty"`
	PackageSelected   string      `json:"package_selected,omitempty"`
	PreferredTime     string      `json:"preferred_time,omitempty"`
	Step              BookingStep `json:"step"`
	ConfirmationShown bool        `json:"confirmation_shown,omitempty"`
}

// NewLabTestInfo returns an active lab booking at its initial step.
func NewLabTestInfo() *LabTestInfo {
	return &LabTestInfo{IsLabBooking: true, Step: StepInitial}
}

// SharedMemory is the cross-handler slot memory of one user.
// TestBookingInfo and LabTestInfo are nil until their flows start.
type SharedMemory struct {
	CurrentCondition  string           `json:"current_condition,omitempty"`
	SymptomsDiscussed []string         `json:"symptoms_discussed"`
	SchedulingInfo    SchedulingInfo   `json:"scheduling_info"`
	PharmacyInfo      PharmacyInfo     `json:"pharmacy_info"`
	TestBookingInfo   *TestBookingInfo `json:"test_booking_info,omitempty"`
	LabTestInfo       *LabTestInfo     `json:"lab_test_info,omitempty"`
}

// AddSymptom appends tag unless it is already present. It reports whether tag was added.
func (m *SharedMemory) AddSymptom(tag string) bool {
	if tag == "" || slices.Contains(m.SymptomsDiscussed, tag) {
		return false
	}
	m.SymptomsDiscussed = append(m.SymptomsDiscussed, tag)
	return true
}

// InTestBooking reports whether the test-booking sub-flow is active.
func (m *SharedMemory) InTestBooking() bool {
	return m.TestBookingInfo != nil && m.TestBookingInfo.IsTestBooking
}

// ConversationState is the per-user routing state. It is owned by the state store and
// mutated only through a turn's working copy.
type ConversationState struct {
	UserID                    string       `json:"user_id"`
	ActiveHandler             Handler      `json:"active_handler"`
	SharedMemory              SharedMemory `json:"shared_memory"`
	ConversationHistory       []string     `json:"conversation_history"`
	InSymptomAssessment       bool         `json:"in_symptom_assessment"`
	SymptomAssessmentComplete bool         `json:"symptom_assessment_complete"`
	CreatedAt                 time.Time    `json:"created_at"`
	UpdatedAt                 time.Time    `json:"updated_at"`
}

// NewConversationState creates the initial state for a first-contact user.
func NewConversationState(userID string, now time.Time) *ConversationState {
	return &ConversationState{
		UserID:              userID,
		ActiveHandler:       HandlerOrchestrator,
		SharedMemory:        SharedMemory{SymptomsDiscussed: []string{}},
		ConversationHistory: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone returns a deep copy so a turn can mutate freely and commit or discard.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.ConversationHistory = slices.Clone(s.ConversationHistory)
	c.SharedMemory.SymptomsDiscussed = slices.Clone(s.SharedMemory.SymptomsDiscussed)
	if s.SharedMemory.TestBookingInfo != nil {
		tb := *s.SharedMemory.TestBookingInfo
		c.SharedMemory.TestBookingInfo = &tb
	}
	if s.SharedMemory.LabTestInfo != nil {
		lb := *s.SharedMemory.LabTestInfo
		c.SharedMemory.LabTestInfo = &lb
	}
	return &c
}

// AppendHistory records one exchange and keeps only the last MaxHistoryLines lines.
func (s *ConversationState) AppendHistory(userInput, reply string) {
	s.ConversationHistory = append(s.ConversationHistory, "User: "+userInput, "Agent: "+reply)
	if over := len(s.ConversationHistory) - MaxHistoryLines; over > 0 {
		s.ConversationHistory = slices.Clone(s.ConversationHistory[over:])
	}
}

// RecentHistory returns up to the last n history lines.
func (s *ConversationState) RecentHistory(n int) []string {
	if n <= 0 || len(s.ConversationHistory) == 0 {
		return nil
	}
	if n >= len(s.ConversationHistory) {
		return slices.Clone(s.ConversationHistory)
	}
	return slices.Clone(s.ConversationHistory[len(s.ConversationHistory)-n:])
}
