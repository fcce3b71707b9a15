package models

import "time"

// MaxSuggestedReplies caps Envelope.SuggestedReplies.
const MaxSuggestedReplies = 4

// Envelope is the response returned to the caller for every turn.
type Envelope struct {
	Response         string   `json:"response"`
	Agent            Handler  `json:"agent"`
	Timestamp        string   `json:"timestamp"`
	AgentType        string   `json:"agent_type"`
	Icon             string   `json:"icon"`
	SuggestedReplies []string `json:"suggested_replies,omitempty"`
	Cards            []Card   `json:"cards,omitempty"`
}

// NewEnvelope builds an envelope with the agent's label and icon filled in.
func NewEnvelope(response string, agent Handler, now time.Time) Envelope {
	return Envelope{
		Response:  response,
		Agent:     agent,
		Timestamp: now.Format(time.RFC3339),
		AgentType: agent.Label(),
		Icon:      agent.Icon(),
	}
}

// CardType is the discriminator carried by every card.
type CardType string

const (
	CardHospital                CardType = "hospital"
	CardLab                     CardType = "lab"
	CardVisitType               CardType = "visit_type"
	CardTestPackage             CardType = "test_package"
	CardMedicine                CardType = "medicine"
	CardQuickReply              CardType = "quick_reply"
	CardBookingConfirmation     CardType = "booking_confirmation"
	CardTestBookingConfirmation CardType = "test_booking_confirmation"
	CardLabBookingConfirmation  CardType = "lab_booking_confirmation"
)

// Card is a structured selection or confirmation artifact attached to an envelope.
type Card interface {
	CardType() CardType
}

// HospitalCard offers a hospital for an appointment.
type HospitalCard struct {
	Type          CardType `json:"type"`
	HospitalID    string   `json:"hospital_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Meta          string   `json:"meta"`
	SelectionText string   `json:"selection_text"`
}

func (c HospitalCard) CardType() CardType { return CardHospital }

// LabCard offers a diagnostic lab.
type LabCard struct {
	Type           CardType `json:"type"`
	LabID          string   `json:"lab_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Meta           string   `json:"meta"`
	SelectionText  string   `json:"selection_text"`
	TestsAvailable []string `json:"tests_available"`
}

func (c LabCard) CardType() CardType { return CardLab }

// VisitTypeCard offers home or lab sample collection.
type VisitTypeCard struct {
	Type          CardType `json:"type"`
	VisitType     string   `json:"visit_type"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Meta          string   `json:"meta"`
	SelectionText string   `json:"selection_text"`
}

func (c VisitTypeCard) CardType() CardType { return CardVisitType }

// PackageAction is the selection payload of a TestPackageCard.
type PackageAction struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Price int    `json:"price"`
}

// TestPackageCard offers a health checkup package.
type TestPackageCard struct {
	Type        CardType      `json:"type"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle"`
	Details     []string      `json:"details"`
	Action      PackageAction `json:"action"`
	Recommended bool          `json:"recommended,omitempty"`
}

func (c TestPackageCard) CardType() CardType { return CardTestPackage }

// MedicineCard shows a medicine's availability and price.
type MedicineCard struct {
	Type             CardType `json:"type"`
	MedicineName     string   `json:"medicine_name"`
	Status           string   `json:"status"`
	Price            string   `json:"price"`
	ImageURL         string   `json:"image_url"`
	Description      string   `json:"description"`
	GenericAvailable bool     `json:"generic_available"`
	Alternatives     []string `json:"alternatives"`
	SelectionText    string   `json:"selection_text"`
}

func (c MedicineCard) CardType() CardType { return CardMedicine }

// QuickReplyCard is a one-tap reply option.
type QuickReplyCard struct {
	Type          CardType `json:"type"`
	Title         string   `json:"title"`
	SelectionText string   `json:"selection_text"`
}

func (c QuickReplyCard) CardType() CardType { return CardQuickReply }

// BookingConfirmationCard confirms a hospital appointment.
type BookingConfirmationCard struct {
	Type          CardType          `json:"type"`
	Title         string            `json:"title"`
	AppointmentID string            `json:"appointment_id"`
	Details       map[string]string `json:"details"`
	Instructions  []string          `json:"instructions"`
	Meta          string            `json:"meta"`
	FullDetails   string            `json:"full_details"`
}

func (c BookingConfirmationCard) CardType() CardType { return CardBookingConfirmation }

// TestBookingConfirmationCard confirms a test booked through the scheduling handler.
type TestBookingConfirmationCard struct {
	Type         CardType          `json:"type"`
	Title        string            `json:"title"`
	BookingID    string            `json:"booking_id"`
	Details      map[string]string `json:"details"`
	Instructions []string          `json:"instructions"`
	Meta         string            `json:"meta"`
	FullDetails  string            `json:"full_details"`
}

func (c TestBookingConfirmationCard) CardType() CardType { return CardTestBookingConfirmation }

// LabBookingConfirmationCard confirms a booking made through the lab_test handler.
type LabBookingConfirmationCard struct {
	Type      CardType `json:"type"`
	Title     string   `json:"title"`
	BookingID string   `json:"booking_id"`
	Details   []string `json:"details"`
	NextSteps []string `json:"next_steps"`
}

func (c LabBookingConfirmationCard) CardType() CardType { return CardLabBookingConfirmation }
