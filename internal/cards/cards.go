// Package cards decides which structured cards accompany a handler reply and builds them
// from the static catalog.
//
// Selection is a priority chain per handler: the first branch that applies wins. The
// three confirmation cards are one-shot; the guard flag on the relevant sub-flow is set
// when the card is produced and the card is never produced again while it stays set.
package cards

import (
	"log/slog"
	"time"

	"github.com/BTreeMap/CareRouter/internal/catalog"
	"github.com/BTreeMap/CareRouter/internal/models"
)

// Selector chooses cards for a turn.
type Selector struct {
	cat *catalog.Catalog
	now func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock overrides the clock used for appointment dates and ids.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSelector creates a Selector over cat. A nil cat uses the embedded catalog.
func NewSelector(cat *catalog.Catalog, opts ...Option) *Selector {
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Selector{cat: cat, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the cards for reply from handler h. It may set the confirmation guards
// and booking step on st, which must be the turn's working copy.
func (s *Selector) Select(input, reply string, st *models.ConversationState, h models.Handler) []models.Card {
	var out []models.Card
	switch h {
	case models.HandlerScheduling:
		if st.SharedMemory.InTestBooking() {
			out = s.testBooking(input, reply, st.SharedMemory.TestBookingInfo)
		} else {
			out = s.hospitalBooking(input, reply, &st.SharedMemory)
		}
	case models.HandlerPharmacy:
		if ShouldShowMedicineCards(reply, st.SharedMemory.PharmacyInfo) {
			out = MedicineCards(s.cat, reply)
		}
	case models.HandlerLabTest:
		out = s.labTest(input, reply, st.SharedMemory.LabTestInfo)
	}
	if len(out) > 0 {
		slog.Debug("Selector.Select: cards attached", "handler", h, "type", out[0].CardType(), "count", len(out))
	}
	return out
}

func (s *Selector) hospitalBooking(input, reply string, m *models.SharedMemory) []models.Card {
	if ShouldConfirmAppointment(reply, m.SchedulingInfo) {
		card := BookingConfirmation(m, s.now())
		m.SchedulingInfo.ConfirmationShown = true
		return []models.Card{card}
	}
	if HospitalFlowStopped(m.SchedulingInfo) {
		return nil
	}
	if ShouldShowHospitalCards(input, m) {
		return HospitalCards(s.cat)
	}
	return nil
}

func (s *Selector) testBooking(input, reply string, tb *models.TestBookingInfo) []models.Card {
	if ShouldConfirmTest(reply, tb) {
		card := TestConfirmation(tb, s.now())
		tb.ConfirmationShown = true
		tb.Step = models.StepComplete
		return []models.Card{card}
	}
	if tb.Step == models.StepComplete {
		return nil
	}
	if ShouldShowTestLabCards(input, tb) {
		return LabCards(s.cat, tb.Location)
	}
	if ShouldShowTestVisitCards(reply, tb) {
		return VisitTypeCards(s.cat)
	}
	return nil
}

func (s *Selector) labTest(input, reply string, li *models.LabTestInfo) []models.Card {
	switch {
	case ShouldShowLabTestLabCards(input, li):
		return LabCards(s.cat, li.Location)
	case ShouldShowPackageCards(input, li):
		return PackageCards(s.cat)
	case ShouldShowLabTestVisitCards(reply, li):
		return VisitTypeCards(s.cat)
	case ShouldConfirmLabTest(reply, li):
		card := LabConfirmation(li)
		li.ConfirmationShown = true
		li.Step = models.StepComplete
		return []models.Card{card}
	}
	return nil
}
