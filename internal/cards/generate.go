package cards

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BTreeMap/CareRouter/internal/catalog"
	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/slots"
	"github.com/BTreeMap/CareRouter/internal/util"
)

const (
	defaultHospital = "Apollo Hospital"
	defaultLocation = "Delhi"
	defaultLab      = "Dr. Lal PathLabs"
	defaultLabTime  = "Morning (7 AM - 12 PM)"
	appointmentTime = "10:00 AM"
	dateLayout      = "January 02, 2006"
)

// HospitalCards lists the hospital directory.
func HospitalCards(cat *catalog.Catalog) []models.Card {
	out := make([]models.Card, 0, len(cat.Hospitals))
	for _, h := range cat.Hospitals {
		out = append(out, models.HospitalCard{
			Type:          models.CardHospital,
			HospitalID:    h.ID,
			Title:         h.Name,
			Description:   h.Description,
			Meta:          h.Meta,
			SelectionText: h.Name,
		})
	}
	return out
}

// LabCards lists the labs of location, or of the default city when it has none.
func LabCards(cat *catalog.Catalog, location string) []models.Card {
	labs := cat.LabsFor(location)
	out := make([]models.Card, 0, len(labs))
	for _, l := range labs {
		out = append(out, models.LabCard{
			Type:           models.CardLab,
			LabID:          l.ID,
			Title:          l.Name,
			Description:    l.Description,
			Meta:           l.Meta,
			SelectionText:  l.SelectionText,
			TestsAvailable: slices.Clone(l.Tests),
		})
	}
	return out
}

// VisitTypeCards offers home and lab collection.
func VisitTypeCards(cat *catalog.Catalog) []models.Card {
	out := make([]models.Card, 0, len(cat.VisitTypes))
	for _, v := range cat.VisitTypes {
		out = append(out, models.VisitTypeCard{
			Type:          models.CardVisitType,
			VisitType:     v.Key,
			Title:         v.Title,
			Description:   v.Description,
			Meta:          v.Meta,
			SelectionText: v.SelectionText,
		})
	}
	return out
}

// PackageCards lists the checkup packages.
func PackageCards(cat *catalog.Catalog) []models.Card {
	out := make([]models.Card, 0, len(cat.TestPackages))
	for _, p := range cat.TestPackages {
		out = append(out, models.TestPackageCard{
			Type:     models.CardTestPackage,
			Title:    p.Title,
			Subtitle: p.Subtitle,
			Details:  slices.Clone(p.Details),
			Action: models.PackageAction{
				Type:  "select_package",
				Value: p.Title,
				Price: p.Price,
			},
			Recommended: p.Recommended,
		})
	}
	return out
}

// MedicineCards builds a card for every card-eligible medicine the reply names.
func MedicineCards(cat *catalog.Catalog, reply string) []models.Card {
	lower := strings.ToLower(reply)
	var out []models.Card
	for _, name := range cat.CardMedicines {
		if !strings.Contains(lower, strings.ToLower(name)) {
			continue
		}
		status := "unavailable"
		generic := false
		if m, ok := cat.FindMedicine(name); ok {
			generic = m.GenericAvailable
			if m.Available {
				status = "available"
			}
		}
		alts := slices.Clone(cat.AlternativesFor(name))
		if alts == nil {
			alts = []string{}
		}
		out = append(out, models.MedicineCard{
			Type:             models.CardMedicine,
			MedicineName:     name,
			Status:           status,
			Price:            cat.MedicinePrice(name),
			ImageURL:         cat.MedicineImage(name),
			Description:      cat.MedicineDescription(name),
			GenericAvailable: generic,
			Alternatives:     alts,
			SelectionText:    name,
		})
	}
	return out
}

// QuickReplies turns options into one-tap reply cards.
func QuickReplies(options ...string) []models.Card {
	out := make([]models.Card, 0, len(options))
	for _, o := range options {
		out = append(out, models.QuickReplyCard{Type: models.CardQuickReply, Title: o, SelectionText: o})
	}
	return out
}

// AppointmentID formats a hospital appointment id, e.g. APPT-4821-1015.
func AppointmentID(now time.Time) string {
	return fmt.Sprintf("APPT-%d-%s", util.RandomInRange(1000, 9999), now.Format("0102"))
}

// TestBookingID formats a scheduling-handler test id, e.g. TEST-4821-1015.
func TestBookingID(now time.Time) string {
	return fmt.Sprintf("TEST-%d-%s", util.RandomInRange(1000, 9999), now.Format("0102"))
}

// LabBookingID formats a lab_test handler id, e.g. LAB-48213.
func LabBookingID() string {
	return fmt.Sprintf("LAB-%d", util.RandomInRange(10000, 99999))
}

func department(tags []string) (dept, doctor string) {
	for _, t := range tags {
		switch t {
		case "fever", "cold", "cough":
			return "General Medicine", "Dr. Sharma"
		}
	}
	for _, t := range tags {
		switch t {
		case "broken", "broken leg", "fracture", "pain":
			return "Orthopedics", "Dr. Kumar"
		}
	}
	return "General Medicine", "Dr. Sharma"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// BookingConfirmation builds the hospital appointment confirmation for m.
func BookingConfirmation(m *models.SharedMemory, now time.Time) models.BookingConfirmationCard {
	si := m.SchedulingInfo
	hospital := orDefault(si.HospitalPreference, defaultHospital)
	location := orDefault(si.Location, defaultLocation)
	dept, doctor := department(m.SymptomsDiscussed)
	date := now.AddDate(0, 0, 1).Format(dateLayout)
	id := AppointmentID(now)

	return models.BookingConfirmationCard{
		Type:          models.CardBookingConfirmation,
		Title:         "Appointment Confirmed!",
		AppointmentID: id,
		Details: map[string]string{
			"hospital":   hospital,
			"location":   location,
			"department": dept,
			"doctor":     doctor,
			"date":       date,
			"time":       appointmentTime,
		},
		Instructions: []string{
			"Please arrive 15 minutes early for registration",
			"Bring a valid photo ID and insurance card",
			"Carry any previous medical records or test reports",
			"If you need to cancel, please call at least 24 hours in advance",
		},
		Meta: fmt.Sprintf("📅 %s at %s • 🏥 %s", date, appointmentTime, hospital),
		FullDetails: fmt.Sprintf(
			"Appointment ID: %s\nHospital: %s, %s\nDepartment: %s\nDoctor: %s\nDate: %s\nTime: %s",
			id, hospital, location, dept, doctor, date, appointmentTime,
		),
	}
}

// TestConfirmation builds the test booking confirmation for tb.
func TestConfirmation(tb *models.TestBookingInfo, now time.Time) models.TestBookingConfirmationCard {
	lab := orDefault(tb.LabPreference, defaultLab)
	location := orDefault(tb.Location, defaultLocation)
	visit := orDefault(tb.VisitType, slots.VisitLab)
	test := orDefault(tb.TestType, "Blood Test")
	date := now.AddDate(0, 0, 1).Format(dateLayout)
	id := TestBookingID(now)

	slot := "Any time during lab hours"
	instructions := []string{
		"Visit the lab with a valid photo ID",
		"Fast for 10-12 hours if your test requires it",
		"Carry your doctor's prescription if available",
		"Reports will be shared digitally within 24-48 hours",
	}
	if visit == slots.VisitHome {
		slot = "9:00 AM - 12:00 PM"
		instructions = []string{
			"A trained technician will visit your address in the selected slot",
			"Fast for 10-12 hours if your test requires it",
			"Keep a valid photo ID ready",
			"Reports will be shared digitally within 24-48 hours",
		}
	}

	return models.TestBookingConfirmationCard{
		Type:      models.CardTestBookingConfirmation,
		Title:     "Test Booking Confirmed!",
		BookingID: id,
		Details: map[string]string{
			"test_type":  test,
			"lab":        lab,
			"location":   location,
			"visit_type": visit,
			"date":       date,
			"time_slot":  slot,
		},
		Instructions: instructions,
		Meta:         fmt.Sprintf("📅 %s • 🔬 %s • %s", date, lab, visit),
		FullDetails: fmt.Sprintf(
			"Booking ID: %s\nTest: %s\nLab: %s, %s\nVisit Type: %s\nDate: %s\nTime: %s",
			id, test, lab, location, visit, date, slot,
		),
	}
}

// LabConfirmation builds the lab_test booking confirmation for li.
func LabConfirmation(li *models.LabTestInfo) models.LabBookingConfirmationCard {
	test := li.PackageSelected
	if test == "" {
		test = orDefault(li.TestType, "Diagnostic Test")
	}
	return models.LabBookingConfirmationCard{
		Type:      models.CardLabBookingConfirmation,
		Title:     "Lab Test Booking Confirmed!",
		BookingID: LabBookingID(),
		Details: []string{
			"Lab: " + orDefault(li.PreferredLab, defaultLab),
			"Test/Package: " + test,
			"Visit Type: " + orDefault(li.VisitType, slots.VisitLab),
			"Time: " + orDefault(li.PreferredTime, defaultLabTime),
			"Location: " + orDefault(li.Location, defaultLocation),
		},
		NextSteps: []string{
			"You will receive an SMS confirmation shortly",
			"Follow the fasting instructions for your test",
			"Keep a valid photo ID ready",
			"Reports will be available online within 24-48 hours",
			"Call the lab if you need to reschedule",
		},
	}
}
