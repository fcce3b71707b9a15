package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSelectsTables(t *testing.T) {
	ex := Extract("Apollo in Delhi tomorrow morning", HospitalSlots)
	assert.Equal(t, "Delhi", ex.Location)
	assert.Equal(t, "Apollo Hospital", ex.Hospital)
	assert.Equal(t, "Morning", ex.Time, "first time entry wins")
	assert.Empty(t, ex.Lab, "lab table not requested")

	ex = Extract("Apollo in Delhi", TestSlots)
	assert.Equal(t, "Apollo Diagnostics", ex.Lab)
	assert.Empty(t, ex.Hospital)
}

func TestExtractFirstMatchWins(t *testing.T) {
	ex := Extract("thyroid and blood sugar tests", TestType)
	assert.Equal(t, "Blood Test", ex.TestType)

	ex = Extract("Mumbai or Pune", Location)
	assert.Equal(t, "Mumbai", ex.Location)

	ex = Extract("full body or executive", Package)
	assert.Equal(t, "Full Body Checkup", ex.Package)
}

func TestExtractShortKeysNeedWordBoundary(t *testing.T) {
	assert.Empty(t, Extract("maximum comfort", Hospital).Hospital)
	assert.Equal(t, "Max Super Specialty Hospital", Extract("Max please", Hospital).Hospital)
	assert.Equal(t, "Dr. Lal PathLabs", Extract("Dr. Lal PathLabs", Lab).Lab)
	assert.Empty(t, Extract("a lalaland", Lab).Lab)
}

func TestExtractVisitType(t *testing.T) {
	tests := map[string]string{
		"Home Visit":              VisitHome,
		"collect at home":         VisitHome,
		"Lab Visit":               VisitLab,
		"lab":                     VisitLab,
		"I'll come to the center": VisitLab,
		"Dr. Lal PathLabs":        "",
		"the lab sounds fine":     "",
	}
	for input, want := range tests {
		assert.Equal(t, want, Extract(input, VisitType).VisitType, input)
	}
}

func TestNamesHelpers(t *testing.T) {
	assert.True(t, NamesLab("Thyrocare"))
	assert.False(t, NamesLab("any lab near me"))
	assert.True(t, NamesHospital("what about AIIMS?"))
	assert.False(t, NamesHospital("closest hospital"))
}

func TestWantsTest(t *testing.T) {
	assert.True(t, WantsTest("I need a blood test"))
	assert.True(t, WantsTest("home collection please"))
	assert.False(t, WantsTest("blood test before I see a doctor"))
	assert.False(t, WantsTest("book an appointment"))
	assert.True(t, WantsDoctor("I want a doctor appointment"))
}

func TestIsResetCommand(t *testing.T) {
	assert.True(t, IsResetCommand("Start over"))
	assert.True(t, IsResetCommand("I want to book another appointment"))
	assert.False(t, IsResetCommand("book an appointment"))
}

func TestCondition(t *testing.T) {
	cond, tags := Condition("I think my leg is broken and there is pain")
	assert.Equal(t, "Broken leg", cond)
	assert.Equal(t, []string{"broken leg", "pain", "broken"}, tags)

	cond, tags = Condition("fever and cough since Monday")
	assert.Empty(t, cond)
	assert.Equal(t, []string{"fever", "cough"}, tags)

	_, tags = Condition("hello")
	assert.Empty(t, tags)
}

func TestMedicineOrder(t *testing.T) {
	assert.Equal(t, "Paracetamol", MedicineOrder("I want to order paracetamol"))
	assert.Equal(t, "Levocetirizine", MedicineOrder("buy levocetirizine"))
	assert.Empty(t, MedicineOrder("is paracetamol available?"))
	assert.Empty(t, MedicineOrder("I want something"))
}

func TestAsksQuantity(t *testing.T) {
	assert.True(t, AsksQuantity("How many strips would you like?"))
	assert.False(t, AsksQuantity("Paracetamol is in stock."))
}
