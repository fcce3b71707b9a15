// Package catalog loads the static, read-only directories used to build prompts and cards:
// hospitals, labs by city, visit types, test packages, pharmacy inventory and the
// insurance policy document.
//
// A Catalog is immutable after Load and may be shared across goroutines without locking.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Hospital is an entry of the hospital directory.
type Hospital struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Meta        string `yaml:"meta"`
}

// Lab is a diagnostic lab available in a city.
type Lab struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	SelectionText string   `yaml:"selection_text"`
	Description   string   `yaml:"description"`
	Meta          string   `yaml:"meta"`
	Tests         []string `yaml:"tests"`
}

// VisitType describes a sample-collection option.
type VisitType struct {
	Key           string `yaml:"key"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Meta          string `yaml:"meta"`
	SelectionText string `yaml:"selection_text"`
}

// TestPackage is a bundled health checkup.
type TestPackage struct {
	Title       string   `yaml:"title"`
	Subtitle    string   `yaml:"subtitle"`
	Price       int      `yaml:"price"`
	Recommended bool     `yaml:"recommended"`
	Details     []string `yaml:"details"`
}

// Medicine is an inventory line.
type Medicine struct {
	Name             string `yaml:"name" json:"-"`
	Available        bool   `yaml:"available" json:"available"`
	Price            int    `yaml:"price" json:"price"`
	Unit             string `yaml:"unit" json:"type"`
	GenericAvailable bool   `yaml:"generic_available" json:"generic_available"`
}

// InventoryCategory groups medicines.
type InventoryCategory struct {
	Category  string     `yaml:"category"`
	Medicines []Medicine `yaml:"medicines"`
}

// Pharmacy is the pharmacy profile and inventory.
type Pharmacy struct {
	Info         map[string]any      `yaml:"info"`
	Inventory    []InventoryCategory `yaml:"inventory"`
	OrderingInfo map[string]any      `yaml:"ordering_info"`
	Alternatives map[string][]string `yaml:"alternatives"`
}

type imageRule struct {
	Match []string `yaml:"match"`
	Path  string   `yaml:"path"`
}

type medicineImages struct {
	Default string      `yaml:"default"`
	Rules   []imageRule `yaml:"rules"`
}

// Catalog is the full set of static directories.
type Catalog struct {
	Hospitals            []Hospital        `yaml:"hospitals"`
	DefaultLabCity       string            `yaml:"default_lab_city"`
	Labs                 map[string][]Lab  `yaml:"labs"`
	VisitTypes           []VisitType       `yaml:"visit_types"`
	TestPackages         []TestPackage     `yaml:"test_packages"`
	Pharmacy             Pharmacy          `yaml:"pharmacy"`
	CardMedicines        []string          `yaml:"card_medicines"`
	MedicineDescriptions map[string]string `yaml:"medicine_descriptions"`
	MedicineImages       medicineImages    `yaml:"medicine_images"`
	InsurancePolicy      map[string]any    `yaml:"insurance_policy"`
}

// Load parses a catalog document and checks the sections the router depends on.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Hospitals) == 0 {
		return nil, fmt.Errorf("catalog has no hospitals")
	}
	if _, ok := c.Labs[c.DefaultLabCity]; !ok {
		return nil, fmt.Errorf("catalog default lab city %q has no labs", c.DefaultLabCity)
	}
	if len(c.Pharmacy.Inventory) == 0 {
		return nil, fmt.Errorf("catalog has no pharmacy inventory")
	}
	if len(c.InsurancePolicy) == 0 {
		return nil, fmt.Errorf("catalog has no insurance policy")
	}
	return &c, nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Load(defaultCatalog)
})

// Default returns the embedded catalog. It panics if the embedded document is invalid,
// which the package tests rule out.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// LabsFor returns the labs of a city, falling back to the default city.
func (c *Catalog) LabsFor(city string) []Lab {
	if labs, ok := c.Labs[strings.ToLower(strings.TrimSpace(city))]; ok {
		return labs
	}
	return c.Labs[c.DefaultLabCity]
}

// FindMedicine returns the first inventory line whose name contains name, case-insensitively.
func (c *Catalog) FindMedicine(name string) (Medicine, bool) {
	needle := strings.ToLower(name)
	if needle == "" {
		return Medicine{}, false
	}
	for _, cat := range c.Pharmacy.Inventory {
		for _, m := range cat.Medicines {
			if strings.Contains(strings.ToLower(m.Name), needle) {
				return m, true
			}
		}
	}
	return Medicine{}, false
}

// MedicinePrice formats the inventory price of name, e.g. "₹20/strip".
func (c *Catalog) MedicinePrice(name string) string {
	m, ok := c.FindMedicine(name)
	if !ok {
		return "Price not available"
	}
	return fmt.Sprintf("₹%d/%s", m.Price, m.Unit)
}

// MedicineDescription returns a short description of name.
func (c *Catalog) MedicineDescription(name string) string {
	if d, ok := c.MedicineDescriptions[name]; ok {
		return d
	}
	return "General medication"
}

// MedicineImage maps a medicine name to an image path.
func (c *Catalog) MedicineImage(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range c.MedicineImages.Rules {
		for _, word := range rule.Match {
			if strings.Contains(lower, word) {
				return rule.Path
			}
		}
	}
	return c.MedicineImages.Default
}

// AlternativesFor returns known substitutes for name.
func (c *Catalog) AlternativesFor(name string) []string {
	return c.Pharmacy.Alternatives[name]
}

// InsurancePolicyJSON renders the policy document for embedding in a prompt.
func (c *Catalog) InsurancePolicyJSON() string {
	return mustIndent(c.InsurancePolicy)
}

// InventoryJSON renders the pharmacy profile and inventory for embedding in a prompt.
func (c *Catalog) InventoryJSON() string {
	inventory := make(map[string]map[string]Medicine, len(c.Pharmacy.Inventory))
	for _, cat := range c.Pharmacy.Inventory {
		lines := make(map[string]Medicine, len(cat.Medicines))
		for _, m := range cat.Medicines {
			lines[m.Name] = m
		}
		inventory[cat.Category] = lines
	}
	return mustIndent(map[string]any{
		"pharmacy_info":       c.Pharmacy.Info,
		"inventory":           inventory,
		"ordering_info":       c.Pharmacy.OrderingInfo,
		"alternative_options": c.Pharmacy.Alternatives,
	})
}

// mustIndent marshals catalog data, which is always JSON-representable once loaded.
func mustIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
