// Package ingestion persists externally extracted budget line items into
// category-specific ledgers and reports per-category partial success.
package ingestion

import (
	"strings"
)

// Category is one of the six fixed budget line classifications
type Category int

const (
	Personnel Category = iota
	EquipmentSoftware
	TechnologyServices
	MaterialsSupplies
	TrainingEvents
	Travel

	numCategories
)

// canonical tags, indexed by Category
var categoryTags = [numCategories]string{
	Personnel:          "personnel",
	EquipmentSoftware:  "equipment_software",
	TechnologyServices: "technology_services",
	MaterialsSupplies:  "materials_supplies",
	TrainingEvents:     "training_events",
	Travel:             "travel",
}

// rubro names used by the extraction service and the legacy ledgers
var categoryAliases = [numCategories][]string{
	Personnel:          {"TalentoHumano", "talento_humano"},
	EquipmentSoftware:  {"EquiposSoftware", "equipos_software"},
	TechnologyServices: {"ServiciosTecnologicos", "servicios_tecnologicos"},
	MaterialsSupplies:  {"MaterialesInsumos", "materiales_insumos"},
	TrainingEvents:     {"CapacitacionEventos", "capacitacion_eventos"},
	Travel:             {"GastosViaje", "gastos_viaje"},
}

var tagIndex = buildTagIndex()

func buildTagIndex() map[string]Category {
	index := make(map[string]Category, int(numCategories)*3)
	for _, c := range AllCategories() {
		index[strings.ToLower(categoryTags[c])] = c
		for _, alias := range categoryAliases[c] {
			index[strings.ToLower(alias)] = c
		}
	}
	return index
}

// AllCategories returns every category in declaration order
func AllCategories() []Category {
	all := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		all = append(all, c)
	}
	return all
}

// ParseCategory resolves a tag or alias, ignoring case and surrounding space
func ParseCategory(tag string) (Category, bool) {
	c, ok := tagIndex[strings.ToLower(strings.TrimSpace(tag))]
	return c, ok
}

// Valid reports whether c is one of the six categories
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// String returns the canonical tag
func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return categoryTags[c]
}

// Aliases returns the alternative tags accepted for c
func (c Category) Aliases() []string {
	if !c.Valid() {
		return nil
	}
	return append([]string(nil), categoryAliases[c]...)
}

// MarshalText encodes the canonical tag
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
