package ingestion

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		tag  string
		want Category
		ok   bool
	}{
		{"personnel", Personnel, true},
		{"TalentoHumano", Personnel, true},
		{"equipment_software", EquipmentSoftware, true},
		{"EquiposSoftware", EquipmentSoftware, true},
		{"technology_services", TechnologyServices, true},
		{"serviciostecnologicos", TechnologyServices, true},
		{"materials_supplies", MaterialsSupplies, true},
		{"training_events", TrainingEvents, true},
		{"CapacitacionEventos", TrainingEvents, true},
		{"travel", Travel, true},
		{"  Travel\t", Travel, true},
		{"otros", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ParseCategory(tt.tag)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCategory_ClosedSet(t *testing.T) {
	all := AllCategories()
	require.Len(t, all, 6)

	seen := make(map[string]bool)
	for _, c := range all {
		assert.True(t, c.Valid())
		assert.False(t, seen[c.String()], "duplicate tag %s", c)
		seen[c.String()] = true

		parsed, ok := ParseCategory(c.String())
		assert.True(t, ok)
		assert.Equal(t, c, parsed)
	}

	assert.False(t, Category(-1).Valid())
	assert.False(t, Category(6).Valid())
	assert.Equal(t, "unknown", Category(42).String())
}

func TestNewDispatchTable_RequiresEveryCategory(t *testing.T) {
	classifiers := DefaultClassifiers()
	delete(classifiers, TrainingEvents)

	_, err := NewDispatchTable(classifiers)
	assert.ErrorContains(t, err, "training_events")
}

func TestDispatchTable_MapsEveryCategory(t *testing.T) {
	table, err := NewDispatchTable(ClassifierTable{
		Personnel: 101, EquipmentSoftware: 102, TechnologyServices: 103,
		MaterialsSupplies: 104, TrainingEvents: 105, Travel: 106,
	})
	require.NoError(t, err)

	total := decimal.RequireFromString("1250.50")
	item := ExtractedBudgetItem{Name: "Item", Quantity: 4, Total: &total, Period: 2, PeriodType: "month"}

	for _, c := range AllCategories() {
		line, err := table.Map(c, item, 55)
		require.NoError(t, err, "category %s has no dispatch entry", c)
		assert.Equal(t, c, line.Category())
	}

	personnel, _ := table.Map(Personnel, item, 55)
	p := personnel.(PersonnelEntry)
	assert.Equal(t, "Item", p.Position)
	assert.Equal(t, 4, p.Weeks)
	assert.Equal(t, int64(101), p.ClassifierID)
	assert.Equal(t, 2, p.Period)
	assert.Equal(t, "month", p.PeriodType)
	assert.Equal(t, ProvenanceGenerated, p.Provenance)

	equipment, _ := table.Map(EquipmentSoftware, item, 55)
	e := equipment.(EquipmentEntry)
	assert.Equal(t, 4, e.Count)
	assert.Equal(t, "Item", e.Specifications)
	assert.Equal(t, int64(55), e.ActivityID)

	training, _ := table.Map(TrainingEvents, item, 55)
	assert.Equal(t, 4, training.(TrainingEntry).Count)
	assert.Equal(t, "Item", training.(TrainingEntry).Topic)

	services, _ := table.Map(TechnologyServices, item, 55)
	assert.Equal(t, "Item", services.(TechServiceEntry).Description)
	assert.True(t, services.(TechServiceEntry).Total.Equal(total))

	travel, _ := table.Map(Travel, item, 55)
	tr := travel.(TravelEntry)
	assert.True(t, tr.Cost.Equal(total))
	assert.Equal(t, int64(106), tr.ClassifierID)
}

func TestDispatchTable_Defaults(t *testing.T) {
	table, err := NewDispatchTable(DefaultClassifiers())
	require.NoError(t, err)

	line, err := table.Map(MaterialsSupplies, ExtractedBudgetItem{Name: "paper", HasBudgetValues: true}, 1)
	require.NoError(t, err)

	m := line.(MaterialsEntry)
	assert.True(t, m.Total.IsZero())
	assert.Equal(t, DefaultPeriodType, m.PeriodType)
	assert.Equal(t, ProvenanceExtracted, m.Provenance)

	_, err = table.Map(Category(99), ExtractedBudgetItem{}, 1)
	assert.Error(t, err)
}

func TestDispatchTable_Dispatch(t *testing.T) {
	table, err := NewDispatchTable(DefaultClassifiers())
	require.NoError(t, err)
	ledger := newFakeLedger()

	record, err := table.Dispatch(context.Background(), ledger, TechnologyServices, ExtractedBudgetItem{Name: "hosting"}, 9)
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 1, Category: TechnologyServices}, record)

	ledger.failAt[TechnologyServices] = 0
	_, err = table.Dispatch(context.Background(), ledger, TechnologyServices, ExtractedBudgetItem{Name: "hosting"}, 9)
	assert.EqualError(t, err, "insert rejected")
}
