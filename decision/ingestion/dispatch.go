package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPeriodType is applied when an extracted item has no period type
const DefaultPeriodType = "year"

// ExtractedBudgetItem is one line item produced by the extraction service
type ExtractedBudgetItem struct {
	Category        string           `json:"category"`
	Name            string           `json:"name"`
	Quantity        int              `json:"quantity"`
	Total           *decimal.Decimal `json:"total,omitempty"`
	Period          int              `json:"period"`
	PeriodType      string           `json:"periodType,omitempty"`
	HasBudgetValues bool             `json:"hasBudgetValues"`
}

func (i ExtractedBudgetItem) total() decimal.Decimal {
	if i.Total == nil {
		return decimal.Zero
	}
	return *i.Total
}

func (i ExtractedBudgetItem) header(classifierID int64) LineHeader {
	periodType := strings.TrimSpace(i.PeriodType)
	if periodType == "" {
		periodType = DefaultPeriodType
	}
	return LineHeader{
		ClassifierID: classifierID,
		Period:       i.Period,
		PeriodType:   periodType,
		Provenance:   ProvenanceOf(i.HasBudgetValues),
	}
}

// ClassifierTable maps each category to its internal line-item classifier id
type ClassifierTable map[Category]int64

// DefaultClassifiers numbers the categories in declaration order starting at 1
func DefaultClassifiers() ClassifierTable {
	table := make(ClassifierTable, numCategories)
	for _, c := range AllCategories() {
		table[c] = int64(c) + 1
	}
	return table
}

// Record is a persisted line item
type Record struct {
	ID       int64    `json:"id"`
	Category Category `json:"category"`
}

// DispatchTable maps extracted items onto category ledgers
type DispatchTable struct {
	classifiers ClassifierTable
}

// NewDispatchTable validates that every category has a classifier id
func NewDispatchTable(classifiers ClassifierTable) (*DispatchTable, error) {
	table := make(ClassifierTable, numCategories)
	for _, c := range AllCategories() {
		id, ok := classifiers[c]
		if !ok {
			return nil, fmt.Errorf("missing classifier id for category %s", c)
		}
		table[c] = id
	}
	return &DispatchTable{classifiers: table}, nil
}

// ClassifierID returns the configured classifier for c
func (t *DispatchTable) ClassifierID(c Category) int64 {
	return t.classifiers[c]
}

// Map converts an extracted item into the line item for category c
func (t *DispatchTable) Map(c Category, item ExtractedBudgetItem, activityID int64) (LineItem, error) {
	header := item.header(t.classifiers[c])

	switch c {
	case Personnel:
		return PersonnelEntry{
			LineHeader: header,
			Position:   item.Name,
			Weeks:      item.Quantity,
			Total:      item.total(),
		}, nil
	case EquipmentSoftware:
		return EquipmentEntry{
			LineHeader:     header,
			ActivityID:     activityID,
			Specifications: item.Name,
			Count:          item.Quantity,
			Total:          item.total(),
		}, nil
	case TechnologyServices:
		return TechServiceEntry{
			LineHeader:  header,
			ActivityID:  activityID,
			Description: item.Name,
			Total:       item.total(),
		}, nil
	case MaterialsSupplies:
		return MaterialsEntry{
			LineHeader: header,
			ActivityID: activityID,
			Materials:  item.Name,
			Total:      item.total(),
		}, nil
	case TrainingEvents:
		return TrainingEntry{
			LineHeader: header,
			ActivityID: activityID,
			Topic:      item.Name,
			Count:      item.Quantity,
			Total:      item.total(),
		}, nil
	case Travel:
		return TravelEntry{
			LineHeader: header,
			ActivityID: activityID,
			Cost:       item.total(),
		}, nil
	}
	return nil, fmt.Errorf("no dispatch entry for category %d", int(c))
}

// Dispatch maps one item and persists it through the category's ledger operation
func (t *DispatchTable) Dispatch(ctx context.Context, ledger Ledger, c Category, item ExtractedBudgetItem, activityID int64) (Record, error) {
	line, err := t.Map(c, item, activityID)
	if err != nil {
		return Record{}, err
	}
	id, err := line.save(ctx, ledger)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Category: line.Category()}, nil
}
