package ingestion

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provenance marks whether a line item's money came from extracted data
type Provenance string

const (
	ProvenanceExtracted Provenance = "extracted"
	ProvenanceGenerated Provenance = "generated"
)

// ProvenanceOf derives the provenance tag from the extraction flag
func ProvenanceOf(hasBudgetValues bool) Provenance {
	if hasBudgetValues {
		return ProvenanceExtracted
	}
	return ProvenanceGenerated
}

// LineHeader carries the fields every persisted line item has
type LineHeader struct {
	ClassifierID int64
	Period       int
	PeriodType   string
	Provenance   Provenance
}

// PersonnelEntry is a personnel ledger row. It is linked to the project through
// its classifier, not an activity.
type PersonnelEntry struct {
	LineHeader
	Position string
	Weeks    int
	Total    decimal.Decimal
}

// EquipmentEntry is a software/equipment ledger row
type EquipmentEntry struct {
	LineHeader
	ActivityID     int64
	Specifications string
	Count          int
	Total          decimal.Decimal
}

// TechServiceEntry is a technology services ledger row
type TechServiceEntry struct {
	LineHeader
	ActivityID  int64
	Description string
	Total       decimal.Decimal
}

// MaterialsEntry is a materials/supplies ledger row
type MaterialsEntry struct {
	LineHeader
	ActivityID int64
	Materials  string
	Total      decimal.Decimal
}

// TrainingEntry is a training events ledger row
type TrainingEntry struct {
	LineHeader
	ActivityID int64
	Topic      string
	Count      int
	Total      decimal.Decimal
}

// TravelEntry is a travel expenses ledger row
type TravelEntry struct {
	LineHeader
	ActivityID int64
	Cost       decimal.Decimal
}

// Ledger is the persistence collaborator. Each category has its own create
// operation returning the new row id.
type Ledger interface {
	CreatePersonnel(ctx context.Context, e PersonnelEntry) (int64, error)
	CreateEquipment(ctx context.Context, e EquipmentEntry) (int64, error)
	CreateTechService(ctx context.Context, e TechServiceEntry) (int64, error)
	CreateMaterials(ctx context.Context, e MaterialsEntry) (int64, error)
	CreateTraining(ctx context.Context, e TrainingEntry) (int64, error)
	CreateTravel(ctx context.Context, e TravelEntry) (int64, error)
}

// Transactor is implemented by ledgers that can scope a batch of creates in
// one transaction. fn receives a ledger bound to the transaction; returning an
// error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(Ledger) error) error
}

// LineItem is a mapped, category-specific line item ready to persist.
// Only the entry types in this package implement it.
type LineItem interface {
	Category() Category
	save(ctx context.Context, l Ledger) (int64, error)
}

func (e PersonnelEntry) Category() Category { return Personnel }
func (e EquipmentEntry) Category() Category { return EquipmentSoftware }
func (e TechServiceEntry) Category() Category { return TechnologyServices }
func (e MaterialsEntry) Category() Category { return MaterialsSupplies }
func (e TrainingEntry) Category() Category { return TrainingEvents }
func (e TravelEntry) Category() Category { return Travel }

func (e PersonnelEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreatePersonnel(ctx, e)
}

func (e EquipmentEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreateEquipment(ctx, e)
}

func (e TechServiceEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreateTechService(ctx, e)
}

func (e MaterialsEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreateMaterials(ctx, e)
}

func (e TrainingEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreateTraining(ctx, e)
}

func (e TravelEntry) save(ctx context.Context, l Ledger) (int64, error) {
	return l.CreateTravel(ctx, e)
}
