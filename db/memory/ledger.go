// Package memory provides an in-process ledger used for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"research-budget/decision/ingestion"
)

// Ledger keeps created line items in memory
type Ledger struct {
	mu     sync.Mutex
	nextID int64
	items  []ingestion.LineItem
}

var (
	_ ingestion.Ledger     = (*Ledger)(nil)
	_ ingestion.Transactor = (*Ledger)(nil)
)

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// Items returns a copy of every stored line item in creation order
func (l *Ledger) Items() []ingestion.LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ingestion.LineItem(nil), l.items...)
}

// CountByCategory tallies stored items per category
func (l *Ledger) CountByCategory() map[ingestion.Category]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[ingestion.Category]int)
	for _, item := range l.items {
		counts[item.Category()]++
	}
	return counts
}

func (l *Ledger) reserveID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	return l.nextID
}

func (l *Ledger) add(item ingestion.LineItem) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.items = append(l.items, item)
	return l.nextID, nil
}

func (l *Ledger) CreatePersonnel(_ context.Context, e ingestion.PersonnelEntry) (int64, error) {
	return l.add(e)
}

func (l *Ledger) CreateEquipment(_ context.Context, e ingestion.EquipmentEntry) (int64, error) {
	return l.add(e)
}

func (l *Ledger) CreateTechService(_ context.Context, e ingestion.TechServiceEntry) (int64, error) {
	return l.add(e)
}

func (l *Ledger) CreateMaterials(_ context.Context, e ingestion.MaterialsEntry) (int64, error) {
	return l.add(e)
}

func (l *Ledger) CreateTraining(_ context.Context, e ingestion.TrainingEntry) (int64, error) {
	return l.add(e)
}

func (l *Ledger) CreateTravel(_ context.Context, e ingestion.TravelEntry) (int64, error) {
	return l.add(e)
}

// InTx stages creates made through fn and publishes them only when fn
// succeeds. Rows written by other callers meanwhile are never touched. Ids are
// reserved at create time and not reused after a rollback.
func (l *Ledger) InTx(_ context.Context, fn func(ingestion.Ledger) error) error {
	staged := &stagingLedger{parent: l}
	if err := fn(staged); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, staged.items...)
	return nil
}

// stagingLedger buffers the creates of one InTx call
type stagingLedger struct {
	parent *Ledger
	items  []ingestion.LineItem
}

func (s *stagingLedger) add(item ingestion.LineItem) (int64, error) {
	s.items = append(s.items, item)
	return s.parent.reserveID(), nil
}

func (s *stagingLedger) CreatePersonnel(_ context.Context, e ingestion.PersonnelEntry) (int64, error) {
	return s.add(e)
}

func (s *stagingLedger) CreateEquipment(_ context.Context, e ingestion.EquipmentEntry) (int64, error) {
	return s.add(e)
}

func (s *stagingLedger) CreateTechService(_ context.Context, e ingestion.TechServiceEntry) (int64, error) {
	return s.add(e)
}

func (s *stagingLedger) CreateMaterials(_ context.Context, e ingestion.MaterialsEntry) (int64, error) {
	return s.add(e)
}

func (s *stagingLedger) CreateTraining(_ context.Context, e ingestion.TrainingEntry) (int64, error) {
	return s.add(e)
}

func (s *stagingLedger) CreateTravel(_ context.Context, e ingestion.TravelEntry) (int64, error) {
	return s.add(e)
}
