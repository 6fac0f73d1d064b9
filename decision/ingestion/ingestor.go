package ingestion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	bperrors "research-budget/pkg/errors"
)

// Summary messages
const (
	MessageNothingSaved   = "No budget items were saved"
	MessagePartiallySaved = "Budget items partially saved"
	MessageSaved          = "Budget items saved successfully"
)

// IngestionSummary reports what one Ingest call persisted
type IngestionSummary struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	ItemsCreated     int            `json:"itemsCreated"`
	ItemsPerCategory map[string]int `json:"itemsPerCategory"`
	Errors           []string       `json:"errors"`
}

// CategoryResult is the outcome of processing one category group
type CategoryResult struct {
	Tag       string
	Category  Category
	Known     bool
	Attempted int
	Created   int
	Records   []Record
	Err       *bperrors.BudgetError
}

// ErrorString formats the group error for the summary
func (r CategoryResult) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	if r.Err.Code == bperrors.ErrCodeUnknownCategory {
		return r.Err.Message
	}
	return fmt.Sprintf("%s: %s", r.Tag, r.Err.Message)
}

type group struct {
	tag      string
	category Category
	known    bool
	items    []ExtractedBudgetItem
}

// Option configures an Ingestor
type Option func(*Ingestor)

// WithLogger sets the ingestor's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Ingestor) {
		in.logger = logger
	}
}

// WithAtomicCategories runs each category batch in one ledger transaction when
// the ledger implements Transactor. A failure then discards the whole category.
func WithAtomicCategories() Option {
	return func(in *Ingestor) {
		in.atomic = true
	}
}

// Ingestor groups extracted items by category and persists them
type Ingestor struct {
	table  *DispatchTable
	ledger Ledger
	logger zerolog.Logger
	atomic bool
}

// NewIngestor creates an ingestor writing through ledger
func NewIngestor(ledger Ledger, table *DispatchTable, opts ...Option) *Ingestor {
	in := &Ingestor{
		table:  table,
		ledger: ledger,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With().Str("component", "ingestion").Logger()
	return in
}

// Ingest persists items for activityID. It never fails: unknown categories and
// ledger errors are folded into the returned summary. Groups are processed
// sequentially in order of first appearance, and items already created in a
// failing group are kept unless atomic categories are enabled.
func (in *Ingestor) Ingest(ctx context.Context, items []ExtractedBudgetItem, activityID int64) IngestionSummary {
	summary := IngestionSummary{
		ItemsPerCategory: make(map[string]int),
		Errors:           make([]string, 0),
	}

	for _, g := range groupItems(items) {
		result := in.processGroup(ctx, g, activityID)

		if result.Created > 0 {
			summary.ItemsPerCategory[result.Tag] += result.Created
			summary.ItemsCreated += result.Created
		}
		if result.Err != nil {
			summary.Errors = append(summary.Errors, result.ErrorString())
		}
	}

	summary.Success = summary.ItemsCreated > 0
	switch {
	case summary.ItemsCreated == 0:
		summary.Message = MessageNothingSaved
	case len(summary.Errors) > 0:
		summary.Message = MessagePartiallySaved
	default:
		summary.Message = MessageSaved
	}

	in.logger.Info().
		Int64("activity_id", activityID).
		Int("items", len(items)).
		Int("created", summary.ItemsCreated).
		Int("errors", len(summary.Errors)).
		Msg("Extracted budget items ingested")

	return summary
}

func groupItems(items []ExtractedBudgetItem) []*group {
	groups := make([]*group, 0)
	byKey := make(map[string]*group)

	for _, item := range items {
		c, known := ParseCategory(item.Category)
		key := item.Category
		if known {
			key = c.String()
		}

		g, ok := byKey[key]
		if !ok {
			g = &group{tag: key, category: c, known: known}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, item)
	}
	return groups
}

func (in *Ingestor) processGroup(ctx context.Context, g *group, activityID int64) CategoryResult {
	result := CategoryResult{Tag: g.tag, Category: g.category, Known: g.known}

	if !g.known {
		result.Err = bperrors.NewUnknownCategoryError(g.tag)
		in.logger.Warn().Str("category", g.tag).Int("items", len(g.items)).Msg("Skipping unknown budget category")
		return result
	}

	tx, transactional := in.ledger.(Transactor)
	if !in.atomic || !transactional {
		err := in.saveAll(ctx, in.ledger, g, activityID, &result)
		if err != nil {
			result.Err = bperrors.NewPersistenceError(g.tag, err)
		}
		in.logGroup(result)
		return result
	}

	err := runInTx(ctx, tx, func(l Ledger) error {
		return in.saveAll(ctx, l, g, activityID, &result)
	})
	if err != nil {
		result.Created = 0
		result.Records = nil
		result.Err = bperrors.NewPersistenceError(g.tag, err)
	}
	in.logGroup(result)
	return result
}

// runInTx turns a panic raised by the transactor itself into an error
func runInTx(ctx context.Context, tx Transactor, fn func(Ledger) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()
	return tx.InTx(ctx, fn)
}

// saveAll stops at the first failing item
func (in *Ingestor) saveAll(ctx context.Context, ledger Ledger, g *group, activityID int64, result *CategoryResult) error {
	for _, item := range g.items {
		result.Attempted++
		record, err := in.dispatchOne(ctx, ledger, g.category, item, activityID)
		if err != nil {
			return err
		}
		result.Created++
		result.Records = append(result.Records, record)
	}
	return nil
}

func (in *Ingestor) dispatchOne(ctx context.Context, ledger Ledger, c Category, item ExtractedBudgetItem, activityID int64) (record Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while saving %s item: %v", c, r)
		}
	}()
	return in.table.Dispatch(ctx, ledger, c, item, activityID)
}

func (in *Ingestor) logGroup(result CategoryResult) {
	if result.Err != nil {
		in.logger.Warn().
			Str("category", result.Tag).
			Int("attempted", result.Attempted).
			Int("created", result.Created).
			Err(result.Err).
			Msg("Budget category ingestion failed")
		return
	}
	in.logger.Debug().
		Str("category", result.Tag).
		Int("created", result.Created).
		Msg("Budget category ingested")
}
