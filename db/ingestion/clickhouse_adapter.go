// Package ingestion loads extracted invoice lines into the price history.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pg-png/wwithai-foodcost-sentinel/db/clickhouse"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// DefaultBatchSize bounds one insert.
const DefaultBatchSize = 1000

// HistoryStore is the part of the ClickHouse store ingestion needs.
type HistoryStore interface {
	FindBatchByHash(ctx context.Context, hash string) (*clickhouse.Batch, error)
	CreateBatch(ctx context.Context, b *clickhouse.Batch) error
	BulkInsertLines(ctx context.Context, batchID uuid.UUID, items []api.InvoiceLineItem) error
}

var _ HistoryStore = (*clickhouse.Store)(nil)

// ClickHouseAdapter writes invoice batches to ClickHouse
type ClickHouseAdapter struct {
	store     HistoryStore
	batchSize int
}

// NewClickHouseAdapter creates a new ClickHouse adapter
func NewClickHouseAdapter(store HistoryStore) *ClickHouseAdapter {
	return &ClickHouseAdapter{store: store, batchSize: DefaultBatchSize}
}

// WithBatchSize sets the insert batch size
func (a *ClickHouseAdapter) WithBatchSize(n int) *ClickHouseAdapter {
	if n > 0 {
		a.batchSize = n
	}
	return a
}

// IngestionInput contains the invoice lines to ingest
type IngestionInput struct {
	Source    string
	Supplier  string
	FetchedAt time.Time
	Items     []api.InvoiceLineItem
}

// IngestionResult tracks the result of an ingestion
type IngestionResult struct {
	BatchID   uuid.UUID     `json:"batch_id"`
	Source    string        `json:"source"`
	Hash      string        `json:"hash"`
	LineCount int           `json:"line_count"`
	Skipped   int           `json:"skipped"`
	Duplicate bool          `json:"duplicate"`
	Duration  time.Duration `json:"duration"`
}

// Ingest stores a batch of invoice lines. A batch whose content hash is
// already stored is skipped. Lines without a product name or with a
// negative price are dropped.
func (a *ClickHouseAdapter) Ingest(ctx context.Context, input IngestionInput) (*IngestionResult, error) {
	start := time.Now()
	items := make([]api.InvoiceLineItem, 0, len(input.Items))
	for _, it := range input.Items {
		if api.Key(it.ProductName) == "" || it.UnitPrice < 0 {
			continue
		}
		if it.Supplier == "" {
			it.Supplier = input.Supplier
		}
		items = append(items, it)
	}

	result := &IngestionResult{
		Source:  input.Source,
		Hash:    clickhouse.HashItems(items),
		Skipped: len(input.Items) - len(items),
	}

	existing, err := a.store.FindBatchByHash(ctx, result.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.BatchID = existing.ID
		result.Duplicate = true
		result.Duration = time.Since(start)
		log.Info().Str("source", input.Source).Str("batch", existing.ID.String()).Msg("Batch already ingested")
		return result, nil
	}

	fetched := input.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	batch := &clickhouse.Batch{
		ID:        uuid.New(),
		Source:    input.Source,
		Supplier:  input.Supplier,
		FetchedAt: fetched,
		Hash:      result.Hash,
		LineCount: uint32(len(items)),
	}
	if err := a.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	result.BatchID = batch.ID

	for i := 0; i < len(items); i += a.batchSize {
		end := i + a.batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := a.store.BulkInsertLines(ctx, batch.ID, items[i:end]); err != nil {
			return result, fmt.Errorf("failed to insert lines at batch %d: %w", i/a.batchSize, err)
		}
		result.LineCount += end - i
	}

	result.Duration = time.Since(start)
	log.Info().
		Str("source", input.Source).
		Str("batch", batch.ID.String()).
		Int("lines", result.LineCount).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("Ingested invoice lines")
	return result, nil
}
