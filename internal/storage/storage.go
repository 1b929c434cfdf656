// Package storage is the hybrid relational+vector store (spec.md §6): the
// arch_items table plus the schema-lifecycle metadata the validator and
// migrator inspect.
package storage

import (
	"context"

	"review-rag/internal/domain"
)

// Repository is the store interface every stage depends on. All methods are
// safe to call concurrently except where documented (spec.md §5: Enrich
// and Backfill must not run concurrently against overlapping row sets).
type Repository interface {
	// FilterNew returns the subset of records whose (repo, pr, file_path,
	// comment) tuple does not already exist in arch_items, preserving the
	// input order. It takes a fixed number of round trips regardless of
	// len(records) (spec.md §4.2).
	FilterNew(ctx context.Context, records []domain.ReviewRecord) ([]domain.ReviewRecord, error)

	// InsertArchItem persists one fully-enriched ArchItem in its own
	// transaction (spec.md §4.2: partial runs leave a consistent store).
	InsertArchItem(ctx context.Context, item *domain.ArchItem) error

	// RowsWithNullEmbedding returns every ArchItem with a null embedding,
	// for Backfill.
	RowsWithNullEmbedding(ctx context.Context) ([]domain.ArchItem, error)

	// UpdateEmbedding sets the embedding for id, but only if it is
	// currently null (I5 / P4: backfill never overwrites a populated
	// embedding).
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error

	// AllForChunkedDistill returns concerns/arch_summary/evidence for every
	// row, ordered by id for deterministic chunk boundaries.
	AllForChunkedDistill(ctx context.Context) ([]domain.ArchItem, error)

	// AllEmbedded returns every row with a non-null embedding, for
	// clustered distillation's dimension-reconciliation step.
	AllEmbedded(ctx context.Context) ([]domain.ArchItem, error)

	// Close releases the store's connections.
	Close() error
}
