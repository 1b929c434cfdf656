package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"review-rag/internal/domain"
)

// PostgresRepository implements Repository against a Postgres database with
// the pgvector extension, matching the declared schema in spec.md §6.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn and ensures the arch_items schema
// exists with embedding column dimension dim.
func NewPostgresRepository(ctx context.Context, dsn string, dim int) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := bootstrap(ctx, pool, dim); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func bootstrap(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS arch_items (
			id serial primary key,
			repo text NOT NULL,
			pr integer NOT NULL,
			filepath text NOT NULL DEFAULT '',
			comment text NOT NULL,
			diff text NOT NULL DEFAULT '',
			concerns jsonb NOT NULL DEFAULT '[]',
			arch_summary text NOT NULL DEFAULT '',
			evidence text NOT NULL DEFAULT '',
			embedding vector(%d)
		)`, dim),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_arch_items_identity ON arch_items (repo, pr, filepath, comment)`,
		`CREATE INDEX IF NOT EXISTS idx_arch_items_repo_pr ON arch_items (repo, pr)`,
		`CREATE INDEX IF NOT EXISTS idx_arch_items_concerns ON arch_items USING gin (concerns)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s, err)
		}
	}
	return nil
}

// FilterNew implements Repository using a temp-table anti-join: one COPY of
// all records and one anti-join query, regardless of len(records).
func (r *PostgresRepository) FilterNew(ctx context.Context, records []domain.ReviewRecord) ([]domain.ReviewRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE incoming (
			idx integer,
			repo text,
			pr integer,
			filepath text,
			comment text
		) ON COMMIT DROP`); err != nil {
		return nil, fmt.Errorf("create temp table: %w", err)
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{i, rec.Repo, rec.PR, rec.FilePath, rec.CommentBody}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"incoming"},
		[]string{"idx", "repo", "pr", "filepath", "comment"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return nil, fmt.Errorf("copy incoming: %w", err)
	}

	result, err := tx.Query(ctx, `
		SELECT incoming.idx
		FROM incoming
		LEFT JOIN arch_items
			ON arch_items.repo = incoming.repo
			AND arch_items.pr = incoming.pr
			AND arch_items.filepath = incoming.filepath
			AND arch_items.comment = incoming.comment
		WHERE arch_items.id IS NULL
		ORDER BY incoming.idx`)
	if err != nil {
		return nil, fmt.Errorf("anti-join query: %w", err)
	}

	var newIdx []int
	for result.Next() {
		var idx int
		if err := result.Scan(&idx); err != nil {
			result.Close()
			return nil, fmt.Errorf("scan anti-join row: %w", err)
		}
		newIdx = append(newIdx, idx)
	}
	result.Close()
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("anti-join rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := make([]domain.ReviewRecord, 0, len(newIdx))
	for _, idx := range newIdx {
		out = append(out, records[idx])
	}
	return out, nil
}

// InsertArchItem implements Repository, one row per transaction.
func (r *PostgresRepository) InsertArchItem(ctx context.Context, item *domain.ArchItem) error {
	concernsJSON, err := json.Marshal(item.Concerns)
	if err != nil {
		return fmt.Errorf("marshal concerns: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO arch_items (repo, pr, filepath, comment, diff, concerns, arch_summary, evidence, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (repo, pr, filepath, comment) DO NOTHING
		RETURNING id`,
		item.Repo, item.PR, item.FilePath, item.Comment, item.Diff,
		string(concernsJSON), item.ArchSummary, item.Evidence, vectorLiteral(item.Embedding),
	).Scan(&item.ID)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("insert arch_item: %w", err)
	}

	return tx.Commit(ctx)
}

// RowsWithNullEmbedding implements Repository.
func (r *PostgresRepository) RowsWithNullEmbedding(ctx context.Context) ([]domain.ArchItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, repo, pr, filepath, comment, diff, concerns, arch_summary, evidence
		FROM arch_items
		WHERE embedding IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query null embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchItem
	for rows.Next() {
		var item domain.ArchItem
		var concernsJSON string
		if err := rows.Scan(&item.ID, &item.Repo, &item.PR, &item.FilePath, &item.Comment,
			&item.Diff, &concernsJSON, &item.ArchSummary, &item.Evidence); err != nil {
			return nil, fmt.Errorf("scan null embedding row: %w", err)
		}
		_ = json.Unmarshal([]byte(concernsJSON), &item.Concerns)
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateEmbedding implements Repository. The WHERE clause guard is what
// makes I5/P4 hold even under a re-run.
func (r *PostgresRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE arch_items SET embedding = $1 WHERE id = $2 AND embedding IS NULL`,
		vectorLiteral(embedding), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// AllForChunkedDistill implements Repository.
func (r *PostgresRepository) AllForChunkedDistill(ctx context.Context) ([]domain.ArchItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, concerns, arch_summary, evidence
		FROM arch_items
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query for chunked distill: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchItem
	for rows.Next() {
		var item domain.ArchItem
		var concernsJSON string
		if err := rows.Scan(&item.ID, &concernsJSON, &item.ArchSummary, &item.Evidence); err != nil {
			return nil, fmt.Errorf("scan chunked distill row: %w", err)
		}
		_ = json.Unmarshal([]byte(concernsJSON), &item.Concerns)
		out = append(out, item)
	}
	return out, rows.Err()
}

// AllEmbedded implements Repository.
func (r *PostgresRepository) AllEmbedded(ctx context.Context) ([]domain.ArchItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, repo, pr, filepath, comment, diff, concerns, arch_summary, evidence, embedding::text
		FROM arch_items
		WHERE embedding IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query embedded rows: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchItem
	for rows.Next() {
		var item domain.ArchItem
		var concernsJSON string
		var vecText string
		if err := rows.Scan(&item.ID, &item.Repo, &item.PR, &item.FilePath, &item.Comment,
			&item.Diff, &concernsJSON, &item.ArchSummary, &item.Evidence, &vecText); err != nil {
			return nil, fmt.Errorf("scan embedded row: %w", err)
		}
		_ = json.Unmarshal([]byte(concernsJSON), &item.Concerns)
		vec, err := parseVectorLiteral(vecText)
		if err != nil {
			return nil, fmt.Errorf("parse embedding for id=%d: %w", item.ID, err)
		}
		item.Embedding = vec
		out = append(out, item)
	}
	return out, rows.Err()
}

// Close implements Repository.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// vectorLiteral renders a float32 slice as a pgvector text literal, e.g.
// "[0.1,0.2,0.3]". A nil/empty slice renders as SQL NULL.
func vectorLiteral(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
