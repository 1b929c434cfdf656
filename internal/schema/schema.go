// Package schema implements the cross-cutting schema lifecycle utilities
// (spec.md §4.8): a validator that compares the live arch_items table
// against the declared shape, and a migrator that applies minimal
// corrective DDL, including vector-column dimension changes.
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Column is one declared column of arch_items (spec.md §6's DDL block).
type Column struct {
	Name string
	Type string // compact type name, compared to format_type output after normalizeType
}

// Declared returns the target shape of arch_items for embedding dimension
// dim, mirroring spec.md §6 verbatim.
func Declared(dim int) []Column {
	return []Column{
		{Name: "id", Type: "integer"},
		{Name: "repo", Type: "text"},
		{Name: "pr", Type: "integer"},
		{Name: "filepath", Type: "text"},
		{Name: "comment", Type: "text"},
		{Name: "diff", Type: "text"},
		{Name: "concerns", Type: "jsonb"},
		{Name: "arch_summary", Type: "text"},
		{Name: "evidence", Type: "text"},
		{Name: "embedding", Type: fmt.Sprintf("vector(%d)", dim)},
	}
}

// Mismatch describes one divergence between the declared and live schema.
type Mismatch struct {
	Column   string
	Declared string
	Live     string
}

// Validator compares arch_items' live columns against the declared shape.
// It deliberately does not check for the approximate-nearest-neighbor
// index on embedding (spec.md §9 open question: recommended in prose, not
// part of the declared schema) — validation is column-shape only.
type Validator struct {
	pool *pgxpool.Pool
}

// NewValidator creates a Validator against an existing connection pool.
func NewValidator(pool *pgxpool.Pool) *Validator {
	return &Validator{pool: pool}
}

// Validate reports every mismatch between the declared schema at dimension
// dim and the live arch_items table. A missing column is reported with a
// live type of "<missing>". An empty result means the schema is valid
// (spec.md §4.8: "exits non-zero on any divergence" is the caller's job,
// not this function's).
func (v *Validator) Validate(ctx context.Context, dim int) ([]Mismatch, error) {
	live, err := v.liveColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("read live schema: %w", err)
	}

	var mismatches []Mismatch
	for _, col := range Declared(dim) {
		liveType, ok := live[col.Name]
		if !ok {
			mismatches = append(mismatches, Mismatch{Column: col.Name, Declared: col.Type, Live: "<missing>"})
			continue
		}
		if !typesEquivalent(col.Type, liveType) {
			mismatches = append(mismatches, Mismatch{Column: col.Name, Declared: col.Type, Live: liveType})
		}
	}
	return mismatches, nil
}

// liveColumns queries pg_catalog (pg_attribute joined to pg_class) for
// arch_items' actual column types, rendered by format_type, which spells the
// embedding column as "vector(N)" from pgvector's type modifier.
func (v *Validator) liveColumns(ctx context.Context) (map[string]string, error) {
	rows, err := v.pool.Query(ctx, `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		WHERE c.relname = 'arch_items'
		  AND a.attnum > 0
		  AND NOT a.attisdropped`)
	if err != nil {
		return nil, fmt.Errorf("query pg_attribute: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, formatted string
		if err := rows.Scan(&name, &formatted); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out[name] = normalizeType(formatted)
	}
	return out, rows.Err()
}

// normalizeType collapses Postgres' verbose type spellings ("character
// varying", "integer" reported as "int4", etc.) into the compact forms
// Declared uses, so a semantically-equivalent live column never reports a
// spurious mismatch.
func normalizeType(t string) string {
	switch t {
	case "character varying", "varchar":
		return "text"
	case "int4", "int", "serial":
		return "integer"
	case "jsonb":
		return "jsonb"
	default:
		return t
	}
}

func typesEquivalent(declared, live string) bool {
	return normalizeType(declared) == normalizeType(live)
}

// Migrator applies minimal corrective DDL for every Mismatch a Validator
// reports. It never drops rows; a dimension change invalidates existing
// vectors and the caller must run Backfill afterward (spec.md §4.8).
type Migrator struct {
	pool *pgxpool.Pool
}

// NewMigrator creates a Migrator against an existing connection pool.
func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Migrate applies the minimal ALTER statement for each mismatch. Unknown
// (missing) columns are not added here — a missing column indicates the
// store was never bootstrapped, which NewPostgresRepository already
// handles; Migrate only corrects type/dimension drift on existing columns.
func (m *Migrator) Migrate(ctx context.Context, mismatches []Mismatch) ([]string, error) {
	var applied []string
	for _, mm := range mismatches {
		if mm.Live == "<missing>" {
			continue
		}
		stmt := alterStatement(mm)
		if stmt == "" {
			continue
		}
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return applied, fmt.Errorf("exec %q: %w", stmt, err)
		}
		applied = append(applied, stmt)
	}
	return applied, nil
}

func alterStatement(mm Mismatch) string {
	if mm.Column == "embedding" {
		return fmt.Sprintf(`ALTER TABLE arch_items ALTER COLUMN embedding TYPE %s USING NULL::%s`, mm.Declared, mm.Declared)
	}
	return fmt.Sprintf(`ALTER TABLE arch_items ALTER COLUMN %s TYPE %s`, mm.Column, mm.Declared)
}
