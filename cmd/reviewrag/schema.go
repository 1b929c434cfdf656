package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"review-rag/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Validate or migrate the hybrid store's schema against the declared shape",
	}
	cmd.AddCommand(newSchemaValidateCmd(), newSchemaMigrateCmd())
	return cmd
}

func newSchemaValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compare the live arch_items schema against the declared shape and exit non-zero on any divergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer pool.Close()

			mismatches, err := schema.NewValidator(pool).Validate(ctx, cfg.Embedding.Dimension)
			if err != nil {
				return fmt.Errorf("validate schema: %w", err)
			}

			if len(mismatches) == 0 {
				fmt.Println("schema validate: OK, no divergence")
				return nil
			}

			fmt.Println("schema validate: divergence found")
			fmt.Printf("%-16s %-20s %-20s\n", "column", "declared", "live")
			for _, m := range mismatches {
				fmt.Printf("%-16s %-20s %-20s\n", m.Column, m.Declared, m.Live)
			}
			// Returning an error (rather than calling os.Exit here) lets the
			// deferred pool.Close and cleanup run; main exits non-zero.
			return fmt.Errorf("schema divergence: %d mismatched column(s)", len(mismatches))
		},
	}
}

func newSchemaMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the minimal corrective DDL for every declared/live schema mismatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer pool.Close()

			mismatches, err := schema.NewValidator(pool).Validate(ctx, cfg.Embedding.Dimension)
			if err != nil {
				return fmt.Errorf("validate schema: %w", err)
			}
			if len(mismatches) == 0 {
				fmt.Println("schema migrate: already up to date")
				return nil
			}

			applied, err := schema.NewMigrator(pool).Migrate(ctx, mismatches)
			if err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}

			for _, stmt := range applied {
				fmt.Println(stmt)
			}
			for _, m := range mismatches {
				if m.Column == "embedding" {
					fmt.Println("embedding column dimension changed: run `reviewrag backfill` to repopulate invalidated vectors")
				}
			}
			return nil
		},
	}
}
