package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"review-rag/internal/backfill"
	"review-rag/internal/embedclient"
	"review-rag/internal/storage"
)

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Repair ArchItems with a missing embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			repo, err := storage.NewPostgresRepository(ctx, cfg.Storage.DSN, cfg.Embedding.Dimension)
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer repo.Close()

			embed := embedclient.New(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model)

			start := time.Now()
			summary, err := backfill.Run(ctx, repo, embed)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}

			slog.Info("backfill complete", "updated", summary.Updated, "skipped", summary.Skipped, "elapsed", time.Since(start))
			fmt.Printf("backfill: %d updated, %d skipped, %s elapsed\n",
				summary.Updated, summary.Skipped, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	return cmd
}
