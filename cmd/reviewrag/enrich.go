package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"review-rag/internal/embedclient"
	"review-rag/internal/enrich"
	"review-rag/internal/llmclient"
	"review-rag/internal/promptloader"
	"review-rag/internal/storage"
)

func newEnrichCmd() *cobra.Command {
	var (
		recordPath string
		timingDir  string
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Classify, summarize, embed, and persist new review records into the store",
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

			llm := llmclient.New(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model)
			embed := embedclient.New(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model)
			prompts := promptloader.New(cfg.Prompts.Dir)

			start := time.Now()
			summary, err := enrich.Run(ctx, repo, llm, embed, prompts, cfg, recordPath, timingDir, start)
			if err != nil {
				return fmt.Errorf("enrich failed: %w", err)
			}

			slog.Info("enrich complete",
				"inserted", summary.Inserted, "skipped", summary.Skipped,
				"skipped_reasons", summary.SkippedReasons, "elapsed", time.Since(start))
			fmt.Printf("enrich: %d inserted, %d skipped (%v), %s elapsed\n",
				summary.Inserted, summary.Skipped, summary.SkippedReasons, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&recordPath, "input", "records.ndjson", "path to the record file written by collect")
	cmd.Flags().StringVar(&timingDir, "timing-dir", "logs", "directory for per-record timing logs")

	return cmd
}
