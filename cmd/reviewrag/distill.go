package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"review-rag/internal/distill"
	"review-rag/internal/llmclient"
	"review-rag/internal/promptloader"
	"review-rag/internal/storage"
)

func newDistillCmd() *cobra.Command {
	var (
		strategy   string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "distill",
		Short: "Synthesize the enriched store into a guideline corpus, via the chunked or clustered strategy",
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
			prompts := promptloader.New(cfg.Prompts.Dir)

			start := time.Now()
			var summary distill.Summary

			switch strategy {
			case "chunked":
				gs, s, err := distill.RunChunked(ctx, repo, llm, prompts, cfg)
				if err != nil {
					return fmt.Errorf("distill (chunked) failed: %w", err)
				}
				summary = s
				if err := distill.WriteGuidelines(outputPath, gs); err != nil {
					return fmt.Errorf("write guideline file: %w", err)
				}
			case "clustered":
				gs, s, err := distill.RunClustered(ctx, repo, llm, prompts)
				if err != nil {
					return fmt.Errorf("distill (clustered) failed: %w", err)
				}
				summary = s
				if err := distill.WriteGuidelines(outputPath, gs); err != nil {
					return fmt.Errorf("write guideline file: %w", err)
				}
			default:
				return fmt.Errorf("--strategy must be chunked or clustered, got %q", strategy)
			}

			slog.Info("distill complete",
				"strategy", strategy, "guidelines", summary.GuidelinesEmitted,
				"chunks_or_clusters", summary.ChunksOrClusters, "skipped", summary.Skipped, "elapsed", time.Since(start))
			fmt.Printf("distill (%s): %d guidelines from %d chunks/clusters, %d skipped, %s elapsed\n",
				strategy, summary.GuidelinesEmitted, summary.ChunksOrClusters, summary.Skipped, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "chunked", "distillation strategy: chunked or clustered")
	cmd.Flags().StringVar(&outputPath, "output", "guidelines.json", "path to write the guideline corpus JSON array")

	return cmd
}
