// Package distill implements both Distill strategies (spec.md §4.4, §4.5):
// fixed-size chunking and embedding-based clustering, sharing the JSON
// extraction and prompt-rendering plumbing.
package distill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"review-rag/internal/config"
	"review-rag/internal/domain"
	"review-rag/internal/jsonextract"
	"review-rag/internal/llmclient"
	"review-rag/internal/metrics"
	"review-rag/internal/promptloader"
	"review-rag/internal/storage"
)

// Summary is the terminal summary line Distill prints (spec.md §7).
type Summary struct {
	GuidelinesEmitted int
	ChunksOrClusters  int
	Skipped           int
}

// RunChunked implements the Chunked strategy. Rows are ordered by id for
// determinism, partitioned into contiguous fixed-size chunks, and each
// chunk issues one LLM call. No cross-chunk deduplication is performed
// (spec.md §9 open question, resolved in DESIGN.md: current behavior kept).
func RunChunked(ctx context.Context, repo storage.Repository, llm llmclient.Client, prompts *promptloader.Loader, cfg *config.Config) ([]domain.Guideline, Summary, error) {
	const stage = "distill_chunked"
	runStart := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(runStart).Seconds()) }()

	rows, err := repo.AllForChunkedDistill(ctx)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("query rows for chunked distill: %w", err)
	}

	chunkSize := cfg.Distill.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}

	var guidelines []domain.Guideline
	var summary Summary

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		summary.ChunksOrClusters++

		found, err := distillFindings(ctx, llm, prompts, "distill_chunked", chunk, nil)
		if err != nil {
			slog.Warn("skipping chunk, failed to distill", "chunk_start", start, "chunk_size", len(chunk), "error", err)
			summary.Skipped++
			metrics.StageRecordsTotal.WithLabelValues(stage, "skipped").Inc()
			continue
		}

		guidelines = append(guidelines, found...)
		summary.GuidelinesEmitted += len(found)
		metrics.StageRecordsTotal.WithLabelValues(stage, "distilled").Inc()
	}

	return guidelines, summary, nil
}

// renderFindings formats a slice of ArchItems as the labeled-field text
// block every distillation prompt embeds.
func renderFindings(rows []domain.ArchItem) string {
	var b strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. concerns=%s\n   summary: %s\n   evidence: %s\n",
			i+1, strings.Join(row.Concerns, ","), row.ArchSummary, row.Evidence)
	}
	return b.String()
}

// distillFindings renders the findings, issues one LLM call against the
// named prompt template, and extracts the resulting guideline array. When
// clusterID is non-nil, every returned guideline is tagged with it.
func distillFindings(ctx context.Context, llm llmclient.Client, prompts *promptloader.Loader, promptName string, rows []domain.ArchItem, clusterID *int) ([]domain.Guideline, error) {
	prompt, err := prompts.Load(promptName, struct{ Findings string }{Findings: renderFindings(rows)})
	if err != nil {
		return nil, fmt.Errorf("load %s prompt: %w", promptName, err)
	}

	resp, err := llm.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("llm distill call: %w", err)
	}

	var guidelines []domain.Guideline
	if err := jsonextract.ExtractArray(resp, &guidelines); err != nil {
		return nil, fmt.Errorf("extract guidelines: %w", err)
	}

	if clusterID != nil {
		for i := range guidelines {
			id := *clusterID
			guidelines[i].ClusterID = &id
		}
	}
	return guidelines, nil
}
