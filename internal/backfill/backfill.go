// Package backfill implements the Backfill stage: repairing ArchItems whose
// embedding is null (spec.md §4.3).
package backfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"review-rag/internal/domain"
	"review-rag/internal/embedclient"
	"review-rag/internal/metrics"
	"review-rag/internal/storage"
)

const stageName = "backfill"

// Summary is the terminal summary line Backfill prints (spec.md §7).
type Summary struct {
	Updated int
	Skipped int
}

// Run embeds every ArchItem with a null embedding and updates it in place.
// The store's UpdateEmbedding guards on "embedding IS NULL", so this is safe
// to re-run (I5/P4).
func Run(ctx context.Context, repo storage.Repository, embed embedclient.Client) (Summary, error) {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(start).Seconds()) }()

	rows, err := repo.RowsWithNullEmbedding(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("query rows with null embedding: %w", err)
	}

	var summary Summary
	for _, row := range rows {
		text := CanonicalText(row)
		vec, err := embed.Embed(ctx, text)
		if err != nil {
			summary.Skipped++
			metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
			continue
		}
		if err := repo.UpdateEmbedding(ctx, row.ID, vec); err != nil {
			summary.Skipped++
			metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
			continue
		}
		summary.Updated++
		metrics.StageRecordsTotal.WithLabelValues(stageName, "updated").Inc()
	}
	return summary, nil
}

// CanonicalText renders an ArchItem as a labeled-field text block for
// embedding, per spec.md §4.3: "repo, pr, file, comment, diff, summary,
// evidence joined with field labels."
func CanonicalText(item domain.ArchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "repo: %s\n", item.Repo)
	fmt.Fprintf(&b, "pr: %d\n", item.PR)
	fmt.Fprintf(&b, "file: %s\n", item.FilePath)
	fmt.Fprintf(&b, "comment: %s\n", item.Comment)
	fmt.Fprintf(&b, "diff: %s\n", item.Diff)
	fmt.Fprintf(&b, "summary: %s\n", item.ArchSummary)
	fmt.Fprintf(&b, "evidence: %s\n", item.Evidence)
	return b.String()
}
