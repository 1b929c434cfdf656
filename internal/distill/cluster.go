package distill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"review-rag/internal/domain"
	"review-rag/internal/llmclient"
	"review-rag/internal/metrics"
	"review-rag/internal/promptloader"
	"review-rag/internal/storage"
)

// maxClusterMembers bounds the per-cluster context budget handed to the LLM
// (spec.md §4.5 step 5: "truncate to the first 40 members").
const maxClusterMembers = 40

// SelectK implements the stepwise cluster-count rule (spec.md §4.5 step 3).
func SelectK(n int) int {
	switch {
	case n <= 10:
		return 3
	case n <= 40:
		return 5
	case n <= 120:
		return 7
	default:
		k := n / 20
		if k < 8 {
			k = 8
		}
		if k > 12 {
			k = 12
		}
		return k
	}
}

// reconcileDimensions finds the modal embedding length across rows and
// returns only the rows matching it, logging how many were dropped per
// off-modal dimension (spec.md §4.5 step 2, §7 class 4).
func reconcileDimensions(rows []domain.ArchItem) (kept []domain.ArchItem, modalDim int) {
	counts := map[int]int{}
	for _, r := range rows {
		counts[len(r.Embedding)]++
	}

	for dim, count := range counts {
		if count > counts[modalDim] {
			modalDim = dim
		}
	}

	dropped := map[int]int{}
	for _, r := range rows {
		if len(r.Embedding) == modalDim {
			kept = append(kept, r)
		} else {
			dropped[len(r.Embedding)]++
		}
	}
	for dim, count := range dropped {
		slog.Info("dropped rows with off-modal embedding dimension", "dimension", dim, "count", count, "modal_dimension", modalDim)
	}
	return kept, modalDim
}

// RunClustered implements the Clustered strategy end-to-end.
func RunClustered(ctx context.Context, repo storage.Repository, llm llmclient.Client, prompts *promptloader.Loader) ([]domain.Guideline, Summary, error) {
	const stage = "distill_clustered"
	runStart := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(runStart).Seconds()) }()

	rows, err := repo.AllEmbedded(ctx)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("query embedded rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, Summary{}, nil
	}

	kept, modalDim := reconcileDimensions(rows)
	if len(kept) == 0 {
		return nil, Summary{}, nil
	}

	n := len(kept)
	k := SelectK(n)

	data := mat.NewDense(n, modalDim, nil)
	for i, row := range kept {
		vec := make([]float64, modalDim)
		for j, v := range row.Embedding {
			vec[j] = float64(v)
		}
		data.SetRow(i, vec)
	}

	result := KMeans(data, k)
	byCluster := map[int][]domain.ArchItem{}
	for i, c := range result.Assignments {
		byCluster[c] = append(byCluster[c], kept[i])
	}

	clusterIDs := make([]int, 0, len(byCluster))
	for c := range byCluster {
		clusterIDs = append(clusterIDs, c)
	}
	sort.Ints(clusterIDs) // ascending cluster-id order, spec.md §5

	var guidelines []domain.Guideline
	var summary Summary
	for _, c := range clusterIDs {
		members := byCluster[c]
		if len(members) > maxClusterMembers {
			members = members[:maxClusterMembers]
		}
		summary.ChunksOrClusters++

		id := c
		found, err := distillFindings(ctx, llm, prompts, "distill_clustered", members, &id)
		if err != nil {
			slog.Warn("skipping cluster, failed to distill", "cluster_id", c, "members", len(members), "error", err)
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
