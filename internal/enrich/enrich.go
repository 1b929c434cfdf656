package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"review-rag/internal/apperr"
	"review-rag/internal/config"
	"review-rag/internal/domain"
	"review-rag/internal/embedclient"
	"review-rag/internal/ingest"
	"review-rag/internal/jsonextract"
	"review-rag/internal/llmclient"
	"review-rag/internal/metrics"
	"review-rag/internal/promptloader"
	"review-rag/internal/storage"
)

const stageName = "enrich"

// Summary is the terminal summary line Enrich prints (spec.md §7).
type Summary struct {
	Inserted       int
	Skipped        int
	SkippedReasons map[string]int
}

func (s *Summary) skip(reason string) {
	s.Skipped++
	if s.SkippedReasons == nil {
		s.SkippedReasons = map[string]int{}
	}
	s.SkippedReasons[reason]++
	metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped_"+reason).Inc()
}

// Run executes the Enrich stage against the record file at recordPath,
// writing per-record timings under timingDir.
func Run(ctx context.Context, repo storage.Repository, llm llmclient.Client, embed embedclient.Client,
	prompts *promptloader.Loader, cfg *config.Config, recordPath, timingDir string, now time.Time) (Summary, error) {

	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(start).Seconds()) }()

	records, err := ingest.ReadRecords(recordPath)
	if err != nil {
		return Summary{}, fmt.Errorf("read record file: %w", err)
	}

	newRecords, err := repo.FilterNew(ctx, records)
	if err != nil {
		return Summary{}, fmt.Errorf("filter new records: %w", err)
	}

	if limit := cfg.Batch.CommentsLimit; limit > 0 && len(newRecords) > limit {
		newRecords = newRecords[:limit]
	}

	timing, err := NewTimingLog(timingDir, now)
	if err != nil {
		return Summary{}, fmt.Errorf("open timing log: %w", err)
	}
	defer timing.Close()

	var summary Summary
	for _, rec := range newRecords {
		if err := enrichOne(ctx, repo, llm, embed, prompts, cfg, rec, timing, &summary); err != nil {
			var cfgErr *apperr.ConfigError
			if errors.As(err, &cfgErr) {
				return summary, err
			}
			slog.Warn("skipping record", "repo", rec.Repo, "pr", rec.PR, "error", err)
		}
	}

	return summary, nil
}

func enrichOne(ctx context.Context, repo storage.Repository, llm llmclient.Client, embed embedclient.Client,
	prompts *promptloader.Loader, cfg *config.Config, rec domain.ReviewRecord, timing *TimingLog, summary *Summary) error {

	dedupStart := time.Now()
	reduced := ReduceComment(rec.CommentBody)
	dedupElapsed := time.Since(dedupStart)

	classifyStart := time.Now()
	concerns, err := classify(ctx, llm, prompts, cfg, reduced)
	classifyElapsed := time.Since(classifyStart)
	if err != nil {
		summary.skip("classify")
		return fmt.Errorf("classify: %w", err)
	}

	summarizeStart := time.Now()
	archSummary, evidence, err := summarize(ctx, llm, prompts, reduced, rec.DiffContext, concerns)
	summarizeElapsed := time.Since(summarizeStart)
	if err != nil {
		summary.skip("summarize")
		return fmt.Errorf("summarize: %w", err)
	}

	embedStart := time.Now()
	vec, err := embed.Embed(ctx, archSummary)
	embedElapsed := time.Since(embedStart)
	if err != nil {
		summary.skip("embed")
		return fmt.Errorf("embed: %w", err)
	}
	if len(vec) != cfg.Embedding.Dimension {
		return apperr.NewConfigError(fmt.Errorf(
			"embedding dimension mismatch: got %d, schema declares %d", len(vec), cfg.Embedding.Dimension))
	}

	item := &domain.ArchItem{
		Repo:        rec.Repo,
		PR:          rec.PR,
		FilePath:    rec.FilePath,
		Comment:     rec.CommentBody,
		Diff:        rec.DiffContext,
		Concerns:    concerns,
		ArchSummary: archSummary,
		Evidence:    evidence,
		Embedding:   vec,
	}

	insertStart := time.Now()
	if err := repo.InsertArchItem(ctx, item); err != nil {
		summary.skip("insert")
		return fmt.Errorf("insert: %w", err)
	}
	insertElapsed := time.Since(insertStart)

	timing.RecordTiming(rec.Repo, rec.PR, dedupElapsed, classifyElapsed, summarizeElapsed, embedElapsed, insertElapsed)
	summary.Inserted++
	metrics.StageRecordsTotal.WithLabelValues(stageName, "inserted").Inc()
	return nil
}

// classify calls the LLM with the reduced comment and the controlled
// vocabulary, keeping only tags present in the vocabulary (I3). A parse
// failure yields the empty set rather than failing the record.
func classify(ctx context.Context, llm llmclient.Client, prompts *promptloader.Loader, cfg *config.Config, reduced string) ([]string, error) {
	prompt, err := prompts.Load("classify", struct {
		Vocabulary string
		Comment    string
	}{
		Vocabulary: strings.Join(cfg.ArchitecturalConcerns, ", "),
		Comment:    reduced,
	})
	if err != nil {
		return nil, fmt.Errorf("load classify prompt: %w", err)
	}

	resp, err := llm.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("llm classify call: %w", err)
	}

	var tags []string
	if err := jsonextract.ExtractArray(resp, &tags); err != nil {
		return nil, nil // parse failure: empty concern set, not a record failure
	}

	var known []string
	for _, tag := range tags {
		if cfg.IsKnownConcern(tag) {
			known = append(known, tag)
		}
	}
	return known, nil
}

// summarize calls the LLM for a free-form 4-6 sentence architectural
// rationale plus optional evidence, parsed from the SUMMARY:/EVIDENCE:
// response shape (spec.md §4.2, open question resolved in DESIGN.md).
func summarize(ctx context.Context, llm llmclient.Client, prompts *promptloader.Loader, reduced, diffContext string, concerns []string) (summary, evidence string, err error) {
	prompt, err := prompts.Load("summarize", struct {
		Concerns    string
		Comment     string
		DiffContext string
	}{
		Concerns:    strings.Join(concerns, ", "),
		Comment:     reduced,
		DiffContext: diffContext,
	})
	if err != nil {
		return "", "", fmt.Errorf("load summarize prompt: %w", err)
	}

	resp, err := llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", "", fmt.Errorf("llm summarize call: %w", err)
	}

	return parseSummaryResponse(resp)
}

func parseSummaryResponse(resp string) (summary, evidence string, err error) {
	lines := strings.Split(resp, "\n")
	var summaryLines, evidenceLines []string
	section := ""

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			section = "summary"
			summaryLines = append(summaryLines, strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:")))
		case strings.HasPrefix(line, "EVIDENCE:"):
			section = "evidence"
			evidenceLines = append(evidenceLines, strings.TrimSpace(strings.TrimPrefix(line, "EVIDENCE:")))
		case section == "summary":
			summaryLines = append(summaryLines, line)
		case section == "evidence":
			evidenceLines = append(evidenceLines, line)
		}
	}

	summary = strings.TrimSpace(strings.Join(summaryLines, " "))
	evidence = strings.TrimSpace(strings.Join(evidenceLines, " "))
	if summary == "" {
		return "", "", fmt.Errorf("summarize response missing SUMMARY section: %q", resp)
	}
	return summary, evidence, nil
}
