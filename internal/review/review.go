// Package review implements the Review stage (spec.md §4.7): apply the
// distilled guideline corpus to a new diff, fetched by PR URL or read from
// a local file, and print a Markdown architectural review to stdout.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"review-rag/internal/codehost"
	"review-rag/internal/domain"
	"review-rag/internal/llmclient"
	"review-rag/internal/metrics"
	"review-rag/internal/promptloader"
)

const stageName = "review"

// ResolveDiff resolves arg (a pull-request URL or a local file path) to its
// unified diff text. A URL is fetched using the diff-content accept header
// via client; anything else is read as a file. Both failure modes are
// fatal to the invocation (spec.md §4.7 failure semantics).
func ResolveDiff(ctx context.Context, client codehost.Client, arg string) (string, error) {
	if ref, ok := codehost.ParsePRURL(arg); ok {
		diff, err := client.FetchDiff(ctx, ref.Owner, ref.Repo, ref.Number)
		if err != nil {
			return "", fmt.Errorf("fetch diff for %s: %w", ref.String(), err)
		}
		return diff, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read diff file %s: %w", arg, err)
	}
	return string(data), nil
}

// LoadGuidelines reads the guideline corpus file produced by either Distill
// strategy (spec.md §6: "a JSON array of objects").
func LoadGuidelines(path string) ([]domain.Guideline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guideline file %s: %w", path, err)
	}
	var guidelines []domain.Guideline
	if err := json.Unmarshal(data, &guidelines); err != nil {
		return nil, fmt.Errorf("parse guideline file %s: %w", path, err)
	}
	return guidelines, nil
}

// Run embeds the full guideline corpus and the diff into a single LLM
// prompt (no retrieval, no ranking — spec.md §4.7) and returns the
// rendered Markdown review.
func Run(ctx context.Context, llm llmclient.Client, prompts *promptloader.Loader, guidelines []domain.Guideline, diff string) (string, error) {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(start).Seconds()) }()

	guidelineJSON, err := json.MarshalIndent(guidelines, "", "  ")
	if err != nil {
		metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
		return "", fmt.Errorf("marshal guidelines: %w", err)
	}

	prompt, err := prompts.Load("review", struct {
		Guidelines string
		Diff       string
	}{
		Guidelines: string(guidelineJSON),
		Diff:       diff,
	})
	if err != nil {
		metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
		return "", fmt.Errorf("load review prompt: %w", err)
	}

	resp, err := llm.Complete(ctx, "", prompt)
	if err != nil {
		metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
		return "", fmt.Errorf("llm review call: %w", err)
	}
	metrics.StageRecordsTotal.WithLabelValues(stageName, "reviewed").Inc()
	return resp, nil
}
