package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"review-rag/internal/codehost"
	"review-rag/internal/domain"
	"review-rag/internal/metrics"
)

const stageName = "collect"

// Mode selects Collect's enumeration strategy (spec.md §4.1).
type Mode string

const (
	ModeSinglePR      Mode = "single_pr"
	ModeAllMerged     Mode = "all_merged"
	ModeKeywordSearch Mode = "keyword_search"
)

// DefaultSearchClauseCap models GitHub's effective OR-term budget per
// search qualifier-free clause; configurable by callers that target a
// different host.
const DefaultSearchClauseCap = 5

// Options configures a single Collect invocation.
type Options struct {
	Owner           string
	Repo            string
	Mode            Mode
	PRNumber        int
	SearchClauseCap int
}

// Summary is the terminal summary line every stage prints (spec.md §7).
type Summary struct {
	Written int
	Skipped int
}

// Run executes Collect and appends every relevant ReviewRecord to
// outputPath.
func Run(ctx context.Context, client codehost.Client, filter *KeywordFilter, opts Options, outputPath string) (Summary, error) {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stageName).Observe(time.Since(start).Seconds()) }()

	var prNumbers []int

	switch opts.Mode {
	case ModeSinglePR:
		prNumbers = []int{opts.PRNumber}

	case ModeAllMerged:
		prs, err := client.ListMergedPullRequests(ctx, opts.Owner, opts.Repo)
		if err != nil {
			return Summary{}, fmt.Errorf("list merged pull requests: %w", err)
		}
		for _, pr := range prs {
			prNumbers = append(prNumbers, pr.Number)
		}

	case ModeKeywordSearch:
		clauseCap := opts.SearchClauseCap
		if clauseCap <= 0 {
			clauseCap = DefaultSearchClauseCap
		}
		seen := map[int]struct{}{}
		for _, query := range filter.SearchQueries(clauseCap) {
			nums, err := client.SearchPullRequests(ctx, opts.Owner, opts.Repo, query)
			if err != nil {
				slog.Warn("search query failed, skipping", "repo", opts.Repo, "query", query, "error", err)
				continue
			}
			for _, n := range nums {
				seen[n] = struct{}{}
			}
		}
		for n := range seen {
			prNumbers = append(prNumbers, n)
		}

	default:
		return Summary{}, fmt.Errorf("unknown collect mode %q", opts.Mode)
	}

	var summary Summary
	var batch []domain.ReviewRecord

	for _, n := range prNumbers {
		pr, err := client.GetPullRequest(ctx, opts.Owner, opts.Repo, n)
		if err != nil {
			slog.Warn("fetch pull request failed, skipping", "repo", opts.Repo, "pr", n, "error", err)
			summary.Skipped++
			metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
			continue
		}

		comments, err := client.ListReviewComments(ctx, opts.Owner, opts.Repo, n)
		if err != nil {
			slog.Warn("fetch review comments failed, skipping", "repo", opts.Repo, "pr", n, "error", err)
			summary.Skipped++
			metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
			continue
		}

		for _, c := range comments {
			if !filter.KeepComment(pr.Title, pr.Body, c.Body) {
				summary.Skipped++
				metrics.StageRecordsTotal.WithLabelValues(stageName, "skipped").Inc()
				continue
			}
			batch = append(batch, buildRecord(opts.Owner, opts.Repo, n, c))
			summary.Written++
			metrics.StageRecordsTotal.WithLabelValues(stageName, "written").Inc()
		}
	}

	if err := AppendRecords(outputPath, batch); err != nil {
		return summary, fmt.Errorf("append records: %w", err)
	}
	return summary, nil
}

// buildRecord turns a codehost.Comment into a ReviewRecord, probing the raw
// upstream payload for a diff hunk (when the comment struct itself didn't
// carry one) and patching the payload with its file path when the code host
// returned a partial object missing it.
func buildRecord(owner, repo string, pr int, c codehost.Comment) domain.ReviewRecord {
	raw := c.RawJSON
	if c.FilePath != "" && !gjson.Get(raw, "path").Exists() {
		if patched, err := sjson.Set(raw, "path", c.FilePath); err == nil {
			raw = patched
		}
	}

	diffContext := c.Body
	if hunk := gjson.Get(raw, "diff_hunk"); hunk.Exists() {
		diffContext = hunk.String()
	}

	rec := domain.ReviewRecord{
		Repo:        fmt.Sprintf("%s/%s", owner, repo),
		PR:          pr,
		FilePath:    c.FilePath,
		DiffContext: diffContext,
		CommentBody: c.Body,
		ThreadJSON:  raw,
	}
	if c.Line > 0 {
		line := c.Line
		rec.LineStart = &line
		rec.LineEnd = &line
	}
	return rec
}
