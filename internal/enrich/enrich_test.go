package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"review-rag/internal/config"
	"review-rag/internal/domain"
	"review-rag/internal/ingest"
	"review-rag/internal/promptloader"
)

type fakeRepo struct {
	existing []domain.ReviewRecord
	inserted []*domain.ArchItem
}

func (f *fakeRepo) FilterNew(_ context.Context, records []domain.ReviewRecord) ([]domain.ReviewRecord, error) {
	existingKeys := map[string]struct{}{}
	for _, r := range f.existing {
		existingKeys[r.DedupeKey()] = struct{}{}
	}
	var out []domain.ReviewRecord
	for _, r := range records {
		if _, ok := existingKeys[r.DedupeKey()]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertArchItem(_ context.Context, item *domain.ArchItem) error {
	f.inserted = append(f.inserted, item)
	f.existing = append(f.existing, domain.ReviewRecord{Repo: item.Repo, PR: item.PR, FilePath: item.FilePath, CommentBody: item.Comment})
	return nil
}

func (f *fakeRepo) RowsWithNullEmbedding(_ context.Context) ([]domain.ArchItem, error) { return nil, nil }
func (f *fakeRepo) UpdateEmbedding(_ context.Context, _ int64, _ []float32) error      { return nil }
func (f *fakeRepo) AllForChunkedDistill(_ context.Context) ([]domain.ArchItem, error)  { return nil, nil }
func (f *fakeRepo) AllEmbedded(_ context.Context) ([]domain.ArchItem, error)           { return nil, nil }
func (f *fakeRepo) Close() error                                                       { return nil }

type fakeLLM struct {
	classifyResp  string
	summarizeResp string
}

func (f *fakeLLM) Complete(_ context.Context, _, userPrompt string) (string, error) {
	if strings.Contains(userPrompt, "Vocabulary:") {
		return f.classifyResp, nil
	}
	return f.summarizeResp, nil
}

func (f *fakeLLM) Ping(_ context.Context) error { return nil }

type fakeEmbed struct {
	dim int
	err error
}

func (f *fakeEmbed) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = 0.1
	}
	return v, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{
		ArchitecturalConcerns: []string{"upgrade-safety", "correctness"},
	}
	cfg.Embedding.Dimension = 4
	return cfg
}

func writeRecordFile(t *testing.T, recs []domain.ReviewRecord) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/records.ndjson"
	if err := ingest.AppendRecords(path, recs); err != nil {
		t.Fatalf("append records: %v", err)
	}
	return path
}

func TestRun_InsertsNewRecords(t *testing.T) {
	recordPath := writeRecordFile(t, []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 1, CommentBody: "watch backward compat here"},
	})

	repo := &fakeRepo{}
	llm := &fakeLLM{
		classifyResp:  `["upgrade-safety", "not-a-real-tag"]`,
		summarizeResp: "SUMMARY: Keep interfaces stable across releases.\nEVIDENCE: watch backward compat",
	}
	embed := &fakeEmbed{dim: 4}
	prompts := promptloader.New("../../prompts")

	summary, err := Run(context.Background(), repo, llm, embed, prompts, testConfig(), recordPath, t.TempDir(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("expected 1 inserted record, got %d (skipped=%d reasons=%v)", summary.Inserted, summary.Skipped, summary.SkippedReasons)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 item persisted, got %d", len(repo.inserted))
	}

	item := repo.inserted[0]
	if len(item.Concerns) != 1 || item.Concerns[0] != "upgrade-safety" {
		t.Errorf("expected unknown tag to be dropped (I3), got %v", item.Concerns)
	}
	if len(item.Embedding) != 4 {
		t.Errorf("expected embedding length 4, got %d", len(item.Embedding))
	}
}

func TestRun_Idempotent_SecondRunInsertsNothing(t *testing.T) {
	recordPath := writeRecordFile(t, []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 1, CommentBody: "watch backward compat here"},
	})

	repo := &fakeRepo{}
	llm := &fakeLLM{
		classifyResp:  `["upgrade-safety"]`,
		summarizeResp: "SUMMARY: Keep interfaces stable.\nEVIDENCE: ",
	}
	embed := &fakeEmbed{dim: 4}
	prompts := promptloader.New("../../prompts")
	cfg := testConfig()

	if _, err := Run(context.Background(), repo, llm, embed, prompts, cfg, recordPath, t.TempDir(), time.Unix(0, 0)); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := Run(context.Background(), repo, llm, embed, prompts, cfg, recordPath, t.TempDir(), time.Unix(1, 0))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Inserted != 0 {
		t.Errorf("expected second run to insert 0 rows (P2), got %d", summary.Inserted)
	}
}

func TestRun_EmbeddingDimensionMismatchIsFatal(t *testing.T) {
	recordPath := writeRecordFile(t, []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 1, CommentBody: "watch backward compat here"},
	})

	repo := &fakeRepo{}
	llm := &fakeLLM{
		classifyResp:  `["upgrade-safety"]`,
		summarizeResp: "SUMMARY: Keep interfaces stable.\nEVIDENCE: ",
	}
	embed := &fakeEmbed{dim: 3} // schema declares 4
	prompts := promptloader.New("../../prompts")

	_, err := Run(context.Background(), repo, llm, embed, prompts, testConfig(), recordPath, t.TempDir(), time.Unix(0, 0))
	if err == nil {
		t.Fatal("expected fatal error on embedding dimension mismatch")
	}
}

func TestRun_LLMFailureSkipsRecordNotStage(t *testing.T) {
	recordPath := writeRecordFile(t, []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 1, CommentBody: "watch backward compat here"},
		{Repo: "acme/widgets", PR: 2, CommentBody: "another backward compat issue"},
	})

	repo := &fakeRepo{}
	llm := &failingThenSucceedingLLM{failClassifyFor: "acme/widgets#1"}
	embed := &fakeEmbed{dim: 4}
	prompts := promptloader.New("../../prompts")

	summary, err := Run(context.Background(), repo, llm, embed, prompts, testConfig(), recordPath, t.TempDir(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("run should not fail the whole stage: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("expected 1 successful insert despite 1 failing record, got %d", summary.Inserted)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", summary.Skipped)
	}
}

type failingThenSucceedingLLM struct {
	failClassifyFor string
}

func (f *failingThenSucceedingLLM) Complete(_ context.Context, _, userPrompt string) (string, error) {
	if strings.Contains(userPrompt, "watch backward compat here") && strings.Contains(userPrompt, "Vocabulary:") {
		return "", fmt.Errorf("simulated upstream failure")
	}
	if strings.Contains(userPrompt, "Vocabulary:") {
		return `["upgrade-safety"]`, nil
	}
	return "SUMMARY: Keep interfaces stable.\nEVIDENCE: ", nil
}

func (f *failingThenSucceedingLLM) Ping(_ context.Context) error { return nil }
