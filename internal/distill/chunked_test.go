package distill

import (
	"context"
	"testing"

	"review-rag/internal/config"
	"review-rag/internal/domain"
	"review-rag/internal/promptloader"
)

type fakeRepo struct {
	chunkedRows []domain.ArchItem
	embedded    []domain.ArchItem
}

func (f *fakeRepo) FilterNew(_ context.Context, records []domain.ReviewRecord) ([]domain.ReviewRecord, error) {
	return records, nil
}
func (f *fakeRepo) InsertArchItem(_ context.Context, _ *domain.ArchItem) error { return nil }
func (f *fakeRepo) RowsWithNullEmbedding(_ context.Context) ([]domain.ArchItem, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateEmbedding(_ context.Context, _ int64, _ []float32) error { return nil }
func (f *fakeRepo) AllForChunkedDistill(_ context.Context) ([]domain.ArchItem, error) {
	return f.chunkedRows, nil
}
func (f *fakeRepo) AllEmbedded(_ context.Context) ([]domain.ArchItem, error) { return f.embedded, nil }
func (f *fakeRepo) Close() error                                            { return nil }

type fakeLLM struct {
	resp string
	err  error
}

func (f *fakeLLM) Complete(_ context.Context, _, _ string) (string, error) {
	return f.resp, f.err
}
func (f *fakeLLM) Ping(_ context.Context) error { return nil }

func makeRows(n int) []domain.ArchItem {
	rows := make([]domain.ArchItem, n)
	for i := range rows {
		rows[i] = domain.ArchItem{ID: int64(i + 1), ArchSummary: "keep things simple", Concerns: []string{"correctness"}}
	}
	return rows
}

func TestRunChunked_PartitionsIntoFixedSizeChunks(t *testing.T) {
	repo := &fakeRepo{chunkedRows: makeRows(12)}
	llm := &fakeLLM{resp: `[{"concern":"correctness","guideline":"do the thing","rationale":"because","examples":"e.g."}]`}
	cfg := &config.Config{}
	cfg.Distill.ChunkSize = 5

	guidelines, summary, err := RunChunked(context.Background(), repo, llm, promptloader.New("../../prompts"), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 12 rows / chunk size 5 => chunks of 5, 5, 2 = 3 chunks.
	if summary.ChunksOrClusters != 3 {
		t.Errorf("expected 3 chunks, got %d", summary.ChunksOrClusters)
	}
	if len(guidelines) != 3 {
		t.Errorf("expected 1 guideline per chunk (3 total), got %d", len(guidelines))
	}
}

func TestRunChunked_SkipsChunkOnParseFailure(t *testing.T) {
	repo := &fakeRepo{chunkedRows: makeRows(5)}
	llm := &fakeLLM{resp: "not json at all"}
	cfg := &config.Config{}
	cfg.Distill.ChunkSize = 5

	guidelines, summary, err := RunChunked(context.Background(), repo, llm, promptloader.New("../../prompts"), cfg)
	if err != nil {
		t.Fatalf("run should not fail outright on a chunk parse error: %v", err)
	}
	if len(guidelines) != 0 {
		t.Errorf("expected 0 guidelines, got %d", len(guidelines))
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped chunk, got %d", summary.Skipped)
	}
}

func TestRunChunked_DefaultChunkSize(t *testing.T) {
	repo := &fakeRepo{chunkedRows: makeRows(3)}
	llm := &fakeLLM{resp: `[]`}
	cfg := &config.Config{} // ChunkSize left at zero value

	_, summary, err := RunChunked(context.Background(), repo, llm, promptloader.New("../../prompts"), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ChunksOrClusters != 1 {
		t.Errorf("expected 3 rows to fit in a single default-size chunk, got %d chunks", summary.ChunksOrClusters)
	}
}
