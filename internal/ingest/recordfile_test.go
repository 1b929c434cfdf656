package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"review-rag/internal/domain"
)

func TestAppendAndReadRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")

	first := []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 1, CommentBody: "watch backward compat"},
		{Repo: "acme/widgets", PR: 2, CommentBody: "extract this into a helper"},
	}
	if err := AppendRecords(path, first); err != nil {
		t.Fatalf("append: %v", err)
	}

	second := []domain.ReviewRecord{
		{Repo: "acme/widgets", PR: 3, CommentBody: "needs a test"},
	}
	if err := AppendRecords(path, second); err != nil {
		t.Fatalf("append second batch: %v", err)
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records across both append calls, got %d", len(got))
	}
	if got[2].PR != 3 {
		t.Errorf("expected third record pr=3, got %d", got[2].PR)
	}
}

func TestReadRecords_TruncatedFinalLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")

	content := `{"repo":"acme/widgets","pr":1,"comment_body":"ok"}
{"repo":"acme/widgets","pr":2,"comment_body":"also ok"}
{"repo":"acme/widgets","pr":3,"comment_bo`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("expected truncated final line to be tolerated, got error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 complete records, got %d", len(got))
	}
}

func TestReadRecords_MalformedMiddleLineIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")

	content := `{"repo":"acme/widgets","pr":1,"comment_body":"ok"}
not json at all
{"repo":"acme/widgets","pr":3,"comment_body":"also ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := ReadRecords(path); err == nil {
		t.Fatal("expected error for malformed non-final line")
	}
}

func TestAppendRecords_NoOpOnEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")

	if err := AppendRecords(path, nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file to be created for an empty batch")
	}
}
