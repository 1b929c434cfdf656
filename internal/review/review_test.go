package review

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"review-rag/internal/codehost"
	"review-rag/internal/domain"
	"review-rag/internal/promptloader"
)

type fakeCodehost struct {
	diff    string
	diffErr error
	gotRef  codehost.PRReference
}

func (f *fakeCodehost) GetPullRequest(context.Context, string, string, int) (*codehost.PullRequest, error) {
	return nil, nil
}
func (f *fakeCodehost) ListReviewComments(context.Context, string, string, int) ([]codehost.Comment, error) {
	return nil, nil
}
func (f *fakeCodehost) ListMergedPullRequests(context.Context, string, string) ([]codehost.PullRequest, error) {
	return nil, nil
}
func (f *fakeCodehost) SearchPullRequests(context.Context, string, string, string) ([]int, error) {
	return nil, nil
}
func (f *fakeCodehost) FetchDiff(_ context.Context, owner, repo string, number int) (string, error) {
	f.gotRef = codehost.PRReference{Owner: owner, Repo: repo, Number: number}
	return f.diff, f.diffErr
}

type fakeLLM struct{ resp string }

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) { return f.resp, nil }
func (f *fakeLLM) Ping(context.Context) error                               { return nil }

func TestResolveDiff_FromURL(t *testing.T) {
	client := &fakeCodehost{diff: "--- a/foo\n+++ b/foo\n"}

	diff, err := ResolveDiff(context.Background(), client, "https://github.com/acme/widgets/pull/42")
	if err != nil {
		t.Fatalf("resolve diff: %v", err)
	}
	if diff != client.diff {
		t.Errorf("got %q, want %q", diff, client.diff)
	}
	if client.gotRef.Owner != "acme" || client.gotRef.Repo != "widgets" || client.gotRef.Number != 42 {
		t.Errorf("unexpected parsed ref: %+v", client.gotRef)
	}
}

func TestResolveDiff_FromLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "some.diff")
	if err := os.WriteFile(path, []byte("diff content"), 0o644); err != nil {
		t.Fatal(err)
	}

	diff, err := ResolveDiff(context.Background(), &fakeCodehost{}, path)
	if err != nil {
		t.Fatalf("resolve diff: %v", err)
	}
	if diff != "diff content" {
		t.Errorf("got %q", diff)
	}
}

func TestResolveDiff_MissingFileIsFatal(t *testing.T) {
	_, err := ResolveDiff(context.Background(), &fakeCodehost{}, "/nonexistent/path.diff")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadGuidelines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guidelines.json")
	content := `[{"concern":"correctness","guideline":"do it right","rationale":"r","examples":"e"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	guidelines, err := LoadGuidelines(path)
	if err != nil {
		t.Fatalf("load guidelines: %v", err)
	}
	if len(guidelines) != 1 || guidelines[0].Concern != "correctness" {
		t.Errorf("unexpected guidelines: %+v", guidelines)
	}
}

func TestRun_EmbedsGuidelinesAndDiffIntoPrompt(t *testing.T) {
	llm := &fakeLLM{resp: "## Review\n\nLooks fine."}
	guidelines := []domain.Guideline{{Concern: "correctness", GuidelineRaw: "check bounds"}}

	out, err := Run(context.Background(), llm, promptloader.New("../../prompts"), guidelines, "--- a/foo\n+++ b/foo\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Looks fine") {
		t.Errorf("expected the LLM response to be returned verbatim, got %q", out)
	}
}
