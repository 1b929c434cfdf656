// Package codehost is the narrow boundary the core consumes from the
// remote code-hosting API (spec.md §1, §6): PR/comment enumeration and
// search for Collect, unified-diff fetch for Review.
package codehost

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v68/github"
)

// Comment is a single review comment on a pull request, reduced to the
// fields Collect needs.
type Comment struct {
	FilePath string
	Line     int
	Body     string
	RawJSON  string // full upstream payload, preserved as ReviewRecord.ThreadJSON
}

// PullRequest is a pull request summary, reduced to the fields Collect and
// Review need.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	Merged bool
}

// Client is the subset of the code-host API the core depends on.
type Client interface {
	// GetPullRequest fetches a single PR's metadata.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	// ListReviewComments returns all inline review comments on a PR,
	// auto-paginating.
	ListReviewComments(ctx context.Context, owner, repo string, number int) ([]Comment, error)
	// ListMergedPullRequests enumerates merged PRs, auto-paginating.
	ListMergedPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error)
	// SearchPullRequests runs a code-host search query and returns matching
	// PR numbers.
	SearchPullRequests(ctx context.Context, owner, repo, query string) ([]int, error)
	// FetchDiff retrieves the unified diff for a PR using the diff-content
	// accept header.
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
}

// GitHubClient implements Client using go-github.
type GitHubClient struct {
	gh *github.Client
}

// NewGitHubClient creates a Client authenticated with token. An empty token
// yields an unauthenticated client (rate-limited but functional for public
// repos).
func NewGitHubClient(token string) *GitHubClient {
	base := github.NewClient(nil)
	if token != "" {
		base = base.WithAuthToken(token)
	}
	return &GitHubClient{gh: base}
}

func (c *GitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return &PullRequest{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		Body:   pr.GetBody(),
		Merged: pr.GetMerged(),
	}, nil
}

func (c *GitHubClient) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	var out []Comment
	opts := &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list review comments %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, rc := range comments {
			raw, _ := json.Marshal(rc)
			out = append(out, Comment{
				FilePath: rc.GetPath(),
				Line:     rc.GetLine(),
				Body:     rc.GetBody(),
				RawJSON:  string(raw),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *GitHubClient) ListMergedPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	var out []PullRequest
	opts := &github.PullRequestListOptions{
		State:       "closed",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list merged pull requests %s/%s: %w", owner, repo, err)
		}
		for _, pr := range prs {
			if !pr.GetMerged() {
				continue
			}
			out = append(out, PullRequest{
				Number: pr.GetNumber(),
				Title:  pr.GetTitle(),
				Body:   pr.GetBody(),
				Merged: true,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// SearchPullRequests issues a single bounded code-host search query
// (already OR-grouped and capped by the caller per spec.md §4.1) and
// returns matching PR numbers.
func (c *GitHubClient) SearchPullRequests(ctx context.Context, owner, repo, query string) ([]int, error) {
	fullQuery := fmt.Sprintf("repo:%s/%s is:pr %s", owner, repo, query)
	var out []int
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		result, resp, err := c.gh.Search.Issues(ctx, fullQuery, opts)
		if err != nil {
			return nil, fmt.Errorf("search pull requests %q: %w", fullQuery, err)
		}
		for _, issue := range result.Issues {
			out = append(out, issue.GetNumber())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// FetchDiff implements Client using the diff-content accept header.
func (c *GitHubClient) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("fetch diff %s/%s#%d: %w", owner, repo, number, err)
	}
	return diff, nil
}
