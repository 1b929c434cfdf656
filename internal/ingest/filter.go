package ingest

import (
	"fmt"
	"strings"

	"review-rag/internal/config"
)

// KeywordFilter applies spec.md §4.1's relevance filter: a comment is kept
// iff at least one configured architectural keyword (case-insensitive
// substring match) appears in the PR title/body or the comment text itself.
type KeywordFilter struct {
	keywords []string // flattened, lowercased
}

// NewKeywordFilter flattens cfg.Keywords into a single lowercased list.
func NewKeywordFilter(cfg *config.Config) *KeywordFilter {
	var flat []string
	for _, terms := range cfg.Keywords {
		for _, t := range terms {
			if t == "" {
				continue
			}
			flat = append(flat, strings.ToLower(t))
		}
	}
	return &KeywordFilter{keywords: flat}
}

// MatchesText reports whether any keyword appears as a substring of text.
func (f *KeywordFilter) MatchesText(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// KeepComment implements the PR-level-or-comment-level relevance rule:
// relevant if the PR title/body matches, or the comment body itself does.
func (f *KeywordFilter) KeepComment(prTitle, prBody, commentBody string) bool {
	return f.MatchesText(prTitle) || f.MatchesText(prBody) || f.MatchesText(commentBody)
}

// SearchQueries groups the keyword vocabulary into OR-clauses no longer
// than maxPerClause terms, respecting the code host's query-operator cap
// (spec.md §4.1: "respect the host's query-operator cap").
func (f *KeywordFilter) SearchQueries(maxPerClause int) []string {
	if maxPerClause <= 0 {
		maxPerClause = 5
	}

	var queries []string
	for i := 0; i < len(f.keywords); i += maxPerClause {
		end := i + maxPerClause
		if end > len(f.keywords) {
			end = len(f.keywords)
		}
		group := f.keywords[i:end]
		quoted := make([]string, len(group))
		for j, term := range group {
			quoted[j] = fmt.Sprintf("%q", term)
		}
		queries = append(queries, strings.Join(quoted, " OR "))
	}
	return queries
}
