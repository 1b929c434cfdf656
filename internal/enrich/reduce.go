// Package enrich implements the Enrich stage: dedup, reduce, classify,
// summarize, embed, persist (spec.md §4.2).
package enrich

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```.*?```")
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// ReduceComment strips fenced code blocks and block-quoted lines, then
// collapses whitespace, per spec.md §4.2: "code already lives in
// diff_context; what we embed is natural-language reasoning." The result is
// idempotent (P7) by construction: a second pass finds no fences, no quote
// markers, and no repeated whitespace left to collapse.
func ReduceComment(raw string) string {
	s := fencedBlockRe.ReplaceAllString(raw, "")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.Join(kept, "\n")

	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
