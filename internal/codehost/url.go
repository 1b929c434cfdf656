package codehost

import (
	"fmt"
	"regexp"
	"strconv"
)

var prURLRegex = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// PRReference holds the parsed components of a pull-request URL.
type PRReference struct {
	Owner  string
	Repo   string
	Number int
}

// ParsePRURL parses a pull-request URL into owner/repo/number, or reports
// ok=false if raw does not match the expected pattern. Review (spec.md
// §4.7) uses this to decide whether its argument is a URL to fetch or a
// local file path to read.
func ParsePRURL(raw string) (*PRReference, bool) {
	matches := prURLRegex.FindStringSubmatch(raw)
	if matches == nil {
		return nil, false
	}
	number, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, false
	}
	return &PRReference{Owner: matches[1], Repo: matches[2], Number: number}, true
}

// String renders the PR reference back as a stable repo identifier.
func (r *PRReference) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}
