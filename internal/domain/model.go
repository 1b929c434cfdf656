// Package domain holds the core entities shared across every stage of the
// pipeline: the raw ReviewRecord staged by Collect, the enriched ArchItem
// persisted by Enrich, and the Guideline synthesized by Distill.
package domain

import "strconv"

// ReviewRecord is the append-only staging entity written by Collect and
// consumed by Enrich. Identity is (Repo, PR, FilePath, CommentBody).
type ReviewRecord struct {
	Repo        string `json:"repo"`
	PR          int    `json:"pr"`
	FilePath    string `json:"file_path,omitempty"`
	LineStart   *int   `json:"line_start,omitempty"`
	LineEnd     *int   `json:"line_end,omitempty"`
	DiffContext string `json:"diff_context,omitempty"`
	CommentBody string `json:"comment_body"`
	ThreadJSON  string `json:"thread_json,omitempty"`
}

// DedupeKey returns the tuple identity used to collapse duplicate records.
func (r ReviewRecord) DedupeKey() string {
	return r.Repo + "\x00" + strconv.Itoa(r.PR) + "\x00" + r.FilePath + "\x00" + r.CommentBody
}

// ArchItem is a fully enriched review record persisted in the hybrid store.
// Invariant I2: a successfully enriched ArchItem has non-null Concerns,
// ArchSummary and Embedding.
type ArchItem struct {
	ID          int64
	Repo        string
	PR          int
	FilePath    string
	Comment     string
	Diff        string
	Concerns    []string
	ArchSummary string
	Evidence    string
	Embedding   []float32
}

// Guideline is the distilled, consumable artifact. ClusterID is only
// populated by the clustered distillation strategy; it is a pointer so that
// cluster 0 stays distinguishable from "no cluster", and it is omitted from
// the JSON output when nil.
type Guideline struct {
	Concern      string `json:"concern"`
	GuidelineRaw string `json:"guideline"`
	Rationale    string `json:"rationale"`
	Examples     string `json:"examples"`
	ClusterID    *int   `json:"cluster_id,omitempty"`
}
