package enrich

import (
	"fmt"
	"os"
	"time"
)

// TimingLog records the per-record stage-by-stage timing breakdown Enrich
// is required to produce (spec.md §4.2: "detailed per-record timings...
// written to a timestamped log file"), in addition to the slog stream.
type TimingLog struct {
	f *os.File
}

// NewTimingLog creates (or appends to) a timestamped log file under dir.
func NewTimingLog(dir string, now time.Time) (*TimingLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create timing log dir %s: %w", dir, err)
	}
	path := fmt.Sprintf("%s/enrich-%s.log", dir, now.Format("20060102T150405"))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open timing log %s: %w", path, err)
	}
	return &TimingLog{f: f}, nil
}

// RecordTiming writes one line describing the stage-by-stage durations for
// a single record.
func (t *TimingLog) RecordTiming(repo string, pr int, dedup, classify, summarize, embed, insert time.Duration) {
	fmt.Fprintf(t.f, "repo=%s pr=%d dedup=%s classify=%s summarize=%s embed=%s insert=%s\n",
		repo, pr, dedup, classify, summarize, embed, insert)
}

// Close releases the underlying file handle.
func (t *TimingLog) Close() error {
	return t.f.Close()
}
