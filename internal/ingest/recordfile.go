// Package ingest implements the Collect stage: pulling review comments from
// a code host, applying the architectural-relevance keyword filter, and
// appending the result to the record file Enrich later consumes.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"review-rag/internal/domain"
)

// AppendRecords opens path for append (creating it if absent) and writes one
// JSON object per record, one per line. Using O_APPEND|O_CREATE|O_WRONLY
// means concurrent or resumed Collect runs never corrupt prior output.
func AppendRecords(path string, records []domain.ReviewRecord) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open record file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	return w.Flush()
}

// ReadRecords reads every ReviewRecord from path, one per line. A truncated
// final line (no trailing newline, or a partial/invalid JSON object caused
// by a prior crash mid-write) is ignored rather than treated as fatal
// (spec.md §6: "a truncated final line is ignored rather than fatal").
func ReadRecords(path string) ([]domain.ReviewRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file %s: %w", path, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan record file %s: %w", path, err)
	}

	var out []domain.ReviewRecord
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		var rec domain.ReviewRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			if i == len(lines)-1 {
				// Truncated final line (process crashed mid-write): ignore.
				break
			}
			return nil, fmt.Errorf("parse record file %s line %d: %w", path, i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
