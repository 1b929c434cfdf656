// Package metrics carries the ambient Prometheus instrumentation every
// stage records, optionally exposed via /metrics when a stage is invoked
// with --metrics-addr. This is instrumentation of batch runs, not an
// online-serving surface — it does not provide low-latency retrieval and
// is not a spec Non-goal violation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRecordsTotal counts records processed per stage, labeled by
	// outcome (inserted/updated/written/distilled/reviewed/skipped, or
	// skipped_<reason> for Enrich).
	StageRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrag_stage_records_total",
		Help: "The total number of records processed by a pipeline stage",
	}, []string{"stage", "outcome"})

	// StageDuration measures end-to-end wall-clock time for a single stage
	// invocation.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewrag_stage_duration_seconds",
		Help:    "Time taken to complete a pipeline stage invocation",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// LLMCallsTotal counts LLM/embedding calls, labeled by call kind and
	// outcome (ok/retryable/error).
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrag_llm_calls_total",
		Help: "The total number of LLM and embedding calls issued",
	}, []string{"kind", "outcome"}) // kind: complete (chat completion) or embed
)
