package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Job outcomes recorded by JobMetrics.
const (
	OutcomeSuccessful = "successful"
	OutcomeFaulted    = "faulted"
	OutcomeTimedOut   = "timed_out"
	OutcomeFailed     = "failed"
)

// JobMetrics records job polling and outcomes. A nil *JobMetrics is valid
// and records nothing.
type JobMetrics struct {
	polls    metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewJobMetrics creates the job instruments on meter.
func NewJobMetrics(meter metric.Meter) (*JobMetrics, error) {
	polls, err := meter.Int64Counter("orchestrator.job.polls",
		metric.WithDescription("Job status checks by observed state"))
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("orchestrator.job.outcomes",
		metric.WithDescription("Awaited jobs by terminal outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("orchestrator.job.duration",
		metric.WithDescription("Time from submission to terminal outcome"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &JobMetrics{polls: polls, outcomes: outcomes, duration: duration}, nil
}

// RecordPoll counts one status check.
func (m *JobMetrics) RecordPoll(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordOutcome counts a finished await and its duration.
func (m *JobMetrics) RecordOutcome(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
