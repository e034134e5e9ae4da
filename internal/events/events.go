// Package events fans training progress out to downstream consumers.
package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cartridge/acs2her/internal/agent"
	"github.com/cartridge/acs2her/internal/metrics"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishTrial(ctx context.Context, payload TrialEvent) error
	PublishSummary(ctx context.Context, payload SummaryEvent) error
}

// TrialEvent is emitted after every finished trial.
type TrialEvent struct {
	RunID string `json:"run_id"`
	agent.TrialMetrics
}

// Solved reports whether the trial ended with a positive reward.
func (e TrialEvent) Solved() bool {
	return e.Reward > 0
}

// SummaryEvent is emitted once per mode when a run finishes.
type SummaryEvent struct {
	RunID string `json:"run_id"`
	metrics.Summary
}

// NoopPublisher drops every event; useful for tests.
type NoopPublisher struct{}

// PublishTrial satisfies Publisher.
func (NoopPublisher) PublishTrial(context.Context, TrialEvent) error { return nil }

// PublishSummary satisfies Publisher.
func (NoopPublisher) PublishSummary(context.Context, SummaryEvent) error { return nil }

// TrialObserver forwards agent trials to a Publisher. Publish failures are
// logged and never interrupt training.
type TrialObserver struct {
	ctx       context.Context
	runID     string
	publisher Publisher
	logger    zerolog.Logger
}

// NewTrialObserver creates an observer tagging every event with runID.
func NewTrialObserver(ctx context.Context, runID string, publisher Publisher, logger zerolog.Logger) *TrialObserver {
	return &TrialObserver{ctx: ctx, runID: runID, publisher: publisher, logger: logger}
}

// ObserveTrial implements agent.TrialObserver.
func (o *TrialObserver) ObserveTrial(m agent.TrialMetrics) {
	if err := o.publisher.PublishTrial(o.ctx, TrialEvent{RunID: o.runID, TrialMetrics: m}); err != nil {
		o.logger.Warn().Err(err).Int("trial", m.Trial).Msg("Failed to publish trial event")
	}
}

// PublishSummaries emits the collector's summary for both modes.
func PublishSummaries(ctx context.Context, runID string, publisher Publisher, collector *metrics.Collector) error {
	for _, mode := range []agent.Mode{agent.ModeExplore, agent.ModeExploit} {
		if err := publisher.PublishSummary(ctx, SummaryEvent{RunID: runID, Summary: collector.Summarize(mode)}); err != nil {
			return err
		}
	}
	return nil
}
