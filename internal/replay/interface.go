// Package replay stores goal-augmented transitions for experience replay.
package replay

import (
	"context"
	"errors"
	"time"

	"github.com/cartridge/acs2her/internal/perception"
)

// ErrEmpty is returned when sampling from a store holding no samples.
var ErrEmpty = errors.New("no samples available for sampling")

// Sample represents a single goal-augmented transition
type Sample struct {
	ID        string                `json:"id"`
	TrialID   string                `json:"trial_id"`
	Step      int                   `json:"step"`
	State     perception.Perception `json:"state"`
	Action    int                   `json:"action"`
	Reward    float64               `json:"reward"`
	NextState perception.Perception `json:"next_state"`
	Done      bool                  `json:"done"`
	Hindsight bool                  `json:"hindsight"`
	Timestamp time.Time             `json:"timestamp"`
}

// SampleConfig defines parameters for sampling
type SampleConfig struct {
	BatchSize int
}

// Stats represents replay memory statistics
type Stats struct {
	TotalSamples     uint64     `json:"total_samples"`
	HindsightSamples uint64     `json:"hindsight_samples"`
	TotalTrials      uint64     `json:"total_trials"`
	Capacity         uint64     `json:"capacity"`
	Evicted          uint64     `json:"evicted"`
	OldestTimestamp  *time.Time `json:"oldest_timestamp,omitempty"`
	NewestTimestamp  *time.Time `json:"newest_timestamp,omitempty"`
}

// Backend defines the interface for replay memory implementations
type Backend interface {
	// Store a single sample
	Store(ctx context.Context, sample *Sample) error

	// Store multiple samples in insertion order
	StoreBatch(ctx context.Context, samples []*Sample) ([]string, error)

	// Sample up to config.BatchSize distinct samples
	Sample(ctx context.Context, config *SampleConfig) ([]*Sample, error)

	// Get memory statistics
	GetStats(ctx context.Context) (*Stats, error)

	// Clear samples based on criteria
	Clear(ctx context.Context, trialID string, before *time.Time, keepLastN int) (uint64, error)

	// Close the backend and release resources
	Close() error
}
