package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// MemoryBackend implements a bounded in-memory replay memory. Samples are
// evicted oldest first once maxSize is exceeded.
type MemoryBackend struct {
	mu        sync.Mutex
	samples   map[string]*Sample  // ID -> Sample
	trials    map[string][]string // TrialID -> SampleIDs
	order     []string            // SampleIDs in insertion order
	hindsight uint64
	evicted   uint64
	maxSize   int
	src       rand.Source
	now       func() time.Time
	closed    bool
}

// NewMemoryBackend creates a new in-memory replay memory holding at most
// maxSize samples. A nil source is replaced by one seeded from the clock.
func NewMemoryBackend(maxSize int, src rand.Source) *MemoryBackend {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &MemoryBackend{
		samples: make(map[string]*Sample),
		trials:  make(map[string][]string),
		order:   make([]string, 0),
		maxSize: maxSize,
		src:     src,
		now:     time.Now,
	}
}

var errClosed = errors.New("replay memory is closed")

// Store implements Backend.Store
func (m *MemoryBackend) Store(ctx context.Context, sample *Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store(sample)
}

func (m *MemoryBackend) store(sample *Sample) error {
	if m.closed {
		return errClosed
	}

	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = m.now()
	}

	// Re-storing an ID replaces the old entry
	if _, exists := m.samples[sample.ID]; exists {
		m.deleteSample(sample.ID)
	}

	m.samples[sample.ID] = sample
	m.order = append(m.order, sample.ID)
	if sample.TrialID != "" {
		m.trials[sample.TrialID] = append(m.trials[sample.TrialID], sample.ID)
	}
	if sample.Hindsight {
		m.hindsight++
	}

	m.evictIfNeeded()
	return nil
}

// StoreBatch implements Backend.StoreBatch
func (m *MemoryBackend) StoreBatch(ctx context.Context, samples []*Sample) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(samples))
	for i, sample := range samples {
		if err := m.store(sample); err != nil {
			return ids[:i], err
		}
		ids[i] = sample.ID
	}

	return ids, nil
}

// Sample implements Backend.Sample. It draws min(BatchSize, Len) distinct
// samples uniformly at random.
func (m *MemoryBackend) Sample(ctx context.Context, config *SampleConfig) ([]*Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errClosed
	}
	if len(m.order) == 0 {
		return nil, ErrEmpty
	}

	sampleSize := config.BatchSize
	if sampleSize > len(m.order) {
		sampleSize = len(m.order)
	}
	if sampleSize <= 0 {
		return []*Sample{}, nil
	}

	indices := make([]int, sampleSize)
	sampleuv.WithoutReplacement(indices, len(m.order), m.src)

	sampled := make([]*Sample, sampleSize)
	for i, idx := range indices {
		sampled[i] = m.samples[m.order[idx]]
	}

	return sampled, nil
}

// GetStats implements Backend.GetStats
func (m *MemoryBackend) GetStats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{
		TotalSamples:     uint64(len(m.samples)),
		HindsightSamples: m.hindsight,
		TotalTrials:      uint64(len(m.trials)),
		Capacity:         uint64(m.maxSize),
		Evicted:          m.evicted,
	}

	if len(m.order) > 0 {
		oldest := m.samples[m.order[0]].Timestamp
		newest := m.samples[m.order[len(m.order)-1]].Timestamp
		stats.OldestTimestamp = &oldest
		stats.NewestTimestamp = &newest
	}

	return stats, nil
}

// Clear implements Backend.Clear. Samples are restricted to trialID when it
// is set, then deleted if older than before or outside the newest keepLastN.
// With neither criterion every selected sample is deleted.
func (m *MemoryBackend) Clear(ctx context.Context, trialID string, before *time.Time, keepLastN int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errClosed
	}

	relevant := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if trialID == "" || m.samples[id].TrialID == trialID {
			relevant = append(relevant, id)
		}
	}

	toDelete := make(map[string]struct{})
	for i, id := range relevant {
		switch {
		case before == nil && keepLastN <= 0:
			toDelete[id] = struct{}{}
		case before != nil && m.samples[id].Timestamp.Before(*before):
			toDelete[id] = struct{}{}
		case keepLastN > 0 && i < len(relevant)-keepLastN:
			toDelete[id] = struct{}{}
		}
	}

	for id := range toDelete {
		m.forget(id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, gone := toDelete[id]; !gone {
			kept = append(kept, id)
		}
	}
	m.order = kept

	return uint64(len(toDelete)), nil
}

// Len returns the number of stored samples
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Close implements Backend.Close
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = nil
	m.trials = nil
	m.order = nil
	m.closed = true

	return nil
}

// Helper methods

// evictIfNeeded drops the oldest samples. The oldest sample is always at the
// front of order and of its trial's list, so each eviction is constant time.
func (m *MemoryBackend) evictIfNeeded() {
	if m.maxSize <= 0 {
		return
	}
	for len(m.order) > m.maxSize {
		id := m.order[0]
		m.order[0] = ""
		m.order = m.order[1:]
		m.forget(id)
		m.evicted++
	}
}

// deleteSample removes a sample stored anywhere in the memory.
func (m *MemoryBackend) deleteSample(id string) {
	if m.forget(id) {
		m.order = removeString(m.order, id)
	}
}

// forget removes id from every index except order and reports whether it
// was stored.
func (m *MemoryBackend) forget(id string) bool {
	sample, exists := m.samples[id]
	if !exists {
		return false
	}

	delete(m.samples, id)
	if sample.Hindsight {
		m.hindsight--
	}

	if sample.TrialID != "" {
		if trialSamples, exists := m.trials[sample.TrialID]; exists {
			if len(trialSamples) > 0 && trialSamples[0] == id {
				trialSamples = trialSamples[1:]
			} else {
				trialSamples = removeString(trialSamples, id)
			}
			if len(trialSamples) == 0 {
				delete(m.trials, sample.TrialID)
			} else {
				m.trials[sample.TrialID] = trialSamples
			}
		}
	}
	return true
}

// Utility functions

func removeString(slice []string, item string) []string {
	for i, s := range slice {
		if s == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
