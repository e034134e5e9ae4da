package replay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/perception"
)

func newSample(trial string, step int, hindsight bool) *Sample {
	return &Sample{
		TrialID:   trial,
		Step:      step,
		State:     perception.FromString("0011"),
		Action:    step,
		Reward:    0,
		NextState: perception.FromString("1011"),
		Hindsight: hindsight,
	}
}

func TestMemoryBackend_Store(t *testing.T) {
	backend := NewMemoryBackend(1000, rand.NewSource(1))
	defer backend.Close()

	ctx := context.Background()

	sample := newSample("trial-1", 0, false)
	err := backend.Store(ctx, sample)
	require.NoError(t, err)
	assert.NotEmpty(t, sample.ID)
	assert.False(t, sample.Timestamp.IsZero())

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalSamples)
	assert.Equal(t, uint64(1), stats.TotalTrials)
	assert.Equal(t, uint64(0), stats.HindsightSamples)
	assert.Equal(t, uint64(1000), stats.Capacity)
}

func TestMemoryBackend_StoreBatch(t *testing.T) {
	backend := NewMemoryBackend(1000, rand.NewSource(1))
	defer backend.Close()

	ctx := context.Background()

	samples := []*Sample{
		newSample("trial-1", 0, false),
		newSample("trial-1", 0, true),
		newSample("trial-2", 0, false),
	}

	ids, err := backend.StoreBatch(ctx, samples)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	for i, id := range ids {
		assert.Equal(t, samples[i].ID, id)
	}

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalSamples)
	assert.Equal(t, uint64(2), stats.TotalTrials)
	assert.Equal(t, uint64(1), stats.HindsightSamples)
}

func TestMemoryBackend_Sample(t *testing.T) {
	backend := NewMemoryBackend(1000, rand.NewSource(42))
	defer backend.Close()

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, backend.Store(ctx, newSample("trial-1", i, false)))
	}

	sampled, err := backend.Sample(ctx, &SampleConfig{BatchSize: 4})
	require.NoError(t, err)
	assert.Len(t, sampled, 4)

	// Without replacement
	seen := make(map[string]bool)
	for _, s := range sampled {
		assert.False(t, seen[s.ID], "sample %s drawn twice", s.ID)
		seen[s.ID] = true
	}
}

func TestMemoryBackend_SampleClipsToSize(t *testing.T) {
	backend := NewMemoryBackend(1000, rand.NewSource(42))
	defer backend.Close()

	ctx := context.Background()

	_, err := backend.StoreBatch(ctx, []*Sample{newSample("t", 0, false), newSample("t", 1, false)})
	require.NoError(t, err)

	sampled, err := backend.Sample(ctx, &SampleConfig{BatchSize: 5})
	require.NoError(t, err)
	assert.Len(t, sampled, 2)
}

func TestMemoryBackend_SampleEmpty(t *testing.T) {
	backend := NewMemoryBackend(10, rand.NewSource(1))
	defer backend.Close()

	_, err := backend.Sample(context.Background(), &SampleConfig{BatchSize: 3})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryBackend_SampleIsReproducible(t *testing.T) {
	ctx := context.Background()
	draw := func() []int {
		backend := NewMemoryBackend(100, rand.NewSource(7))
		defer backend.Close()
		for i := 0; i < 20; i++ {
			require.NoError(t, backend.Store(ctx, newSample("t", i, false)))
		}
		sampled, err := backend.Sample(ctx, &SampleConfig{BatchSize: 5})
		require.NoError(t, err)
		steps := make([]int, len(sampled))
		for i, s := range sampled {
			steps[i] = s.Step
		}
		return steps
	}

	assert.Equal(t, draw(), draw())
}

func TestMemoryBackend_MaxSize(t *testing.T) {
	backend := NewMemoryBackend(2, rand.NewSource(1)) // Max 2 samples
	defer backend.Close()

	ctx := context.Background()

	samples := []*Sample{
		newSample("trial-1", 0, true),
		newSample("trial-1", 1, false),
		newSample("trial-2", 0, false),
	}
	for _, sample := range samples {
		require.NoError(t, backend.Store(ctx, sample))
	}

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalSamples) // Should evict oldest
	assert.Equal(t, uint64(1), stats.Evicted)
	assert.Equal(t, uint64(0), stats.HindsightSamples)
	assert.Equal(t, uint64(2), stats.TotalTrials)

	sampled, err := backend.Sample(ctx, &SampleConfig{BatchSize: 2})
	require.NoError(t, err)
	for _, s := range sampled {
		assert.NotEqual(t, samples[0].ID, s.ID)
	}
}

func TestMemoryBackend_EvictionUnderChurn(t *testing.T) {
	backend := NewMemoryBackend(3, rand.NewSource(1))
	defer backend.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	backend.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	samples := make([]*Sample, 10)
	for i := range samples {
		samples[i] = newSample(fmt.Sprintf("t%d", i/2), i, i%2 == 1)
		require.NoError(t, backend.Store(ctx, samples[i]))
	}

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalSamples)
	assert.Equal(t, uint64(7), stats.Evicted)
	assert.Equal(t, uint64(2), stats.HindsightSamples)
	assert.Equal(t, uint64(2), stats.TotalTrials)
	assert.Equal(t, start.Add(8*time.Second), *stats.OldestTimestamp)
	assert.Equal(t, start.Add(10*time.Second), *stats.NewestTimestamp)

	// Clearing after evictions still finds the survivors of each trial.
	cleared, err := backend.Clear(ctx, "t3", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cleared)

	require.NoError(t, backend.Store(ctx, newSample("t5", 0, false)))
	require.NoError(t, backend.Store(ctx, newSample("t5", 1, false)))

	stats, err = backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalSamples)
	assert.Equal(t, uint64(8), stats.Evicted)
	assert.Equal(t, uint64(1), stats.HindsightSamples)
	assert.Equal(t, uint64(2), stats.TotalTrials)

	sampled, err := backend.Sample(ctx, &SampleConfig{BatchSize: 3})
	require.NoError(t, err)
	require.Len(t, sampled, 3)
	for _, s := range sampled {
		assert.NotEqual(t, samples[8].ID, s.ID, "oldest survivor must be evicted first")
	}
}

func TestMemoryBackend_Timestamps(t *testing.T) {
	backend := NewMemoryBackend(10, rand.NewSource(1))
	defer backend.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	backend.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, backend.Store(ctx, newSample("t", i, false)))
	}

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats.OldestTimestamp)
	require.NotNil(t, stats.NewestTimestamp)
	assert.Equal(t, start.Add(time.Second), *stats.OldestTimestamp)
	assert.Equal(t, start.Add(3*time.Second), *stats.NewestTimestamp)
}

func TestMemoryBackend_Clear(t *testing.T) {
	backend := NewMemoryBackend(100, rand.NewSource(1))
	defer backend.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	samples := []*Sample{
		newSample("a", 0, false),
		newSample("a", 1, true),
		newSample("b", 0, false),
		newSample("b", 1, false),
		newSample("b", 2, true),
	}
	for i, s := range samples {
		s.Timestamp = start.Add(time.Duration(i) * time.Minute)
	}
	_, err := backend.StoreBatch(ctx, samples)
	require.NoError(t, err)

	// Older than the third sample
	cutoff := start.Add(2 * time.Minute)
	cleared, err := backend.Clear(ctx, "", &cutoff, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cleared)
	assert.Equal(t, 3, backend.Len())

	// Keep only the newest sample of trial b
	cleared, err = backend.Clear(ctx, "b", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cleared)

	stats, err := backend.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalSamples)
	assert.Equal(t, uint64(1), stats.HindsightSamples)
	assert.Equal(t, uint64(1), stats.TotalTrials)

	// No criteria clears everything
	cleared, err = backend.Clear(ctx, "", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cleared)
	assert.Equal(t, 0, backend.Len())
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemoryBackend(10, rand.NewSource(1))
	require.NoError(t, backend.Close())

	ctx := context.Background()
	assert.Error(t, backend.Store(ctx, newSample("t", 0, false)))
	_, err := backend.Sample(ctx, &SampleConfig{BatchSize: 1})
	assert.Error(t, err)
}
