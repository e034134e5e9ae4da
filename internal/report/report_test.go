package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/acs2her/internal/agent"
)

func sampleTrials() []agent.TrialMetrics {
	return []agent.TrialMetrics{
		{Trial: 0, Mode: agent.ModeExplore, Steps: 9},
		{Trial: 1, Mode: agent.ModeExploit, Steps: 5},
		{Trial: 2, Mode: agent.ModeExplore, Steps: 4},
		{Trial: 3, Mode: agent.ModeExploit, Steps: 2},
		{Trial: 4, Mode: agent.ModeExploit, Steps: 1},
	}
}

func TestStepsPerTrial(t *testing.T) {
	series := StepsPerTrial(sampleTrials())

	require.Len(t, series, 2)
	require.Len(t, series[agent.ModeExplore], 2)
	require.Len(t, series[agent.ModeExploit], 3)
	assert.Equal(t, 1.0, series[agent.ModeExplore][1].X)
	assert.Equal(t, 4.0, series[agent.ModeExplore][1].Y)
	assert.Equal(t, 2.0, series[agent.ModeExploit][2].X)
	assert.Equal(t, 1.0, series[agent.ModeExploit][2].Y)
}

func TestLearningCurve_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.png")

	require.NoError(t, LearningCurve(path, "bitflip", sampleTrials()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestLearningCurve_SingleMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explore.png")
	trials := []agent.TrialMetrics{{Mode: agent.ModeExplore, Steps: 3}}

	assert.NoError(t, LearningCurve(path, "", trials))
	assert.FileExists(t, path)
}

func TestLearningCurve_NoTrials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")

	assert.ErrorIs(t, LearningCurve(path, "", nil), ErrNoTrials)
	assert.NoFileExists(t, path)
}
