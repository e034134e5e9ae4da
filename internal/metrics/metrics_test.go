package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/acs2her/internal/agent"
)

func TestCollector_ObserveTrialLogs(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.New(&buf), 10)

	c.ObserveTrial(agent.TrialMetrics{Trial: 3, Mode: agent.ModeExploit, Steps: 4, Reward: 1, ReplaySize: 12})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trial_finished", entry["metric"])
	assert.Equal(t, "exploit", entry["mode"])
	assert.Equal(t, float64(4), entry["steps"])
	assert.Equal(t, float64(12), entry["replay_size"])
}

func TestCollector_TrialsFilter(t *testing.T) {
	c := NewCollector(zerolog.Nop(), 0)
	c.ObserveTrial(agent.TrialMetrics{Trial: 0, Mode: agent.ModeExplore})
	c.ObserveTrial(agent.TrialMetrics{Trial: 1, Mode: agent.ModeExploit})
	c.ObserveTrial(agent.TrialMetrics{Trial: 2, Mode: agent.ModeExplore})

	assert.Len(t, c.Trials(nil), 3)

	explore := agent.ModeExplore
	trials := c.Trials(&explore)
	require.Len(t, trials, 2)
	assert.Equal(t, 0, trials[0].Trial)
	assert.Equal(t, 2, trials[1].Trial)
}

func TestCollector_Summarize(t *testing.T) {
	c := NewCollector(zerolog.Nop(), 3)
	for i, steps := range []int{100, 2, 4, 6} {
		reward := 0.0
		if i%2 == 1 {
			reward = 1
		}
		c.ObserveTrial(agent.TrialMetrics{Trial: i, Mode: agent.ModeExplore, Steps: steps, Reward: reward})
	}

	s := c.Summarize(agent.ModeExplore)
	assert.Equal(t, "explore", s.Mode)
	assert.Equal(t, 3, s.Trials, "only the window is summarized")
	assert.InDelta(t, 4.0, s.MeanSteps, 1e-12)
	assert.InDelta(t, 2.0, s.StdSteps, 1e-12)
	assert.InDelta(t, 2.0/3, s.MeanReward, 1e-12)
	assert.InDelta(t, 2.0/3, s.SuccessRate, 1e-12)
}

func TestCollector_SummarizeEdgeCases(t *testing.T) {
	c := NewCollector(zerolog.Nop(), 0)

	empty := c.Summarize(agent.ModeExploit)
	assert.Equal(t, 0, empty.Trials)
	assert.Zero(t, empty.MeanSteps)

	c.ObserveTrial(agent.TrialMetrics{Mode: agent.ModeExploit, Steps: 5, Reward: 1})
	single := c.Summarize(agent.ModeExploit)
	assert.Equal(t, 1, single.Trials)
	assert.Equal(t, 5.0, single.MeanSteps)
	assert.Zero(t, single.StdSteps)
	assert.Equal(t, 1.0, single.SuccessRate)
}

func TestCollector_LogSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(zerolog.Nop(), 0)
	c.ObserveTrial(agent.TrialMetrics{Mode: agent.ModeExplore, Steps: 5})
	c.logger = zerolog.New(&buf)

	c.LogSummary()
	c.APIRequest("GET", "/healthz", 200, time.Millisecond)

	assert.Contains(t, buf.String(), `"metric":"summary"`)
	assert.Contains(t, buf.String(), `"mode":"explore"`)
	assert.NotContains(t, buf.String(), `"mode":"exploit"`)
	assert.Contains(t, buf.String(), `"metric":"api_request"`)
}
