package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/cartridge/acs2her/internal/agent"
)

// Summary aggregates the most recent trials of one mode.
type Summary struct {
	Mode        string  `json:"mode"`
	Trials      int     `json:"trials"`
	Window      int     `json:"window"`
	MeanSteps   float64 `json:"mean_steps"`
	StdSteps    float64 `json:"std_steps"`
	MeanReward  float64 `json:"mean_reward"`
	SuccessRate float64 `json:"success_rate"`
}

// Metrics collector for training runs
type Collector struct {
	logger zerolog.Logger
	window int

	mu     sync.RWMutex
	trials []agent.TrialMetrics
}

// NewCollector creates a collector summarizing the last window trials of
// each mode. A non-positive window summarizes every trial.
func NewCollector(logger zerolog.Logger, window int) *Collector {
	return &Collector{
		logger: logger,
		window: window,
	}
}

var _ agent.TrialObserver = (*Collector)(nil)

// Track finished trials
func (c *Collector) ObserveTrial(m agent.TrialMetrics) {
	c.mu.Lock()
	c.trials = append(c.trials, m)
	c.mu.Unlock()

	c.logger.Info().
		Str("metric", "trial_finished").
		Int("trial", m.Trial).
		Str("mode", m.Mode.String()).
		Int("steps", m.Steps).
		Float64("reward", m.Reward).
		Int("population_size", m.PopulationSize).
		Int("replay_size", m.ReplaySize).
		Dur("duration", m.Duration).
		Msg("Trial metric")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.logger.Debug().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}

// Trials returns a copy of every recorded trial, optionally restricted to one
// mode.
func (c *Collector) Trials(mode *agent.Mode) []agent.TrialMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]agent.TrialMetrics, 0, len(c.trials))
	for _, m := range c.trials {
		if mode == nil || m.Mode == *mode {
			out = append(out, m)
		}
	}
	return out
}

// Summarize computes statistics over the last window trials of mode. A trial
// counts as a success when its final reward is positive.
func (c *Collector) Summarize(mode agent.Mode) Summary {
	trials := c.Trials(&mode)
	if c.window > 0 && len(trials) > c.window {
		trials = trials[len(trials)-c.window:]
	}

	s := Summary{Mode: mode.String(), Trials: len(trials), Window: c.window}
	if len(trials) == 0 {
		return s
	}

	steps := make([]float64, len(trials))
	rewards := make([]float64, len(trials))
	successes := 0
	for i, m := range trials {
		steps[i] = float64(m.Steps)
		rewards[i] = m.Reward
		if m.Reward > 0 {
			successes++
		}
	}

	s.MeanSteps, s.StdSteps = stat.MeanStdDev(steps, nil)
	if len(trials) == 1 {
		s.StdSteps = 0
	}
	s.MeanReward = stat.Mean(rewards, nil)
	s.SuccessRate = float64(successes) / float64(len(trials))
	return s
}

// LogSummary writes the summaries of both modes.
func (c *Collector) LogSummary() {
	for _, mode := range []agent.Mode{agent.ModeExplore, agent.ModeExploit} {
		s := c.Summarize(mode)
		if s.Trials == 0 {
			continue
		}
		c.logger.Info().
			Str("metric", "summary").
			Str("mode", s.Mode).
			Int("trials", s.Trials).
			Float64("mean_steps", s.MeanSteps).
			Float64("std_steps", s.StdSteps).
			Float64("mean_reward", s.MeanReward).
			Float64("success_rate", s.SuccessRate).
			Msg("Training summary")
	}
}
