// Package agent runs ACS2 trials with hindsight experience replay: explore
// trials relabel achieved states as substitute goals and learn from replay,
// exploit trials act greedily towards the desired goal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/her"
	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
	"github.com/cartridge/acs2her/internal/policy"
	"github.com/cartridge/acs2her/internal/replay"
)

// ErrPerceptionLength is returned when an observed state or goal is not half
// the classifier length. The trial is aborted.
var ErrPerceptionLength = errors.New("perception length does not match classifier length")

// TrialMetrics summarizes one finished trial.
type TrialMetrics struct {
	Trial          int           `json:"trial"`
	TrialID        string        `json:"trial_id,omitempty"`
	Mode           Mode          `json:"mode"`
	Steps          int           `json:"steps"`
	Reward         float64       `json:"reward"`
	PopulationSize int           `json:"population_size"`
	ReplaySize     int           `json:"replay_size"`
	Duration       time.Duration `json:"duration"`
}

// TrialObserver is notified after every trial run by the training loops.
type TrialObserver interface {
	ObserveTrial(m TrialMetrics)
}

// Agent couples a rule population with a replay memory. It is not safe for
// concurrent use.
type Agent struct {
	cfg        *config.Config
	population lcs.Population
	memory     replay.Backend

	goals      *her.GoalSampler
	relabeler  *her.Relabeler
	realReward her.RealRewardPolicy

	explore policy.Policy
	exploit policy.Policy

	logger    zerolog.Logger
	observers []TrialObserver

	mainGoal perception.Perception
	clock    int
	trials   int
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithObserver registers an observer for the training loops. Observers are
// notified in registration order.
func WithObserver(observer TrialObserver) Option {
	return func(a *Agent) {
		a.observers = append(a.observers, observer)
	}
}

// WithRealReward replaces her.TerminalReward as the reward of real samples.
func WithRealReward(fn her.RealRewardPolicy) Option {
	return func(a *Agent) {
		if fn != nil {
			a.realReward = fn
		}
	}
}

// WithMemory replaces the in-memory replay store.
func WithMemory(memory replay.Backend) Option {
	return func(a *Agent) {
		if memory != nil {
			a.memory = memory
		}
	}
}

// WithExplorePolicy replaces the exploration policy named by
// Config.ExplorePolicy.
func WithExplorePolicy(p policy.Policy) Option {
	return func(a *Agent) {
		if p != nil {
			a.explore = p
		}
	}
}

// New creates an agent. The hindsight strategy is resolved once here on a
// copy of cfg; an unset strategy becomes final for a single goal and future
// otherwise. A nil source is replaced by one seeded from the clock and is
// shared by every random decision of the agent.
func New(cfg *config.Config, population lcs.Population, src rand.Source, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if population == nil {
		return nil, fmt.Errorf("population is required")
	}

	resolved := *cfg
	if err := resolved.ResolveStrategy(); err != nil {
		return nil, fmt.Errorf("failed to resolve her strategy: %w", err)
	}
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	goals, err := her.NewGoalSampler(resolved.HERStrategy, resolved.HERGoalsNumber, src)
	if err != nil {
		return nil, err
	}
	explore, err := policy.New(resolved.ExplorePolicy, resolved.NumberOfPossibleActions, resolved.Epsilon, src)
	if err != nil {
		return nil, fmt.Errorf("failed to create explore policy: %w", err)
	}
	exploit, err := policy.NewBestAction(resolved.NumberOfPossibleActions, src)
	if err != nil {
		return nil, fmt.Errorf("failed to create exploit policy: %w", err)
	}

	a := &Agent{
		cfg:        &resolved,
		population: population,
		memory:     replay.NewMemoryBackend(resolved.ERBufferSize, src),
		goals:      goals,
		relabeler:  her.NewRelabeler(resolved.HERRewardFunc),
		realReward: her.TerminalReward,
		explore:    explore,
		exploit:    exploit,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger.Debug().
		Str("her_strategy", string(resolved.HERStrategy)).
		Int("her_goals_number", resolved.HERGoalsNumber).
		Int("classifier_length", resolved.ClassifierLength).
		Msg("Agent initialized")

	return a, nil
}

// Config returns the resolved configuration.
func (a *Agent) Config() *config.Config {
	return a.cfg
}

// Population returns the rule population the agent learns into.
func (a *Agent) Population() lcs.Population {
	return a.population
}

// Memory returns the replay memory explore trials store samples in.
func (a *Agent) Memory() replay.Backend {
	return a.memory
}

// Time is the number of environment steps taken by the training loops.
func (a *Agent) Time() int {
	return a.clock
}

// MainGoal is the desired goal of the most recent trial.
func (a *Agent) MainGoal() perception.Perception {
	return a.mainGoal
}

// Close releases the replay memory.
func (a *Agent) Close() error {
	return a.memory.Close()
}

// RunTrial runs a single trial in the given mode. clock is the ALP clock
// offset used by replay learning. ctx is only handed to the replay memory;
// a trial is never interrupted halfway.
func (a *Agent) RunTrial(ctx context.Context, env Environment, clock int, mode Mode) (TrialMetrics, error) {
	switch mode {
	case ModeExplore:
		return a.runTrialExplore(ctx, env, clock)
	case ModeExploit:
		return a.runTrialExploit(env)
	default:
		return TrialMetrics{}, fmt.Errorf("unknown mode %v", mode)
	}
}

// Explore runs trials explore trials.
func (a *Agent) Explore(ctx context.Context, env Environment, trials int) ([]TrialMetrics, error) {
	return a.run(ctx, env, trials, func(int) Mode { return ModeExplore })
}

// Exploit runs trials exploit trials.
func (a *Agent) Exploit(ctx context.Context, env Environment, trials int) ([]TrialMetrics, error) {
	return a.run(ctx, env, trials, func(int) Mode { return ModeExploit })
}

// ExploreExploit alternates, starting with an explore trial.
func (a *Agent) ExploreExploit(ctx context.Context, env Environment, trials int) ([]TrialMetrics, error) {
	return a.run(ctx, env, trials, func(i int) Mode {
		if i%2 == 0 {
			return ModeExplore
		}
		return ModeExploit
	})
}

// run executes trials one after another, checking ctx in between. Metrics of
// the trials completed so far are returned with any error.
func (a *Agent) run(ctx context.Context, env Environment, trials int, modeOf func(int) Mode) ([]TrialMetrics, error) {
	results := make([]TrialMetrics, 0, trials)

	for i := 0; i < trials; i++ {
		select {
		case <-ctx.Done():
			a.logger.Info().Int("completed", i).Msg("Context cancelled, stopping trials")
			return results, ctx.Err()
		default:
		}

		mode := modeOf(i)
		start := time.Now()
		m, err := a.RunTrial(ctx, env, a.clock, mode)
		if err != nil {
			return results, fmt.Errorf("trial %d (%s) failed: %w", a.trials, mode, err)
		}

		a.clock += m.Steps
		m.Trial = a.trials
		m.Mode = mode
		m.Duration = time.Since(start)
		m.PopulationSize = a.population.Size()
		if stats, err := a.memory.GetStats(ctx); err == nil {
			m.ReplaySize = int(stats.TotalSamples)
		}
		a.trials++

		for _, o := range a.observers {
			o.ObserveTrial(m)
		}
		results = append(results, m)
	}

	return results, nil
}

// checkLength enforces that a goal-augmented perception fills a classifier.
func (a *Agent) checkLength(what string, p perception.Perception) error {
	if 2*len(p) != a.cfg.ClassifierLength {
		return fmt.Errorf("%w: %s has %d symbols, classifier length is %d",
			ErrPerceptionLength, what, len(p), a.cfg.ClassifierLength)
	}
	return nil
}
