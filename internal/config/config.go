package config

import (
	"errors"
	"fmt"

	"github.com/cartridge/acs2her/internal/perception"
)

// Strategy selects which achieved states become substitute goals.
type Strategy string

const (
	// StrategyUnset resolves to final or future depending on HERGoalsNumber.
	StrategyUnset   Strategy = ""
	StrategyFinal   Strategy = "final"
	StrategyFuture  Strategy = "future"
	StrategyEpisode Strategy = "episode"
)

// ErrUnknownStrategy is returned when a strategy name is not one of final,
// future or episode.
var ErrUnknownStrategy = errors.New("unknown her strategy")

// ParseStrategy converts a name into a Strategy. The empty string is accepted
// and yields StrategyUnset.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case StrategyUnset, StrategyFinal, StrategyFuture, StrategyEpisode:
		return s, nil
	default:
		return StrategyUnset, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Exploration policy names accepted by Config.ExplorePolicy.
const (
	PolicyRandom        = "random"
	PolicyBestAction    = "best_action"
	PolicyEpsilonGreedy = "epsilon_greedy"
)

// RewardFunc computes the reward of reaching achieved while pursuing goal.
type RewardFunc func(achieved, goal perception.Perception) float64

// GAParams groups the genetic algorithm settings handed to the substrate.
type GAParams struct {
	ThetaGA       int
	Mu            float64
	Chi           float64
	ThetaAS       int
	DoSubsumption bool
	ThetaExp      int
}

// Config holds the agent and substrate hyperparameters
type Config struct {
	// Perception layout
	ClassifierLength        int    `mapstructure:"classifier_length"`
	NumberOfPossibleActions int    `mapstructure:"number_of_possible_actions"`
	ClassifierWildcard      string `mapstructure:"classifier_wildcard"`

	// Anticipatory learning
	ThetaI   float64 `mapstructure:"theta_i"`
	ThetaR   float64 `mapstructure:"theta_r"`
	ThetaExp int     `mapstructure:"theta_exp"`
	UMax     int     `mapstructure:"u_max"`

	// Reinforcement learning
	Beta          float64 `mapstructure:"beta"`
	Gamma         float64 `mapstructure:"gamma"`
	Epsilon       float64 `mapstructure:"epsilon"`
	ExplorePolicy string  `mapstructure:"explore_policy"`

	// Genetic generalization
	DoGA          bool    `mapstructure:"do_ga"`
	ThetaGA       int     `mapstructure:"theta_ga"`
	Mu            float64 `mapstructure:"mu"`
	Chi           float64 `mapstructure:"chi"`
	ThetaAS       int     `mapstructure:"theta_as"`
	DoSubsumption bool    `mapstructure:"do_subsumption"`

	// Experience replay
	ERBufferSize    int `mapstructure:"er_buffer_size"`
	ERSamplesNumber int `mapstructure:"er_samples_number"`

	// Hindsight
	HERStrategy    Strategy `mapstructure:"her_strategy"`
	HERGoalsNumber int      `mapstructure:"her_goals_number"`

	// HERRewardFunc replaces the sparse indicator reward for hindsight
	// samples when set. Its output is used unmodified.
	HERRewardFunc RewardFunc `mapstructure:"-"`
}

// Default returns a config with the usual ACS2 settings for a perception of
// the given (non goal-augmented) length.
func Default(stateLength, actions int) *Config {
	return &Config{
		ClassifierLength:        2 * stateLength,
		NumberOfPossibleActions: actions,
		ClassifierWildcard:      "#",
		ThetaI:                  0.1,
		ThetaR:                  0.9,
		ThetaExp:                20,
		UMax:                    100000,
		Beta:                    0.05,
		Gamma:                   0.95,
		Epsilon:                 0.5,
		ExplorePolicy:           PolicyEpsilonGreedy,
		DoGA:                    false,
		ThetaGA:                 100,
		Mu:                      0.3,
		Chi:                     0.8,
		ThetaAS:                 20,
		DoSubsumption:           true,
		ERBufferSize:            10000,
		ERSamplesNumber:         3,
		HERStrategy:             StrategyUnset,
		HERGoalsNumber:          1,
	}
}

// ResolveStrategy fills in an unset strategy: final when a single goal is
// requested, future otherwise. Unknown strategies are rejected here so that
// trials never see them.
func (c *Config) ResolveStrategy() error {
	s, err := ParseStrategy(string(c.HERStrategy))
	if err != nil {
		return err
	}
	if s == StrategyUnset {
		if c.HERGoalsNumber == 1 {
			s = StrategyFinal
		} else {
			s = StrategyFuture
		}
	}
	c.HERStrategy = s
	return nil
}

// GAParams returns the genetic algorithm settings.
func (c *Config) GAParams() GAParams {
	return GAParams{
		ThetaGA:       c.ThetaGA,
		Mu:            c.Mu,
		Chi:           c.Chi,
		ThetaAS:       c.ThetaAS,
		DoSubsumption: c.DoSubsumption,
		ThetaExp:      c.ThetaExp,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ClassifierLength <= 0 || c.ClassifierLength%2 != 0 {
		return fmt.Errorf("classifier_length must be a positive even number, got %d", c.ClassifierLength)
	}
	if c.NumberOfPossibleActions <= 0 {
		return fmt.Errorf("number_of_possible_actions must be positive")
	}
	if c.ClassifierWildcard == "" {
		return fmt.Errorf("classifier_wildcard is required")
	}
	if c.Beta <= 0 || c.Beta > 1 {
		return fmt.Errorf("beta must be in (0, 1], got %v", c.Beta)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must be in [0, 1], got %v", c.Epsilon)
	}
	switch c.ExplorePolicy {
	case PolicyRandom, PolicyBestAction, PolicyEpsilonGreedy:
	default:
		return fmt.Errorf("explore_policy must be random, best_action or epsilon_greedy, got %q", c.ExplorePolicy)
	}
	if c.ERBufferSize <= 0 {
		return fmt.Errorf("er_buffer_size must be positive")
	}
	if c.ERSamplesNumber <= 0 {
		return fmt.Errorf("er_samples_number must be positive")
	}
	if c.HERGoalsNumber <= 0 {
		return fmt.Errorf("her_goals_number must be positive")
	}
	if _, err := ParseStrategy(string(c.HERStrategy)); err != nil {
		return err
	}
	if c.DoGA && c.ThetaAS <= 0 {
		return fmt.Errorf("theta_as must be positive when do_ga is set")
	}
	return nil
}
