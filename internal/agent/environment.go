package agent

import (
	"fmt"

	"github.com/cartridge/acs2her/internal/perception"
)

// Environment is a goal-conditioned episodic task. It is borrowed by the
// agent for the duration of a trial.
type Environment interface {
	// Reset starts a new episode and returns the initial state.
	Reset() (perception.Perception, error)

	// Step executes action and returns the next state, the reward and
	// whether the episode ended.
	Step(action int) (perception.Perception, float64, bool, error)

	// DesiredGoal is the state the current episode asks to reach.
	DesiredGoal() perception.Perception
}

// Mode selects how a trial is run.
type Mode int

const (
	// ModeExplore matches on raw states, stores real and hindsight samples
	// and learns from replay after every step.
	ModeExplore Mode = iota

	// ModeExploit matches on goal-augmented states, acts greedily and
	// applies online reinforcement only.
	ModeExploit
)

func (m Mode) String() string {
	switch m {
	case ModeExplore:
		return "explore"
	case ModeExploit:
		return "exploit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
