// Package lcs declares the contract between the hindsight agent and a
// learning classifier system. The agent never looks inside a rule; it only
// forms sets and asks the population to learn from them.
package lcs

import (
	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/perception"
)

// ActionSet is the subset of a match set advocating one action.
type ActionSet interface {
	Len() int
}

// MatchSet is the subset of the population matching one perception.
type MatchSet interface {
	Len() int

	// FormActionSet selects the rules advocating action.
	FormActionSet(action int) ActionSet

	// MaxFitness is the bootstrap value used by reinforcement learning: the
	// best fitness among rules anticipating a change, or 0.
	MaxFitness() float64

	// ActionValues maps each action to the best numerosity-weighted fitness
	// among change-anticipating rules advocating it. Other actions are absent.
	ActionValues() map[int]float64
}

// Population is the mutable rule set. All learning mutates it in place.
type Population interface {
	// Size is the number of distinct rules.
	Size() int

	FormMatchSet(p perception.Perception) MatchSet

	// EmptyMatchSet is handed to the genetic algorithm in place of the
	// successor match set of a terminal transition.
	EmptyMatchSet() MatchSet

	// ApplyALP runs the anticipatory learning process for the transition
	// p0 --action--> p1 on actionSet, growing nextMatchSet with new rules
	// that match p1.
	ApplyALP(nextMatchSet MatchSet, actionSet ActionSet, p0 perception.Perception, action int,
		p1 perception.Perception, time, thetaExp int, cfg *config.Config) error

	// ApplyRL updates the reward predictions of actionSet towards
	// reward + gamma*bootstrap.
	ApplyRL(actionSet ActionSet, reward, bootstrap, beta, gamma float64) error

	// ApplyGA runs genetic generalization on actionSet if enough time has
	// passed since it was last applied there.
	ApplyGA(time int, nextMatchSet MatchSet, actionSet ActionSet, p1 perception.Perception, ga config.GAParams) error
}
