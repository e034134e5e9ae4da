// Package policy provides action selection strategies for the agent
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/lcs"
)

// Policy interface for action selection
type Policy interface {
	// SelectAction chooses an action index given the current match set
	SelectAction(matchSet lcs.MatchSet) int
}

// Names accepted by New
const (
	NameRandom        = config.PolicyRandom
	NameBestAction    = config.PolicyBestAction
	NameEpsilonGreedy = config.PolicyEpsilonGreedy
)

// New builds a policy by name. epsilon is only used by epsilon_greedy.
func New(name string, actions int, epsilon float64, src rand.Source) (Policy, error) {
	switch name {
	case NameRandom:
		return NewRandom(actions, src)
	case NameBestAction:
		return NewBestAction(actions, src)
	case NameEpsilonGreedy:
		return NewEpsilonGreedy(epsilon, actions, src)
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
