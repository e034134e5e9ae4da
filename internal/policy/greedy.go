package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/lcs"
)

// BestActionPolicy picks the action advocated by the fittest rule that
// anticipates a change. Ties go to the lowest action index. When no rule
// anticipates a change it falls back to a random action.
type BestActionPolicy struct {
	fallback *RandomPolicy
}

// NewBestAction creates a greedy policy over actions possible actions
func NewBestAction(actions int, src rand.Source) (*BestActionPolicy, error) {
	fallback, err := NewRandom(actions, src)
	if err != nil {
		return nil, err
	}
	return &BestActionPolicy{fallback: fallback}, nil
}

// SelectAction implements Policy interface
func (p *BestActionPolicy) SelectAction(matchSet lcs.MatchSet) int {
	best, found := -1, false
	bestValue := 0.0
	for action, value := range matchSet.ActionValues() {
		if action < 0 || action >= p.fallback.actions {
			continue
		}
		if !found || value > bestValue || (value == bestValue && action < best) {
			best, bestValue, found = action, value, true
		}
	}
	if !found {
		return p.fallback.SelectAction(matchSet)
	}
	return best
}

// EpsilonGreedyPolicy explores with probability epsilon and is greedy
// otherwise
type EpsilonGreedyPolicy struct {
	epsilon float64
	rng     *rand.Rand
	random  *RandomPolicy
	best    *BestActionPolicy
}

// NewEpsilonGreedy creates an epsilon-greedy policy
func NewEpsilonGreedy(epsilon float64, actions int, src rand.Source) (*EpsilonGreedyPolicy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("epsilon must be in [0, 1], got %v", epsilon)
	}
	src = sourceOrClock(src)
	random, err := NewRandom(actions, src)
	if err != nil {
		return nil, err
	}
	best, err := NewBestAction(actions, src)
	if err != nil {
		return nil, err
	}
	return &EpsilonGreedyPolicy{
		epsilon: epsilon,
		rng:     rand.New(src),
		random:  random,
		best:    best,
	}, nil
}

// SelectAction implements Policy interface
func (p *EpsilonGreedyPolicy) SelectAction(matchSet lcs.MatchSet) int {
	if p.rng.Float64() < p.epsilon {
		return p.random.SelectAction(matchSet)
	}
	return p.best.SelectAction(matchSet)
}
