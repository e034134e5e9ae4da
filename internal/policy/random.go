package policy

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"github.com/cartridge/acs2her/internal/lcs"
)

// RandomPolicy selects uniformly among all actions
type RandomPolicy struct {
	rng     *rand.Rand
	actions int
}

// NewRandom creates a random policy over actions possible actions. A nil
// source is replaced by one seeded from the clock.
func NewRandom(actions int, src rand.Source) (*RandomPolicy, error) {
	if actions <= 0 {
		return nil, fmt.Errorf("number of actions must be positive, got %d", actions)
	}
	return &RandomPolicy{
		rng:     rand.New(sourceOrClock(src)),
		actions: actions,
	}, nil
}

// SelectAction implements Policy interface
func (p *RandomPolicy) SelectAction(lcs.MatchSet) int {
	return p.rng.Intn(p.actions)
}

func sourceOrClock(src rand.Source) rand.Source {
	if src != nil {
		return src
	}
	return rand.NewSource(uint64(time.Now().UnixNano()))
}
