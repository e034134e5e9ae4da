package her

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/perception"
)

// GoalSampler picks substitute goals among the states a trial achieved.
type GoalSampler struct {
	strategy config.Strategy
	goals    int
	src      rand.Source
}

// NewGoalSampler creates a sampler for a resolved strategy. goals bounds the
// number of substitute goals per step for future and episode; final always
// yields exactly one. A nil source is replaced by one seeded from the clock.
func NewGoalSampler(strategy config.Strategy, goals int, src rand.Source) (*GoalSampler, error) {
	switch strategy {
	case config.StrategyFinal, config.StrategyFuture, config.StrategyEpisode:
	case config.StrategyUnset:
		return nil, fmt.Errorf("her strategy must be resolved before sampling")
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStrategy, strategy)
	}
	if goals <= 0 {
		return nil, fmt.Errorf("her goals number must be positive, got %d", goals)
	}
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &GoalSampler{strategy: strategy, goals: goals, src: src}, nil
}

// Strategy returns the strategy the sampler was built with.
func (g *GoalSampler) Strategy() config.Strategy {
	return g.strategy
}

// Sample returns the achieved next-states chosen as substitute goals for
// step index of t. Requests larger than the candidate pool are clipped and
// an empty result is valid.
func (g *GoalSampler) Sample(t Trajectory, index int) []perception.Perception {
	if len(t) == 0 {
		return nil
	}

	switch g.strategy {
	case config.StrategyFinal:
		return []perception.Perception{t.Last().NextState}
	case config.StrategyFuture:
		if index < 0 {
			index = 0
		}
		if index >= len(t) {
			return nil
		}
		return g.pick(t[index:])
	case config.StrategyEpisode:
		return g.pick(t)
	}
	return nil
}

// pick draws min(goals, len(pool)) next-states without replacement.
func (g *GoalSampler) pick(pool Trajectory) []perception.Perception {
	k := min(g.goals, len(pool))
	if k <= 0 {
		return nil
	}

	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, len(pool), g.src)

	goals := make([]perception.Perception, k)
	for i, idx := range idxs {
		goals[i] = pool[idx].NextState
	}
	return goals
}
