package her

import (
	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/perception"
)

// SparseReward is 1 when the achieved state equals the goal and 0 otherwise.
func SparseReward(achieved, goal perception.Perception) float64 {
	if achieved.Equal(goal) {
		return 1
	}
	return 0
}

// Relabeler computes the reward of a hindsight sample.
type Relabeler struct {
	fn config.RewardFunc
}

// NewRelabeler uses custom when non-nil and SparseReward otherwise.
func NewRelabeler(custom config.RewardFunc) *Relabeler {
	if custom == nil {
		custom = SparseReward
	}
	return &Relabeler{fn: custom}
}

// Reward returns the reward for reaching achieved while pursuing goal.
func (r *Relabeler) Reward(achieved, goal perception.Perception) float64 {
	return r.fn(achieved, goal)
}

// RealRewardPolicy decides the reward stored with the real (non-hindsight)
// sample of step index.
type RealRewardPolicy func(t Trajectory, index int) float64

// TerminalReward gives every real sample the reward observed on the final
// step of the trial. This is the agent's default.
func TerminalReward(t Trajectory, _ int) float64 {
	return t.Last().Reward
}

// StepReward gives each real sample its own step reward.
func StepReward(t Trajectory, index int) float64 {
	return t[index].Reward
}
