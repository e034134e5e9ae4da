// Package her implements hindsight goal relabeling: choosing which achieved
// states of a finished trial stand in for the goal, and what reward reaching
// them is worth.
package her

import "github.com/cartridge/acs2her/internal/perception"

// Step is one environment interaction of a trial.
type Step struct {
	PrevState perception.Perception
	Action    int
	Reward    float64
	NextState perception.Perception
	Done      bool
}

// Trajectory is the chronological list of steps of a single trial. It ends on
// the first Done step.
type Trajectory []Step

// Last returns the final step. It panics on an empty trajectory.
func (t Trajectory) Last() Step {
	return t[len(t)-1]
}
