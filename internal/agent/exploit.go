package agent

import (
	"fmt"

	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
)

// runTrialExploit plays one greedy episode on goal-augmented states. The
// previous action set is reinforced with the bootstrap of the current match
// set; the final one with zero. Nothing is stored for replay.
func (a *Agent) runTrialExploit(env Environment) (TrialMetrics, error) {
	a.logger.Debug().Msg("Running trial exploit")

	state, err := env.Reset()
	if err != nil {
		return TrialMetrics{}, fmt.Errorf("failed to reset environment: %w", err)
	}
	if err := a.checkLength("state", state); err != nil {
		return TrialMetrics{}, err
	}
	goal := env.DesiredGoal()
	if err := a.checkLength("goal", goal); err != nil {
		return TrialMetrics{}, err
	}
	a.mainGoal = goal.Clone()

	var (
		steps      int
		lastReward float64
		actionSet  lcs.ActionSet
	)

	for done := false; !done; {
		matchSet := a.population.FormMatchSet(perception.Concat(state, a.mainGoal))

		if steps > 0 {
			if err := a.population.ApplyRL(actionSet, lastReward, matchSet.MaxFitness(),
				a.cfg.Beta, a.cfg.Gamma); err != nil {
				return TrialMetrics{}, fmt.Errorf("rl failed: %w", err)
			}
		}

		action := a.exploit.SelectAction(matchSet)
		actionSet = matchSet.FormActionSet(action)

		next, reward, stepDone, err := env.Step(action)
		if err != nil {
			return TrialMetrics{}, fmt.Errorf("failed to step environment: %w", err)
		}
		if err := a.checkLength("state", next); err != nil {
			return TrialMetrics{}, err
		}
		state, lastReward, done = next, reward, stepDone

		if done {
			if err := a.population.ApplyRL(actionSet, lastReward, 0, a.cfg.Beta, a.cfg.Gamma); err != nil {
				return TrialMetrics{}, fmt.Errorf("rl failed: %w", err)
			}
		}
		steps++
	}

	return TrialMetrics{Steps: steps, Reward: lastReward}, nil
}
