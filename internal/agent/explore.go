package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cartridge/acs2her/internal/her"
	"github.com/cartridge/acs2her/internal/perception"
	"github.com/cartridge/acs2her/internal/replay"
)

// runTrialExplore plays one episode on raw states, then for every step
// stores the real sample and its hindsight relabelings and learns from
// replay.
func (a *Agent) runTrialExplore(ctx context.Context, env Environment, clock int) (TrialMetrics, error) {
	a.logger.Debug().Msg("Running trial explore")

	traj, err := a.playExplore(env)
	if err != nil {
		return TrialMetrics{}, err
	}

	trialID := uuid.New().String()
	for i := range traj {
		samples := a.samplesFor(trialID, traj, i)
		if _, err := a.memory.StoreBatch(ctx, samples); err != nil {
			return TrialMetrics{}, fmt.Errorf("failed to store samples of step %d: %w", i, err)
		}
		if err := a.learn(ctx, clock, len(traj)); err != nil {
			return TrialMetrics{}, err
		}
	}

	return TrialMetrics{
		TrialID: trialID,
		Steps:   len(traj),
		Reward:  traj.Last().Reward,
	}, nil
}

// playExplore collects the trajectory of one episode. The desired goal is
// queried once, right after reset.
func (a *Agent) playExplore(env Environment) (her.Trajectory, error) {
	state, err := env.Reset()
	if err != nil {
		return nil, fmt.Errorf("failed to reset environment: %w", err)
	}
	if err := a.checkLength("state", state); err != nil {
		return nil, err
	}
	goal := env.DesiredGoal()
	if err := a.checkLength("goal", goal); err != nil {
		return nil, err
	}
	a.mainGoal = goal.Clone()

	var traj her.Trajectory
	for done := false; !done; {
		matchSet := a.population.FormMatchSet(state)
		action := a.explore.SelectAction(matchSet)

		a.logger.Debug().Int("action", action).Msg("Executing action")

		next, reward, stepDone, err := env.Step(action)
		if err != nil {
			return nil, fmt.Errorf("failed to step environment: %w", err)
		}
		if err := a.checkLength("state", next); err != nil {
			return nil, err
		}

		traj = append(traj, her.Step{
			PrevState: state,
			Action:    action,
			Reward:    reward,
			NextState: next,
			Done:      stepDone,
		})
		state, done = next, stepDone
	}
	return traj, nil
}

// samplesFor builds the real sample of step i followed by one hindsight
// sample per substitute goal.
func (a *Agent) samplesFor(trialID string, traj her.Trajectory, i int) []*replay.Sample {
	step := traj[i]
	goals := a.goals.Sample(traj, i)

	samples := make([]*replay.Sample, 0, 1+len(goals))
	samples = append(samples, &replay.Sample{
		TrialID:   trialID,
		Step:      i,
		State:     perception.Concat(step.PrevState, a.mainGoal),
		Action:    step.Action,
		Reward:    a.realReward(traj, i),
		NextState: perception.Concat(step.NextState, a.mainGoal),
		Done:      step.Done,
	})

	for _, goal := range goals {
		samples = append(samples, &replay.Sample{
			TrialID:   trialID,
			Step:      i,
			State:     perception.Concat(step.PrevState, goal),
			Action:    step.Action,
			Reward:    a.relabeler.Reward(step.NextState, goal),
			NextState: perception.Concat(step.NextState, goal),
			Done:      false,
			Hindsight: true,
		})
	}
	return samples
}

// learn replays a batch from memory into the population. Each sample goes
// through ALP, RL and optionally GA at clock+steps.
func (a *Agent) learn(ctx context.Context, clock, steps int) error {
	samples, err := a.memory.Sample(ctx, &replay.SampleConfig{BatchSize: a.cfg.ERSamplesNumber})
	if errors.Is(err, replay.ErrEmpty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to sample replay memory: %w", err)
	}

	now := clock + steps
	for _, s := range samples {
		matchSet := a.population.FormMatchSet(s.State)
		actionSet := matchSet.FormActionSet(s.Action)
		nextMatchSet := a.population.FormMatchSet(s.NextState)

		if err := a.population.ApplyALP(nextMatchSet, actionSet, s.State, s.Action, s.NextState,
			now, a.cfg.ThetaExp, a.cfg); err != nil {
			return fmt.Errorf("alp failed: %w", err)
		}

		bootstrap := 0.0
		if !s.Done {
			bootstrap = nextMatchSet.MaxFitness()
		}
		if err := a.population.ApplyRL(actionSet, s.Reward, bootstrap, a.cfg.Beta, a.cfg.Gamma); err != nil {
			return fmt.Errorf("rl failed: %w", err)
		}

		if a.cfg.DoGA {
			gaMatchSet := nextMatchSet
			if s.Done {
				gaMatchSet = a.population.EmptyMatchSet()
			}
			if err := a.population.ApplyGA(now, gaMatchSet, actionSet, s.NextState, a.cfg.GAParams()); err != nil {
				return fmt.Errorf("ga failed: %w", err)
			}
		}
	}
	return nil
}
