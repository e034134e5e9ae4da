package agent

import (
	"context"
	"errors"

	"github.com/cartridge/acs2her/internal/config"
	"github.com/cartridge/acs2her/internal/lcs"
	"github.com/cartridge/acs2her/internal/perception"
	"github.com/cartridge/acs2her/internal/replay"
)

// call records one interaction with the population.
type call struct {
	op        string
	state     string
	next      string
	action    int
	time      int
	reward    float64
	bootstrap float64
	gaSet     string
}

type fakeSet struct {
	tag        string
	maxFitness float64
}

func (s *fakeSet) Len() int { return 0 }

func (s *fakeSet) FormActionSet(action int) lcs.ActionSet {
	return &fakeSet{tag: s.tag}
}

func (s *fakeSet) MaxFitness() float64 { return s.maxFitness }

func (s *fakeSet) ActionValues() map[int]float64 { return map[int]float64{} }

type recordingPopulation struct {
	calls      []call
	maxFitness float64
}

func (p *recordingPopulation) Size() int { return len(p.calls) }

func (p *recordingPopulation) FormMatchSet(perc perception.Perception) lcs.MatchSet {
	p.calls = append(p.calls, call{op: "match", state: perc.String()})
	return &fakeSet{tag: perc.String(), maxFitness: p.maxFitness}
}

func (p *recordingPopulation) EmptyMatchSet() lcs.MatchSet {
	return &fakeSet{tag: "empty"}
}

func (p *recordingPopulation) ApplyALP(next lcs.MatchSet, as lcs.ActionSet, p0 perception.Perception, action int,
	p1 perception.Perception, time, thetaExp int, cfg *config.Config) error {
	p.calls = append(p.calls, call{op: "alp", state: p0.String(), next: p1.String(), action: action, time: time})
	return nil
}

func (p *recordingPopulation) ApplyRL(as lcs.ActionSet, reward, bootstrap, beta, gamma float64) error {
	p.calls = append(p.calls, call{op: "rl", state: as.(*fakeSet).tag, reward: reward, bootstrap: bootstrap})
	return nil
}

func (p *recordingPopulation) ApplyGA(time int, next lcs.MatchSet, as lcs.ActionSet, p1 perception.Perception,
	ga config.GAParams) error {
	p.calls = append(p.calls, call{op: "ga", next: p1.String(), time: time, gaSet: next.(*fakeSet).tag})
	return nil
}

func (p *recordingPopulation) ops() []string {
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.op
	}
	return out
}

func (p *recordingPopulation) only(op string) []call {
	var out []call
	for _, c := range p.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// scriptedEnv replays a fixed episode: states[0] on reset, then states[i+1]
// with rewards[i] for the i-th step. The last step is terminal.
type scriptedEnv struct {
	states  []perception.Perception
	rewards []float64
	goal    perception.Perception
	actions []int
	step    int
	resets  int
	failAt  int
}

var errStepFailed = errors.New("step failed")

func newScriptedEnv(goal string, rewards []float64, states ...string) *scriptedEnv {
	e := &scriptedEnv{rewards: rewards, goal: perception.FromString(goal), failAt: -1}
	for _, s := range states {
		e.states = append(e.states, perception.FromString(s))
	}
	return e
}

func (e *scriptedEnv) Reset() (perception.Perception, error) {
	e.step = 0
	e.resets++
	return e.states[0], nil
}

func (e *scriptedEnv) Step(action int) (perception.Perception, float64, bool, error) {
	if e.step == e.failAt {
		return nil, 0, false, errStepFailed
	}
	e.actions = append(e.actions, action)
	e.step++
	return e.states[e.step], e.rewards[e.step-1], e.step == len(e.states)-1, nil
}

func (e *scriptedEnv) DesiredGoal() perception.Perception {
	return e.goal
}

// fixedPolicy always returns the same action.
type fixedPolicy int

func (p fixedPolicy) SelectAction(lcs.MatchSet) int { return int(p) }

type observerFunc func(TrialMetrics)

func (f observerFunc) ObserveTrial(m TrialMetrics) { f(m) }

// sizeRecordingMemory records how many samples are stored whenever the agent
// samples for learning.
type sizeRecordingMemory struct {
	*replay.MemoryBackend
	sizes []int
}

func (m *sizeRecordingMemory) Sample(ctx context.Context, cfg *replay.SampleConfig) ([]*replay.Sample, error) {
	m.sizes = append(m.sizes, m.Len())
	return m.MemoryBackend.Sample(ctx, cfg)
}
