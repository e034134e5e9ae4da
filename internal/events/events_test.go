package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/acs2her/internal/agent"
	"github.com/cartridge/acs2her/internal/metrics"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	published []message
	failOn    string
	closed    bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if subject == f.failOn {
		return errors.New("nats: connection closed")
	}
	f.published = append(f.published, message{subject, data})
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

type recordingPublisher struct {
	trials    []TrialEvent
	summaries []SummaryEvent
	err       error
}

func (r *recordingPublisher) PublishTrial(_ context.Context, e TrialEvent) error {
	r.trials = append(r.trials, e)
	return r.err
}

func (r *recordingPublisher) PublishSummary(_ context.Context, e SummaryEvent) error {
	r.summaries = append(r.summaries, e)
	return r.err
}

func TestNATSPublisher_PublishTrial(t *testing.T) {
	c := &fakeConn{}
	p := newNATSPublisher(c, "acs2her", zerolog.Nop())

	err := p.PublishTrial(context.Background(), TrialEvent{
		RunID:        "run-1",
		TrialMetrics: agent.TrialMetrics{Trial: 2, Mode: agent.ModeExploit, Steps: 3},
	})
	require.NoError(t, err)
	require.Len(t, c.published, 1)
	assert.Equal(t, "acs2her.trials", c.published[0].subject)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.published[0].data, &body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "exploit", body["mode"])
	assert.Equal(t, float64(3), body["steps"])
}

func TestNATSPublisher_SolvedTrialsAreRouted(t *testing.T) {
	c := &fakeConn{}
	p := newNATSPublisher(c, "acs2her", zerolog.Nop())

	require.NoError(t, p.PublishTrial(context.Background(), TrialEvent{TrialMetrics: agent.TrialMetrics{Reward: 1}}))
	require.Len(t, c.published, 2)
	assert.Equal(t, "acs2her.trials.solved", c.published[1].subject)
	assert.Equal(t, c.published[0].data, c.published[1].data)
}

func TestNATSPublisher_Errors(t *testing.T) {
	c := &fakeConn{failOn: "acs2her.trials"}
	p := newNATSPublisher(c, "acs2her", zerolog.Nop())
	assert.Error(t, p.PublishTrial(context.Background(), TrialEvent{}))

	// A failing routing key does not fail the publish.
	c = &fakeConn{failOn: "acs2her.trials.solved"}
	p = newNATSPublisher(c, "acs2her", zerolog.Nop())
	assert.NoError(t, p.PublishTrial(context.Background(), TrialEvent{TrialMetrics: agent.TrialMetrics{Reward: 1}}))
	assert.Len(t, c.published, 1)

	p.Close()
	assert.True(t, c.closed)
}

func TestNATSPublisher_PublishSummary(t *testing.T) {
	c := &fakeConn{}
	p := newNATSPublisher(c, "runs", zerolog.Nop())

	require.NoError(t, p.PublishSummary(context.Background(), SummaryEvent{
		RunID:   "run-2",
		Summary: metrics.Summary{Mode: "explore", Trials: 4, SuccessRate: 0.5},
	}))
	require.Len(t, c.published, 1)
	assert.Equal(t, "runs.summary", c.published[0].subject)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.published[0].data, &body))
	assert.Equal(t, "run-2", body["run_id"])
	assert.Equal(t, 0.5, body["success_rate"])
}

func TestTrialObserver(t *testing.T) {
	pub := &recordingPublisher{}
	o := NewTrialObserver(context.Background(), "run-3", pub, zerolog.Nop())

	o.ObserveTrial(agent.TrialMetrics{Trial: 7})
	require.Len(t, pub.trials, 1)
	assert.Equal(t, "run-3", pub.trials[0].RunID)
	assert.Equal(t, 7, pub.trials[0].Trial)
}

func TestTrialObserver_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	pub := &recordingPublisher{err: errors.New("unreachable")}
	o := NewTrialObserver(context.Background(), "run-4", pub, zerolog.New(&buf))

	o.ObserveTrial(agent.TrialMetrics{Trial: 1})
	assert.Contains(t, buf.String(), "Failed to publish trial event")
}

func TestPublishSummaries(t *testing.T) {
	collector := metrics.NewCollector(zerolog.Nop(), 0)
	collector.ObserveTrial(agent.TrialMetrics{Mode: agent.ModeExplore, Steps: 2, Reward: 1})

	pub := &recordingPublisher{}
	require.NoError(t, PublishSummaries(context.Background(), "run-5", pub, collector))
	require.Len(t, pub.summaries, 2)
	assert.Equal(t, "explore", pub.summaries[0].Mode)
	assert.Equal(t, 1, pub.summaries[0].Trials)
	assert.Equal(t, "exploit", pub.summaries[1].Mode)
	assert.Equal(t, 0, pub.summaries[1].Trials)

	pub = &recordingPublisher{err: errors.New("down")}
	assert.Error(t, PublishSummaries(context.Background(), "run-5", pub, collector))
	assert.Len(t, pub.summaries, 1)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishTrial(context.Background(), TrialEvent{}))
	assert.NoError(t, p.PublishSummary(context.Background(), SummaryEvent{}))
}
