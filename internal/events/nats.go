package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL, nats.Name("acs2her"))
	if err != nil {
		return nil, err
	}
	return newNATSPublisher(nc, subject, logger), nil
}

func newNATSPublisher(c conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    c,
		subject: subject,
		logger:  logger,
	}
}

// Close closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// PublishTrial publishes a trial event on <subject>.trials. Solved trials
// are repeated on <subject>.trials.solved.
func (n *NATSPublisher) PublishTrial(ctx context.Context, event TrialEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := n.subject + ".trials"
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish trial event")
		return err
	}

	if event.Solved() {
		routingKey := subject + ".solved"
		if err := n.conn.Publish(routingKey, data); err != nil {
			n.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to routing key")
		}
	}

	n.logger.Debug().
		Str("run_id", event.RunID).
		Int("trial", event.Trial).
		Str("subject", subject).
		Msg("Published trial event")

	return nil
}

// PublishSummary publishes a summary event on <subject>.summary.
func (n *NATSPublisher) PublishSummary(ctx context.Context, event SummaryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := n.subject + ".summary"
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish summary event")
		return err
	}

	n.logger.Debug().
		Str("run_id", event.RunID).
		Str("mode", event.Mode).
		Str("subject", subject).
		Msg("Published summary event")

	return nil
}
