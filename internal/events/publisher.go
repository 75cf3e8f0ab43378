// Package events publishes committed-outcome domain events for
// downstream audit/analytics consumers, a feature the distilled spec
// is silent on but original_source/ implies via its workflow-webhook
// side effects. Grounded on roboricindustries-raycon-events' use of
// rabbitmq/amqp091-go, adapted here to a best-effort fire-and-forget
// publisher: publish failures never block the user-facing turn.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const exchangeName = "shift_orchestrator.outcomes"

// OutcomeEvent is the envelope published after every committed turn.
type OutcomeEvent struct {
	SessionID   string    `json:"sessionId"`
	OutcomeCode string    `json:"outcomeCode"`
	Gate        string    `json:"gate"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher wraps an AMQP connection/channel pair, reconnecting lazily
// on next publish if the connection has dropped.
type Publisher struct {
	url  string
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New builds a Publisher. The connection is established lazily on
// first Publish so a broker outage at startup never blocks boot.
func New(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Publish best-effort publishes an OutcomeEvent, logging and
// swallowing any failure: per the spec's error-handling design, a
// side-channel audit event is never allowed to affect the reply
// already committed to the caregiver.
func (p *Publisher) Publish(ctx context.Context, event OutcomeEvent) {
	if err := p.ensureChannel(); err != nil {
		log.Warn().Err(err).Msg("event publisher: could not establish channel")
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Msg("event publisher: encode failed")
		return
	}
	routingKey := "outcome." + event.OutcomeCode
	err = p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.OccurredAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("outcomeCode", event.OutcomeCode).Msg("event publisher: publish failed")
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
