// Package publish forwards chat changes to an AMQP topic exchange so other
// processes can follow a conversation as it happens.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/soyeahso/botkit/internal/logging"
)

// Envelope is the JSON body of every published message.
type Envelope struct {
	Meta Meta   `json:"meta"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Meta identifies an envelope.
type Meta struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends envelopes under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *logging.Logger
}

// Dial connects to url and declares exchange as a durable topic exchange.
// It retries with exponential backoff until attempts run out or ctx is done.
func Dial(ctx context.Context, url, exchange string, attempts int, log *logging.Logger) (*AMQPPublisher, error) {
	log = log.Sub("publish")
	conn, err := dialWithRetry(ctx, url, attempts, time.Second, log)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, log: log}, nil
}

func dialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration, log *logging.Logger) (*amqp.Connection, error) {
	const maxDelay = 30 * time.Second
	var lastErr error
	for i := 1; i <= max(attempts, 1); i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}
		sleep := min(delay<<(i-1), maxDelay)
		log.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("amqp dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connecting to amqp: %w", lastErr)
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if env.Meta.ID == "" {
		env.Meta.ID = uuid.NewString()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.ChatID,
		Timestamp:     env.Meta.Timestamp,
		Type:          env.Type,
		Body:          body,
	})
	if err == nil {
		p.log.Trace().Str("key", key).Str("exchange", p.exchange).Msg("published")
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}
