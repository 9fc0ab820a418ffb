// Package event implements the asynchronous access event pipeline over
// NATS JetStream: a publisher invoked on the redirect hot path and a
// durable consumer that persists analytics with bounded, fixed-interval
// redelivery. Exhausted deliveries are the transport's dead-letter
// responsibility.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

// Publisher publishes access events to the stream. Publishing does not
// block on, nor depend on the outcome of, the consumer.
type Publisher struct {
	js      nats.JetStreamContext
	subject string
}

func NewPublisher(js nats.JetStreamContext, subject string) *Publisher {
	return &Publisher{
		js:      js,
		subject: subject,
	}
}

// Publish sends the event with optional per-message headers.
func (p *Publisher) Publish(ctx context.Context, ev *models.ShortLinkAccessedEvent, headers map[string]string) error {
	const op = "event.Publisher.Publish"

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("%s: failed to publish event: %w", op, err)
	}

	return nil
}

// EnsureStream creates the stream holding access events if it doesn't
// exist yet. Retention is limits-based; delivery bookkeeping lives on the
// durable consumer.
func EnsureStream(js nats.JetStreamContext, stream, subject string) error {
	const op = "event.EnsureStream"

	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("%s: failed to look up stream: %w", op, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		Discard:   nats.DiscardOld,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create stream: %w", op, err)
	}

	return nil
}
