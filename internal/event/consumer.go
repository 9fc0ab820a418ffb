package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

// AnalyticsRecorder is the consumer-side write operation. It returns false
// without error when the event's code no longer resolves to a link, which
// the consumer treats as a silent discard.
type AnalyticsRecorder interface {
	RecordAccessLog(ctx context.Context, code, ipAddress, userAgent string, accessedAt time.Time) (bool, error)
}

// disposition is the terminal decision for one delivery of a message.
type disposition int

const (
	ackMsg disposition = iota
	retryMsg
	dropMsg
)

// Consumer is a durable JetStream consumer persisting access analytics.
// Processing failures are surfaced to the transport via nak so that
// fixed-interval redelivery applies; MaxDeliver bounds the attempts.
type Consumer struct {
	js             nats.JetStreamContext
	recorder       AnalyticsRecorder
	logger         *slog.Logger
	subject        string
	durable        string
	queue          string
	maxDeliver     int
	retryInterval  time.Duration
	processTimeout time.Duration
}

func NewConsumer(
	js nats.JetStreamContext,
	recorder AnalyticsRecorder,
	logger *slog.Logger,
	subject, durable, queue string,
	maxDeliver int,
	retryInterval time.Duration,
) *Consumer {
	return &Consumer{
		js:             js,
		recorder:       recorder,
		logger:         logger,
		subject:        subject,
		durable:        durable,
		queue:          queue,
		maxDeliver:     maxDeliver,
		retryInterval:  retryInterval,
		processTimeout: 30 * time.Second,
	}
}

// Run subscribes and blocks until ctx is cancelled, then drains the
// subscription so in-flight messages finish or return to the stream.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "event.Consumer.Run"

	sub, err := c.js.QueueSubscribe(c.subject, c.queue, c.handleMsg,
		nats.Durable(c.durable),
		nats.ManualAck(),
		nats.MaxDeliver(c.maxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to subscribe: %w", op, err)
	}

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("%s: failed to drain subscription: %w", op, err)
	}

	return nil
}

func (c *Consumer) handleMsg(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), c.processTimeout)
	defer cancel()

	switch c.process(ctx, msg.Data) {
	case retryMsg:
		if err := msg.NakWithDelay(c.retryInterval); err != nil {
			c.logger.Error("failed to nak message", slog.Any("err", err))
		}
	case dropMsg:
		if err := msg.Term(); err != nil {
			c.logger.Error("failed to terminate message", slog.Any("err", err))
		}
	default:
		if err := msg.Ack(); err != nil {
			c.logger.Error("failed to ack message", slog.Any("err", err))
		}
	}
}

// process decides the fate of one delivery. Malformed payloads are dropped
// as poison, recorder failures are retried by the transport, and events
// whose code no longer exists are acknowledged without a write.
func (c *Consumer) process(ctx context.Context, data []byte) disposition {
	var ev models.ShortLinkAccessedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Error("failed to unmarshal access event", slog.Any("err", err))
		return dropMsg
	}

	recorded, err := c.recorder.RecordAccessLog(ctx, ev.Code, ev.IPAddress, ev.UserAgent, ev.AccessedAt)
	if err != nil {
		c.logger.Error("failed to record access log",
			slog.String("code", ev.Code), slog.Any("err", err))
		return retryMsg
	}

	if !recorded {
		c.logger.Debug("discarded access event for unknown code", slog.String("code", ev.Code))
	}

	return ackMsg
}
