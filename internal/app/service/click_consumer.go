package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
)

const (
	consumerBatchSize = 10
	consumerMaxWait   = 5 * time.Second
)

type ackAction int

const (
	ackMessage ackAction = iota
	nakMessage
	termMessage
)

// ClickConsumer pulls click messages from JetStream and persists them
// through the recorder.
type ClickConsumer struct {
	js       nats.JetStreamContext
	recorder *ClickRecorder
	log      *zap.Logger
}

// NewClickConsumer creates a new click event consumer.
func NewClickConsumer(js nats.JetStreamContext, recorder *ClickRecorder, logger *zap.Logger) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, recorder: recorder, log: logger}
}

// Start creates the durable consumer if needed and begins pulling in the
// background until ctx is cancelled. The stream itself must already exist.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		if !errors.Is(err, nats.ErrConsumerNotFound) {
			return fmt.Errorf("click consumer: info: %w", err)
		}
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("click consumer: create: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName,
		nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("click consumer: subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() { _ = sub.Unsubscribe() }()

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(consumerBatchSize, nats.MaxWait(consumerMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("failed to fetch click messages", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			switch c.handle(ctx, msg.Data) {
			case ackMessage:
				_ = msg.Ack()
			case nakMessage:
				_ = msg.Nak()
			case termMessage:
				_ = msg.Term()
			}
		}
	}
}

// handle decides the fate of one message. Clicks for links that no longer
// exist are acknowledged and dropped; transient failures are redelivered and
// only counted once they are given up on.
func (c *ClickConsumer) handle(ctx context.Context, data []byte) ackAction {
	var click model.ClickMessage
	if err := json.Unmarshal(data, &click); err != nil {
		c.recorder.drop("", "malformed", err)
		return termMessage
	}

	err := c.recorder.Persist(ctx, click.Event())
	switch {
	case err == nil:
		c.log.Debug("click stored",
			zap.String("id", click.ID),
			zap.String("link_id", click.ShortLinkID),
			zap.Time("timestamp", click.Timestamp),
		)
		return ackMessage
	case errors.Is(err, repository.ErrLinkGone):
		c.recorder.drop(click.ShortLinkID, dropReason(err), err)
		return ackMessage
	default:
		c.log.Warn("click write failed, redelivering",
			zap.String("id", click.ID),
			zap.String("link_id", click.ShortLinkID),
			zap.Error(err),
		)
		return nakMessage
	}
}
