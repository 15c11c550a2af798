package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"go.uber.org/zap"
)

// JetStreamPublisher is the slice of nats.JetStreamContext the publisher needs.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher hands clicks to JetStream for the ClickConsumer to persist.
// When the broker rejects a message the click is written directly instead.
type ClickPublisher struct {
	js       JetStreamPublisher
	fallback *ClickRecorder
	log      *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewClickPublisher creates a click publisher. fallback may be nil, in which
// case clicks the broker rejects are dropped.
func NewClickPublisher(js JetStreamPublisher, fallback *ClickRecorder, logger *zap.Logger) *ClickPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickPublisher{js: js, fallback: fallback, log: logger, timeout: defaultRecordTimeout}
}

// Publish sends click to the stream. The message id doubles as the JetStream
// de-duplication key.
func (p *ClickPublisher) Publish(ctx context.Context, click model.ClickMessage) error {
	data, err := json.Marshal(click)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(click.ID), nats.Context(ctx))
	return err
}

func (p *ClickPublisher) Submit(click model.ClickMessage) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		err := p.Publish(ctx, click)
		if err == nil {
			return
		}
		p.log.Warn("click publish failed",
			zap.String("id", click.ID),
			zap.String("link_id", click.ShortLinkID),
			zap.Error(err),
		)
		if p.fallback != nil {
			p.fallback.store(ctx, click.Event())
		}
	}()
}

// Wait blocks until every submitted click has been published or written.
func (p *ClickPublisher) Wait() {
	p.wg.Wait()
}

var _ ClickSink = (*ClickPublisher)(nil)
