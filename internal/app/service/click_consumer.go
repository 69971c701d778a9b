package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"go.uber.org/zap"
)

const (
	consumerBatchSize = 10
	consumerMaxWait   = 5 * time.Second
)

// ClickRecorder stores a click event. *ClickTracker implements it.
type ClickRecorder interface {
	Record(ctx context.Context, event model.ClickEvent) error
}

// ClickConsumer consumes click events from NATS JetStream
type ClickConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	recorder ClickRecorder
	done     chan struct{}
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, recorder ClickRecorder) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{
		js:       js,
		logger:   logger.Named("click_consumer"),
		recorder: recorder,
		done:     make(chan struct{}),
	}
}

// EnsureStream creates the click stream and durable consumer when missing.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// Start begins consuming click events until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has returned.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		msgs, err := sub.Fetch(consumerBatchSize, nats.MaxWait(consumerMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Info("click consumer stopped", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		_ = msg.Term()
		return
	}

	if err := c.recorder.Record(context.WithoutCancel(ctx), event); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("click for unknown link dropped",
				zap.String("id", event.ID),
				zap.String("link_code", event.LinkCode))
			_ = msg.Term()
			return
		}
		c.logger.Error("failed to store click event",
			zap.String("id", event.ID),
			zap.String("link_code", event.LinkCode),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.String("link_code", event.LinkCode),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = msg.Ack()
}
