package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "kafka")

type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic as part of a consumer group. Offsets are committed
// only after the handler ran, so delivery is at-least-once.
type Consumer struct {
	reader   messageReader
	retries  int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration)
	consumer string
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, groupID)
}

func newConsumer(reader messageReader, groupID string) *Consumer {
	return &Consumer{
		reader:   reader,
		retries:  3,
		backoff:  200 * time.Millisecond,
		sleep:    sleepCtx,
		consumer: groupID,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Consume blocks until ctx is cancelled. A message whose handler still fails
// after the retries is logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithError(err).WithField("group", c.consumer).Error("fetch failed")
			c.sleep(ctx, c.backoff)
			continue
		}

		c.handle(ctx, msg, handler)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithError(err).WithField("offset", msg.Offset).Error("commit failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.sleep(ctx, c.backoff*time.Duration(attempt))
			if ctx.Err() != nil {
				return
			}
		}
		if err = handler(ctx, msg.Key, msg.Value); err == nil {
			return
		}
	}
	logger.WithError(err).WithFields(log.Fields{
		"group":     c.consumer,
		"key":       string(msg.Key),
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).Error("giving up on message")
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
