package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *zap.Logger

	// a failing message is retried in place this many times before it is
	// logged as dropped and committed past
	attempts int
	backoff  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		r:        r,
		workers:  workers,
		log:      log.With(zap.String("topic", topic), zap.String("group", group)),
		attempts: 5,
		backoff:  200 * time.Millisecond,
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.process(ctx, h, m); err != nil && ctx.Err() != nil {
					// shutting down: leave it for the next group member
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}()
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h on m until it succeeds, attempts run out or ctx ends.
// A message that still fails is logged as dropped and the caller commits
// past it; only a cancelled ctx leaves the offset uncommitted.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	attempts := max(c.attempts, 1)
	var err error
	for i := 1; i <= attempts; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		c.log.Warn("handler failed, retrying",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Int("attempt", i), zap.Error(err))
		select {
		case <-time.After(time.Duration(i) * c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.log.Error("handler failed, message dropped",
		zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
		zap.Int("attempts", attempts), zap.Error(err))
	return err
}
