package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/store"
)

// Config holds the NATS ingestion settings.
type Config struct {
	URL      string
	Stream   string
	Subject  string
	Consumer string
}

// Ingester is the sink the consumer feeds; satisfied by engine.Engine.
type Ingester interface {
	Ingest(ctx context.Context, rec api.UnifiedRecord) error
}

// Consumer pulls normalized records published by the collection side and
// feeds them into the engine. Duplicate dates are acked and dropped, so a
// redelivered message never wedges the stream.
type Consumer struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	cfg     Config
	consume jetstream.ConsumeContext
}

// NewConsumer connects to NATS and ensures the stream exists.
func NewConsumer(ctx context.Context, cfg Config) (*Consumer, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    24 * time.Hour,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Consumer{nc: nc, js: js, cfg: cfg}, nil
}

// Start creates the durable consumer and begins feeding sink.
func (c *Consumer) Start(ctx context.Context, sink Ingester) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Consumer,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consume, err := consumer.Consume(func(msg jetstream.Msg) {
		var rec api.UnifiedRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			log.Printf("Dropping malformed record message: %v", err)
			msg.Ack() // redelivery cannot fix a bad payload
			return
		}

		if err := sink.Ingest(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicateDate) {
				msg.Ack() // idempotent replay
				return
			}
			log.Printf("Failed to ingest record %s: %v", rec.Date, err)
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.consume = consume
	return nil
}

// Close stops consumption and closes the connection.
func (c *Consumer) Close() {
	if c.consume != nil {
		c.consume.Stop()
	}
	if c.nc != nil {
		c.nc.Close()
	}
}
