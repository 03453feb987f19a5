package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/config"
	"poolstats/internal/dedupe"
	"poolstats/internal/domain"
)

// Processor applies one decoded protocol event.
type Processor interface {
	Process(ctx context.Context, ev *domain.Event) error
}

// Consumer pulls the ordered event stream from JetStream and feeds it to the
// processor one message at a time. Ordering is the aggregation engine's core
// assumption, so there is exactly one in-flight message per instance.
type Consumer struct {
	log  logger.Logger
	nc   *nats.Conn
	sub  *nats.Subscription
	proc Processor
	dd   dedupe.Deduper // optional

	cfg config.IngestConfig
}

func New(log logger.Logger, cfg *config.IngestConfig, proc Processor, dd dedupe.Deduper) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("ingest config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.Stream == "" || cfg.Subject == "" {
		return nil, errors.New("stream and subject are required")
	}
	if proc == nil {
		return nil, errors.New("processor is required")
	}

	opts := []nats.Option{
		nats.Name("pool-stats"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnected
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if _, err = js.StreamInfo(cfg.Stream); errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	durable := cfg.Durable
	if durable == "" {
		durable = "pool-stats"
	}
	sub, err := js.PullSubscribe(cfg.Subject, durable,
		nats.BindStream(cfg.Stream),
		nats.AckExplicit(),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}

	log.Infof("Connected to NATS successfully, url=%s", cfg.URL)
	return &Consumer{
		log:  log,
		nc:   nc,
		sub:  sub,
		proc: proc,
		dd:   dd,
		cfg:  *cfg,
	}, nil
}

// Run fetches and processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := c.sub.Fetch(c.cfg.FetchBatch, nats.MaxWait(c.cfg.FetchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorf("Failed to fetch from JetStream, error=%v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// handle applies one message. Malformed messages are terminated, duplicates
// acked without processing, and store failures nacked for redelivery.
func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.log.Warnf("Malformed event message, error=%v", err)
		if err = msg.Term(); err != nil {
			c.log.Errorf("Failed to terminate message, error=%v", err)
		}
		return
	}

	if c.dd != nil {
		seen, err := c.dd.Seen(ctx, ev.ID())
		if err != nil {
			// the engine's writes are idempotent enough to prefer a
			// possible duplicate over a lost event
			c.log.Errorf("Dedupe check failed for %s, error=%v", ev.ID(), err)
		} else if seen {
			c.log.Infof("Skipping duplicate event %s", ev.ID())
			c.ack(msg)
			return
		}
	}

	if err := c.proc.Process(ctx, &ev); err != nil {
		c.log.Errorf("Failed to process event %s, error=%v", ev.ID(), err)
		if err = msg.Nak(); err != nil {
			c.log.Errorf("Failed to nak message, error=%v", err)
		}
		return
	}

	// marked only after success, so a nacked event is reprocessed on redelivery
	if c.dd != nil {
		if err := c.dd.MarkSeen(ctx, ev.ID()); err != nil {
			c.log.Errorf("Failed to mark event %s as seen, error=%v", ev.ID(), err)
		}
	}

	c.ack(msg)
}

func (c *Consumer) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		c.log.Errorf("Failed to ack message, error=%v", err)
	}
}

func (c *Consumer) Ready() bool {
	if c.nc == nil {
		return false
	}
	return c.nc.Status() == nats.CONNECTED
}

func (c *Consumer) Close() error {
	if c.nc == nil {
		return nil
	}

	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
