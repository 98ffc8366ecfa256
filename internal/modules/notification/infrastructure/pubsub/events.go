package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/metrics"
)

const envelopeField = "envelope"

// StreamConfig names the Redis stream carrying notification events and the
// consumer group that ingests them. Every node joins the same group, so each
// entry is handed to exactly one node.
type StreamConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MaxLen caps the stream length (approximately) on every append; 0 keeps
	// everything.
	MaxLen     int64
	Batch      int64
	Block      time.Duration
	RetryDelay time.Duration
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.Group == "" {
		c.Group = "notification-ingest"
	}
	if c.Consumer == "" {
		host, _ := os.Hostname()
		c.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if c.Batch <= 0 {
		c.Batch = 32
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// EventPublisher lets modules in other processes raise notification events.
// Entries stay on the stream until a node acknowledges them, so nothing is
// lost while no node is consuming. It satisfies application.EventSink.
type EventPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	now    func() time.Time
}

func NewEventPublisher(client redis.Cmdable, stream string, maxLen int64) *EventPublisher {
	return &EventPublisher{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

func (p *EventPublisher) Submit(ctx context.Context, ev domain.Event) error {
	env, err := domain.Encode(ev, p.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", ev.Kind(), err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]interface{}{envelopeField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append %s event to %s: %w", ev.Kind(), p.stream, err)
	}
	return nil
}

// EventSubscriber feeds envelopes from the event stream into a sink,
// normally the dispatcher. An entry is acknowledged once the sink accepted
// it or it was found undecodable; entries the sink refused stay pending and
// are read again.
type EventSubscriber struct {
	client redis.Cmdable
	cfg    StreamConfig
	sink   application.EventSink
	logger *slog.Logger
}

func NewEventSubscriber(client redis.Cmdable, cfg StreamConfig, sink application.EventSink, logger *slog.Logger) *EventSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &EventSubscriber{client: client, cfg: cfg, sink: sink, logger: logger.With("consumer", cfg.Consumer)}
}

// Run blocks until ctx is done. It starts with the entries this consumer
// read before but never acknowledged, then follows new ones.
func (s *EventSubscriber) Run(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}
	s.logger.Info("consuming notification events", "stream", s.cfg.Stream, "group", s.cfg.Group)

	start := "0"
	for ctx.Err() == nil {
		read, held, err := s.poll(ctx, start)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("failed to read notification events", "stream", s.cfg.Stream, "error", err)
			s.wait(ctx)
		case held:
			start = "0"
			s.wait(ctx)
		case start == "0" && read == 0:
			start = ">"
		}
	}
	return nil
}

func (s *EventSubscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", s.cfg.Group, s.cfg.Stream, err)
	}
	return nil
}

// poll reads one batch starting at start ("0" for this consumer's pending
// entries, ">" for new ones). held reports that the sink refused an entry;
// it and everything after it in the batch are left unacknowledged.
func (s *EventSubscriber) poll(ctx context.Context, start string) (read int, held bool, err error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, start},
		Count:    s.cfg.Batch,
		Block:    s.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			read++
			payload, _ := msg.Values[envelopeField].(string)
			if err := s.handleMessage(ctx, payload); err != nil {
				if !errors.Is(err, domain.ErrValidation) {
					s.logger.Warn("event left pending", "entry", msg.ID, "error", err)
					return read, true, nil
				}
				s.logger.Warn("dropped notification event", "entry", msg.ID, "error", err)
			}
			// the sink owns the event now; ack even if we are shutting down
			if err := s.client.XAck(context.WithoutCancel(ctx), s.cfg.Stream, s.cfg.Group, msg.ID).Err(); err != nil {
				s.logger.Warn("failed to acknowledge event", "entry", msg.ID, "error", err)
			}
		}
	}
	return read, false, nil
}

func (s *EventSubscriber) handleMessage(ctx context.Context, payload string) error {
	var env domain.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return fmt.Errorf("%w: malformed envelope: %v", domain.ErrValidation, err)
	}
	ev, err := domain.Decode(env)
	if err != nil {
		metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return err
	}
	return s.sink.Submit(ctx, ev)
}

func (s *EventSubscriber) wait(ctx context.Context) {
	t := time.NewTimer(s.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
