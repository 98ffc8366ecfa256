package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/idgen"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/metrics"
)

type State int

const (
	StateConnecting State = iota
	StateBackfilling
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateBackfilling:
		return "BACKFILLING"
	case StateLive:
		return "LIVE"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

type FrameKind string

const (
	FrameConnected    FrameKind = "connected"
	FrameNotification FrameKind = "notification"
	FrameHeartbeat    FrameKind = "heartbeat"
	FrameClose        FrameKind = "close"
)

type Frame struct {
	Kind         FrameKind
	Notification *domain.Notification
	Reason       CloseReason
}

// Transport writes frames to one client. Implementations apply their own
// write deadline. Done is closed once the client has gone away.
type Transport interface {
	WriteFrame(f Frame) error
	Done() <-chan struct{}
}

// BackfillSource is the read side of the notification store used for replay.
type BackfillSource interface {
	ListAfter(ctx context.Context, receiverID uuid.UUID, after domain.Cursor, limit int) ([]domain.Notification, error)
}

type Config struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
	BackfillBatch     int
	BackfillCap       int
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.BackfillBatch <= 0 {
		c.BackfillBatch = 100
	}
	if c.BackfillCap <= 0 {
		c.BackfillCap = 1000
	}
	return c
}

// Delivery opens sessions for connecting clients.
type Delivery struct {
	registry *Registry
	source   BackfillSource
	cfg      Config
	logger   *slog.Logger
}

func NewDelivery(registry *Registry, source BackfillSource, cfg Config, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{registry: registry, source: source, cfg: cfg.withDefaults(), logger: logger}
}

func (d *Delivery) Registry() *Registry { return d.registry }

// Serve runs a session for the receiver until the client leaves, a write
// fails, the server shuts down or ctx is cancelled.
func (d *Delivery) Serve(ctx context.Context, receiverID uuid.UUID, marker string, t Transport) error {
	return d.NewSession(receiverID, marker, t).Run(ctx)
}

func (d *Delivery) NewSession(receiverID uuid.UUID, marker string, t Transport) *Session {
	return &Session{
		receiverID: receiverID,
		marker:     strings.TrimSpace(marker),
		transport:  t,
		registry:   d.registry,
		source:     d.source,
		cfg:        d.cfg,
		logger:     d.logger.With("receiver_id", receiverID),
	}
}

// Session is the per-connection state machine
// CONNECTING -> BACKFILLING -> LIVE -> CLOSED.
type Session struct {
	receiverID uuid.UUID
	marker     string
	transport  Transport
	registry   *Registry
	source     BackfillSource
	cfg        Config
	logger     *slog.Logger

	mu      sync.Mutex
	state   State
	onState func(State)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	if s.state == StateClosed || to < s.state {
		s.mu.Unlock()
		return
	}
	s.state = to
	hook := s.onState
	s.mu.Unlock()
	if hook != nil {
		hook(to)
	}
}

func (s *Session) Run(ctx context.Context) error {
	ch := NewChannel(s.receiverID, s.cfg.SendBuffer)

	// Registering before replay means anything persisted while we replay is
	// queued on ch instead of falling between the replay and going live.
	if err := s.registry.Register(ch); err != nil {
		_ = s.transport.WriteFrame(Frame{Kind: FrameClose, Reason: ReasonShutdown})
		s.transition(StateClosed)
		return err
	}
	defer func() {
		ch.Close(ReasonClientGone)
		s.registry.Unregister(ch)
		s.transition(StateClosed)
	}()

	lastID := ""
	if after, ok := s.parseMarker(); ok {
		s.transition(StateBackfilling)
		var (
			truncated bool
			err       error
		)
		lastID, truncated, err = s.backfill(ctx, after)
		if err != nil {
			ch.Close(ReasonBackfill)
			_ = s.transport.WriteFrame(Frame{Kind: FrameClose, Reason: ReasonBackfill})
			return err
		}
		// Going live now would skip the rest of the gap, so hand the client
		// back its position instead.
		if truncated {
			ch.Close(ReasonTruncated)
			_ = s.transport.WriteFrame(Frame{Kind: FrameClose, Reason: ReasonTruncated})
			s.logger.Info("backfill cap reached, closing session", "cap", s.cfg.BackfillCap, "last_id", lastID)
			return nil
		}
	}

	s.transition(StateLive)
	if err := s.transport.WriteFrame(Frame{Kind: FrameConnected}); err != nil {
		ch.Close(ReasonWriteFailed)
		return err
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.transport.Done():
			return nil
		case <-ch.Done():
			reason := ch.Reason()
			_ = s.transport.WriteFrame(Frame{Kind: FrameClose, Reason: reason})
			s.logger.Info("live channel closed by server", "reason", reason)
			return nil
		case n := <-ch.Updates():
			// already replayed during backfill
			if lastID != "" && n.ID <= lastID {
				continue
			}
			if err := s.transport.WriteFrame(Frame{Kind: FrameNotification, Notification: &n}); err != nil {
				ch.Close(ReasonWriteFailed)
				return fmt.Errorf("failed to write notification %s: %w", n.ID, err)
			}
		case <-heartbeat.C:
			if err := s.transport.WriteFrame(Frame{Kind: FrameHeartbeat}); err != nil {
				ch.Close(ReasonWriteFailed)
				return fmt.Errorf("failed to write heartbeat: %w", err)
			}
		}
	}
}

func (s *Session) parseMarker() (domain.Cursor, bool) {
	if s.marker == "" {
		return domain.Cursor{}, false
	}
	after, err := idgen.ParseCursor(s.marker)
	if err != nil {
		s.logger.Warn("ignoring malformed last event id", "marker", s.marker)
		return domain.Cursor{}, false
	}
	return after, true
}

// backfill replays what the client missed, oldest first, and returns the
// id of the last item written. truncated is set when the cap stopped the
// replay while older-than-live items were still waiting.
func (s *Session) backfill(ctx context.Context, after domain.Cursor) (lastID string, truncated bool, err error) {
	lastID = after.ID
	replayed := 0
	defer func() { metrics.BackfilledItems.Add(float64(replayed)) }()

	for replayed < s.cfg.BackfillCap {
		batch := min(s.cfg.BackfillBatch, s.cfg.BackfillCap-replayed)
		items, err := s.source.ListAfter(ctx, s.receiverID, after, batch)
		if err != nil {
			return lastID, false, fmt.Errorf("backfill after %s: %w", after.ID, err)
		}
		for i := range items {
			if err := s.transport.WriteFrame(Frame{Kind: FrameNotification, Notification: &items[i]}); err != nil {
				return lastID, false, fmt.Errorf("failed to write backfilled notification: %w", err)
			}
			lastID = items[i].ID
			after = domain.CursorOf(items[i])
			replayed++
		}
		if len(items) < batch {
			return lastID, false, nil
		}
	}

	rest, err := s.source.ListAfter(ctx, s.receiverID, after, 1)
	if err != nil {
		return lastID, false, fmt.Errorf("backfill after %s: %w", after.ID, err)
	}
	return lastID, len(rest) > 0, nil
}
