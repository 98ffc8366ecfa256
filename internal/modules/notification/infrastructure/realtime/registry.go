package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/metrics"
)

type shard struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]map[*Channel]struct{}
}

// Registry maps receivers to their live channels. Receivers are spread over
// independently locked shards, so pushing to one user never waits on
// registrations for users in other shards.
type Registry struct {
	shards []*shard
	closed atomic.Bool
	logger *slog.Logger
}

func NewRegistry(shards int, logger *slog.Logger) *Registry {
	if shards <= 0 {
		shards = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{shards: make([]*shard, shards), logger: logger}
	for i := range r.shards {
		r.shards[i] = &shard{channels: make(map[uuid.UUID]map[*Channel]struct{})}
	}
	return r
}

func (r *Registry) shardFor(receiverID uuid.UUID) *shard {
	// uuid v4 bytes are uniformly random
	h := uint32(receiverID[12])<<24 | uint32(receiverID[13])<<16 | uint32(receiverID[14])<<8 | uint32(receiverID[15])
	return r.shards[h%uint32(len(r.shards))]
}

func (r *Registry) Register(ch *Channel) error {
	s := r.shardFor(ch.receiverID)
	s.mu.Lock()
	defer s.mu.Unlock()

	// checked under the shard lock so CloseAll cannot miss this channel
	if r.closed.Load() {
		return domain.ErrRegistryClosed
	}
	set, ok := s.channels[ch.receiverID]
	if !ok {
		set = make(map[*Channel]struct{})
		s.channels[ch.receiverID] = set
	}
	if _, dup := set[ch]; !dup {
		set[ch] = struct{}{}
		metrics.LiveConnections.Inc()
	}
	r.logger.Debug("live channel registered", "receiver_id", ch.receiverID, "channels", len(set))
	return nil
}

// Unregister is safe to call any number of times for the same channel.
func (r *Registry) Unregister(ch *Channel) {
	s := r.shardFor(ch.receiverID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.channels[ch.receiverID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(s.channels, ch.receiverID)
	}
	metrics.LiveConnections.Dec()
	r.logger.Debug("live channel unregistered", "receiver_id", ch.receiverID, "reason", ch.Reason())
}

// PushToUser offers n to every channel of the receiver. A channel that is
// closed or cannot keep up is closed and dropped; the others still receive n.
func (r *Registry) PushToUser(_ context.Context, receiverID uuid.UUID, n domain.Notification) error {
	s := r.shardFor(receiverID)
	s.mu.RLock()
	targets := make([]*Channel, 0, len(s.channels[receiverID]))
	for ch := range s.channels[receiverID] {
		targets = append(targets, ch)
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		metrics.Pushes.WithLabelValues(metrics.PushNoChannel).Inc()
		return nil
	}

	for _, ch := range targets {
		if err := ch.offer(n); err != nil {
			if errors.Is(err, errChannelFull) {
				ch.Close(ReasonOverflow)
			}
			r.Unregister(ch)
			metrics.Pushes.WithLabelValues(metrics.PushDropped).Inc()
			r.logger.Warn("dropped live channel", "receiver_id", receiverID, "notification_id", n.ID, "reason", ch.Reason())
			continue
		}
		metrics.Pushes.WithLabelValues(metrics.PushDelivered).Inc()
	}
	return nil
}

// CloseAll closes every channel with reason and refuses later registrations.
func (r *Registry) CloseAll(reason CloseReason) int {
	r.closed.Store(true)
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for receiverID, set := range s.channels {
			for ch := range set {
				ch.Close(reason)
				total++
			}
			delete(s.channels, receiverID)
		}
		s.mu.Unlock()
	}
	metrics.LiveConnections.Sub(float64(total))
	if total > 0 {
		r.logger.Info("closed live channels", "count", total, "reason", reason)
	}
	return total
}

func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.channels {
			total += len(set)
		}
		s.mu.RUnlock()
	}
	return total
}

func (r *Registry) CountFor(receiverID uuid.UUID) int {
	s := r.shardFor(receiverID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels[receiverID])
}
