package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

type CloseReason string

const (
	ReasonClientGone  CloseReason = "client_disconnected"
	ReasonWriteFailed CloseReason = "write_failed"
	ReasonOverflow    CloseReason = "buffer_full"
	ReasonShutdown    CloseReason = "shutdown"
	ReasonBackfill    CloseReason = "backfill_failed"
	ReasonTruncated   CloseReason = "backfill_truncated"
)

var errChannelFull = errors.New("live channel buffer is full")

// Channel is one connection's delivery queue. The send queue is never
// closed; done is closed exactly once, and the first close reason sticks.
type Channel struct {
	receiverID uuid.UUID
	send       chan domain.Notification
	done       chan struct{}

	once   sync.Once
	mu     sync.Mutex
	reason CloseReason
}

func NewChannel(receiverID uuid.UUID, buffer int) *Channel {
	if buffer <= 0 {
		buffer = 1
	}
	return &Channel{
		receiverID: receiverID,
		send:       make(chan domain.Notification, buffer),
		done:       make(chan struct{}),
	}
}

func (c *Channel) ReceiverID() uuid.UUID { return c.receiverID }

func (c *Channel) Updates() <-chan domain.Notification { return c.send }

func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) Reason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Close reports whether this call closed the channel.
func (c *Channel) Close(reason CloseReason) bool {
	closed := false
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
		closed = true
	})
	return closed
}

func (c *Channel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// offer enqueues n without blocking.
func (c *Channel) offer(n domain.Notification) error {
	if c.closed() {
		return domain.ErrChannelClosed
	}
	select {
	case c.send <- n:
		return nil
	default:
		return errChannelFull
	}
}
