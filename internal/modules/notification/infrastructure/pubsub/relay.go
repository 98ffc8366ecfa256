package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

// Subscriber is the part of *redis.Client needed to listen on a channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type relayMessage struct {
	Origin       string              `json:"origin"`
	ReceiverID   uuid.UUID           `json:"receiverId"`
	Notification domain.Notification `json:"notification"`
}

// PushRelay delivers to local channels and republishes every push so that
// other server nodes can reach channels registered with them.
type PushRelay struct {
	local   application.Pusher
	client  redis.Cmdable
	sub     Subscriber
	channel string
	nodeID  string
	logger  *slog.Logger
}

func NewPushRelay(local application.Pusher, client *redis.Client, channel string, logger *slog.Logger) *PushRelay {
	return newPushRelay(local, client, client, channel, uuid.NewString(), logger)
}

func newPushRelay(local application.Pusher, client redis.Cmdable, sub Subscriber, channel, nodeID string, logger *slog.Logger) *PushRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushRelay{local: local, client: client, sub: sub, channel: channel, nodeID: nodeID, logger: logger}
}

func (r *PushRelay) PushToUser(ctx context.Context, receiverID uuid.UUID, n domain.Notification) error {
	localErr := r.local.PushToUser(ctx, receiverID, n)

	payload, err := json.Marshal(relayMessage{Origin: r.nodeID, ReceiverID: receiverID, Notification: n})
	if err != nil {
		return errors.Join(localErr, fmt.Errorf("failed to marshal relay message: %w", err))
	}
	if err := r.client.Publish(ctx, r.channel, string(payload)).Err(); err != nil {
		return errors.Join(localErr, fmt.Errorf("failed to relay push: %w", err))
	}
	return localErr
}

// Run forwards pushes published by other nodes to local channels until ctx
// is done.
func (r *PushRelay) Run(ctx context.Context) error {
	ps := r.sub.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := r.handleMessage(ctx, msg.Payload); err != nil {
				r.logger.Warn("dropped relayed push", "error", err)
			}
		}
	}
}

func (r *PushRelay) handleMessage(ctx context.Context, payload string) error {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("malformed relay message: %w", err)
	}
	if msg.Origin == r.nodeID {
		return nil
	}
	if err := msg.Notification.Validate(); err != nil {
		return err
	}
	return r.local.PushToUser(ctx, msg.ReceiverID, msg.Notification)
}
