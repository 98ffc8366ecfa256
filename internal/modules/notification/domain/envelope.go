package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const EnvelopeVersion = 1

// Envelope is the wire form of an Event on the message bus.
type Envelope struct {
	Kind       EventKind       `json:"kind"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func Encode(ev Event, occurredAt time.Time) (Envelope, error) {
	if err := ev.Validate(); err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", ev.Kind(), err)
	}
	return Envelope{
		Kind:       ev.Kind(),
		Version:    EnvelopeVersion,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}, nil
}

// Decode turns an envelope back into its typed event. Unknown kinds, unknown
// versions and payloads missing required identifiers are validation errors.
func Decode(env Envelope) (Event, error) {
	if env.Version != EnvelopeVersion {
		return nil, NewValidationError("version", fmt.Sprintf("%d is not supported", env.Version))
	}

	switch env.Kind {
	case KindRoleChanged:
		return decodePayload[RoleChanged](env.Payload)
	case KindFeedLiked:
		return decodePayload[FeedLiked](env.Payload)
	case KindFeedCommented:
		return decodePayload[FeedCommented](env.Payload)
	case KindFollowCreated:
		return decodePayload[FollowCreated](env.Payload)
	case KindFeedCreatedForFollowers:
		return decodePayload[FeedCreatedForFollowers](env.Payload)
	case KindAttributeDefCreated:
		return decodePayload[AttributeDefCreated](env.Payload)
	}
	return nil, NewValidationError("kind", fmt.Sprintf("%q is unknown", env.Kind))
}

func decodePayload[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if len(raw) == 0 {
		return nil, NewValidationError("payload", "is required")
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, NewValidationError("payload", err.Error())
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
