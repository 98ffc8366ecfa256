package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetUser
	TargetFollowers
	TargetAllUsers
)

func (k TargetKind) String() string {
	switch k {
	case TargetUser:
		return "user"
	case TargetFollowers:
		return "followers"
	case TargetAllUsers:
		return "all_users"
	}
	return "none"
}

// Target names who receives a plan. For TargetFollowers, UserID is the user
// whose followers are notified.
type Target struct {
	Kind   TargetKind
	UserID uuid.UUID
}

func ToUser(id uuid.UUID) Target        { return Target{Kind: TargetUser, UserID: id} }
func ToFollowersOf(id uuid.UUID) Target { return Target{Kind: TargetFollowers, UserID: id} }
func ToAllUsers() Target                { return Target{Kind: TargetAllUsers} }

// Plan is the notification content derived from one event, before the target
// is expanded into concrete receivers.
type Plan struct {
	EventKind EventKind
	Target    Target
	ActorID   uuid.UUID
	Title     string
	Body      string
	Level     Level
}

func (p Plan) Empty() bool {
	return p.Target.Kind == TargetNone
}

// For materialises the plan for one receiver.
func (p Plan) For(receiverID uuid.UUID, id string, createdAt time.Time) Notification {
	return Notification{
		ID:         id,
		ReceiverID: receiverID,
		Title:      p.Title,
		Body:       p.Body,
		Level:      p.Level,
		CreatedAt:  createdAt,
	}
}

type LevelPolicy map[EventKind]Level

func DefaultLevelPolicy() LevelPolicy {
	return LevelPolicy{
		KindRoleChanged: LevelWarning,
	}
}

const (
	anonymousActor = "Someone"
	maxNameLength  = 40
	ellipsis       = "…"
)

type Factory struct {
	levels LevelPolicy
}

func NewFactory(levels LevelPolicy) *Factory {
	if levels == nil {
		levels = DefaultLevelPolicy()
	}
	return &Factory{levels: levels}
}

// Build derives the notification plan for ev. It performs no I/O. An event
// whose only receiver is its own actor yields an empty plan.
func (f *Factory) Build(ev Event) (Plan, error) {
	if ev == nil {
		return Plan{}, NewValidationError("event", "is required")
	}
	if err := ev.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid %s event: %w", ev.Kind(), err)
	}

	var p Plan
	switch e := ev.(type) {
	case RoleChanged:
		p = Plan{
			Target:  ToUser(e.UserID),
			ActorID: e.ChangedBy,
			Title:   "Your role has changed",
			Body:    fmt.Sprintf("Your account role was changed to %s.", truncate(e.NewRole, maxNameLength)),
		}
	case FeedLiked:
		p = Plan{
			Target:  ToUser(e.FeedAuthorID),
			ActorID: e.LikedByUserID,
			Title:   "New like on your feed",
			Body:    fmt.Sprintf("%s liked your feed.", actorName(e.LikedByName)),
		}
	case FeedCommented:
		p = Plan{
			Target:  ToUser(e.FeedAuthorID),
			ActorID: e.CommentedByUserID,
			Title:   "New comment on your feed",
			Body:    fmt.Sprintf("%s commented on your feed.", actorName(e.CommentedByName)),
		}
	case FollowCreated:
		p = Plan{
			Target:  ToUser(e.FolloweeID),
			ActorID: e.FollowerID,
			Title:   "New follower",
			Body:    fmt.Sprintf("%s started following you.", actorName(e.FollowerName)),
		}
	case FeedCreatedForFollowers:
		p = Plan{
			Target:  ToFollowersOf(e.AuthorID),
			ActorID: e.AuthorID,
			Title:   "New feed from someone you follow",
			Body:    fmt.Sprintf("%s posted a new feed.", actorName(e.AuthorName)),
		}
	case AttributeDefCreated:
		p = Plan{
			Target: ToAllUsers(),
			Title:  "New clothing attribute",
			Body: fmt.Sprintf("The attribute %q was added. Update your clothes to use it.",
				truncate(e.AttributeName, MaxBodyLength/2)),
		}
	default:
		return Plan{}, NewValidationError("kind", fmt.Sprintf("%q is not supported", ev.Kind()))
	}

	if p.Target.Kind == TargetUser && p.Target.UserID == p.ActorID {
		return Plan{EventKind: ev.Kind()}, nil
	}

	p.EventKind = ev.Kind()
	p.Level = f.level(ev.Kind())
	p.Title = truncate(p.Title, MaxTitleLength)
	p.Body = truncate(p.Body, MaxBodyLength)
	return p, nil
}

func (f *Factory) level(kind EventKind) Level {
	if l, ok := f.levels[kind]; ok && l.Valid() {
		return l
	}
	return LevelInfo
}

func actorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return anonymousActor
	}
	return truncate(name, maxNameLength)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + ellipsis
}
