package domain

import (
	"strings"

	"github.com/google/uuid"
)

type EventKind string

const (
	KindRoleChanged             EventKind = "ROLE_CHANGED"
	KindFeedLiked               EventKind = "FEED_LIKED"
	KindFeedCommented           EventKind = "FEED_COMMENTED"
	KindFollowCreated           EventKind = "FOLLOW_CREATED"
	KindFeedCreatedForFollowers EventKind = "FEED_CREATED_FOR_FOLLOWERS"
	KindAttributeDefCreated     EventKind = "ATTRIBUTE_DEF_CREATED"
)

// Event is a committed fact raised by another module. The set of variants is
// closed; only types in this package implement it.
type Event interface {
	Kind() EventKind
	Validate() error
	event()
}

type RoleChanged struct {
	UserID    uuid.UUID `json:"userId"`
	NewRole   string    `json:"newRole"`
	ChangedBy uuid.UUID `json:"changedBy"`
}

type FeedLiked struct {
	FeedID        uuid.UUID `json:"feedId"`
	FeedAuthorID  uuid.UUID `json:"feedAuthorId"`
	LikedByUserID uuid.UUID `json:"likedByUserId"`
	LikedByName   string    `json:"likedByName,omitempty"`
}

type FeedCommented struct {
	FeedID            uuid.UUID `json:"feedId"`
	FeedAuthorID      uuid.UUID `json:"feedAuthorId"`
	CommentedByUserID uuid.UUID `json:"commentedByUserId"`
	CommentID         uuid.UUID `json:"commentId"`
	CommentedByName   string    `json:"commentedByName,omitempty"`
}

type FollowCreated struct {
	FollowerID   uuid.UUID `json:"followerId"`
	FolloweeID   uuid.UUID `json:"followeeId"`
	FollowerName string    `json:"followerName,omitempty"`
}

type FeedCreatedForFollowers struct {
	AuthorID   uuid.UUID `json:"authorId"`
	FeedID     uuid.UUID `json:"feedId"`
	AuthorName string    `json:"authorName,omitempty"`
}

type AttributeDefCreated struct {
	AttributeName string `json:"attributeName"`
}

func (RoleChanged) Kind() EventKind             { return KindRoleChanged }
func (FeedLiked) Kind() EventKind               { return KindFeedLiked }
func (FeedCommented) Kind() EventKind           { return KindFeedCommented }
func (FollowCreated) Kind() EventKind           { return KindFollowCreated }
func (FeedCreatedForFollowers) Kind() EventKind { return KindFeedCreatedForFollowers }
func (AttributeDefCreated) Kind() EventKind     { return KindAttributeDefCreated }

func (RoleChanged) event()             {}
func (FeedLiked) event()               {}
func (FeedCommented) event()           {}
func (FollowCreated) event()           {}
func (FeedCreatedForFollowers) event() {}
func (AttributeDefCreated) event()     {}

func (e RoleChanged) Validate() error {
	if e.UserID == uuid.Nil {
		return NewValidationError("userId", "is required")
	}
	if strings.TrimSpace(e.NewRole) == "" {
		return NewValidationError("newRole", "is required")
	}
	return nil
}

func (e FeedLiked) Validate() error {
	if e.FeedAuthorID == uuid.Nil {
		return NewValidationError("feedAuthorId", "is required")
	}
	if e.LikedByUserID == uuid.Nil {
		return NewValidationError("likedByUserId", "is required")
	}
	return nil
}

func (e FeedCommented) Validate() error {
	if e.FeedAuthorID == uuid.Nil {
		return NewValidationError("feedAuthorId", "is required")
	}
	if e.CommentedByUserID == uuid.Nil {
		return NewValidationError("commentedByUserId", "is required")
	}
	if e.CommentID == uuid.Nil {
		return NewValidationError("commentId", "is required")
	}
	return nil
}

func (e FollowCreated) Validate() error {
	if e.FollowerID == uuid.Nil {
		return NewValidationError("followerId", "is required")
	}
	if e.FolloweeID == uuid.Nil {
		return NewValidationError("followeeId", "is required")
	}
	return nil
}

func (e FeedCreatedForFollowers) Validate() error {
	if e.AuthorID == uuid.Nil {
		return NewValidationError("authorId", "is required")
	}
	if e.FeedID == uuid.Nil {
		return NewValidationError("feedId", "is required")
	}
	return nil
}

func (e AttributeDefCreated) Validate() error {
	if strings.TrimSpace(e.AttributeName) == "" {
		return NewValidationError("attributeName", "is required")
	}
	return nil
}
