package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

const (
	MaxTitleLength = 100
	MaxBodyLength  = 500
)

// Notification is the durable unit delivered to one receiver. It is never
// edited after creation; acknowledging it deletes it.
type Notification struct {
	ID         string    `json:"id" db:"id"`
	ReceiverID uuid.UUID `json:"receiverId" db:"receiver_id"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"content" db:"body"`
	Level      Level     `json:"level" db:"level"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

func (n *Notification) Validate() error {
	if n.ID == "" {
		return NewValidationError("id", "is required")
	}
	if n.ReceiverID == uuid.Nil {
		return NewValidationError("receiverId", "is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(n.Title) > MaxTitleLength {
		return NewValidationError("title", "is too long")
	}
	if strings.TrimSpace(n.Body) == "" {
		return NewValidationError("content", "is required")
	}
	if utf8.RuneCountInString(n.Body) > MaxBodyLength {
		return NewValidationError("content", "is too long")
	}
	if !n.Level.Valid() {
		return NewValidationError("level", "is unknown")
	}
	if n.CreatedAt.IsZero() {
		return NewValidationError("createdAt", "is required")
	}
	return nil
}

// Cursor is a keyset position in the (created_at DESC, id DESC) order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func CursorOf(n Notification) Cursor {
	return Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// Before reports whether n sorts strictly after c in the descending history
// order, i.e. whether n belongs on a page requested with cursor c.
func (c Cursor) Before(n Notification) bool {
	if n.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return n.CreatedAt.Equal(c.CreatedAt) && n.ID < c.ID
}

type PageRequest struct {
	ReceiverID uuid.UUID
	Cursor     *Cursor
	Limit      int
}

type Page struct {
	Items      []Notification
	NextCursor *Cursor
	HasNext    bool
	TotalCount int
}

// NewPage trims a limit+1 result set down to limit items and derives the
// next cursor from the last item actually returned.
func NewPage(rows []Notification, limit, total int) Page {
	page := Page{Items: rows, TotalCount: total}
	if len(rows) > limit {
		page.HasNext = true
		page.Items = rows[:limit]
	}
	if page.HasNext && len(page.Items) > 0 {
		c := CursorOf(page.Items[len(page.Items)-1])
		page.NextCursor = &c
	}
	if page.Items == nil {
		page.Items = []Notification{}
	}
	return page
}
