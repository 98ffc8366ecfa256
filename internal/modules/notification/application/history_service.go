package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/idgen"
)

type HistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// HistoryQuery carries the raw paging parameters of a history request.
// Cursor and IDAfter must be supplied together or not at all.
type HistoryQuery struct {
	Cursor  string
	IDAfter string
	Limit   string
}

const (
	SortByCreatedAt = "createdAt"
	SortDescending  = "DESCENDING"
)

// HistoryPage is the wire shape of one history page. NextCursor and
// NextIDAfter are set only when HasNext is true.
type HistoryPage struct {
	Data          []domain.Notification `json:"data"`
	NextCursor    *string               `json:"nextCursor"`
	NextIDAfter   *string               `json:"nextIdAfter"`
	HasNext       bool                  `json:"hasNext"`
	TotalCount    int                   `json:"totalCount"`
	SortBy        string                `json:"sortBy"`
	SortDirection string                `json:"sortDirection"`
}

func NewHistoryPage(p domain.Page) HistoryPage {
	out := HistoryPage{
		Data:          p.Items,
		HasNext:       p.HasNext,
		TotalCount:    p.TotalCount,
		SortBy:        SortByCreatedAt,
		SortDirection: SortDescending,
	}
	if out.Data == nil {
		out.Data = []domain.Notification{}
	}
	if p.HasNext && p.NextCursor != nil {
		cursor := p.NextCursor.CreatedAt.UTC().Format(time.RFC3339Nano)
		id := p.NextCursor.ID
		out.NextCursor = &cursor
		out.NextIDAfter = &id
	}
	return out
}

type HistoryService struct {
	repo domain.NotificationRepository
	cfg  HistoryConfig
}

func NewHistoryService(repo domain.NotificationRepository, cfg HistoryConfig) *HistoryService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(20, cfg.MaxLimit)
	}
	return &HistoryService{repo: repo, cfg: cfg}
}

// List returns one page of the receiver's notifications, newest first.
func (s *HistoryService) List(ctx context.Context, receiverID uuid.UUID, q HistoryQuery) (domain.Page, error) {
	req, err := s.pageRequest(receiverID, q)
	if err != nil {
		return domain.Page{}, err
	}

	rows, err := s.repo.FindPage(ctx, req)
	if err != nil {
		return domain.Page{}, err
	}
	total, err := s.repo.Count(ctx, receiverID)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(rows, req.Limit, total), nil
}

// Delete acknowledges a notification. Well-formed ids that are unknown or
// belong to another receiver are ignored.
func (s *HistoryService) Delete(ctx context.Context, receiverID uuid.UUID, notificationID string) error {
	position, err := idgen.ParseCursor(strings.TrimSpace(notificationID))
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, position.ID, receiverID)
}

func (s *HistoryService) pageRequest(receiverID uuid.UUID, q HistoryQuery) (domain.PageRequest, error) {
	req := domain.PageRequest{ReceiverID: receiverID, Limit: s.cfg.DefaultLimit}

	if raw := strings.TrimSpace(q.Limit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, domain.NewValidationError("limit", "must be an integer")
		}
		if limit < 1 || limit > s.cfg.MaxLimit {
			return req, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxLimit))
		}
		req.Limit = limit
	}

	rawCursor, rawID := strings.TrimSpace(q.Cursor), strings.TrimSpace(q.IDAfter)
	switch {
	case rawCursor == "" && rawID == "":
		return req, nil
	case rawCursor == "" || rawID == "":
		return req, domain.NewValidationError("cursor", "and idAfter must be supplied together")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, rawCursor)
	if err != nil {
		return req, domain.NewValidationError("cursor", "must be an RFC 3339 timestamp")
	}
	position, err := idgen.ParseCursor(rawID)
	if err != nil {
		return req, domain.NewValidationError("idAfter", "is not a valid notification id")
	}
	req.Cursor = &domain.Cursor{CreatedAt: createdAt.UTC(), ID: position.ID}
	return req, nil
}
