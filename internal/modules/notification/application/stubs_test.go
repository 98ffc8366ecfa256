package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

type notificationRepoMock struct {
	createFn    func(context.Context, *domain.Notification) error
	deleteFn    func(context.Context, string, uuid.UUID) error
	findPageFn  func(context.Context, domain.PageRequest) ([]domain.Notification, error)
	listAfterFn func(context.Context, uuid.UUID, domain.Cursor, int) ([]domain.Notification, error)
	countFn     func(context.Context, uuid.UUID) (int, error)
	purgeFn     func(context.Context, time.Time) (int64, error)
}

func (m notificationRepoMock) Create(ctx context.Context, n *domain.Notification) error {
	return m.createFn(ctx, n)
}

func (m notificationRepoMock) Delete(ctx context.Context, id string, receiverID uuid.UUID) error {
	return m.deleteFn(ctx, id, receiverID)
}

func (m notificationRepoMock) FindPage(ctx context.Context, req domain.PageRequest) ([]domain.Notification, error) {
	return m.findPageFn(ctx, req)
}

func (m notificationRepoMock) ListAfter(ctx context.Context, receiverID uuid.UUID, after domain.Cursor, limit int) ([]domain.Notification, error) {
	return m.listAfterFn(ctx, receiverID, after, limit)
}

func (m notificationRepoMock) Count(ctx context.Context, receiverID uuid.UUID) (int, error) {
	return m.countFn(ctx, receiverID)
}

func (m notificationRepoMock) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return m.purgeFn(ctx, before)
}

// memoryRepo keeps notifications in (created_at DESC, id DESC) order.
type memoryRepo struct {
	mu      sync.Mutex
	rows    []domain.Notification
	missing map[uuid.UUID]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{missing: map[uuid.UUID]bool{}}
}

func (r *memoryRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[n.ReceiverID] {
		return domain.ErrReceiverNotFound
	}
	r.rows = append(r.rows, *n)
	sort.SliceStable(r.rows, func(i, j int) bool {
		return domain.CursorOf(r.rows[i]).Before(r.rows[j])
	})
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id string, receiverID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.rows {
		if n.ID == id && n.ReceiverID == receiverID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memoryRepo) FindPage(_ context.Context, req domain.PageRequest) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.rows {
		if n.ReceiverID != req.ReceiverID {
			continue
		}
		if req.Cursor != nil && !req.Cursor.Before(n) {
			continue
		}
		out = append(out, n)
		if len(out) == req.Limit+1 {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) ListAfter(_ context.Context, receiverID uuid.UUID, after domain.Cursor, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		n := r.rows[i]
		same := n.CreatedAt.Equal(after.CreatedAt) && n.ID == after.ID
		if n.ReceiverID == receiverID && !same && !after.Before(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memoryRepo) Count(_ context.Context, receiverID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.rows {
		if n.ReceiverID == receiverID {
			total++
		}
	}
	return total, nil
}

func (r *memoryRepo) PurgeOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var purged int64
	for _, n := range r.rows {
		if n.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, n)
	}
	r.rows = kept
	return purged, nil
}

func (r *memoryRepo) forReceiver(receiverID uuid.UUID) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.rows {
		if n.ReceiverID == receiverID {
			out = append(out, n)
		}
	}
	return out
}

type userDirectoryMock struct {
	activeFn    func(context.Context) ([]uuid.UUID, error)
	followersFn func(context.Context, uuid.UUID) ([]uuid.UUID, error)
}

func (m userDirectoryMock) ActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	if m.activeFn == nil {
		return nil, nil
	}
	return m.activeFn(ctx)
}

func (m userDirectoryMock) FollowerIDs(ctx context.Context, followeeID uuid.UUID) ([]uuid.UUID, error) {
	if m.followersFn == nil {
		return nil, nil
	}
	return m.followersFn(ctx, followeeID)
}

type pushed struct {
	receiverID   uuid.UUID
	notification domain.Notification
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []pushed
	err    error
}

func (p *recordingPusher) PushToUser(_ context.Context, receiverID uuid.UUID, n domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushed{receiverID: receiverID, notification: n})
	return p.err
}

func (p *recordingPusher) snapshot() []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushed(nil), p.pushes...)
}

// sequenceIDs hands out ids "n000001", "n000002", ... one millisecond apart.
type sequenceIDs struct {
	mu   sync.Mutex
	next int
	base time.Time
}

func (g *sequenceIDs) Next() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("n%06d", g.next), g.base.Add(time.Duration(g.next) * time.Millisecond), nil
}

var baseTime = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}

func itoa(i int) string { return strconv.Itoa(i) }

func nilIfEmpty(items []domain.Notification) []domain.Notification {
	if len(items) == 0 {
		return nil
	}
	return items
}
