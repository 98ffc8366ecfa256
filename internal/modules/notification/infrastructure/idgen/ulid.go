package idgen

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
)

// ULIDGenerator issues strictly increasing ULIDs. The returned creation time
// is the millisecond embedded in the id, so sorting by (created_at, id) and
// sorting by id agree.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
	lastMs  uint64
}

func NewULIDGenerator() *ULIDGenerator {
	return newULIDGenerator(time.Now)
}

func newULIDGenerator(now func() time.Time) *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

func (g *ULIDGenerator) Next() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(g.now())
	// never step backwards when the wall clock does
	if ms < g.lastMs {
		ms = g.lastMs
	}
	id, err := ulid.New(ms, g.entropy)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate notification id: %w", err)
	}
	g.lastMs = ms
	return id.String(), ulid.Time(ms).UTC(), nil
}

// ParseCursor rebuilds the keyset position of a notification from its id
// alone. It works for ids whose row has since been deleted.
func ParseCursor(id string) (domain.Cursor, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return domain.Cursor{}, domain.NewValidationError("id", "is not a valid notification id")
	}
	return domain.Cursor{
		CreatedAt: ulid.Time(parsed.Time()).UTC(),
		ID:        parsed.String(),
	}, nil
}
