package link

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Cache defines the key/value cache operations for Link entities.
// Entries carry a per-key TTL. The cache is a subset of the store:
// a miss never means the link does not exist.
type Cache interface {
	// Get returns the cached link for a short code. The second return
	// value reports whether the code was present.
	Get(ctx context.Context, shortCode string) (Link, bool, error)

	Set(ctx context.Context, link Link, ttl time.Duration) error

	// Delete removes the entries for the given short codes in a single
	// call and returns how many existed. An empty set is a no-op.
	Delete(ctx context.Context, shortCodes ...string) (int64, error)

	// ReplaceAll atomically swaps the entire link keyspace for the
	// given set: stale keys are removed and the new entries written so
	// that no reader observes a partially applied mix. A failed swap
	// leaves the previous contents intact.
	ReplaceAll(ctx context.Context, links []Link, ttl time.Duration) error
}

// cachedLink is the wire representation of a Link in the cache.
// Round-trips all fields, including null expiry/visit timestamps.
type cachedLink struct {
	ID          uuid.UUID  `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	VisitCount  int64      `json:"visit_count"`
	LastVisitAt *time.Time `json:"last_visit_at"`
}

func encodeLink(l Link) ([]byte, error) {
	return json.Marshal(cachedLink{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		OwnerID:     l.OwnerID,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
		VisitCount:  l.VisitCount,
		LastVisitAt: l.LastVisitAt,
	})
}

func decodeLink(data []byte) (Link, error) {
	var c cachedLink
	if err := json.Unmarshal(data, &c); err != nil {
		return Link{}, err
	}
	return Link{
		ID:          c.ID,
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		VisitCount:  c.VisitCount,
		LastVisitAt: c.LastVisitAt,
	}, nil
}
