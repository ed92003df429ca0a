package link

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short code bound to a target URL, together with its
// ownership and visit accounting.
type Link struct {
	ID          uuid.UUID
	ShortCode   string
	OriginalURL string
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	VisitCount  int64
	LastVisitAt *time.Time
}

// Expired reports whether the link's expiry time is in the past.
// Links without an expiry never expire.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
