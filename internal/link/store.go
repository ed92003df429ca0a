package link

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the durable persistence operations for Link entities.
// It abstracts the underlying data store and must enforce short-code
// uniqueness, surfacing violations as an errx.Conflict error.
type Store interface {
	Insert(ctx context.Context, link Link) (Link, error)
	GetByShortCode(ctx context.Context, shortCode string) (Link, error)
	SearchByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, originalURL string) ([]Link, error)
	ListExpired(ctx context.Context, before time.Time) ([]Link, error)
	TopByVisits(ctx context.Context, limit int) ([]Link, error)
	Update(ctx context.Context, link Link) (Link, error)

	// Delete removes a link by id. Deleting an id that no longer
	// exists is a no-op, not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
