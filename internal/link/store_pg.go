package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shortlyhq/shortly/internal/errx"
	"github.com/shortlyhq/shortly/internal/idgen"
)

// querier is the subset of *pgxpool.Pool the store uses.
// Abstracting it keeps the store testable without a live pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	q   querier
	ids idgen.Generator
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	IDGenerator idgen.Generator
}

// NewStore creates a postgres-backed Store.
func NewStore(q querier, config *StoreConfig) Store {
	if config == nil {
		config = &StoreConfig{}
	}

	// Default: UUID v7 (good for DB locality).
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &pgStore{
		q:   q,
		ids: config.IDGenerator,
	}
}

const linkColumns = `id, short_code, original_url, owner_id, created_at, expires_at, visit_count, last_visit_at`

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (Link, error) {
	var (
		l           Link
		createdAt   pgtype.Timestamptz
		expiresAt   pgtype.Timestamptz
		lastVisitAt pgtype.Timestamptz
	)

	err := row.Scan(&l.ID, &l.ShortCode, &l.OriginalURL, &l.OwnerID,
		&createdAt, &expiresAt, &l.VisitCount, &lastVisitAt)
	if err != nil {
		return Link{}, err
	}

	l.CreatedAt, err = mustTime(createdAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	l.ExpiresAt = timePtr(expiresAt)
	l.LastVisitAt = timePtr(lastVisitAt)
	return l, nil
}

func scanLinks(rows pgx.Rows) ([]Link, error) {
	defer rows.Close()

	var links []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (s *pgStore) Insert(ctx context.Context, link Link) (Link, error) {
	const op = "link.store.Insert"

	// Generate ID if not provided
	if link.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO links (id, short_code, original_url, owner_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+linkColumns,
		link.ID, link.ShortCode, link.OriginalURL, link.OwnerID,
		toTimestamptz(link.ExpiresAt),
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return created, nil
}

func (s *pgStore) GetByShortCode(ctx context.Context, shortCode string) (Link, error) {
	const op = "link.store.GetByShortCode"

	row := s.q.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE short_code = $1`,
		shortCode,
	)

	l, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return l, nil
}

func (s *pgStore) SearchByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, originalURL string) ([]Link, error) {
	const op = "link.store.SearchByOwnerAndURL"

	rows, err := s.q.Query(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE owner_id = $1 AND original_url = $2
		ORDER BY created_at`,
		ownerID, originalURL,
	)
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	links, err := scanLinks(rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return links, nil
}

func (s *pgStore) ListExpired(ctx context.Context, before time.Time) ([]Link, error) {
	const op = "link.store.ListExpired"

	rows, err := s.q.Query(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		before,
	)
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	links, err := scanLinks(rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return links, nil
}

func (s *pgStore) TopByVisits(ctx context.Context, limit int) ([]Link, error) {
	const op = "link.store.TopByVisits"

	rows, err := s.q.Query(ctx, `
		SELECT `+linkColumns+`
		FROM links
		ORDER BY visit_count DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, mapStoreError(op, err)
	}

	links, err := scanLinks(rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return links, nil
}

func (s *pgStore) Update(ctx context.Context, link Link) (Link, error) {
	const op = "link.store.Update"

	row := s.q.QueryRow(ctx, `
		UPDATE links
		SET original_url = $2, visit_count = $3, last_visit_at = $4
		WHERE id = $1
		RETURNING `+linkColumns,
		link.ID, link.OriginalURL, link.VisitCount,
		toTimestamptz(link.LastVisitAt),
	)

	updated, err := scanLink(row)
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return updated, nil
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "link.store.Delete"

	// Zero rows affected is fine: deletions are idempotent.
	if _, err := s.q.Exec(ctx, `DELETE FROM links WHERE id = $1`, id); err != nil {
		return mapStoreError(op, err)
	}
	return nil
}
