package link

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shortlyhq/shortly/codegen"
	"github.com/shortlyhq/shortly/internal/errx"
)

const (
	DefaultCodeLength     = 6
	MaxURLLength          = 2048
	DefaultCodeMaxRetries = 10
)

// ErrGenerationExhausted is returned (wrapped) when the generate-and-check
// loop runs out of its retry budget without finding a free code.
var ErrGenerationExhausted = errors.New("could not allocate a free short code within the retry budget")

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OwnerID     uuid.UUID
	OriginalURL string
	CustomAlias string     // Optional: if empty, a code will be generated
	ExpiresAt   *time.Time // Optional: must be strictly in the future
}

// Service defines the link resolution and lifecycle operations.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Lookup(ctx context.Context, shortCode string) (Link, error)
	RecordVisit(ctx context.Context, l Link) (Link, error)
	Update(ctx context.Context, ownerID uuid.UUID, shortCode, newURL string) (Link, error)
	Delete(ctx context.Context, ownerID uuid.UUID, shortCode string) error
	BatchDelete(ctx context.Context, links []Link) error
	SearchByURL(ctx context.Context, ownerID uuid.UUID, originalURL string) ([]Link, error)
	Stats(ctx context.Context, shortCode string) (Link, error)
}

// service implements the Service interface.
type service struct {
	store          Store
	cache          Cache
	codeGenerator  codegen.Generator
	codeLength     int
	codeMaxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator  codegen.Generator
	CodeLength     int
	CodeMaxRetries int // attempts when allocating a generated code (default: 10)
}

// NewService creates a new service instance.
func NewService(store Store, cache Cache, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.CodeGenerator
	if gen == nil {
		gen = codegen.NewAlphanum()
	}

	length := config.CodeLength
	if length < DefaultCodeLength {
		length = DefaultCodeLength
	}

	retries := config.CodeMaxRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	return &service{
		store:          store,
		cache:          cache,
		codeGenerator:  gen,
		codeLength:     length,
		codeMaxRetries: retries,
	}
}

// Create creates a new short link with an optional custom alias and expiry.
// The cache is not pre-warmed: entries appear on the write path of later
// mutations or through the refresher job.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "link.service.Create"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return Link{}, errx.E(op, errx.Invalid, errors.New("expires_at must be in the future"))
	}

	encoded := encodeOriginalURL(req.OriginalURL)

	// Custom alias path: reject if the alias already resolves. Concurrent
	// creates can both pass this check; the store's uniqueness constraint
	// is the backstop and surfaces as a Conflict below.
	if req.CustomAlias != "" {
		if err := codegen.Validate(req.CustomAlias); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}

		taken, err := s.isTaken(ctx, req.CustomAlias)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		if taken {
			return Link{}, errx.E(op, errx.Conflict, errors.New("custom alias already exists"))
		}

		created, err := s.store.Insert(ctx, Link{
			ShortCode:   req.CustomAlias,
			OriginalURL: encoded,
			OwnerID:     req.OwnerID,
			ExpiresAt:   req.ExpiresAt,
		})
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		return created, nil
	}

	// Generated code path: draw, check occupancy, insert; retry on the
	// rare collision.
	for range s.codeMaxRetries {
		code, err := s.codeGenerator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		taken, err := s.isTaken(ctx, code)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		if taken {
			continue
		}

		created, err := s.store.Insert(ctx, Link{
			ShortCode:   code,
			OriginalURL: encoded,
			OwnerID:     req.OwnerID,
			ExpiresAt:   req.ExpiresAt,
		})
		if err == nil {
			return created, nil
		}

		// A concurrent writer took the code between check and insert.
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable, ErrGenerationExhausted)
}

// Lookup resolves a short code, cache first. A store hit is not written
// back to the cache: population is left to the write path and the
// refresher so cold reads don't contend with concurrent writers.
// An expired link is removed from store and cache and reported as Gone,
// which is distinct from NotFound.
func (s *service) Lookup(ctx context.Context, shortCode string) (Link, error) {
	const op = "link.service.Lookup"

	l, err := s.find(ctx, shortCode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if l.Expired(time.Now()) {
		if err := s.BatchDelete(ctx, []Link{l}); err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		return Link{}, errx.E(op, errx.Gone, errors.New("link has expired"))
	}

	return l, nil
}

// RecordVisit increments the visit counter and stamps the visit time.
// The read-modify-write is deliberately not atomic; concurrent visits
// may lose an update, which the system tolerates.
func (s *service) RecordVisit(ctx context.Context, l Link) (Link, error) {
	const op = "link.service.RecordVisit"

	now := time.Now()
	l.VisitCount++
	l.LastVisitAt = &now

	updated, err := s.store.Update(ctx, l)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return updated, nil
}

// Update replaces the target URL of an owned link. The cache entry is
// dropped before the store mutation so a successful response can never
// be followed by a read of the old cached value.
func (s *service) Update(ctx context.Context, ownerID uuid.UUID, shortCode, newURL string) (Link, error) {
	const op = "link.service.Update"

	if err := validateURL(newURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	l, err := s.find(ctx, shortCode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	if l.OwnerID != ownerID {
		return Link{}, errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}

	if _, err := s.cache.Delete(ctx, shortCode); err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	l.OriginalURL = encodeOriginalURL(newURL)
	updated, err := s.store.Update(ctx, l)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return updated, nil
}

// Delete removes an owned link from store and cache.
func (s *service) Delete(ctx context.Context, ownerID uuid.UUID, shortCode string) error {
	const op = "link.service.Delete"

	l, err := s.find(ctx, shortCode)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if l.OwnerID != ownerID {
		return errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}

	if err := s.BatchDelete(ctx, []Link{l}); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

// BatchDelete removes a set of links: one batched cache delete covering
// every key, then the store rows. An empty set is a no-op. A failing
// store row does not stop the remaining deletions.
func (s *service) BatchDelete(ctx context.Context, links []Link) error {
	const op = "link.service.BatchDelete"

	if len(links) == 0 {
		return nil
	}

	codes := make([]string, len(links))
	for i, l := range links {
		codes[i] = l.ShortCode
	}

	if _, err := s.cache.Delete(ctx, codes...); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	var errs []error
	for _, l := range links {
		if err := s.store.Delete(ctx, l.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", l.ShortCode, err))
		}
	}
	if len(errs) > 0 {
		return errx.E(op, errx.Unavailable, errors.Join(errs...))
	}
	return nil
}

// SearchByURL returns the caller's links that point at exactly the given
// URL. No match yields an empty slice, never an error.
func (s *service) SearchByURL(ctx context.Context, ownerID uuid.UUID, originalURL string) ([]Link, error) {
	const op = "link.service.SearchByURL"

	// Stored URLs are percent-encoded at create time, so the query
	// input goes through the same encoding to match exactly.
	links, err := s.store.SearchByOwnerAndURL(ctx, ownerID, encodeOriginalURL(originalURL))
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	if links == nil {
		links = []Link{}
	}
	return links, nil
}

// Stats returns the full link record, including visit accounting.
func (s *service) Stats(ctx context.Context, shortCode string) (Link, error) {
	const op = "link.service.Stats"

	l, err := s.find(ctx, shortCode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return l, nil
}

// find is the cache-aside read: cache first, store on miss. A cache
// miss is never treated as "does not exist".
func (s *service) find(ctx context.Context, shortCode string) (Link, error) {
	if shortCode == "" {
		return Link{}, errx.E("link.service.find", errx.Invalid, errors.New("short code cannot be empty"))
	}

	if cached, ok, err := s.cache.Get(ctx, shortCode); err == nil && ok {
		return cached, nil
	} else if err != nil && errx.KindOf(err) == errx.Unavailable {
		return Link{}, err
	}

	return s.store.GetByShortCode(ctx, shortCode)
}

// isTaken reports whether a short code currently resolves, checking the
// cache before the store.
func (s *service) isTaken(ctx context.Context, shortCode string) (bool, error) {
	_, err := s.find(ctx, shortCode)
	if err == nil {
		return true, nil
	}
	if errx.KindOf(err) == errx.NotFound {
		return false, nil
	}
	return false, err
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

// urlSafeChars are the reserved characters kept verbatim when encoding a
// target URL for storage, on top of the unreserved set.
const urlSafeChars = `%/:=&?~#+!$,;'@()*[]`

// encodeOriginalURL percent-encodes everything in the URL except
// unreserved characters and the reserved set above. Encoding is
// byte-wise over the UTF-8 representation with uppercase hex digits.
func encodeOriginalURL(raw string) string {
	const upperhex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isUnreservedByte(c) || strings.IndexByte(urlSafeChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

func isUnreservedByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}
