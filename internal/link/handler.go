package link

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shortlyhq/shortly/internal/errx"
	"github.com/shortlyhq/shortly/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL         string     `json:"url"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// HTTPUpdateLinkRequest represents the JSON request body for updating a link.
type HTTPUpdateLinkRequest struct {
	URL string `json:"url"`
}

// LinkResponse represents the JSON response for a created or updated link.
type LinkResponse struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkStatsResponse represents the JSON response for link statistics.
type LinkStatsResponse struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	VisitCount  int64      `json:"visit_count"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty"`
}

// Handler provides HTTP handlers for the link service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// ownerOrReject pulls the authenticated owner id from the context, set
// by the auth layer in front of this service. Requests without one get
// a 401 without touching the service.
func (h *Handler) ownerOrReject(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, ok := httpx.GetOwnerID(r.Context())
	if !ok {
		h.requestLogger(r).WarnContext(r.Context(), "missing owner identity")
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"authentication required", nil)
		return uuid.Nil, false
	}
	return owner, true
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner, ok := h.ownerOrReject(w, r)
	if !ok {
		return
	}

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "url is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	l, err := h.service.Create(ctx, CreateLinkRequest{
		OwnerID:     owner,
		OriginalURL: req.URL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "creating link")
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", l.ID.String(),
		"short_code", l.ShortCode,
		"custom_alias", req.CustomAlias != "",
		"expires", l.ExpiresAt != nil,
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toLinkResponse(l))
}

// Redirect handles GET requests on a short code: resolve, account the
// visit, and redirect to the original URL. Expired links answer 410.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	shortCode := r.PathValue("code")

	l, err := h.service.Lookup(ctx, shortCode)
	if err != nil {
		h.writeResolveError(ctx, w, err, shortCode)
		return
	}

	// Lost updates under concurrent visits are tolerated; a failed
	// accounting write must not break the redirect.
	if _, err := h.service.RecordVisit(ctx, l); err != nil {
		logger.WarnContext(ctx, "visit accounting failed",
			"short_code", shortCode,
			"error", err.Error(),
		)
	}

	logger.InfoContext(ctx, "short code resolved",
		"short_code", shortCode,
		"original_url", l.OriginalURL,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, l.OriginalURL, http.StatusFound)
}

// UpdateLink handles PUT requests to change the target URL of a link.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner, ok := h.ownerOrReject(w, r)
	if !ok {
		return
	}

	shortCode := r.PathValue("code")

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	l, err := h.service.Update(ctx, owner, shortCode, req.URL)
	if err != nil {
		h.writeServiceError(ctx, w, err, "updating link")
		return
	}

	logger.InfoContext(ctx, "link updated",
		"link_id", l.ID.String(),
		"short_code", l.ShortCode,
	)

	httpx.WriteJSON(w, http.StatusOK, h.toLinkResponse(l))
}

// DeleteLink handles DELETE requests to remove a link.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner, ok := h.ownerOrReject(w, r)
	if !ok {
		return
	}

	shortCode := r.PathValue("code")

	if err := h.service.Delete(ctx, owner, shortCode); err != nil {
		h.writeServiceError(ctx, w, err, "deleting link")
		return
	}

	logger.InfoContext(ctx, "link deleted", "short_code", shortCode)

	w.WriteHeader(http.StatusNoContent)
}

// SearchLinks handles GET requests to find the caller's links by their
// exact target URL.
func (h *Handler) SearchLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	owner, ok := h.ownerOrReject(w, r)
	if !ok {
		return
	}

	originalURL := r.URL.Query().Get("original_url")
	if originalURL == "" {
		logger.WarnContext(ctx, "missing original_url query parameter")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"original_url query parameter is required", nil)
		return
	}

	links, err := h.service.SearchByURL(ctx, owner, originalURL)
	if err != nil {
		h.writeServiceError(ctx, w, err, "searching links")
		return
	}

	resp := make([]LinkStatsResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, toStatsResponse(l))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// LinkStats handles GET requests for per-link statistics.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shortCode := r.PathValue("code")

	l, err := h.service.Stats(ctx, shortCode)
	if err != nil {
		h.writeServiceError(ctx, w, err, "reading link stats")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toStatsResponse(l))
}

func (h *Handler) toLinkResponse(l Link) LinkResponse {
	return LinkResponse{
		ID:          l.ID.String(),
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, l.ShortCode),
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
	}
}

func toStatsResponse(l Link) LinkStatsResponse {
	return LinkStatsResponse{
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
		VisitCount:  l.VisitCount,
		LastVisitAt: l.LastVisitAt,
	}
}

// writeServiceError maps a service error onto the HTTP surface.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"link not found", nil)

	case errx.Conflict:
		h.logger.WarnContext(ctx, "alias conflict", logAttrs...)
		// The source HTTP contract reports alias conflicts as a plain
		// bad request rather than 409.
		httpx.WriteError(w, http.StatusBadRequest, "alias_taken",
			"this alias is already taken", map[string]string{
				"hint": "Try a different custom alias or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Forbidden:
		h.logger.WarnContext(ctx, "ownership mismatch", logAttrs...)
		httpx.WriteError(w, http.StatusForbidden, "forbidden",
			"you don't have access to this link", nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			fmt.Sprintf("%s failed, please try again", action), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			fmt.Sprintf("%s failed, please try again", action), nil)
	}
}

// writeResolveError handles errors from Lookup, where Gone and NotFound
// are distinct outcomes.
func (h *Handler) writeResolveError(ctx context.Context, w http.ResponseWriter, err error, shortCode string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"short_code", shortCode,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "short code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Gone:
		h.logger.InfoContext(ctx, "short code expired", logAttrs...)
		httpx.WriteError(w, http.StatusGone, "gone",
			"this link has expired", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid short code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"unable to resolve this link at this time", nil)
	}
}
