package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
	"github.com/serroba/shortlinks/internal/metrics"
	"go.uber.org/zap"
)

// LinkService manages owner-scoped short links.
type LinkService interface {
	Create(ctx context.Context, owner, target string) (*links.Link, error)
	Resolve(ctx context.Context, caller string, id idgen.ID) (*links.Link, error)
	Update(ctx context.Context, owner string, id idgen.ID, target string) error
	Delete(ctx context.Context, owner string, id idgen.ID) error
	List(ctx context.Context, owner string) ([]idgen.ID, error)
	DeleteAll(ctx context.Context, owner string) ([]idgen.ID, error)
	Stats(ctx context.Context, owner string, id idgen.ID) (links.Stats, error)
}

// LinkHandler handles short link operations.
type LinkHandler struct {
	links      LinkService
	baseURL    string
	publishers *analytics.Publishers
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewLinkHandler creates a link handler. m may be nil.
func NewLinkHandler(
	svc LinkService,
	baseURL string,
	publishers *analytics.Publishers,
	m *metrics.Metrics,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		links:      svc,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		publishers: publishers,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *LinkHandler) Create(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	owner, ok := SubjectFromContext(ctx)
	if !ok {
		return nil, huma.Error403Forbidden("forbidden")
	}

	link, err := h.links.Create(ctx, owner, req.Body.Value)
	if err != nil {
		return nil, toHTTPError(h.logger, "create", err)
	}

	h.metrics.LinkEvent(metrics.LinkCreated)

	meta := RequestMetaFromContext(ctx)
	event := &analytics.LinkCreatedEvent{
		ID:        link.ID.String(),
		Owner:     link.Owner,
		Target:    link.Target,
		CreatedAt: link.CreatedAt,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}

	if err := h.publishers.Created(ctx, event); err != nil {
		h.logger.Error("failed to publish analytics event",
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}

	shortURL := fmt.Sprintf("%s/%s", h.baseURL, link.ID)

	resp := &CreateLinkResponse{}
	resp.Location = shortURL
	resp.Body.ID = link.ID.String()
	resp.Body.ShortURL = shortURL

	return resp, nil
}

func (h *LinkHandler) Redirect(ctx context.Context, req *LinkIDRequest) (*RedirectResponse, error) {
	id, err := idgen.Parse(req.ID)
	if err != nil {
		return nil, huma.Error404NotFound("short url not found")
	}

	caller, _ := SubjectFromContext(ctx)

	link, err := h.links.Resolve(ctx, caller, id)
	if err != nil {
		return nil, toHTTPError(h.logger, "redirect", err)
	}

	h.metrics.LinkEvent(metrics.LinkResolved)

	meta := RequestMetaFromContext(ctx)
	event := &analytics.LinkAccessedEvent{
		ID:         link.ID.String(),
		Caller:     caller,
		Clicks:     link.Clicks,
		AccessedAt: h.now().UTC(),
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
	}

	if err := h.publishers.Accessed(ctx, event); err != nil {
		h.logger.Error("failed to publish access event",
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}

	resp := &RedirectResponse{
		Status: http.StatusMovedPermanently,
	}
	resp.Location = link.Target
	resp.Body.Value = link.Target

	return resp, nil
}

func (h *LinkHandler) Update(ctx context.Context, req *UpdateLinkRequest) (*MessageResponse, error) {
	owner, id, err := h.addressed(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if err := h.links.Update(ctx, owner, id, req.Body.URL); err != nil {
		return nil, toHTTPError(h.logger, "update", err)
	}

	h.metrics.LinkEvent(metrics.LinkUpdated)

	resp := &MessageResponse{}
	resp.Body.Message = "updated"

	return resp, nil
}

func (h *LinkHandler) Delete(ctx context.Context, req *LinkIDRequest) (*struct{}, error) {
	owner, id, err := h.addressed(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if err := h.links.Delete(ctx, owner, id); err != nil {
		return nil, toHTTPError(h.logger, "delete", err)
	}

	h.metrics.LinkEvent(metrics.LinkDeleted)
	h.publishDeleted(ctx, owner, []string{id.String()})

	return nil, nil
}

func (h *LinkHandler) Stats(ctx context.Context, req *LinkIDRequest) (*StatsResponse, error) {
	owner, id, err := h.addressed(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	stats, err := h.links.Stats(ctx, owner, id)
	if err != nil {
		return nil, toHTTPError(h.logger, "stats", err)
	}

	resp := &StatsResponse{}
	resp.Body.Clicks = stats.Clicks
	resp.Body.CreatedAt = stats.CreatedAt
	resp.Body.LastAccessed = stats.LastAccessed

	return resp, nil
}

func (h *LinkHandler) List(ctx context.Context, _ *struct{}) (*ListLinksResponse, error) {
	owner, ok := SubjectFromContext(ctx)
	if !ok {
		return nil, huma.Error403Forbidden("forbidden")
	}

	ids, err := h.links.List(ctx, owner)
	if err != nil {
		return nil, toHTTPError(h.logger, "list", err)
	}

	resp := &ListLinksResponse{}
	resp.Body.URLs = encodeIDs(ids)

	return resp, nil
}

// DeleteAll removes every link of the caller. The deleted event lists exactly
// the ids the store removed.
func (h *LinkHandler) DeleteAll(ctx context.Context, _ *struct{}) (*struct{}, error) {
	owner, ok := SubjectFromContext(ctx)
	if !ok {
		return nil, huma.Error403Forbidden("forbidden")
	}

	ids, err := h.links.DeleteAll(ctx, owner)
	if err != nil {
		return nil, toHTTPError(h.logger, "delete_all", err)
	}

	h.logger.Info("links deleted", zap.String("owner", owner), zap.Int("count", len(ids)))

	if len(ids) > 0 {
		h.metrics.LinkEvents(metrics.LinkDeleted, len(ids))
		h.publishDeleted(ctx, owner, encodeIDs(ids))
	}

	return nil, nil
}

// addressed returns the caller and the parsed id of a link operation.
// Unparsable ids cannot name a stored link and map to 404.
func (h *LinkHandler) addressed(ctx context.Context, raw string) (string, idgen.ID, error) {
	owner, ok := SubjectFromContext(ctx)
	if !ok {
		return "", 0, huma.Error403Forbidden("forbidden")
	}

	id, err := idgen.Parse(raw)
	if err != nil {
		return "", 0, huma.Error404NotFound("short url not found")
	}

	return owner, id, nil
}

func (h *LinkHandler) publishDeleted(ctx context.Context, owner string, ids []string) {
	event := &analytics.LinkDeletedEvent{
		IDs:       ids,
		Owner:     owner,
		DeletedAt: h.now().UTC(),
	}

	if err := h.publishers.Deleted(ctx, event); err != nil {
		h.logger.Error("failed to publish delete event",
			zap.Strings("ids", ids),
			zap.Error(err),
		)
	}
}

func encodeIDs(ids []idgen.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
