package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/content-api/pkg/contentapi"
)

// ItemResponse is the response body for a single content item
type ItemResponse struct {
	ID        string                `json:"id"`
	Body      map[string]any        `json:"body"`
	MediaRefs []contentapi.MediaRef `json:"mediaRefs"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Version   int64                 `json:"version"`
}

// ListResponse is the response body for a listing page
type ListResponse struct {
	Items      []ItemResponse `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ErrorResponse is the error envelope. ErrorCode is stable so clients can
// branch on it instead of parsing messages.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// UpdateItemRequest is the request body for updating an item
type UpdateItemRequest struct {
	Version int64          `json:"version"`
	Body    map[string]any `json:"body"`
}

// Handler handles HTTP requests for content items
type Handler struct {
	service         contentapi.Service
	defaultPageSize int
	maxPageSize     int
}

// NewHandler creates a new content handler. Page sizes <= 0 fall back to
// the service defaults.
func NewHandler(service contentapi.Service, defaultPageSize, maxPageSize int) *Handler {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize <= 0 {
		maxPageSize = 200
	}
	return &Handler{
		service:         service,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Routes returns the routes for content items
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListItems)
	r.Post("/", h.CreateItem)
	r.Get("/{id}", h.GetItem)
	r.Put("/{id}", h.UpdateItem)
	r.Delete("/{id}", h.DeleteItem)

	r.Post("/{id}/media", h.UploadMedia)
	r.Get("/{id}/media/*", h.DownloadMedia)

	return r
}

func itemResponse(item *contentapi.ContentItem) ItemResponse {
	return ItemResponse{
		ID:        item.ID.String(),
		Body:      item.Body,
		MediaRefs: item.MediaRefs,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		Version:   item.Version,
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := contentapi.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		ErrorCode: contentapi.ErrorCode(err),
		Message:   contentapi.SafeMessage(err),
	})
}

func renderInvalid(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{ErrorCode: "invalid_input", Message: message})
}

func parseItemID(r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CreateItem creates a new content item. The request body is the item's
// initial payload object.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		renderInvalid(w, r, "request body must be a JSON object")
		return
	}

	item, err := h.service.CreateItem(r.Context(), contentapi.CreateItemRequest{Body: body})
	if err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("Content item created", "item_id", item.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, itemResponse(item))
}

// GetItem retrieves a content item by ID
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		renderInvalid(w, r, "invalid item ID")
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, itemResponse(item))
}

// UpdateItem replaces an item's body. The request carries the last-known
// version for optimistic concurrency.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		renderInvalid(w, r, "invalid item ID")
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderInvalid(w, r, "request body must be a JSON object with version and body")
		return
	}
	if req.Version < 1 {
		renderInvalid(w, r, "version must be a positive integer")
		return
	}
	if req.Body == nil {
		renderInvalid(w, r, "body must be a JSON object")
		return
	}

	item, err := h.service.UpdateItem(r.Context(), contentapi.UpdateItemRequest{
		ID:              id,
		ExpectedVersion: req.Version,
		Body:            req.Body,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("Content item updated", "item_id", id.String(), "version", item.Version)
	render.JSON(w, r, itemResponse(item))
}

// DeleteItem tombstones an item. Idempotent: deleting an absent or
// already-deleted id returns 204 as well.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		renderInvalid(w, r, "invalid item ID")
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("Content item deleted", "item_id", id.String())
	render.NoContent(w, r)
}

// ListItems returns a page of items in id order
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			renderInvalid(w, r, "limit must be a positive integer")
			return
		}
		if parsed > h.maxPageSize {
			renderInvalid(w, r, "limit exceeds the maximum page size")
			return
		}
		limit = parsed
	}

	page, err := h.service.ListItems(r.Context(), contentapi.ListItemsRequest{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := ListResponse{
		Items:      make([]ItemResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, itemResponse(item))
	}
	render.JSON(w, r, resp)
}

// UploadMedia uploads the raw request body as a blob and attaches it to the
// item. The last-known version comes from the query string since the body
// is the blob itself.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		renderInvalid(w, r, "invalid item ID")
		return
	}

	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil || version < 1 {
		renderInvalid(w, r, "version query parameter must be a positive integer")
		return
	}

	item, err := h.service.UploadMedia(r.Context(), contentapi.UploadMediaRequest{
		ID:              id,
		ExpectedVersion: version,
		ContentType:     r.Header.Get("Content-Type"),
		Reader:          r.Body,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("Media attached", "item_id", id.String(), "version", item.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, itemResponse(item))
}

// DownloadMedia streams a blob referenced by the item
func (h *Handler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(r)
	if !ok {
		renderInvalid(w, r, "invalid item ID")
		return
	}

	key := chi.URLParam(r, "*")
	if key == "" {
		renderInvalid(w, r, "blob key is required")
		return
	}

	rc, ref, err := h.service.DownloadMedia(r.Context(), id, key)
	if err != nil {
		renderError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ref.ContentType)
	if ref.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Failed to stream media", "item_id", id.String(), "key", key, "err", err)
	}
}
