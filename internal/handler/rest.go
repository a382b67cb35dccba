package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/vyrodovalexey/todoapi/internal/model"
	"github.com/vyrodovalexey/todoapi/internal/service"
)

// maxBodyBytes limits request payloads.
const maxBodyBytes = 1 << 20

// RESTHandler handles REST API requests for todo items.
type RESTHandler struct {
	service ItemService
	ready   ReadinessCheck
	logger  *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance. ready may be nil.
func NewRESTHandler(svc ItemService, ready ReadinessCheck, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		service: svc,
		ready:   ready,
		logger:  logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
	router.HandleFunc("/todos", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/todos", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/todos/{id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/todos/{id}", h.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/todos/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, LivenessMessage)
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

// ListItems handles GET /todos requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "list items")
		return
	}

	h.writeCacheableJSON(w, r, items)
}

// GetItem handles GET /todos/{id} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "get item")
		return
	}

	h.writeCacheableJSON(w, r, item)
}

// CreateItem handles POST /todos requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input model.CreateItemRequest
	if err := h.decode(w, r, &input); err != nil {
		return
	}

	item, err := h.service.Create(r.Context(), input.Title)
	if err != nil {
		h.handleServiceError(w, err, "create item")
		return
	}

	h.writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /todos/{id} requests.
func (h *RESTHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var input model.UpdateItemRequest
	if err := h.decode(w, r, &input); err != nil {
		return
	}

	item, err := h.service.Update(r.Context(), id, input.Title, input.Completed)
	if err != nil {
		h.handleServiceError(w, err, "update item")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /todos/{id} requests.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "delete item")
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}

// decode reads a JSON body into dst and writes a 400 response on failure.
func (h *RESTHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}

// handleServiceError maps service result kinds to HTTP responses.
func (h *RESTHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.logger.Warn("validation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidIdentifier):
		h.writeError(w, http.StatusBadRequest, "invalid item ID")
	case errors.Is(err, service.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "item not found")
	default:
		h.logger.Error("item operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeCacheableJSON writes a 200 JSON response with an ETag and answers
// 304 when the client already holds the same representation.
func (h *RESTHandler) writeCacheableJSON(w http.ResponseWriter, r *http.Request, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tag := entityTag(body)
	w.Header().Set("ETag", tag)

	if matchesETag(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}

// entityTag returns a strong ETag derived from the BLAKE2b-256 digest of body.
func entityTag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// matchesETag reports whether an If-None-Match header value matches tag.
func matchesETag(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
