package apidocs

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/swaggo/swag"
	"go.uber.org/zap"
)

// Path is where the API description is served.
const Path = "/api-docs/openapi.json"

// Handler serves the registered API description.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// RegisterRoutes registers the documentation route with the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(Path, h.ServeDoc).Methods(http.MethodGet)
}

// ServeDoc handles GET /api-docs/openapi.json requests.
func (h *Handler) ServeDoc(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		h.logger.Error("failed to render api description", zap.Error(err))
		http.Error(w, "api description unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		h.logger.Debug("failed to write api description", zap.Error(err))
	}
}
