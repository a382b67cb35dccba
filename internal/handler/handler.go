// Package handler provides HTTP request handlers for the REST API.
package handler

import (
	"context"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// LivenessMessage is the body returned by GET /health.
const LivenessMessage = "API is running!"

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// ItemService is the set of item operations the REST handler depends on.
type ItemService interface {
	Create(ctx context.Context, title string) (*model.Item, error)
	List(ctx context.Context) ([]model.Item, error)
	Get(ctx context.Context, id string) (*model.Item, error)
	Update(ctx context.Context, id, title string, completed bool) (*model.Item, error)
	Delete(ctx context.Context, id string) error
}

// ReadinessCheck reports whether the service can serve traffic.
type ReadinessCheck func(ctx context.Context) error
