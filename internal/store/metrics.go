package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// Prometheus metrics.
var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "item_store_operations_total",
			Help: "Total number of item store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "item_store_operation_duration_seconds",
			Help:    "Item store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

// Operation result labels.
const (
	resultOK        = "ok"
	resultNotFound  = "not_found"
	resultInvalidID = "invalid_id"
	resultError     = "error"
)

// InstrumentedStore records Prometheus metrics for every call to the wrapped Store.
type InstrumentedStore struct {
	next    Store
	backend string
}

// NewInstrumentedStore wraps next; backend is used as the metric label.
func NewInstrumentedStore(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{
		next:    next,
		backend: backend,
	}
}

// ValidateID delegates to the wrapped store.
func (s *InstrumentedStore) ValidateID(id string) error {
	return s.next.ValidateID(id)
}

// List records and delegates.
func (s *InstrumentedStore) List(ctx context.Context) ([]model.Item, error) {
	defer s.observe("list", time.Now())
	items, err := s.next.List(ctx)
	s.count("list", err)
	return items, err
}

// Get records and delegates.
func (s *InstrumentedStore) Get(ctx context.Context, id string) (*model.Item, error) {
	defer s.observe("get", time.Now())
	item, err := s.next.Get(ctx, id)
	s.count("get", err)
	return item, err
}

// Insert records and delegates.
func (s *InstrumentedStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	defer s.observe("insert", time.Now())
	created, err := s.next.Insert(ctx, item)
	s.count("insert", err)
	return created, err
}

// Replace records and delegates.
func (s *InstrumentedStore) Replace(ctx context.Context, id string, item *model.Item) (*model.Item, error) {
	defer s.observe("replace", time.Now())
	updated, err := s.next.Replace(ctx, id, item)
	s.count("replace", err)
	return updated, err
}

// Remove records and delegates.
func (s *InstrumentedStore) Remove(ctx context.Context, id string) error {
	defer s.observe("remove", time.Now())
	err := s.next.Remove(ctx, id)
	s.count("remove", err)
	return err
}

// Ping delegates to the wrapped store.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.next)
}

func (s *InstrumentedStore) observe(operation string, start time.Time) {
	storeOperationDuration.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) count(operation string, err error) {
	storeOperationsTotal.WithLabelValues(s.backend, operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrInvalidID):
		return resultInvalidID
	default:
		return resultError
	}
}
