package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/todoapi/internal/model"
	"github.com/vyrodovalexey/todoapi/internal/service"
)

const testID = "6f1c2b7e-0c43-4e55-9d2a-8f3a1c6b5e10"

// mockService implements ItemService for testing
type mockService struct {
	items     map[string]model.Item
	listErr   error
	getErr    error
	createErr error
	updateErr error
	deleteErr error

	lastTitle     string
	lastCompleted bool
}

func newMockService() *mockService {
	return &mockService{
		items: make(map[string]model.Item),
	}
}

func (m *mockService) Create(_ context.Context, title string) (*model.Item, error) {
	m.lastTitle = title
	if m.createErr != nil {
		return nil, m.createErr
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: %w", service.ErrInvalidInput, model.ErrEmptyTitle)
	}
	item := model.Item{ID: testID, Title: title}
	m.items[item.ID] = item
	return &item, nil
}

func (m *mockService) List(_ context.Context) ([]model.Item, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := make([]model.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *mockService) Get(_ context.Context, id string) (*model.Item, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, exists := m.items[id]
	if !exists {
		return nil, service.ErrNotFound
	}
	return &item, nil
}

func (m *mockService) Update(_ context.Context, id, title string, completed bool) (*model.Item, error) {
	m.lastTitle = title
	m.lastCompleted = completed
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if _, exists := m.items[id]; !exists {
		return nil, service.ErrNotFound
	}
	item := model.Item{ID: id, Title: title, Completed: completed}
	m.items[id] = item
	return &item, nil
}

func (m *mockService) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.items[id]; !exists {
		return service.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func newTestRouter(svc ItemService, ready ReadinessCheck) *mux.Router {
	router := mux.NewRouter()
	NewRESTHandler(svc, ready, zap.NewNop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestNewRESTHandler(t *testing.T) {
	// Arrange
	svc := newMockService()
	logger := zap.NewNop()

	// Act
	handler := NewRESTHandler(svc, nil, logger)

	// Assert
	if handler == nil {
		t.Fatal("NewRESTHandler() returned nil")
	}
	if handler.service == nil {
		t.Error("service should not be nil")
	}
	if handler.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRESTHandler_HealthCheck(t *testing.T) {
	// Arrange
	router := newTestRouter(newMockService(), nil)

	// Act
	rr := serve(router, http.MethodGet, "/health", nil)

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var msg string
	if err := json.NewDecoder(rr.Body).Decode(&msg); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if msg != LivenessMessage {
		t.Errorf("Body = %q, want %q", msg, LivenessMessage)
	}
}

func TestRESTHandler_ReadyCheck(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessCheck
		wantStatus int
	}{
		{
			name:       "no check configured",
			ready:      nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "check passes",
			ready:      func(context.Context) error { return nil },
			wantStatus: http.StatusOK,
		},
		{
			name:       "check fails",
			ready:      func(context.Context) error { return errors.New("no primary") },
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			router := newTestRouter(newMockService(), tt.ready)

			// Act
			rr := serve(router, http.MethodGet, "/ready", nil)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var resp ReadyResponse
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if resp.Status != "ready" {
					t.Errorf("Status = %s, want ready", resp.Status)
				}
			}
		})
	}
}

func TestRESTHandler_ListItems(t *testing.T) {
	// Arrange
	svc := newMockService()
	svc.items[testID] = model.Item{ID: testID, Title: "Buy milk"}
	router := newTestRouter(svc, nil)

	// Act
	rr := serve(router, http.MethodGet, "/todos", nil)

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusOK)
	}

	var items []model.Item
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Buy milk" {
		t.Errorf("Items = %+v, want one item titled Buy milk", items)
	}
}

func TestRESTHandler_ListItems_Empty(t *testing.T) {
	// Arrange
	router := newTestRouter(newMockService(), nil)

	// Act
	rr := serve(router, http.MethodGet, "/todos", nil)

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("Body = %s, want []", body)
	}
}

func TestRESTHandler_ListItems_NotModified(t *testing.T) {
	// Arrange
	svc := newMockService()
	svc.items[testID] = model.Item{ID: testID, Title: "Buy milk"}
	router := newTestRouter(svc, nil)

	first := serve(router, http.MethodGet, "/todos", nil)
	tag := first.Header().Get("ETag")
	if tag == "" {
		t.Fatal("ETag header should be set")
	}

	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
	}{
		{"same tag", tag, http.StatusNotModified},
		{"weak tag", "W/" + tag, http.StatusNotModified},
		{"tag in list", `"other", ` + tag, http.StatusNotModified},
		{"wildcard", "*", http.StatusNotModified},
		{"stale tag", `"stale"`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/todos", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			rr := httptest.NewRecorder()

			// Act
			router.ServeHTTP(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotModified && rr.Body.Len() != 0 {
				t.Errorf("304 response should have no body, got %q", rr.Body.String())
			}
		})
	}
}

func TestRESTHandler_ListItems_ETagChangesWithContent(t *testing.T) {
	// Arrange
	svc := newMockService()
	router := newTestRouter(svc, nil)
	before := serve(router, http.MethodGet, "/todos", nil).Header().Get("ETag")

	// Act
	svc.items[testID] = model.Item{ID: testID, Title: "Buy milk"}
	after := serve(router, http.MethodGet, "/todos", nil).Header().Get("ETag")

	// Assert
	if before == after {
		t.Errorf("ETag should change when the collection changes, both %s", before)
	}
}

func TestRESTHandler_GetItem(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		getErr      error
		wantStatus  int
		wantMessage string
	}{
		{
			name:       "existing item",
			id:         testID,
			wantStatus: http.StatusOK,
		},
		{
			name:        "unknown item",
			id:          "1e0a2f4c-0000-4000-8000-000000000000",
			wantStatus:  http.StatusNotFound,
			wantMessage: "item not found",
		},
		{
			name:        "malformed id",
			id:          "42",
			getErr:      fmt.Errorf("%w: %q", service.ErrInvalidIdentifier, "42"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid item ID",
		},
		{
			name:        "storage failure",
			id:          testID,
			getErr:      fmt.Errorf("get item: %w: %w", service.ErrStorageFailure, errors.New("timeout")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := newMockService()
			svc.items[testID] = model.Item{ID: testID, Title: "Buy milk", Completed: true}
			svc.getErr = tt.getErr
			router := newTestRouter(svc, nil)

			// Act
			rr := serve(router, http.MethodGet, "/todos/"+tt.id, nil)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusOK {
				var item model.Item
				if err := json.NewDecoder(rr.Body).Decode(&item); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if item != svc.items[testID] {
					t.Errorf("Item = %+v, want %+v", item, svc.items[testID])
				}
				if rr.Header().Get("ETag") == "" {
					t.Error("ETag header should be set")
				}
				return
			}

			resp := decodeError(t, rr)
			if resp.Code != tt.wantStatus {
				t.Errorf("Code = %d, want %d", resp.Code, tt.wantStatus)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("Message = %s, want %s", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestRESTHandler_CreateItem(t *testing.T) {
	// Arrange
	svc := newMockService()
	router := newTestRouter(svc, nil)

	// Act
	rr := serve(router, http.MethodPost, "/todos", []byte(`{"title":"Buy milk","completed":true}`))

	// Assert
	if rr.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusCreated)
	}

	var item model.Item
	if err := json.NewDecoder(rr.Body).Decode(&item); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if item.ID == "" {
		t.Error("ID should be assigned")
	}
	if item.Title != "Buy milk" {
		t.Errorf("Title = %s, want Buy milk", item.Title)
	}
	if item.Completed {
		t.Error("new items should start incomplete")
	}
	if svc.lastTitle != "Buy milk" {
		t.Errorf("service saw title %q, want %q", svc.lastTitle, "Buy milk")
	}
}

func TestRESTHandler_CreateItem_BadRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "malformed JSON",
			body:        `{"title":`,
			wantMessage: "invalid request body",
		},
		{
			name:        "wrong title type",
			body:        `{"title":42}`,
			wantMessage: "invalid request body",
		},
		{
			name:        "blank title",
			body:        `{"title":"   "}`,
			wantMessage: "invalid input: title cannot be empty",
		},
		{
			name:        "missing title",
			body:        `{}`,
			wantMessage: "invalid input: title cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := newMockService()
			router := newTestRouter(svc, nil)

			// Act
			rr := serve(router, http.MethodPost, "/todos", []byte(tt.body))

			// Assert
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			resp := decodeError(t, rr)
			if resp.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if len(svc.items) != 0 {
				t.Error("no item should be stored")
			}
		})
	}
}

func TestRESTHandler_CreateItem_StorageFailure(t *testing.T) {
	// Arrange
	svc := newMockService()
	svc.createErr = fmt.Errorf("create item: %w: %w", service.ErrStorageFailure, errors.New("disk full"))
	router := newTestRouter(svc, nil)

	// Act
	rr := serve(router, http.MethodPost, "/todos", []byte(`{"title":"Buy milk"}`))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	resp := decodeError(t, rr)
	if strings.Contains(resp.Message, "disk full") {
		t.Errorf("Message should not leak backend detail, got %q", resp.Message)
	}
}

func TestRESTHandler_UpdateItem(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantTitle     string
		wantCompleted bool
	}{
		{
			name:          "complete item",
			body:          `{"title":"Buy milk","completed":true}`,
			wantTitle:     "Buy milk",
			wantCompleted: true,
		},
		{
			name:          "omitted completed resets to false",
			body:          `{"title":"Buy eggs"}`,
			wantTitle:     "Buy eggs",
			wantCompleted: false,
		},
		{
			name:          "body id is ignored",
			body:          `{"id":"someone-else","title":"Buy bread","completed":true}`,
			wantTitle:     "Buy bread",
			wantCompleted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := newMockService()
			svc.items[testID] = model.Item{ID: testID, Title: "Old", Completed: true}
			router := newTestRouter(svc, nil)

			// Act
			rr := serve(router, http.MethodPut, "/todos/"+testID, []byte(tt.body))

			// Assert
			if rr.Code != http.StatusOK {
				t.Fatalf("Status = %d, want %d", rr.Code, http.StatusOK)
			}

			var item model.Item
			if err := json.NewDecoder(rr.Body).Decode(&item); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			want := model.Item{ID: testID, Title: tt.wantTitle, Completed: tt.wantCompleted}
			if item != want {
				t.Errorf("Item = %+v, want %+v", item, want)
			}
		})
	}
}

func TestRESTHandler_UpdateItem_Errors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		updateErr  error
		wantStatus int
	}{
		{
			name:       "unknown item",
			id:         "1e0a2f4c-0000-4000-8000-000000000000",
			body:       `{"title":"Buy milk"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed body",
			id:         testID,
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid title",
			id:         testID,
			body:       `{"title":""}`,
			updateErr:  fmt.Errorf("%w: %w", service.ErrInvalidInput, model.ErrEmptyTitle),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed id",
			id:         "nope",
			body:       `{"title":"Buy milk"}`,
			updateErr:  fmt.Errorf("%w: %q", service.ErrInvalidIdentifier, "nope"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "storage failure",
			id:         testID,
			body:       `{"title":"Buy milk"}`,
			updateErr:  fmt.Errorf("update item: %w", service.ErrStorageFailure),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc := newMockService()
			svc.items[testID] = model.Item{ID: testID, Title: "Old"}
			svc.updateErr = tt.updateErr
			router := newTestRouter(svc, nil)

			// Act
			rr := serve(router, http.MethodPut, "/todos/"+tt.id, []byte(tt.body))

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := svc.items[testID]; got.Title != "Old" {
				t.Errorf("stored item changed to %+v", got)
			}
		})
	}
}

func TestRESTHandler_DeleteItem(t *testing.T) {
	// Arrange
	svc := newMockService()
	svc.items[testID] = model.Item{ID: testID, Title: "Buy milk"}
	router := newTestRouter(svc, nil)

	// Act
	rr := serve(router, http.MethodDelete, "/todos/"+testID, nil)

	// Assert
	if rr.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Body should be empty, got %q", rr.Body.String())
	}
	if _, exists := svc.items[testID]; exists {
		t.Error("item should be deleted")
	}

	// Act again: the item is gone.
	rr = serve(router, http.MethodDelete, "/todos/"+testID, nil)

	// Assert
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestRESTHandler_DeleteItem_StorageFailure(t *testing.T) {
	// Arrange
	svc := newMockService()
	svc.deleteErr = fmt.Errorf("delete item: %w", service.ErrStorageFailure)
	router := newTestRouter(svc, nil)

	// Act
	rr := serve(router, http.MethodDelete, "/todos/"+testID, nil)

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestRESTHandler_MethodNotAllowed(t *testing.T) {
	// Arrange
	router := newTestRouter(newMockService(), nil)

	// Act
	rr := serve(router, http.MethodPatch, "/todos/"+testID, []byte(`{}`))

	// Assert
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestMatchesETag(t *testing.T) {
	tag := entityTag([]byte(`[]`))

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"empty header", "", false},
		{"exact", tag, true},
		{"weak", "W/" + tag, true},
		{"wildcard", "*", true},
		{"list", `"a", "b", ` + tag, true},
		{"mismatch", `"a"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesETag(tt.header, tag); got != tt.want {
				t.Errorf("matchesETag(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestEntityTag_Stable(t *testing.T) {
	a := entityTag([]byte(`{"id":"1"}`))
	b := entityTag([]byte(`{"id":"1"}`))
	c := entityTag([]byte(`{"id":"2"}`))

	if a != b {
		t.Errorf("entityTag should be deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("entityTag should differ for different bodies")
	}
	if !strings.HasPrefix(a, `"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("entityTag should be quoted, got %s", a)
	}
}
