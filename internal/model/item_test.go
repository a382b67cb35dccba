package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{
			name:    "valid item",
			item:    Item{ID: "123", Title: "Buy milk"},
			wantErr: nil,
		},
		{
			name:    "valid item - completed",
			item:    Item{ID: "123", Title: "Buy milk", Completed: true},
			wantErr: nil,
		},
		{
			name:    "valid item - max title length",
			item:    Item{Title: strings.Repeat("a", MaxTitleLength)},
			wantErr: nil,
		},
		{
			name:    "invalid - empty title",
			item:    Item{ID: "123", Title: ""},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "invalid - whitespace title",
			item:    Item{ID: "123", Title: "  \t\n"},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "invalid - title too long",
			item:    Item{Title: strings.Repeat("a", MaxTitleLength+1)},
			wantErr: ErrTitleTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := tt.item.Validate()

			// Assert
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestItem_JSONMarshal(t *testing.T) {
	// Arrange
	item := Item{ID: "abc", Title: "Buy milk", Completed: false}

	// Act
	data, err := json.Marshal(item)

	// Assert
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"id":"abc","title":"Buy milk","completed":false}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestCreateItemRequest_MissingTitle(t *testing.T) {
	// Arrange
	var req CreateItemRequest

	// Act
	err := json.Unmarshal([]byte(`{"completed":true}`), &req)

	// Assert
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ValidateTitle(req.Title) != ErrEmptyTitle {
		t.Errorf("missing title should fail validation, got title %q", req.Title)
	}
}

func TestUpdateItemRequest_OmittedCompleted(t *testing.T) {
	// Arrange
	var req UpdateItemRequest

	// Act
	err := json.Unmarshal([]byte(`{"title":"Buy eggs"}`), &req)

	// Assert
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Completed {
		t.Error("omitted completed should decode as false")
	}
	if req.Title != "Buy eggs" {
		t.Errorf("Title = %q, want %q", req.Title, "Buy eggs")
	}
}

func TestErrorResponse_JSONOmitEmpty(t *testing.T) {
	// Arrange
	resp := ErrorResponse{Code: 404, Message: "item not found"}

	// Act
	data, err := json.Marshal(resp)

	// Assert
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "details") {
		t.Errorf("details should be omitted when empty: %s", data)
	}
}

func TestNewItemEvent(t *testing.T) {
	// Arrange
	item := Item{ID: "abc", Title: "Buy milk"}
	before := time.Now().UTC()

	// Act
	event := NewItemEvent(EventTypeItemCreated, item)

	// Assert
	if event.Type != EventTypeItemCreated {
		t.Errorf("Type = %s, want %s", event.Type, EventTypeItemCreated)
	}
	if event.Item == nil || event.Item.ID != "abc" {
		t.Fatalf("Item = %+v, want copy of %+v", event.Item, item)
	}
	if event.Timestamp.Before(before) {
		t.Error("Timestamp should be set to the current time")
	}

	// The event holds its own copy.
	item.Title = "changed"
	if event.Item.Title != "Buy milk" {
		t.Error("event item should not alias the caller's item")
	}
}
