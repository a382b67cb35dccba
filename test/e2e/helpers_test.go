//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// EnvServerURL names the variable holding the base URL of the server under test.
const EnvServerURL = "E2E_SERVER_URL"

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:8080"
	DefaultTimeout   = 15 * time.Second
)

// e2eServerURL returns the base URL of the server under test.
func e2eServerURL() string {
	if val := os.Getenv(EnvServerURL); val != "" {
		return val
	}
	return DefaultServerURL
}

// skipIfServerUnavailable skips the test when the server does not answer /health.
func skipIfServerUnavailable(t *testing.T) {
	t.Helper()

	base := e2eServerURL()
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(base + "/health")
	if err != nil {
		t.Skipf("Server unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type itemResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// doRequest performs an HTTP request with an optional JSON body and
// returns the status code, headers and body.
func doRequest(
	t *testing.T,
	client *http.Client,
	method, url string,
	payload any,
	headers map[string]string,
) (int, http.Header, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	return resp.StatusCode, resp.Header, respBody
}

// createItem creates an item and registers its deletion on cleanup.
func createItem(t *testing.T, client *http.Client, base, title string) itemResponse {
	t.Helper()

	status, _, body := doRequest(t, client, http.MethodPost, base+"/todos", map[string]any{"title": title}, nil)
	if status != http.StatusCreated {
		t.Fatalf("Create status = %d, want %d, body: %s", status, http.StatusCreated, body)
	}

	var item itemResponse
	if err := json.Unmarshal(body, &item); err != nil {
		t.Fatalf("Failed to decode created item: %v", err)
	}

	t.Cleanup(func() {
		doRequest(t, client, http.MethodDelete, base+"/todos/"+item.ID, nil, nil)
	})

	return item
}
