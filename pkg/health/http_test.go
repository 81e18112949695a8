package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPChecker_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		healthy bool
	}{
		{name: "healthy flag true", status: http.StatusOK, body: `{"healthy":true,"checks":{}}`, healthy: true},
		{name: "healthy flag false", status: http.StatusOK, body: `{"healthy":false}`, healthy: false},
		{name: "missing flag", status: http.StatusOK, body: `{"status":"ok"}`, healthy: false},
		{name: "malformed body", status: http.StatusOK, body: `not json`, healthy: false},
		{name: "server error with healthy body", status: http.StatusServiceUnavailable, body: `{"healthy":true}`, healthy: false},
		{name: "created counts as success", status: http.StatusCreated, body: `{"healthy":true}`, healthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newServer(t, tt.status, tt.body)

			result := NewHTTPChecker(server.URL).Check(context.Background())
			assert.Equal(t, tt.healthy, result.Healthy, result.Message)
			assert.False(t, result.CheckedAt.IsZero())
		})
	}
}

func TestHTTPChecker_StatusOnly(t *testing.T) {
	server := newServer(t, http.StatusOK, "OK")

	result := NewHTTPChecker(server.URL).WithStatusOnly().Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
}

func TestHTTPChecker_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "watchdog" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithHeader("X-Probe", "watchdog").Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
}

func TestHTTPChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"healthy":true}`)
	url := server.URL
	server.Close()

	result := NewHTTPChecker(url).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "request failed")
}
