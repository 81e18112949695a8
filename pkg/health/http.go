package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps how much of a health response is decoded
const maxBodyBytes = 1 << 20

// nodeHealth is the part of the node health response the checker reads
type nodeHealth struct {
	Healthy *bool `json:"healthy"`
}

// HTTPChecker polls a node health endpoint that answers with {"healthy": bool, ...}
type HTTPChecker struct {
	// URL is the full health URL (e.g., "http://avalanche:9650/ext/health")
	URL string

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	// RequireHealthyFlag makes the decoded "healthy" field mandatory.
	// When false any 2xx response counts as healthy.
	RequireHealthyFlag bool

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a checker that requires a 2xx status and healthy=true
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:                url,
		Headers:            make(map[string]string),
		RequireHealthyFlag: true,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Check performs one HTTP GET against the health endpoint
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := func(healthy bool, format string, args ...any) Result {
		return Result{
			Healthy:   healthy,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return result(false, "failed to create request: %v", err)
	}
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return result(false, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return result(false, "HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if !h.RequireHealthyFlag {
		return result(true, "HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body nodeHealth
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return result(false, "malformed health body: %v", err)
	}
	if body.Healthy == nil {
		return result(false, "health body has no healthy field")
	}
	if !*body.Healthy {
		return result(false, "node reports healthy=false")
	}
	return result(true, "node reports healthy=true")
}

// WithHeader adds a custom HTTP header
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithTimeout sets the per-request timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// WithStatusOnly accepts any 2xx response without decoding the body
func (h *HTTPChecker) WithStatusOnly() *HTTPChecker {
	h.RequireHealthyFlag = false
	return h
}
