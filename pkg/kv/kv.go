package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/cuemby/subnet-watchdog/pkg/log"
)

// DefaultPrimaryKey holds the node ID of the node added last, which is
// updated first during a rolling restart
const DefaultPrimaryKey = "lastNodeAdded"

// ErrNotConfigured is returned when the client has no URL or token
var ErrNotConfigured = errors.New("kv store not configured")

// Client reads values from a REST key-value store speaking the
// GET {url}/get/{key} protocol with bearer token auth
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	logger     zerolog.Logger
}

// NewClient creates a KV client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		attempts:   3,
		delay:      500 * time.Millisecond,
		logger:     log.WithComponent("kv"),
	}
}

// WithRetry sets the attempt budget and base delay of lookups
func (c *Client) WithRetry(attempts uint, delay time.Duration) *Client {
	c.attempts = attempts
	c.delay = delay
	return c
}

// Configured reports whether both URL and token are set
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

type getResponse struct {
	Result json.RawMessage `json:"result"`
}

// Get returns the value stored under key. A missing key or a null result
// reports ok == false with a nil error. Server errors and transport failures
// are retried; 4xx answers are not.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if !c.Configured() {
		return "", false, ErrNotConfigured
	}

	var (
		value string
		found bool
	)
	err := retry.Do(
		func() error {
			var err error
			value, found, err = c.get(ctx, key)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn().Err(err).Str("key", key).Msgf("kv lookup failed, attempt: %d", attempt+1)
		}),
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, found, nil
}

func (c *Client) get(ctx context.Context, key string) (string, bool, error) {
	endpoint := c.baseURL + "/get/" + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode >= 500:
		return "", false, fmt.Errorf("kv returned status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", false, retry.Unrecoverable(fmt.Errorf("kv returned status %d", resp.StatusCode))
	}

	var out getResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, retry.Unrecoverable(fmt.Errorf("failed to decode response: %w", err))
	}

	raw := strings.TrimSpace(string(out.Result))
	if raw == "" || raw == "null" {
		return "", false, nil
	}

	var s string
	if err := json.Unmarshal(out.Result, &s); err == nil {
		return s, true, nil
	}
	return raw, true, nil
}
