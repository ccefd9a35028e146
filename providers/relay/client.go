// Package relay talks to the external completion service. The service
// exposes one POST endpoint per mode and answers with the literal reply
// text, so there is no response schema to decode.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ModeChat  = "chat"
	ModeImage = "image"
)

// ErrRateLimited marks an attempt the backend refused because of rate
// limiting. Callers may retry such an attempt exactly once.
var ErrRateLimited = errors.New("relay: rate limited")

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Request string `json:"request"`
	Key     string `json:"key"`
}

// Complete posts one payload under the given mode and returns the reply
// text. The key deduplicates retried requests on the backend side.
func (c *Client) Complete(ctx context.Context, mode, payload, key string) (string, error) {
	b, err := json.Marshal(completionRequest{Request: payload, Key: key})
	if err != nil {
		return "", fmt.Errorf("relay %s: encode: %w", mode, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+mode, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("relay %s: %w", mode, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("relay %s: %w", mode, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("relay %s: read body: %w", mode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(string(raw))
		if resp.StatusCode == http.StatusTooManyRequests || isRateLimitBody(body) {
			return "", fmt.Errorf("%w: http %d: %s", ErrRateLimited, resp.StatusCode, body)
		}
		return "", fmt.Errorf("relay %s: http %d: %s", mode, resp.StatusCode, body)
	}
	return string(raw), nil
}

// Some upstreams hide rate limiting behind a generic status and only
// say so in the body.
func isRateLimitBody(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests")
}
