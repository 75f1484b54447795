package directus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Health is the body of /server/health.
type Health struct {
	Status string                       `json:"status"`
	Checks map[string][]json.RawMessage `json:"checks,omitempty"`
}

func (h Health) OK() bool { return h.Status == "ok" || h.Status == "warn" }

// Health calls /server/health without a token. The endpoint answers 503
// with a body when a check fails; that body is still returned.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.request(ctx, http.MethodGet, "/server/health", nil, nil, "", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var h Health
	if jerr := json.Unmarshal(raw, &h); jerr == nil && h.Status != "" {
		return &h, nil
	}
	if resp.StatusCode >= 300 {
		return nil, parseError(resp.StatusCode, http.MethodGet, "/server/health", raw)
	}
	return &Health{Status: "unknown"}, nil
}

// Ping expects the literal "pong".
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.request(ctx, http.MethodGet, "/server/ping", nil, nil, "", "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, http.MethodGet, "/server/ping", raw)
	}
	if strings.TrimSpace(string(raw)) != "pong" {
		return &APIError{Status: resp.StatusCode, Method: http.MethodGet, Path: "/server/ping", Message: "unexpected body " + strings.TrimSpace(string(raw))}
	}
	return nil
}
