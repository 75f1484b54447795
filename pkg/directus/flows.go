package directus

import (
	"context"
	"fmt"
	"net/http"
)

const (
	FlowActive   = "active"
	FlowInactive = "inactive"
)

type Flow struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Trigger string         `json:"trigger"`
	Options map[string]any `json:"options,omitempty"`
}

func (c *Client) ListFlows(ctx context.Context) ([]Flow, error) {
	q := Query{Fields: []string{"id", "name", "status", "trigger", "options"}, Sort: []string{"name"}, Limit: -1}
	var out []Flow
	if err := c.do(ctx, http.MethodGet, "/flows", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateFlowStatus(ctx context.Context, id, status string) (*Flow, error) {
	if status != FlowActive && status != FlowInactive {
		return nil, fmt.Errorf("flow status %q: want %s or %s", status, FlowActive, FlowInactive)
	}
	var out Flow
	if err := c.do(ctx, http.MethodPatch, "/flows/"+esc(id), nil, map[string]string{"status": status}, &out); err != nil {
		return nil, fmt.Errorf("set flow %s %s: %w", id, status, err)
	}
	return &out, nil
}
