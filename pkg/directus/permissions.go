package directus

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Permission is a row of /permissions. Role is the legacy (v10) owner,
// Policy the v11 one; a nil Role with a nil Policy is the public role.
type Permission struct {
	ID          int            `json:"id,omitempty"`
	Collection  string         `json:"collection"`
	Action      string         `json:"action"`
	Role        *string        `json:"role,omitempty"`
	Policy      *string        `json:"policy,omitempty"`
	Fields      []string       `json:"fields"`
	Permissions map[string]any `json:"permissions"`
	Validation  map[string]any `json:"validation"`
	Presets     map[string]any `json:"presets,omitempty"`
}

// PermissionFilter narrows ListPermissions. Zero values mean "any".
type PermissionFilter struct {
	Collection string
	Role       string
	Policy     string
	PublicRole bool // role is null
}

func (f PermissionFilter) filter() map[string]any {
	var parts []map[string]any
	if f.Collection != "" {
		parts = append(parts, Eq("collection", f.Collection))
	}
	if f.Role != "" {
		parts = append(parts, Eq("role", f.Role))
	}
	if f.Policy != "" {
		parts = append(parts, Eq("policy", f.Policy))
	}
	if f.PublicRole {
		parts = append(parts, map[string]any{"role": map[string]any{"_null": true}})
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return And(parts...)
	}
}

func (c *Client) ListPermissions(ctx context.Context, f PermissionFilter) ([]Permission, error) {
	q := Query{Filter: f.filter(), Limit: -1}
	var out []Permission
	if err := c.do(ctx, http.MethodGet, "/permissions", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePermission(ctx context.Context, p Permission) (*Permission, error) {
	var out Permission
	if err := c.do(ctx, http.MethodPost, "/permissions", nil, p, &out); err != nil {
		return nil, fmt.Errorf("create %s permission on %s: %w", p.Action, p.Collection, err)
	}
	return &out, nil
}

func (c *Client) UpdatePermission(ctx context.Context, id int, patch map[string]any) (*Permission, error) {
	var out Permission
	if err := c.do(ctx, http.MethodPatch, "/permissions/"+strconv.Itoa(id), nil, patch, &out); err != nil {
		return nil, fmt.Errorf("update permission %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) DeletePermission(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/permissions/"+strconv.Itoa(id), nil, nil, nil)
}
