package directus

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type User struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (c *Client) CreateUser(ctx context.Context, u User) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users", nil, u, &out); err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return &out, nil
}

func (c *Client) FindUser(ctx context.Context, email string) (*User, error) {
	q := Query{Fields: []string{"id", "email", "first_name", "last_name", "role", "status"}, Filter: Eq("email", email), Limit: 1}
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", q.values(), nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	q := Query{Fields: []string{"id", "name", "description"}, Limit: -1}
	var out []Role
	if err := c.do(ctx, http.MethodGet, "/roles", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRole matches the role name case-insensitively.
func (c *Client) FindRole(ctx context.Context, name string) (*Role, error) {
	roles, err := c.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if strings.EqualFold(roles[i].Name, name) {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("role %q not found", name)
}
