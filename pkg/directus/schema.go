package directus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Field is an entry of /fields. Meta stays a loose map so that tweaks can
// round-trip keys this client does not model.
type Field struct {
	Collection string         `json:"collection"`
	Field      string         `json:"field"`
	Type       string         `json:"type,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Schema     *FieldSchema   `json:"schema,omitempty"`
}

type FieldSchema struct {
	DataType         string `json:"data_type,omitempty"`
	IsNullable       *bool  `json:"is_nullable,omitempty"`
	IsPrimaryKey     bool   `json:"is_primary_key,omitempty"`
	HasAutoIncrement bool   `json:"has_auto_increment,omitempty"`
	MaxLength        *int   `json:"max_length,omitempty"`
	DefaultValue     any    `json:"default_value,omitempty"`
	ForeignKeyTable  string `json:"foreign_key_table,omitempty"`
	ForeignKeyColumn string `json:"foreign_key_column,omitempty"`
}

type Collection struct {
	Collection string         `json:"collection"`
	Meta       map[string]any `json:"meta,omitempty"`
	Schema     map[string]any `json:"schema"`
	Fields     []Field        `json:"fields,omitempty"`
}

// IsFolder is true for collections without a table (meta-only groups).
func (c Collection) IsFolder() bool { return c.Schema == nil }

type Relation struct {
	Collection        string         `json:"collection"`
	Field             string         `json:"field"`
	RelatedCollection *string        `json:"related_collection"`
	Meta              map[string]any `json:"meta,omitempty"`
	Schema            map[string]any `json:"schema,omitempty"`
}

func (c *Client) ListFields(ctx context.Context, collection string) ([]Field, error) {
	path := "/fields"
	if collection != "" {
		path += "/" + esc(collection)
	}
	var out []Field
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetField(ctx context.Context, collection, field string) (*Field, error) {
	var out Field
	if err := c.do(ctx, http.MethodGet, fieldPath(collection, field), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateField(ctx context.Context, collection string, f Field) (*Field, error) {
	var out Field
	if err := c.do(ctx, http.MethodPost, "/fields/"+esc(collection), nil, f, &out); err != nil {
		return nil, fmt.Errorf("create field %s.%s: %w", collection, f.Field, err)
	}
	return &out, nil
}

// UpdateField patches field metadata; only the keys in meta change.
func (c *Client) UpdateField(ctx context.Context, collection, field string, meta map[string]any) (*Field, error) {
	var out Field
	body := map[string]any{"meta": meta}
	if err := c.do(ctx, http.MethodPatch, fieldPath(collection, field), nil, body, &out); err != nil {
		return nil, fmt.Errorf("update field %s.%s: %w", collection, field, err)
	}
	return &out, nil
}

func (c *Client) DeleteField(ctx context.Context, collection, field string) error {
	return c.do(ctx, http.MethodDelete, fieldPath(collection, field), nil, nil, nil)
}

func fieldPath(collection, field string) string {
	return "/fields/" + esc(collection) + "/" + esc(field)
}

func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := c.do(ctx, http.MethodGet, "/collections", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var out Collection
	if err := c.do(ctx, http.MethodGet, "/collections/"+esc(name), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CollectionExists hides the 403/404 ambiguity of GetCollection.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := c.GetCollection(ctx, name)
	if IsMissing(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) CreateCollection(ctx context.Context, col Collection) (*Collection, error) {
	var out Collection
	if err := c.do(ctx, http.MethodPost, "/collections", nil, col, &out); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", col.Collection, err)
	}
	return &out, nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+esc(name), nil, nil, nil)
}

func (c *Client) ListRelations(ctx context.Context) ([]Relation, error) {
	var out []Relation
	if err := c.do(ctx, http.MethodGet, "/relations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRelation(ctx context.Context, r Relation) (*Relation, error) {
	var out Relation
	if err := c.do(ctx, http.MethodPost, "/relations", nil, r, &out); err != nil {
		return nil, fmt.Errorf("create relation %s.%s: %w", r.Collection, r.Field, err)
	}
	return &out, nil
}

func (c *Client) DeleteRelation(ctx context.Context, collection, field string) error {
	return c.do(ctx, http.MethodDelete, "/relations/"+esc(collection)+"/"+esc(field), nil, nil, nil)
}

// SchemaSnapshot returns /schema/snapshot untouched.
func (c *Client) SchemaSnapshot(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/schema/snapshot", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
