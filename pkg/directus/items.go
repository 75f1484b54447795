package directus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Item is one content row as the CMS returns it.
type Item = map[string]any

const pageSize = 200

func (c *Client) ListItems(ctx context.Context, collection string, q Query) ([]Item, error) {
	var items []Item
	if err := c.do(ctx, http.MethodGet, "/items/"+esc(collection), q.values(), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListAllItems pages through the collection until a short page comes back.
// q.Limit and q.Offset are ignored.
func (c *Client) ListAllItems(ctx context.Context, collection string, q Query) ([]Item, error) {
	var all []Item
	q.Limit = pageSize
	for offset := 0; ; offset += pageSize {
		q.Offset = offset
		page, err := c.ListItems(ctx, collection, q)
		if err != nil {
			return nil, fmt.Errorf("list %s at offset %d: %w", collection, offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (c *Client) GetItem(ctx context.Context, collection string, id any, fields ...string) (Item, error) {
	q := Query{Fields: fields}
	var item Item
	path := fmt.Sprintf("/items/%s/%s", esc(collection), esc(fmt.Sprint(id)))
	if err := c.do(ctx, http.MethodGet, path, q.values(), nil, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) CreateItem(ctx context.Context, collection string, item Item) (Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodPost, "/items/"+esc(collection), nil, item, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateItem(ctx context.Context, collection string, id any, patch Item) (Item, error) {
	var out Item
	path := fmt.Sprintf("/items/%s/%s", esc(collection), esc(fmt.Sprint(id)))
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteItem(ctx context.Context, collection string, id any) error {
	path := fmt.Sprintf("/items/%s/%s", esc(collection), esc(fmt.Sprint(id)))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// CountItems asks for aggregate[count]=*. Depending on the database driver
// behind the CMS the count arrives as a number or as a string.
func (c *Client) CountItems(ctx context.Context, collection string, filter map[string]any) (int, error) {
	v := Query{Filter: filter}.values()
	v.Set("aggregate[count]", "*")
	var rows []map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/items/"+esc(collection), v, nil, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return parseCount(rows[0]["count"])
}

func parseCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, fmt.Errorf("count %q: %w", n, err)
		}
		return i, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("count %s: %w", raw, err)
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", s, err)
	}
	return i, nil
}

// ItemExists looks the item up with an _eq filter on pkField so that a
// missing row is an empty list rather than a 403.
func (c *Client) ItemExists(ctx context.Context, collection, pkField string, id any) (bool, error) {
	items, err := c.ListItems(ctx, collection, Query{
		Fields: []string{pkField},
		Filter: Eq(pkField, id),
		Limit:  1,
	})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}
