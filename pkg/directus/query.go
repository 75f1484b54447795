package directus

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Query holds the list parameters the items endpoint understands.
type Query struct {
	Fields []string
	Filter map[string]any
	Sort   []string
	Limit  int // 0 leaves the server default, -1 means all
	Offset int
	Search string
	Meta   string // "total_count", "filter_count" or "*"
}

func (q Query) values() url.Values {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	if len(q.Filter) > 0 {
		b, _ := json.Marshal(q.Filter)
		v.Set("filter", string(b))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.Limit != 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Meta != "" {
		v.Set("meta", q.Meta)
	}
	return v
}

// Eq builds the {"field":{"_eq":value}} filter.
func Eq(field string, value any) map[string]any {
	return map[string]any{field: map[string]any{"_eq": value}}
}

// And combines filters with _and.
func And(filters ...map[string]any) map[string]any {
	list := make([]any, 0, len(filters))
	for _, f := range filters {
		list = append(list, f)
	}
	return map[string]any{"_and": list}
}

func esc(s string) string { return url.PathEscape(s) }
