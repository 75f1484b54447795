package backup

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cmsops/pkg/directus"
)

// Columns is the sorted union of the items' keys.
func Columns(items []directus.Item) []string {
	seen := map[string]bool{}
	var cols []string
	for _, it := range items {
		for k := range it {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV writes a header row and one row per item. Nested values are
// JSON encoded and nil is written as an empty cell.
func WriteCSV(w io.Writer, items []directus.Item) error {
	cols := Columns(items)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, it := range items {
		for i, c := range cols {
			cell, err := formatCell(it[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			row[i] = cell
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		if looksEncoded(t) {
			b, err := json.Marshal(t)
			return string(b), err
		}
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// looksEncoded marks strings that would read back as JSON; WriteCSV writes
// them as quoted JSON strings.
func looksEncoded(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`)
}

// ReadCSV is the inverse of WriteCSV. Empty cells are left out of the
// item, so empty strings come back as absent. Cells holding a JSON object,
// array or quoted string are decoded.
func ReadCSV(r io.Reader) ([]directus.Item, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []directus.Item
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		it := directus.Item{}
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			it[col] = parseCell(rec[i])
		}
		items = append(items, it)
	}
}

func parseCell(s string) any {
	if looksEncoded(s) {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
