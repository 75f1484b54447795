package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cmsops/pkg/content"
	"cmsops/pkg/directus"
)

type slugAPI interface {
	ListAllItems(ctx context.Context, collection string, q directus.Query) ([]directus.Item, error)
	UpdateItem(ctx context.Context, collection string, id any, patch directus.Item) (directus.Item, error)
}

// titleOf prefers the default-language translation for translated titles
// and falls back to whatever translation has one.
func titleOf(it directus.Item, c content.Collection) string {
	if !c.IsTranslated(c.TitleField) {
		s, _ := it[c.TitleField].(string)
		return strings.TrimSpace(s)
	}
	if row := content.TranslationFor(it, content.DefaultLanguage); row != nil {
		if s, _ := row[c.TitleField].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	rows, _ := it["translations"].([]any)
	for _, r := range rows {
		row, _ := r.(map[string]any)
		if s, _ := row[c.TitleField].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func uniqueSlug(base string, taken map[string]bool) string {
	s := base
	for n := 2; taken[s]; n++ {
		s = fmt.Sprintf("%s-%d", base, n)
	}
	taken[s] = true
	return s
}

// backfill gives every item without a slug one derived from its title.
// Slugs stay unique within the collection.
func backfill(ctx context.Context, api slugAPI, c content.Collection, dryRun bool, out io.Writer) (int, error) {
	fields := []string{c.PK, c.SlugField}
	if c.IsTranslated(c.TitleField) {
		fields = append(fields, "translations.languages_code", "translations."+c.TitleField)
	} else {
		fields = append(fields, c.TitleField)
	}
	items, err := api.ListAllItems(ctx, c.Name, directus.Query{Fields: fields, Sort: []string{c.PK}})
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", c.Name, err)
	}
	taken := map[string]bool{}
	for _, it := range items {
		if s, _ := it[c.SlugField].(string); s != "" {
			taken[s] = true
		}
	}
	n := 0
	for _, it := range items {
		if s, _ := it[c.SlugField].(string); s != "" {
			continue
		}
		id := it[c.PK]
		title := titleOf(it, c)
		base := content.Slugify(title)
		if base == "" {
			fmt.Fprintf(out, " - %s %v: no title, skipped\n", c.Name, id)
			continue
		}
		slug := uniqueSlug(base, taken)
		fmt.Fprintf(out, " - %s %v: %q -> %s\n", c.Name, id, title, slug)
		if !dryRun {
			if _, err := api.UpdateItem(ctx, c.Name, id, directus.Item{c.SlugField: slug}); err != nil {
				return n, fmt.Errorf("update %s %v: %w", c.Name, id, err)
			}
		}
		n++
	}
	return n, nil
}
