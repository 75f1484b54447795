package main

import (
	"strings"
	"time"

	"cmsops/pkg/content"
	"cmsops/pkg/directus"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// Rough bounding box of Indonesia, so seeded points land on the map.
var (
	latMin, latMax = -11.0, 6.0
	lngMin, lngMax = 95.0, 141.0
)

var statuses = []string{"draft", "draft", "published", "archived"}

// fakeItem builds one item with translations for every platform language,
// created nested in the same request.
func fakeItem(f *gofakeit.Faker, c content.Collection) directus.Item {
	title := strings.TrimSuffix(f.Sentence(3), ".")
	it := directus.Item{
		"status": f.RandomString(statuses),
	}
	if c.SlugField != "" {
		it[c.SlugField] = content.Slugify(title) + "-" + strings.ToLower(f.LetterN(4))
	}
	if !c.IsTranslated(c.TitleField) {
		it[c.TitleField] = title
	}
	if c.HasCoordinates() {
		lat := decimal.NewFromFloat(f.Float64Range(latMin, latMax)).Round(6)
		lng := decimal.NewFromFloat(f.Float64Range(lngMin, lngMax)).Round(6)
		it[c.LatField] = lat.String()
		it[c.LngField] = lng.String()
	}
	if c.Name == "events" {
		start := f.DateRange(time.Now(), time.Now().AddDate(1, 0, 0)).UTC().Truncate(time.Hour)
		it["start_date"] = start.Format(time.RFC3339)
		it["end_date"] = start.Add(time.Duration(f.Number(2, 72)) * time.Hour).Format(time.RFC3339)
	}
	if len(c.Translated) > 0 {
		rows := make([]map[string]any, 0, len(content.Languages))
		for _, l := range content.Languages {
			row := map[string]any{"languages_code": l.Code}
			for _, field := range c.Translated {
				switch field {
				case "name", "title":
					row[field] = title
					if l.Code != content.DefaultLanguage {
						row[field] = title + " (" + l.Name + ")"
					}
				case "excerpt":
					row[field] = f.Sentence(12)
				default:
					row[field] = "<p>" + f.Paragraph(2, 3, 12, "</p><p>") + "</p>"
				}
			}
			rows = append(rows, row)
		}
		it["translations"] = rows
	}
	return it
}
