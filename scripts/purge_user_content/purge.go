package main

import (
	"context"
	"fmt"
	"io"

	"cmsops/pkg/content"
	"cmsops/pkg/database"

	"gorm.io/gorm"
)

type target struct {
	collection content.Collection
	items      int64
	hasTr      bool
}

// plan counts what a user created in each collection. Collections without a
// table are left out.
func plan(ctx context.Context, db *gorm.DB, cat database.Catalog, userID string, cols []content.Collection) ([]target, error) {
	var out []target
	for _, c := range cols {
		ok, err := cat.TableExists(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var n int64
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_created = ?", database.QuoteIdent(c.Name))
		if err := db.WithContext(ctx).Raw(q, userID).Scan(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", c.Name, err)
		}
		if n == 0 {
			continue
		}
		t := target{collection: c, items: n}
		if len(c.Translated) > 0 {
			if t.hasTr, err = cat.TableExists(ctx, c.TranslationsCollection()); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func printPlan(w io.Writer, email string, targets []target) {
	fmt.Fprintf(w, "Planned actions for user %s:\n", email)
	if len(targets) == 0 {
		fmt.Fprintln(w, " - nothing to delete")
	}
	for _, t := range targets {
		if t.hasTr {
			fmt.Fprintf(w, " - DELETE FROM %s rows of those items\n", t.collection.TranslationsCollection())
		}
		fmt.Fprintf(w, " - DELETE FROM %s (%d items)\n", t.collection.Name, t.items)
	}
}

// purge deletes translations first, then the items, all in one transaction.
func purge(ctx context.Context, db *gorm.DB, userID string, targets []target) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range targets {
			c := t.collection
			if t.hasTr {
				q := fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE user_created = ?)",
					database.QuoteIdent(c.TranslationsCollection()), database.QuoteIdent(c.ParentKeyField()),
					database.QuoteIdent(c.PK), database.QuoteIdent(c.Name))
				if err := tx.Exec(q, userID).Error; err != nil {
					return fmt.Errorf("delete %s: %w", c.TranslationsCollection(), err)
				}
			}
			q := fmt.Sprintf("DELETE FROM %s WHERE user_created = ?", database.QuoteIdent(c.Name))
			if err := tx.Exec(q, userID).Error; err != nil {
				return fmt.Errorf("delete %s: %w", c.Name, err)
			}
		}
		return nil
	})
}
