package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cmsops/pkg/directus"

	"go.uber.org/zap"
)

type Mode string

const (
	// ModeSkip leaves items whose primary key already exists alone.
	ModeSkip Mode = "skip"
	// ModeUpsert overwrites them.
	ModeUpsert Mode = "upsert"
)

// SystemFields are maintained by the CMS and rejected or overwritten on
// create.
var SystemFields = []string{"user_created", "user_updated", "date_created", "date_updated"}

type ImportOptions struct {
	// Collection overrides the collection named in the file.
	Collection string
	Mode       Mode
	// PK is the primary key field, "id" when empty.
	PK          string
	StripSystem bool
	DryRun      bool
}

type ImportResult struct {
	Collection string
	Created    int
	Updated    int
	Skipped    int
}

func (r ImportResult) String() string {
	return fmt.Sprintf("%s: %d created, %d updated, %d skipped", r.Collection, r.Created, r.Updated, r.Skipped)
}

// Target is what an import writes to.
type Target interface {
	ItemExists(ctx context.Context, collection, pkField string, id any) (bool, error)
	CreateItem(ctx context.Context, collection string, item directus.Item) (directus.Item, error)
	UpdateItem(ctx context.Context, collection string, id any, patch directus.Item) (directus.Item, error)
}

type Importer struct {
	API Target
	Log *zap.Logger
}

func NewImporter(api Target, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{API: api, Log: log}
}

// ReadFile loads an export file. JSON files are either a Document or a bare
// array of items; CSV files take the collection name from the file name.
func ReadFile(path string) (string, []directus.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		trimmed := bytes.TrimSpace(raw)
		if bytes.HasPrefix(trimmed, []byte("[")) {
			var items []directus.Item
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return "", nil, fmt.Errorf("parse %s: %w", path, err)
			}
			return stem, items, nil
		}
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return "", nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if doc.Collection == "" {
			doc.Collection = stem
		}
		return doc.Collection, doc.Items, nil
	case ".csv":
		items, err := ReadCSV(bytes.NewReader(raw))
		if err != nil {
			return "", nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return stem, items, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
}

// Import writes the items of one export file. It stops at the first item
// the CMS rejects; items written before that stay written.
func (im *Importer) Import(ctx context.Context, path string, opts ImportOptions) (ImportResult, error) {
	collection, items, err := ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	if opts.Collection != "" {
		collection = opts.Collection
	}
	if opts.Mode == "" {
		opts.Mode = ModeSkip
	}
	if opts.Mode != ModeSkip && opts.Mode != ModeUpsert {
		return ImportResult{}, fmt.Errorf("unknown import mode %q", opts.Mode)
	}
	pk := opts.PK
	if pk == "" {
		pk = "id"
	}

	res := ImportResult{Collection: collection}
	for i, it := range items {
		if opts.StripSystem {
			for _, f := range SystemFields {
				delete(it, f)
			}
		}
		id, hasID := it[pk]
		exists := false
		if hasID && id != nil {
			if exists, err = im.API.ItemExists(ctx, collection, pk, id); err != nil {
				return res, fmt.Errorf("item %d: %w", i+1, err)
			}
		}
		switch {
		case exists && opts.Mode == ModeSkip:
			res.Skipped++
			continue
		case exists:
			patch := directus.Item{}
			for k, v := range it {
				if k != pk {
					patch[k] = v
				}
			}
			if !opts.DryRun {
				if _, err := im.API.UpdateItem(ctx, collection, id, patch); err != nil {
					return res, fmt.Errorf("update %s %v: %w", collection, id, err)
				}
			}
			res.Updated++
		default:
			if !opts.DryRun {
				if _, err := im.API.CreateItem(ctx, collection, it); err != nil {
					return res, fmt.Errorf("create %s item %d: %w", collection, i+1, err)
				}
			}
			res.Created++
		}
	}
	im.Log.Info("imported", zap.String("collection", collection), zap.Int("created", res.Created),
		zap.Int("updated", res.Updated), zap.Int("skipped", res.Skipped), zap.Bool("dry_run", opts.DryRun))
	return res, nil
}
