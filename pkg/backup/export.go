// Package backup exports CMS collections to JSON/CSV files, imports them
// back and copies backup runs to S3-compatible storage.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cmsops/pkg/directus"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var ErrUnknownFormat = errors.New("unknown backup format")

// StampLayout names a backup run directory.
const StampLayout = "20060102-150405"

// ParseFormats accepts "json", "csv" or a comma separated list of both.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case FormatJSON, FormatCSV:
		case "":
			continue
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []Format{FormatJSON}, nil
	}
	return out, nil
}

// Document is the JSON export file of one collection.
type Document struct {
	Collection string          `json:"collection"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Items      []directus.Item `json:"items"`
}

type ManifestEntry struct {
	Collection string   `json:"collection"`
	Count      int      `json:"count"`
	Files      []string `json:"files"`
}

// Manifest describes one backup run.
type Manifest struct {
	ID          string          `json:"id"`
	Source      string          `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Collections []ManifestEntry `json:"collections"`
	Skipped     []string        `json:"skipped,omitempty"`
	Schema      string          `json:"schema,omitempty"`
}

// Source is what an export reads from.
type Source interface {
	ListAllItems(ctx context.Context, collection string, q directus.Query) ([]directus.Item, error)
	SchemaSnapshot(ctx context.Context) (json.RawMessage, error)
}

type Exporter struct {
	API Source
	Dir string
	// SourceName goes into the manifest, usually the CMS URL.
	SourceName string
	// Schema adds schema.json with the CMS schema snapshot.
	Schema bool
	Log    *zap.Logger
	now    func() time.Time
}

func NewExporter(api Source, dir string, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{API: api, Dir: dir, Log: log, now: time.Now}
}

// Export writes one file per collection and format into a new
// <Dir>/<stamp> directory and returns that directory. Collections the CMS
// does not know are logged and listed as skipped.
func (e *Exporter) Export(ctx context.Context, collections []string, formats []Format) (string, *Manifest, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
	}
	for _, f := range formats {
		if f != FormatJSON && f != FormatCSV {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	now := e.now().UTC()
	out := filepath.Join(e.Dir, now.Format(StampLayout))
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", nil, err
	}
	m := &Manifest{ID: uuid.NewString(), Source: e.SourceName, CreatedAt: now}

	for _, c := range collections {
		items, err := e.API.ListAllItems(ctx, c, directus.Query{Fields: []string{"*"}})
		if directus.IsMissing(err) {
			e.Log.Warn("skipping collection", zap.String("collection", c), zap.Error(err))
			m.Skipped = append(m.Skipped, c)
			continue
		}
		if err != nil {
			return out, m, fmt.Errorf("export %s: %w", c, err)
		}
		entry := ManifestEntry{Collection: c, Count: len(items)}
		for _, f := range formats {
			name := c + "." + string(f)
			path := filepath.Join(out, name)
			switch f {
			case FormatJSON:
				err = writeJSON(path, Document{Collection: c, ExportedAt: now, Count: len(items), Items: items})
			case FormatCSV:
				err = writeCSVFile(path, items)
			}
			if err != nil {
				return out, m, fmt.Errorf("write %s: %w", name, err)
			}
			entry.Files = append(entry.Files, name)
		}
		m.Collections = append(m.Collections, entry)
		e.Log.Info("exported", zap.String("collection", c), zap.Int("items", len(items)))
	}

	if e.Schema {
		snap, err := e.API.SchemaSnapshot(ctx)
		if err != nil {
			return out, m, fmt.Errorf("schema snapshot: %w", err)
		}
		if err := writeJSON(filepath.Join(out, "schema.json"), snap); err != nil {
			return out, m, err
		}
		m.Schema = "schema.json"
	}
	if err := writeJSON(filepath.Join(out, "manifest.json"), m); err != nil {
		return out, m, err
	}
	return out, m, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSVFile(path string, items []directus.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
