package assets

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ManifestName is written into the scanned directory.
const ManifestName = "manifest.json"

// Entry records what happened to one source image.
type Entry struct {
	File       string    `json:"file"`
	FileID     string    `json:"file_id,omitempty"`
	Bytes      int64     `json:"bytes"`
	Uploaded   int64     `json:"uploaded_bytes,omitempty"`
	Resized    bool      `json:"resized,omitempty"`
	LinkedItem any       `json:"linked_item,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// manifest is loaded once and consulted by every worker, so files already
// uploaded are skipped without asking the CMS.
type manifest struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Entry
}

func loadManifest(dir string) (*manifest, error) {
	m := &manifest{path: filepath.Join(dir, ManifestName), entries: map[string]Entry{}}
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	for _, e := range list {
		m.entries[e.File] = e
	}
	return m, nil
}

func (m *manifest) get(name string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

func (m *manifest) put(e Entry) {
	m.mu.Lock()
	m.entries[e.File] = e
	m.mu.Unlock()
}

func (m *manifest) list() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

// save writes through a temp file so a crash never leaves half a manifest.
func (m *manifest) save() error {
	raw, err := json.MarshalIndent(m.list(), "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
