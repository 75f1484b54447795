// Package assets imports a directory of images into the CMS file library
// and links each file to the content item named after it.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"cmsops/pkg/content"
	"cmsops/pkg/directus"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// API is the part of the CMS client the importer uses.
type API interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts directus.FileOptions) (*directus.File, error)
	ListItems(ctx context.Context, collection string, q directus.Query) ([]directus.Item, error)
	UpdateItem(ctx context.Context, collection string, id any, patch directus.Item) (directus.Item, error)
}

type Options struct {
	Dir     string
	Watch   bool
	Workers int // NumCPU when zero
	// MaxBytes is the upload budget; larger images are downscaled first.
	MaxBytes int64
	Folder   string // CMS folder id
	// LinkCollection/LinkField set the file on the item whose MatchField
	// equals the slug of the file name.
	LinkCollection string
	LinkField      string
	MatchField     string // slug by default
	PKField        string // id by default
	DryRun         bool
}

const DefaultMaxBytes = 1_000_000

type Summary struct {
	mu       sync.Mutex
	Scanned  int
	Uploaded int
	Resized  int
	Linked   int
	Skipped  int
	Failed   int
}

func (s *Summary) inc(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("scanned=%d uploaded=%d resized=%d linked=%d skipped=%d failed=%d",
		s.Scanned, s.Uploaded, s.Resized, s.Linked, s.Skipped, s.Failed)
}

type importer struct {
	api     API
	opts    Options
	log     *zap.Logger
	man     *manifest
	tmpDir  string
	summary *Summary
}

// Run uploads every supported image in opts.Dir. With Watch it keeps
// processing new files until ctx is cancelled.
func Run(ctx context.Context, api API, opts Options, log *zap.Logger) (*Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Dir == "" {
		return nil, errors.New("assets: no directory")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MatchField == "" {
		opts.MatchField = "slug"
	}
	if opts.PKField == "" {
		opts.PKField = "id"
	}
	if opts.LinkCollection != "" && opts.LinkField == "" {
		return nil, errors.New("assets: a link collection needs a link field")
	}
	man, err := loadManifest(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	tmpDir, err := os.MkdirTemp("", "cmsops-assets-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	im := &importer{api: api, opts: opts, log: log, man: man, tmpDir: tmpDir, summary: &Summary{}}
	files, err := listImageFiles(opts.Dir)
	if err != nil {
		return nil, err
	}
	log.Info("scanning", zap.String("dir", opts.Dir), zap.Int("files", len(files)), zap.Int("workers", opts.Workers))
	im.runWorkerPool(ctx, sliceChan(files))

	if opts.Watch {
		if err := im.watch(ctx); err != nil {
			return im.summary, err
		}
	}
	if !opts.DryRun {
		if err := man.save(); err != nil {
			return im.summary, fmt.Errorf("save manifest: %w", err)
		}
	}
	return im.summary, nil
}

func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func isSupportedExt(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func sliceChan(names []string) <-chan string {
	ch := make(chan string, len(names))
	for _, n := range names {
		ch <- n
	}
	close(ch)
	return ch
}

// runWorkerPool processes names until the channel closes or ctx ends.
func (im *importer) runWorkerPool(ctx context.Context, names <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < im.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case name, ok := <-names:
					if !ok {
						return
					}
					im.processFile(ctx, name)
				}
			}
		}()
	}
	wg.Wait()
}

// watch feeds files created in the directory to the pool once they have
// stopped changing for a moment.
func (im *importer) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(im.opts.Dir); err != nil {
		return err
	}
	im.log.Info("watching", zap.String("dir", im.opts.Dir))

	fileCh := make(chan string, 256)
	go func() {
		defer close(fileCh)
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				name := filepath.Base(ev.Name)
				if isSupportedExt(name) {
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond {
						select {
						case fileCh <- name:
						case <-ctx.Done():
							return
						}
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				im.log.Warn("watch error", zap.Error(err))
			}
		}
	}()
	im.runWorkerPool(ctx, fileCh)
	return nil
}

func (im *importer) processFile(ctx context.Context, name string) {
	im.summary.inc(&im.summary.Scanned)
	log := im.log.With(zap.String("file", name))
	if e, ok := im.man.get(name); ok && e.FileID != "" {
		log.Debug("skip: already uploaded", zap.String("file_id", e.FileID))
		im.summary.inc(&im.summary.Skipped)
		return
	}
	src := filepath.Join(im.opts.Dir, name)
	fi, err := os.Stat(src)
	if err != nil {
		im.fail(name, 0, err)
		return
	}
	entry := Entry{File: name, Bytes: fi.Size(), At: time.Now().UTC()}

	path, resized := downscale(src, im.tmpDir, fi.Size(), im.opts.MaxBytes)
	if resized {
		im.summary.inc(&im.summary.Resized)
		entry.Resized = true
		defer os.Remove(path)
	}
	if ufi, err := os.Stat(path); err == nil {
		entry.Uploaded = ufi.Size()
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	if im.opts.DryRun {
		log.Info("DRY: would upload", zap.Int64("bytes", entry.Uploaded), zap.Bool("resized", resized))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		im.fail(name, fi.Size(), err)
		return
	}
	file, err := im.api.UploadFile(ctx, name, f, directus.FileOptions{Folder: im.opts.Folder, Title: stem})
	f.Close()
	if err != nil {
		im.fail(name, fi.Size(), err)
		return
	}
	entry.FileID = file.ID
	im.summary.inc(&im.summary.Uploaded)
	log.Info("uploaded", zap.String("file_id", file.ID), zap.Bool("resized", resized))

	if im.opts.LinkCollection != "" {
		id, err := im.link(ctx, content.Slugify(stem), file.ID)
		switch {
		case err != nil:
			entry.Error = err.Error()
			log.Warn("link failed", zap.Error(err))
		case id != nil:
			entry.LinkedItem = id
			im.summary.inc(&im.summary.Linked)
		default:
			log.Debug("no item to link", zap.String(im.opts.MatchField, content.Slugify(stem)))
		}
	}
	im.man.put(entry)
}

func (im *importer) link(ctx context.Context, slug, fileID string) (any, error) {
	items, err := im.api.ListItems(ctx, im.opts.LinkCollection, directus.Query{
		Fields: []string{im.opts.PKField},
		Filter: directus.Eq(im.opts.MatchField, slug),
		Limit:  1,
	})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	id := items[0][im.opts.PKField]
	if _, err := im.api.UpdateItem(ctx, im.opts.LinkCollection, id, directus.Item{im.opts.LinkField: fileID}); err != nil {
		return nil, err
	}
	return id, nil
}

func (im *importer) fail(name string, size int64, err error) {
	im.summary.inc(&im.summary.Failed)
	im.log.Error("asset failed", zap.String("file", name), zap.Error(err))
	im.man.put(Entry{File: name, Bytes: size, Error: err.Error(), At: time.Now().UTC()})
}
