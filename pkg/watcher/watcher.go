// Package watcher keeps the store in sync with a source directory.
// File events are debounced and coalesced, then replayed through the
// ingestion pipeline: new and changed files are re-ingested (chunked
// documents get a chunk-level diff), removed files are deprecated.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

const (
	// DefaultDebounce is how long the watcher waits after the last
	// event before re-ingesting, so editor save bursts collapse into
	// one pass.
	DefaultDebounce = 2 * time.Second

	// DefaultConcurrency bounds parallel pipeline calls per flush.
	DefaultConcurrency = 4
)

// Config configures a Watcher.
type Config struct {
	// Dir is the source directory to watch, recursively.
	Dir string
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
	// Include holds glob patterns matched against the slashed path
	// relative to Dir (and against the base name). Empty means every
	// file the pipeline can ingest: extractable documents plus code
	// extensions.
	Include []string
	// Exclude holds path substrings to skip. Nil means the default
	// ingestion exclusions.
	Exclude []string
	// Concurrency overrides DefaultConcurrency when positive.
	Concurrency int
	// Meta is stamped onto every document the watcher ingests.
	Meta map[string]any
}

// Watcher drives incremental re-ingestion from filesystem events.
type Watcher struct {
	p        *pipeline.PipelineContext
	dir      string
	debounce time.Duration
	include  []string
	exclude  []string
	limit    int
	meta     map[string]any

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a watcher over an existing directory.
func New(p *pipeline.PipelineContext, cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil || !info.IsDir() {
		return nil, errors.New("watch directory not found: " + cfg.Dir)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	exclude := cfg.Exclude
	if exclude == nil {
		exclude = schema.DefaultExcludePatterns
	}

	return &Watcher{
		p:        p,
		dir:      cfg.Dir,
		debounce: debounce,
		include:  cfg.Include,
		exclude:  exclude,
		limit:    limit,
		meta:     cfg.Meta,
	}, nil
}

// Start registers the directory tree and begins processing events.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	if err := w.addDirs(w.dir); err != nil {
		fsw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	go w.run(runCtx)

	logger.Get().Info("watching source directory", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop cancels in-flight work and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.cancel()
	err := w.fsw.Close()
	<-w.done
	w.running = false
	logger.Get().Info("stopped source watcher", "dir", w.dir)
	return err
}

// IsRunning reports whether the event loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run coalesces events per path until the debounce window closes, then
// flushes the batch through the pipeline.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	log := logger.Get()

	pending := make(map[string]fsnotify.Op)
	var pendingMu sync.Mutex
	var timer *time.Timer
	flushCh := make(chan struct{}, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case flushCh <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.excluded(event.Name) {
						if err := w.addDirs(event.Name); err != nil {
							log.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
					}
					continue
				}
			}
			if !w.shouldProcess(event.Name) {
				continue
			}
			pendingMu.Lock()
			pending[event.Name] |= event.Op
			pendingMu.Unlock()
			schedule()

		case <-flushCh:
			pendingMu.Lock()
			batch := pending
			pending = make(map[string]fsnotify.Op)
			pendingMu.Unlock()
			w.flush(ctx, batch)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error("file watcher error", "dir", w.dir, "error", err)
		}
	}
}

// flush applies one debounced batch. Per-file failures are logged and
// do not stop the rest of the batch.
func (w *Watcher) flush(ctx context.Context, batch map[string]fsnotify.Op) {
	if len(batch) == 0 || ctx.Err() != nil {
		return
	}
	log := logger.Get()
	log.Info("processing source changes", "dir", w.dir, "files", len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.limit)
	for path, op := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := w.apply(gctx, path, op); err != nil {
				log.Warn("change not applied", "path", path, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("source flush interrupted", "dir", w.dir, "error", err)
	}
}

// apply routes one coalesced event. Remove and rename deprecate the
// stored documents unless the path reappeared before the flush ran.
func (w *Watcher) apply(ctx context.Context, path string, op fsnotify.Op) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			return w.deprecatePath(ctx, path)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	return w.upsert(ctx, path)
}

// upsert re-ingests one file. Code goes through code ingestion, and a
// document whose stored points are chunks gets a chunk-level diff so
// unchanged chunks keep their embeddings. Everything else goes back
// through AddFile, where the duplicate ladder decides between skip,
// version update, and insert.
func (w *Watcher) upsert(ctx context.Context, path string) error {
	log := logger.Get()

	if isCodePath(path) {
		res, err := w.p.AddCode(ctx, path, "", w.baseMeta())
		if err != nil {
			return err
		}
		log.Debug("code file re-ingested", "path", path, "status", res.Status)
		return nil
	}

	collection := w.p.CollectionFor(pipeline.ContentTypeDocs)
	recs, err := w.p.LookupByFilePath(ctx, collection, path, schema.StatusActive)
	if err != nil {
		return err
	}
	if parent, category := chunkParent(recs); parent != "" {
		extracted, err := w.p.Extractors.Extract(ctx, path)
		if err != nil {
			return err
		}
		res, err := w.p.UpdateChunked(ctx, pipeline.ChunkUpdateRequest{
			DocID:      parent,
			Content:    extracted.Text,
			Category:   category,
			FilePath:   path,
			ParentMeta: w.baseMeta(),
		})
		if err != nil {
			return err
		}
		log.Info("chunked document refreshed", "path", path, "doc_id", parent,
			"unchanged", res.Unchanged, "changed", res.Changed, "new", res.New, "deleted", res.Deleted)
		return nil
	}

	res, err := w.p.AddFile(ctx, path, w.baseMeta())
	if err != nil {
		return err
	}
	log.Debug("file re-ingested", "path", path, "status", res.Status)
	return nil
}

// deprecatePath marks every active point stored for the path as
// deprecated, in both collections.
func (w *Watcher) deprecatePath(ctx context.Context, path string) error {
	log := logger.Get()
	var firstErr error
	for _, ct := range []string{pipeline.ContentTypeDocs, pipeline.ContentTypeCode} {
		collection := w.p.CollectionFor(ct)
		recs, err := w.p.LookupByFilePath(ctx, collection, path, schema.StatusActive)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, rec := range recs {
			if _, err := w.p.Deprecate(ctx, collection, rec.PointID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if len(recs) > 0 {
			log.Info("deprecated removed file", "path", path, "collection", collection, "points", len(recs))
		}
	}
	return firstErr
}

// chunkParent finds the parent document behind a set of stored chunk
// points, along with its category.
func chunkParent(recs []pipeline.Record) (docID, category string) {
	for _, rec := range recs {
		if !rec.IsChunk() {
			continue
		}
		if id := rec.Field("parent_doc_id"); id != "" {
			return id, rec.Category()
		}
	}
	return "", ""
}

func (w *Watcher) shouldProcess(path string) bool {
	if w.excluded(path) {
		return false
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if len(w.include) > 0 {
		for _, pattern := range w.include {
			if ok, _ := filepath.Match(pattern, rel); ok {
				return true
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
				return true
			}
		}
		return false
	}
	return isCodePath(path) || w.p.Extractors.CanExtract(path)
}

func (w *Watcher) excluded(path string) bool {
	for _, pattern := range w.exclude {
		if pattern != "" && strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func isCodePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range schema.DefaultCodeExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// baseMeta hands each pipeline call its own copy so ingestion can
// annotate it freely.
func (w *Watcher) baseMeta() map[string]any {
	if len(w.meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(w.meta))
	for k, v := range w.meta {
		out[k] = v
	}
	return out
}

// addDirs registers root and every non-excluded subdirectory.
func (w *Watcher) addDirs(root string) error {
	log := logger.Get()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("cannot access path while watching", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excluded(path) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
