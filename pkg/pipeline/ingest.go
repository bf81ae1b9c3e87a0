package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dhana009/haystack/pkg/databases"
	"github.com/Dhana009/haystack/pkg/embedders"
	"github.com/Dhana009/haystack/pkg/extract"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/metadata"
	"github.com/Dhana009/haystack/pkg/schema"
)

// ingestConcurrency bounds parallel file ingestion in directory walks.
const ingestConcurrency = 4

// listPreview caps the file lists echoed in directory results.
const listPreview = 10

// AddDocumentRequest is the input for AddDocument.
type AddDocumentRequest struct {
	Content     string
	Metadata    map[string]any
	ContentType string // documentation (default) or code
}

// ingestNotes are the per-entity response messages, keyed by action.
type ingestNotes struct {
	skip   string
	update string
	warn   string
	store  string
}

var documentNotes = ingestNotes{
	skip:   "Document is an exact duplicate - skipping storage",
	update: "New version stored; previous version deprecated.",
	warn:   "Document stored with warning flag due to semantic similarity.",
	store:  "New document stored successfully.",
}

var fileNotes = ingestNotes{
	skip:   "File is an exact duplicate - skipping storage",
	update: "New version stored; previous version deprecated.",
	warn:   "File stored with warning flag due to semantic similarity.",
	store:  "New file indexed successfully.",
}

var codeNotes = ingestNotes{
	skip:   "Code file is an exact duplicate - skipping storage",
	update: "New version stored; previous version deprecated.",
	warn:   "Code file stored with warning flag due to semantic similarity.",
	store:  "New code file indexed successfully.",
}

// ingestPlan carries one document through classification and write.
type ingestPlan struct {
	collection string
	provider   embedders.Provider
	content    string
	docID      string
	category   string
	meta       map[string]any
	fp         fingerprint.Fingerprint
	candidates []Record
	notes      ingestNotes
}

// AddDocument ingests one document end to end: derive identity, build
// metadata, classify against existing candidates, then skip, update or
// store. Level-2 updates deprecate the prior record before the new
// write. Embedding happens before any store mutation, so a failure
// anywhere leaves the store untouched.
func (p *PipelineContext) AddDocument(ctx context.Context, req AddDocumentRequest) (*Result, error) {
	const op = "add_document"
	if strings.TrimSpace(req.Content) == "" {
		return nil, invalidInput(op, "content is required")
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentTypeDocs
	}
	collection := p.CollectionFor(contentType)

	meta := req.Metadata
	docID := firstString(meta, "doc_id", "id")
	if docID == "" {
		docID = fallbackDocID(req.Content)
	}
	category := stringField(meta, "category")
	if category == "" {
		category = schema.DefaultCategory
	}

	built, err := metadata.Build(metadata.BuildInput{
		DocID:       docID,
		Category:    category,
		HashContent: fingerprint.ContentHash(req.Content),
		Version:     stringField(meta, "version"),
		FilePath:    firstString(meta, "file_path", "path"),
		Source:      stringField(meta, "source"),
		Tags:        stringSlice(metaValue(meta, "tags")),
		Extra:       meta,
	})
	if err != nil {
		return nil, invalidMetadata(op, err)
	}

	fp := fingerprintFromMeta(req.Content, built)

	candidates, err := p.lookupMerged(ctx, collection, docID, category, fp.ContentHash)
	if err != nil {
		return nil, err
	}

	return p.executeIngest(ctx, op, &ingestPlan{
		collection: collection,
		provider:   p.EmbedderFor(contentType),
		content:    req.Content,
		docID:      docID,
		category:   category,
		meta:       built,
		fp:         fp,
		candidates: candidates,
		notes:      documentNotes,
	})
}

// AddFile ingests a file: extract its text, derive doc_id from the
// path, and dedup by file_path first, then doc_id, then content hash.
func (p *PipelineContext) AddFile(ctx context.Context, path string, meta map[string]any) (*Result, error) {
	const op = "add_file"
	if path == "" {
		return nil, invalidInput(op, "file_path is required")
	}

	extracted, err := p.Extractors.Extract(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, notFound(op, "File not found: %s", path)
		case errors.Is(err, extract.ErrUnsupported):
			return nil, invalidInput(op, "unsupported file type: %s", filepath.Ext(path))
		default:
			return nil, invalidInput(op, "failed to read file: %v", err)
		}
	}

	docID := firstString(meta, "doc_id", "id")
	if docID == "" {
		docID = path
	}
	category := stringField(meta, "category")
	if category == "" {
		category = schema.DefaultCategory
	}

	extra := cloneMeta(meta)
	extra["file_name"] = filepath.Base(path)

	built, err := metadata.Build(metadata.BuildInput{
		DocID:       docID,
		Category:    category,
		HashContent: fingerprint.ContentHash(extracted.Text),
		Version:     stringField(meta, "version"),
		FilePath:    path,
		Source:      stringField(meta, "source"),
		Tags:        stringSlice(metaValue(meta, "tags")),
		Extra:       extra,
	})
	if err != nil {
		return nil, invalidMetadata(op, err)
	}

	fp := fingerprintFromMeta(extracted.Text, built)

	collection := p.CollectionFor(ContentTypeDocs)
	candidates, err := p.lookupOrdered(ctx, collection, path, docID, category, fp.ContentHash)
	if err != nil {
		return nil, err
	}

	res, err := p.executeIngest(ctx, op, &ingestPlan{
		collection: collection,
		provider:   p.DocEmbedder,
		content:    extracted.Text,
		docID:      docID,
		category:   category,
		meta:       built,
		fp:         fp,
		candidates: candidates,
		notes:      fileNotes,
	})
	if res != nil {
		res.FilePath = path
	}
	return res, err
}

// AddCode ingests one source file into the code collection with the
// code embedder. Language is detected from the extension when not
// given.
func (p *PipelineContext) AddCode(ctx context.Context, path, language string, meta map[string]any) (*Result, error) {
	const op = "add_code"
	if path == "" {
		return nil, invalidInput(op, "file_path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(op, "File not found: %s", path)
		}
		return nil, invalidInput(op, "failed to read file: %v", err)
	}
	if !utf8.Valid(data) {
		return nil, invalidInput(op, "file is not UTF-8 text: %s", path)
	}
	content := string(data)

	ext := strings.ToLower(filepath.Ext(path))
	if language == "" {
		language = schema.DetectLanguage(ext)
	}

	docID := firstString(meta, "doc_id", "id")
	if docID == "" {
		docID = path
	}
	category := stringField(meta, "category")
	if category == "" {
		category = schema.DefaultCategory
	}

	extra := cloneMeta(meta)
	extra["file_name"] = filepath.Base(path)
	extra["file_extension"] = filepath.Ext(path)
	extra["language"] = language
	extra["content_type"] = ContentTypeCode
	if info, statErr := os.Stat(path); statErr == nil {
		extra["file_size"] = info.Size()
	}

	built, err := metadata.Build(metadata.BuildInput{
		DocID:       docID,
		Category:    category,
		HashContent: fingerprint.ContentHash(content),
		Version:     stringField(meta, "version"),
		FilePath:    path,
		Source:      stringField(meta, "source"),
		Tags:        stringSlice(metaValue(meta, "tags")),
		Extra:       extra,
	})
	if err != nil {
		return nil, invalidMetadata(op, err)
	}

	fp := fingerprintFromMeta(content, built)

	collection := p.CollectionFor(ContentTypeCode)
	candidates, err := p.lookupOrdered(ctx, collection, path, docID, category, fp.ContentHash)
	if err != nil {
		return nil, err
	}

	res, err := p.executeIngest(ctx, op, &ingestPlan{
		collection: collection,
		provider:   p.CodeEmbedder,
		content:    content,
		docID:      docID,
		category:   category,
		meta:       built,
		fp:         fp,
		candidates: candidates,
		notes:      codeNotes,
	})
	if res != nil {
		res.FilePath = path
		res.Language = language
	}
	return res, err
}

// DirectoryResult reports a recursive code-directory ingestion.
type DirectoryResult struct {
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	FilesFound   int         `json:"files_found"`
	FilesIndexed int         `json:"files_indexed"`
	FilesSkipped int         `json:"files_skipped"`
	FilesFailed  int         `json:"files_failed"`
	IndexedFiles []string    `json:"indexed_files,omitempty"`
	SkippedFiles []string    `json:"skipped_files,omitempty"`
	FailedFiles  []ItemError `json:"failed_files,omitempty"`
}

// AddCodeDirectory walks root recursively and ingests every matching
// source file through AddCode, so each file gets its own duplicate
// classification. Files run concurrently with a bounded group;
// per-file failures are collected, not fatal.
func (p *PipelineContext) AddCodeDirectory(ctx context.Context, root string, extensions, excludePatterns []string, meta map[string]any) (*DirectoryResult, error) {
	const op = "add_code_directory"
	if root == "" {
		return nil, invalidInput(op, "directory_path is required")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, notFound(op, "Directory not found: %s", root)
	}

	if len(extensions) == 0 {
		extensions = schema.DefaultCodeExtensions
	}
	if excludePatterns == nil {
		excludePatterns = schema.DefaultExcludePatterns
	}

	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		wanted[strings.ToLower(ext)] = true
	}
	excluded := func(path string) bool {
		for _, pattern := range excludePatterns {
			if pattern != "" && strings.Contains(path, pattern) {
				return true
			}
		}
		return false
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && excluded(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !wanted[strings.ToLower(filepath.Ext(path))] || excluded(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, invalidInput(op, "directory walk failed: %v", walkErr)
	}

	if len(files) == 0 {
		return &DirectoryResult{Status: "success", Message: "No code files found to index"}, nil
	}

	log := logger.Get()
	log.Info("indexing code directory", "root", root, "files", len(files))

	var (
		mu      sync.Mutex
		indexed []string
		skipped []string
		failed  []ItemError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.AddCode(gctx, path, "", meta)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed = append(failed, ItemError{ID: path, Error: err.Error()})
			case res.Status == "skipped":
				skipped = append(skipped, path)
			default:
				indexed = append(indexed, path)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	sort.Strings(indexed)
	sort.Strings(skipped)
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })

	result := &DirectoryResult{
		Status:       "success",
		Message:      fmt.Sprintf("Indexed %d code files", len(indexed)),
		FilesFound:   len(files),
		FilesIndexed: len(indexed),
		FilesSkipped: len(skipped),
		FilesFailed:  len(failed),
		IndexedFiles: firstN(indexed, listPreview),
		SkippedFiles: firstN(skipped, listPreview),
		FailedFiles:  failed,
	}
	if waitErr != nil {
		result.Status = "error"
		result.Message = "indexing interrupted: " + waitErr.Error()
		return result, waitErr
	}
	return result, nil
}

// executeIngest classifies the plan against its candidates and applies
// the action. Order on the store is fixed: embed first (local side
// effect), deprecate the superseded record, then write.
func (p *PipelineContext) executeIngest(ctx context.Context, op string, plan *ingestPlan) (*Result, error) {
	decision := Classify(plan.fp, plan.docID, plan.candidates)
	p.observer().RecordIngestAction(ctx, decision.Action, decision.Level)

	if decision.Action == ActionSkip {
		res := &Result{
			Status:   "skipped",
			Message:  plan.notes.skip,
			Reason:   decision.Reason,
			Action:   decision.Action,
			Level:    decision.Level,
			DocID:    plan.docID,
			Category: plan.category,
		}
		if decision.Match != nil {
			res.Existing = decision.Match.PointID
		}
		return res, nil
	}

	note := plan.notes.store
	switch decision.Action {
	case ActionUpdate:
		note = plan.notes.update
	case ActionWarn:
		note = plan.notes.warn
		plan.meta["warning"] = "Content is semantically similar to existing documents"
	}
	plan.meta["status"] = schema.StatusActive

	points, chunkCount, err := p.buildPoints(ctx, op, plan)
	if err != nil {
		return nil, err
	}

	if decision.Action == ActionUpdate && decision.Match != nil {
		if _, err := p.Deprecate(ctx, plan.collection, decision.Match.PointID); err != nil {
			return nil, err
		}
	}

	if err := p.upsertPoints(ctx, op, plan.collection, points); err != nil {
		return nil, err
	}

	version, _ := plan.meta["version"].(string)
	return &Result{
		Status:      "success",
		Message:     note,
		PointID:     points[0].ID,
		DocID:       plan.docID,
		Category:    plan.category,
		Version:     version,
		Action:      decision.Action,
		Level:       decision.Level,
		Reason:      decision.Reason,
		ChunksTotal: chunkCount,
	}, nil
}

// buildPoints embeds the plan's content into store points: one point
// for a small document, one per chunk for a large one. Chunk point IDs
// derive from each chunk's own fingerprint, so identical content maps
// to identical IDs and re-writes collapse.
func (p *PipelineContext) buildPoints(ctx context.Context, op string, plan *ingestPlan) ([]databases.Point, int, error) {
	if !p.shouldChunk(plan.content) {
		vector, err := p.embed(ctx, plan.provider, op, plan.content)
		if err != nil {
			return nil, 0, err
		}
		id := pointIDFor(plan.fp.CompositeKey)
		rec := Record{PointID: id, Content: plan.content, Meta: plan.meta, Shape: ShapeNested}
		return []databases.Point{{ID: id, Vector: vector, Payload: rec.ToPayload()}}, 0, nil
	}

	chunks, err := p.Chunker.Chunk(plan.content)
	if err != nil {
		return nil, 0, chunkingFailed(op, err)
	}

	version, _ := plan.meta["version"].(string)
	source, _ := plan.meta["source"].(string)
	filePath, _ := plan.meta["file_path"].(string)
	tags := stringSlice(plan.meta["tags"])

	points := make([]databases.Point, 0, len(chunks))
	for _, chunk := range chunks {
		chunkMeta, err := metadata.BuildChunk(metadata.ChunkInput{
			ParentDocID: plan.docID,
			ChunkIndex:  chunk.Index,
			TotalChunks: chunk.Total,
			Category:    plan.category,
			HashContent: chunk.Hash,
			Version:     version,
			FilePath:    filePath,
			Source:      source,
			Tags:        tags,
			Status:      schema.StatusActive,
			ParentMeta:  plan.meta,
		})
		if err != nil {
			return nil, 0, invalidMetadata(op, err)
		}

		vector, err := p.embed(ctx, plan.provider, op, chunk.Content)
		if err != nil {
			return nil, 0, err
		}

		metaHash, _ := chunkMeta["metadata_hash"].(string)
		id := pointIDFor(fingerprint.CompositeKey(chunk.Hash, metaHash))
		rec := Record{PointID: id, Content: chunk.Content, Meta: chunkMeta, Shape: ShapeNested}
		points = append(points, databases.Point{ID: id, Vector: vector, Payload: rec.ToPayload()})
	}
	return points, len(chunks), nil
}

// lookupMerged unions the doc_id and content-hash candidate sets,
// deduplicated by point ID.
func (p *PipelineContext) lookupMerged(ctx context.Context, collection, docID, category, contentHash string) ([]Record, error) {
	byID, err := p.LookupByDocID(ctx, collection, docID, category, "")
	if err != nil {
		return nil, err
	}
	byHash, err := p.LookupByContentHash(ctx, collection, contentHash, "")
	if err != nil {
		return nil, err
	}
	return mergeRecords(byID, byHash), nil
}

// lookupOrdered tries file_path, then doc_id, then content hash,
// returning the first non-empty candidate set.
func (p *PipelineContext) lookupOrdered(ctx context.Context, collection, path, docID, category, contentHash string) ([]Record, error) {
	recs, err := p.LookupByFilePath(ctx, collection, path, "")
	if err != nil || len(recs) > 0 {
		return recs, err
	}
	recs, err = p.LookupByDocID(ctx, collection, docID, category, "")
	if err != nil || len(recs) > 0 {
		return recs, err
	}
	return p.LookupByContentHash(ctx, collection, contentHash, "")
}

func mergeRecords(sets ...[]Record) []Record {
	seen := make(map[string]bool)
	var merged []Record
	for _, set := range sets {
		for _, rec := range set {
			if seen[rec.PointID] {
				continue
			}
			seen[rec.PointID] = true
			merged = append(merged, rec)
		}
	}
	return merged
}

// fingerprintFromMeta pairs the content hash with the metadata_hash the
// built metadata actually carries, so classification compares what will
// be stored.
func fingerprintFromMeta(content string, meta map[string]any) fingerprint.Fingerprint {
	ch := fingerprint.ContentHash(content)
	mh, _ := meta["metadata_hash"].(string)
	if mh == "" {
		mh = fingerprint.MetadataHash(meta)
	}
	return fingerprint.Fingerprint{
		ContentHash:  ch,
		MetadataHash: mh,
		CompositeKey: fingerprint.CompositeKey(ch, mh),
	}
}

// fallbackDocID derives a doc_id from the raw content bytes.
func fallbackDocID(content string) string {
	return "doc_" + fingerprint.SHA256Hex([]byte(content))[:16]
}

// pointIDFor maps a composite fingerprint key to a deterministic UUID,
// the ID form the store accepts.
func pointIDFor(compositeKey string) string {
	return uuid.NewMD5(uuid.Nil, []byte(compositeKey)).String()
}

func stringField(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

func firstString(meta map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(meta, key); s != "" {
			return s
		}
	}
	return ""
}

func metaValue(meta map[string]any, key string) any {
	if meta == nil {
		return nil
	}
	return meta[key]
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+6)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func firstN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
