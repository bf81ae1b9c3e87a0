// Package backup writes collections to timestamped local directories
// and restores them with checksum verification. A backup directory
// holds the exported documents as JSON, a metadata summary, and a
// manifest with a SHA-256 checksum per file.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

// DefaultDir is where backups land when the caller gives no directory.
const DefaultDir = "./backups"

const (
	documentsFile = "documents.json"
	codeFile      = "code_documents.json"
	metadataFile  = "metadata.json"
	manifestFile  = "manifest.json"

	backupVersion = "1.0"
	stampFormat   = "20060102_150405"
)

// ManifestFile is one file's checksum entry.
type ManifestFile struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Manifest lists a backup's files with their checksums.
type Manifest struct {
	BackupID  string         `json:"backup_id"`
	Files     []ManifestFile `json:"files"`
	CreatedAt string         `json:"created_at"`
}

// Metadata summarizes what a backup holds.
type Metadata struct {
	BackupID          string `json:"backup_id"`
	CollectionName    string `json:"collection_name"`
	CodeCollection    string `json:"code_collection_name,omitempty"`
	Timestamp         string `json:"timestamp"`
	DocumentCount     int    `json:"document_count"`
	CodeDocumentCount int    `json:"code_document_count,omitempty"`
	IncludeEmbeddings bool   `json:"include_embeddings"`
	FiltersApplied    bool   `json:"filters_applied"`
	BackupVersion     string `json:"backup_version"`
}

// CreateOptions configure a backup.
type CreateOptions struct {
	Dir               string
	IncludeEmbeddings bool
	IncludeCode       bool
	Filter            filter.Node
}

// CreateResult reports a finished backup.
type CreateResult struct {
	Status        string    `json:"status"`
	BackupPath    string    `json:"backup_path"`
	BackupID      string    `json:"backup_id"`
	DocumentCount int       `json:"document_count"`
	Metadata      *Metadata `json:"backup_metadata"`
	Manifest      *Manifest `json:"manifest"`
}

// Create exports the documentation collection (and optionally the code
// collection) into a fresh backup_<collection>_<stamp> directory. The
// directory must not already exist; two backups never share one. The
// manifest is written last, hashing every file before it.
func Create(ctx context.Context, p *pipeline.PipelineContext, opts CreateOptions) (*CreateResult, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}

	collection := p.CollectionFor(pipeline.ContentTypeDocs)
	backupID := fmt.Sprintf("backup_%s_%s", collection, time.Now().UTC().Format(stampFormat))
	backupPath := filepath.Join(dir, backupID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.Mkdir(backupPath, 0o755); err != nil {
		return nil, err
	}

	docs, err := p.ExportDocuments(ctx, collection, opts.Filter, opts.IncludeEmbeddings)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{BackupID: backupID, CreatedAt: schema.NowUTC()}
	if err := writeJSON(backupPath, documentsFile, docs, manifest); err != nil {
		return nil, err
	}

	meta := &Metadata{
		BackupID:          backupID,
		CollectionName:    collection,
		Timestamp:         schema.NowUTC(),
		DocumentCount:     len(docs),
		IncludeEmbeddings: opts.IncludeEmbeddings,
		FiltersApplied:    opts.Filter != nil,
		BackupVersion:     backupVersion,
	}

	codeCount := 0
	if opts.IncludeCode {
		codeCollection := p.CollectionFor(pipeline.ContentTypeCode)
		code, err := p.ExportDocuments(ctx, codeCollection, opts.Filter, opts.IncludeEmbeddings)
		if err != nil {
			return nil, err
		}
		if err := writeJSON(backupPath, codeFile, code, manifest); err != nil {
			return nil, err
		}
		meta.CodeCollection = codeCollection
		meta.CodeDocumentCount = len(code)
		codeCount = len(code)
	}

	if err := writeJSON(backupPath, metadataFile, meta, manifest); err != nil {
		return nil, err
	}
	if err := writeJSON(backupPath, manifestFile, manifest, nil); err != nil {
		return nil, err
	}

	return &CreateResult{
		Status:        "success",
		BackupPath:    backupPath,
		BackupID:      backupID,
		DocumentCount: len(docs) + codeCount,
		Metadata:      meta,
		Manifest:      manifest,
	}, nil
}

// ListEntry summarizes one backup on disk.
type ListEntry struct {
	BackupID          string `json:"backup_id"`
	BackupPath        string `json:"backup_path"`
	CollectionName    string `json:"collection_name"`
	Timestamp         string `json:"timestamp"`
	DocumentCount     int    `json:"document_count"`
	IncludeEmbeddings bool   `json:"include_embeddings"`
}

// ListResult enumerates backups, newest first.
type ListResult struct {
	Status  string      `json:"status"`
	Backups []ListEntry `json:"backups"`
	Total   int         `json:"total_backups"`
	Message string      `json:"message,omitempty"`
}

// List scans a directory for backup_* directories that carry both a
// manifest and metadata. Unreadable entries are skipped, not fatal.
func List(dir string) (*ListResult, error) {
	if dir == "" {
		dir = DefaultDir
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return &ListResult{
			Status:  "success",
			Backups: []ListEntry{},
			Message: "Backup directory does not exist",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	backups := []ListEntry{}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "backup_") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, manifestFile)); err != nil {
			continue
		}
		meta, err := readMetadata(path)
		if err != nil {
			continue
		}
		id := meta.BackupID
		if id == "" {
			id = entry.Name()
		}
		backups = append(backups, ListEntry{
			BackupID:          id,
			BackupPath:        path,
			CollectionName:    meta.CollectionName,
			Timestamp:         meta.Timestamp,
			DocumentCount:     meta.DocumentCount + meta.CodeDocumentCount,
			IncludeEmbeddings: meta.IncludeEmbeddings,
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp > backups[j].Timestamp })
	return &ListResult{Status: "success", Backups: backups, Total: len(backups)}, nil
}

func readMetadata(backupPath string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(backupPath, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// writeJSON marshals v into dir/name and, when manifest is non-nil,
// records the file's checksum entry.
func writeJSON(dir, name string, v any, manifest *Manifest) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return err
	}
	if manifest != nil {
		sum := sha256.Sum256(data)
		manifest.Files = append(manifest.Files, ManifestFile{
			Filename: name,
			Checksum: hex.EncodeToString(sum[:]),
			Size:     int64(len(data)),
		})
	}
	return nil
}

// checksumFile hashes a file's bytes.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
