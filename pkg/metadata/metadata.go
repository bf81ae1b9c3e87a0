// Package metadata assembles and validates the stored metadata for
// documents and chunks. Every stored point carries the schema built
// here; the metadata hash is computed over the stable subset before
// aliases and caller extras are merged, so cosmetic additions do not
// change a document's identity.
package metadata

import (
	"fmt"
	"os"

	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/schema"
)

// BuildInput carries the fields for one document's metadata.
type BuildInput struct {
	DocID       string
	Category    string
	HashContent string
	Version     string // defaults to the current UTC timestamp
	FilePath    string
	Source      string // defaults to manual
	Repo        string // defaults to qdrant_haystack
	Tags        []string
	HashFile    string // auto-computed from FilePath when empty
	Status      string // defaults to active
	Extra       map[string]any
}

// Build assembles the full metadata map for a document.
//
// Field order of operations matters: the base fields are written
// first, metadata_hash is computed over them minus the volatile
// lifecycle fields, and only then are the content_hash alias and any
// caller extras merged. Extras therefore never participate in the
// identity hash.
func Build(in BuildInput) (map[string]any, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	version := in.Version
	if version == "" {
		version = schema.NowUTC()
	}
	source := in.Source
	if source == "" {
		source = schema.DefaultSource
	}
	repo := in.Repo
	if repo == "" {
		repo = schema.DefaultRepo
	}
	status := in.Status
	if status == "" {
		status = schema.DefaultStatus
	}
	now := schema.NowUTC()

	hashFile := in.HashFile
	if hashFile == "" && in.FilePath != "" {
		if data, err := os.ReadFile(in.FilePath); err == nil {
			hashFile = fingerprint.SHA256Hex(data)
		}
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	meta := map[string]any{
		"doc_id":       in.DocID,
		"version":      version,
		"category":     in.Category,
		"hash_content": in.HashContent,
		"source":       source,
		"repo":         repo,
		"status":       status,
		"created_at":   now,
		"updated_at":   now,
		"tags":         tags,
	}

	if in.FilePath != "" {
		meta["file_path"] = in.FilePath
		meta["path"] = in.FilePath // legacy alias
	}
	if hashFile != "" {
		meta["hash_file"] = hashFile
	}

	meta["metadata_hash"] = fingerprint.MetadataHash(meta)

	// Legacy alias, written after the hash so it never feeds it.
	meta["content_hash"] = in.HashContent

	for k, v := range in.Extra {
		meta[k] = v
	}

	return meta, nil
}

// ChunkInput carries the additional fields for one chunk's metadata.
// The chunk stores its chunk_id as doc_id so it is addressable like
// any other document.
type ChunkInput struct {
	ParentDocID string
	ChunkIndex  int
	TotalChunks int
	Category    string
	HashContent string
	Version     string
	FilePath    string
	Source      string
	Tags        []string
	Status      string
	ParentMeta  map[string]any
}

// ChunkID derives the stable chunk identifier for a parent document
// and chunk position.
func ChunkID(parentDocID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", parentDocID, index)
}

// BuildChunk assembles the metadata for one chunk. Parent metadata is
// copied in minus the chunk bookkeeping fields and anything the chunk
// already defines.
func BuildChunk(in ChunkInput) (map[string]any, error) {
	chunkID := ChunkID(in.ParentDocID, in.ChunkIndex)

	extra := map[string]any{
		"chunk_id":      chunkID,
		"chunk_index":   in.ChunkIndex,
		"parent_doc_id": in.ParentDocID,
		"is_chunk":      true,
		"total_chunks":  in.TotalChunks,
	}

	meta, err := Build(BuildInput{
		DocID:       chunkID,
		Category:    in.Category,
		HashContent: in.HashContent,
		Version:     in.Version,
		FilePath:    in.FilePath,
		Source:      in.Source,
		Tags:        in.Tags,
		Status:      in.Status,
		Extra:       extra,
	})
	if err != nil {
		return nil, err
	}

	for k, v := range in.ParentMeta {
		if isChunkField(k) || k == "doc_id" || k == "hash_content" || k == "content_hash" {
			continue
		}
		if _, exists := meta[k]; !exists {
			meta[k] = v
		}
	}

	return meta, nil
}

func validate(in BuildInput) error {
	if in.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	if in.Category == "" {
		return fmt.Errorf("category is required")
	}
	if !schema.IsValidCategory(in.Category) {
		return fmt.Errorf("category must be one of %v, got %q", schema.ValidCategories, in.Category)
	}
	if in.HashContent == "" {
		return fmt.Errorf("hash_content is required")
	}
	if in.Source != "" && !schema.IsValidSource(in.Source) {
		return fmt.Errorf("source must be one of %v, got %q", schema.ValidSources, in.Source)
	}
	if in.Status != "" && !schema.IsValidStatus(in.Status) {
		return fmt.Errorf("status must be one of %v, got %q", schema.ValidStatuses, in.Status)
	}
	return nil
}

func isChunkField(key string) bool {
	for _, f := range schema.ChunkFields {
		if key == f {
			return true
		}
	}
	return false
}

// RequireFields reports the required metadata fields that are missing
// or empty in meta.
func RequireFields(meta map[string]any) []string {
	var missing []string
	for _, field := range schema.RequiredFields {
		v, ok := meta[field]
		if !ok || v == nil || v == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
