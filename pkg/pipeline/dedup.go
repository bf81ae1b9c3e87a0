package pipeline

import (
	"fmt"

	"github.com/Dhana009/haystack/pkg/fingerprint"
)

// Duplicate detection levels, evaluated in order.
const (
	LevelExact   = 1 // same content_hash and metadata_hash
	LevelUpdate  = 2 // same identity but different content
	LevelSimilar = 3 // semantically similar, different hashes
	LevelNew     = 4 // new content
)

// SimilarityThreshold is the cosine score above which a candidate
// counts as semantically similar. Classification works on scrolled
// candidates without vectors, so level 3 currently falls through to
// level 4; the constant anchors the contract for when score-bearing
// candidates arrive.
const SimilarityThreshold = 0.85

// Storage actions derived from the detection level.
const (
	ActionSkip   = "skip"
	ActionUpdate = "update"
	ActionWarn   = "warn"
	ActionStore  = "store"
)

// Decision is the outcome of duplicate classification: the level, the
// action it implies, the matched record when one exists, and a
// human-readable reason.
type Decision struct {
	Level  int
	Action string
	Match  *Record
	Reason string
}

// Classify compares a fingerprint against candidate records and
// returns the duplicate level.
//
// Level 1 needs both hashes equal. Level 2 fires on same doc_id or
// same metadata_hash with a different content hash. Everything else
// is level 4.
func Classify(fp fingerprint.Fingerprint, docID string, candidates []Record) Decision {
	if len(candidates) == 0 {
		return Decision{Level: LevelNew, Action: ActionStore, Reason: "No existing documents found"}
	}

	for i := range candidates {
		cand := &candidates[i]
		if cand.ContentHash() == fp.ContentHash && cand.MetadataHash() == fp.MetadataHash {
			return Decision{
				Level:  LevelExact,
				Action: ActionSkip,
				Match:  cand,
				Reason: fmt.Sprintf("Exact duplicate document: same content_hash (%s...) and metadata_hash", shortHash(fp.ContentHash)),
			}
		}
	}

	for i := range candidates {
		cand := &candidates[i]
		if docID != "" && cand.DocID() == docID && cand.ContentHash() != fp.ContentHash {
			return Decision{
				Level:  LevelUpdate,
				Action: ActionUpdate,
				Match:  cand,
				Reason: fmt.Sprintf("Content update: same doc_id (%s) but different content_hash", docID),
			}
		}
		if cand.MetadataHash() == fp.MetadataHash && cand.ContentHash() != fp.ContentHash {
			return Decision{
				Level:  LevelUpdate,
				Action: ActionUpdate,
				Match:  cand,
				Reason: fmt.Sprintf("Content update: same metadata_hash (%s...) but different content_hash", shortHash(fp.MetadataHash)),
			}
		}
	}

	// Level 3 needs candidate vectors, which scrolled candidates do not
	// carry. Falls through.

	return Decision{Level: LevelNew, Action: ActionStore, Reason: "New document: different content_hash and/or metadata_hash"}
}

// ClassifyChunk classifies one chunk against candidates, keyed by
// chunk_id or by the (parent_doc_id, chunk_index) pair when candidates
// predate chunk ids.
func ClassifyChunk(fp fingerprint.Fingerprint, chunkID, parentDocID string, chunkIndex int, candidates []Record) Decision {
	if len(candidates) == 0 {
		return Decision{Level: LevelNew, Action: ActionStore, Reason: "No existing documents found"}
	}

	for i := range candidates {
		cand := &candidates[i]
		if cand.ContentHash() == fp.ContentHash && cand.MetadataHash() == fp.MetadataHash {
			return Decision{
				Level:  LevelExact,
				Action: ActionSkip,
				Match:  cand,
				Reason: fmt.Sprintf("Exact duplicate chunk: same content_hash (%s...) and metadata_hash", shortHash(fp.ContentHash)),
			}
		}
	}

	for i := range candidates {
		cand := &candidates[i]
		if cand.ContentHash() == fp.ContentHash {
			continue
		}

		if chunkID != "" {
			if cand.Field("chunk_id") == chunkID {
				return Decision{
					Level:  LevelUpdate,
					Action: ActionUpdate,
					Match:  cand,
					Reason: fmt.Sprintf("Chunk update: same chunk_id (%s) but different content_hash", chunkID),
				}
			}
		}

		if parentDocID != "" {
			candParent := cand.Field("parent_doc_id")
			if candIndex, ok := cand.ChunkIndex(); ok && candParent == parentDocID && candIndex == chunkIndex {
				return Decision{
					Level:  LevelUpdate,
					Action: ActionUpdate,
					Match:  cand,
					Reason: fmt.Sprintf("Chunk update: same parent_doc_id and chunk_index (%d) but different content_hash", chunkIndex),
				}
			}
		}

		if cand.MetadataHash() == fp.MetadataHash {
			return Decision{
				Level:  LevelUpdate,
				Action: ActionUpdate,
				Match:  cand,
				Reason: fmt.Sprintf("Content update: same metadata_hash (%s...) but different content_hash", shortHash(fp.MetadataHash)),
			}
		}
	}

	return Decision{Level: LevelNew, Action: ActionStore, Reason: "New chunk: different content_hash and/or metadata_hash"}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
