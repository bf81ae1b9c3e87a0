package chunking

// Stored describes a chunk already persisted in the vector store,
// reduced to what the diff needs: its point ID, position, and content
// hash.
type Stored struct {
	PointID string
	Index   int
	Hash    string
	Payload map[string]any
}

// DiffResult classifies a fresh chunking of a document against its
// stored chunks. Unchanged and Deleted carry the stored records so
// existing point IDs stay stable; Changed and New carry the fresh
// chunks that need embedding. Superseded holds the stored record each
// Changed chunk replaces, in the same order.
type DiffResult struct {
	Unchanged  []Stored
	Changed    []Chunk
	Superseded []Stored
	New        []Chunk
	Deleted    []Stored
}

// Counts returns the size of each class.
func (d DiffResult) Counts() (unchanged, changed, added, deleted int) {
	return len(d.Unchanged), len(d.Changed), len(d.New), len(d.Deleted)
}

// InPlace reports whether the update rewrites nothing.
func (d DiffResult) InPlace() bool {
	return len(d.Changed) == 0 && len(d.New) == 0 && len(d.Deleted) == 0
}

// Diff compares stored chunks with a fresh chunking by chunk index. A
// fresh chunk whose index exists with the same content hash is
// unchanged; with a different hash it is changed; an index past the
// stored set is new. Stored indexes past the fresh set are deleted.
func Diff(stored []Stored, fresh []Chunk) DiffResult {
	byIndex := make(map[int]Stored, len(stored))
	for _, s := range stored {
		byIndex[s.Index] = s
	}

	var result DiffResult
	seen := make(map[int]bool, len(fresh))
	for _, ch := range fresh {
		seen[ch.Index] = true
		old, ok := byIndex[ch.Index]
		switch {
		case !ok:
			result.New = append(result.New, ch)
		case old.Hash == ch.Hash:
			result.Unchanged = append(result.Unchanged, old)
		default:
			result.Changed = append(result.Changed, ch)
			result.Superseded = append(result.Superseded, old)
		}
	}

	for _, s := range stored {
		if !seen[s.Index] {
			result.Deleted = append(result.Deleted, s)
		}
	}
	return result
}
