// Package fingerprint computes content-addressed identity for
// documents: a content hash over normalized text, a metadata hash over
// the stable metadata subset, and the composite key joining the two.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Dhana009/haystack/pkg/schema"
)

// Fingerprint identifies one version of one document.
type Fingerprint struct {
	ContentHash  string `json:"content_hash"`
	MetadataHash string `json:"metadata_hash"`
	CompositeKey string `json:"composite_key"`
}

// Transient editor markers stripped before hashing so that cosmetic
// placeholders do not change a document's identity.
var normalizeMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[full content from file\.\.\.\]`),
	regexp.MustCompile(`(?i)\[\.\.\.\]`),
	regexp.MustCompile(`(?i)\[todo:.*?\]`),
	regexp.MustCompile(`(?i)\[tbd:.*?\]`),
}

// Normalize prepares content for hashing: trailing whitespace stripped,
// line endings unified to \n, transient markers removed, lowercased.
// The stored document keeps its original bytes; normalization only
// affects identity.
func Normalize(content string) string {
	s := strings.TrimRightFunc(content, unicode.IsSpace)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for _, re := range normalizeMarkers {
		s = re.ReplaceAllString(s, "")
	}
	return strings.ToLower(s)
}

// ContentHash returns the hex SHA-256 of the normalized content.
func ContentHash(content string) string {
	return SHA256Hex([]byte(Normalize(content)))
}

// MetadataHash returns the hex SHA-256 of the canonical JSON encoding
// of the metadata, excluding the volatile lifecycle fields and the
// metadata_hash field itself. Two metadata maps that differ only in
// key order or lifecycle churn hash identically.
func MetadataHash(meta map[string]any) string {
	stable := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "metadata_hash" || isVolatile(k) {
			continue
		}
		stable[k] = canonicalize(v)
	}
	// encoding/json sorts map keys, which gives us the canonical form.
	data, err := json.Marshal(stable)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", stable))
	}
	return SHA256Hex(data)
}

// CompositeKey joins the two hashes into the full dedup identity.
func CompositeKey(contentHash, metadataHash string) string {
	return contentHash + ":" + metadataHash
}

// New computes the full fingerprint for a document.
func New(content string, meta map[string]any) Fingerprint {
	ch := ContentHash(content)
	mh := MetadataHash(meta)
	return Fingerprint{
		ContentHash:  ch,
		MetadataHash: mh,
		CompositeKey: CompositeKey(ch, mh),
	}
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isVolatile(key string) bool {
	for _, f := range schema.VolatileFields {
		if key == f {
			return true
		}
	}
	return false
}

// canonicalize makes a value safe for JSON encoding, stringifying
// anything the encoder cannot represent.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonicalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		if _, err := json.Marshal(val); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return val
	}
}
