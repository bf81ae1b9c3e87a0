// Package extract turns files on disk into indexable text. A Registry
// holds prioritized extractors; the highest-priority extractor that
// claims a path handles it. Plain text is claimed by content sniffing,
// binary document formats (PDF, DOCX, XLSX) by extension.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported reports a file no registered extractor can handle.
var ErrUnsupported = errors.New("unsupported file type")

// maxTextBytes caps how large a plain-text file Extract will read.
const maxTextBytes = 10 << 20

// Extracted is the text pulled from one file.
type Extracted struct {
	Text      string
	Title     string
	Format    string
	Extractor string
	Info      map[string]string
}

// Extractor pulls text from one class of file.
type Extractor interface {
	Name() string
	CanExtract(path string) bool
	Extract(ctx context.Context, path string, size int64) (*Extracted, error)
	Priority() int
}

// Registry holds extractors sorted by descending priority.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a registry with the built-in extractors: PDF,
// DOCX and XLSX by extension, plain text as the fallback.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(pdfExtractor{})
	r.Register(docxExtractor{})
	r.Register(xlsxExtractor{})
	r.Register(textExtractor{})
	return r
}

// Register adds an extractor and keeps the set ordered by priority.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// Extract runs the first extractor claiming the path. A missing file
// surfaces as an error wrapping fs.ErrNotExist; a file no extractor
// claims surfaces as ErrUnsupported.
func (r *Registry) Extract(ctx context.Context, path string) (*Extracted, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	for _, e := range r.extractors {
		if !e.CanExtract(path) {
			continue
		}
		extracted, err := e.Extract(ctx, path, info.Size())
		if err != nil {
			return nil, err
		}
		extracted.Extractor = e.Name()
		if extracted.Format == "" {
			extracted.Format = e.Name()
		}
		return extracted, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// CanExtract reports whether any registered extractor claims the path.
func (r *Registry) CanExtract(path string) bool {
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			return true
		}
	}
	return false
}

// textExtractor reads plain-text files. It claims anything whose first
// 512 bytes sniff as a text MIME type, so it runs at the lowest
// priority behind the format-specific extractors.
type textExtractor struct{}

func (textExtractor) Name() string  { return "text" }
func (textExtractor) Priority() int { return 1 }

func (textExtractor) CanExtract(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return false
	}
	return isTextMime(http.DetectContentType(buf[:n]))
}

func (textExtractor) Extract(_ context.Context, path string, size int64) (*Extracted, error) {
	if size > maxTextBytes {
		return nil, fmt.Errorf("file too large to index as text: %s (%d bytes)", path, size)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	if !utf8.ValidString(text) {
		cleaned := strings.ToValidUTF8(text, "")
		// A mostly-invalid file is binary, not mojibake worth repairing.
		if len(text) == 0 || float64(len(text)-len(cleaned))/float64(len(text)) > 0.5 {
			return nil, fmt.Errorf("file is not valid UTF-8 text: %s", path)
		}
		text = cleaned
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return &Extracted{
		Text:   text,
		Title:  filepath.Base(path),
		Format: "text",
	}, nil
}

func isTextMime(mime string) bool {
	return strings.HasPrefix(mime, "text/") ||
		mime == "application/json" ||
		mime == "application/xml" ||
		strings.Contains(mime, "javascript")
}

func extClaims(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
