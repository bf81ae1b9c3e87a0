package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// maxCellsPerSheet bounds spreadsheet extraction per sheet.
const maxCellsPerSheet = 1000

// pdfExtractor pulls page text from PDF files.
type pdfExtractor struct{}

func (pdfExtractor) Name() string  { return "pdf" }
func (pdfExtractor) Priority() int { return 5 }

func (pdfExtractor) CanExtract(path string) bool { return extClaims(path, ".pdf") }

func (pdfExtractor) Extract(ctx context.Context, path string, size int64) (*Extracted, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, size)
	if err != nil {
		return nil, fmt.Errorf("parse pdf %s: %w", path, err)
	}

	pages := reader.NumPage()
	var parts []string
	for pageNum := 1; pageNum <= pages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return &Extracted{
		Text:   strings.Join(parts, "\n\n"),
		Title:  filepath.Base(path),
		Format: "pdf",
		Info:   map[string]string{"pages": strconv.Itoa(pages)},
	}, nil
}

// docxExtractor pulls run text from Word documents.
type docxExtractor struct{}

func (docxExtractor) Name() string  { return "docx" }
func (docxExtractor) Priority() int { return 5 }

func (docxExtractor) CanExtract(path string) bool { return extClaims(path, ".docx") }

func (docxExtractor) Extract(_ context.Context, path string, _ int64) (*Extracted, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse docx %s: %w", path, err)
	}
	defer doc.Close()

	text := flattenDocumentXML(doc.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return &Extracted{
		Text:   text,
		Title:  filepath.Base(path),
		Format: "docx",
	}, nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// flattenDocumentXML strips word/document.xml markup, keeping the text
// runs. Paragraph closes become newlines.
func flattenDocumentXML(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "</w:p>\n")

	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(xmlEntities.Replace(b.String()))
}

// xlsxExtractor renders spreadsheet cells as "A1: value" lines, one
// block per sheet.
type xlsxExtractor struct{}

func (xlsxExtractor) Name() string  { return "xlsx" }
func (xlsxExtractor) Priority() int { return 5 }

func (xlsxExtractor) CanExtract(path string) bool { return extClaims(path, ".xlsx") }

func (xlsxExtractor) Extract(ctx context.Context, path string, _ int64) (*Extracted, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse xlsx %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Sheet: %s ---\n", sheet)
		cells := 0
		for ri, row := range rows {
			if cells >= maxCellsPerSheet {
				b.WriteString("... (truncated)\n")
				break
			}
			for ci, cell := range row {
				if cells >= maxCellsPerSheet {
					break
				}
				text := strings.TrimSpace(cell)
				if text == "" {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(ci+1, ri+1)
				if err != nil {
					continue
				}
				fmt.Fprintf(&b, "%s: %s\n", ref, text)
				cells++
			}
		}
		if cells > 0 {
			parts = append(parts, strings.TrimSpace(b.String()))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return &Extracted{
		Text:   strings.Join(parts, "\n\n"),
		Title:  filepath.Base(path),
		Format: "xlsx",
		Info:   map[string]string{"sheets": strconv.Itoa(len(sheets))},
	}, nil
}
