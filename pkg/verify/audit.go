package verify

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

// AuditIssue is one problem the audit found.
type AuditIssue struct {
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	Message      string `json:"message,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
	StoredHash   string `json:"stored_hash,omitempty"`
	SourceHash   string `json:"source_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// MissingFile is a source file with no stored counterpart.
type MissingFile struct {
	FilePath     string `json:"file_path"`
	RelativePath string `json:"relative_path"`
	Severity     string `json:"severity"`
	Issue        string `json:"issue"`
}

// Mismatch is a stored document whose hash diverges from its source
// file.
type Mismatch struct {
	FilePath     string `json:"file_path"`
	RelativePath string `json:"relative_path"`
	StoredHash   string `json:"stored_hash"`
	SourceHash   string `json:"source_hash"`
	DocumentID   string `json:"document_id"`
	Severity     string `json:"severity"`
	Issue        string `json:"issue"`
}

// AuditReport is the storage integrity audit outcome. With a source
// directory the integrity score is (files − missing − mismatched) /
// files; without one it is the stored documents' pass ratio.
type AuditReport struct {
	TotalDocuments    int                     `json:"total_documents"`
	TotalFiles        int                     `json:"total_files"`
	StoredFiles       int                     `json:"stored_files"`
	MissingFiles      []MissingFile           `json:"missing_files"`
	ContentMismatches []Mismatch              `json:"content_mismatches"`
	Passed            int                     `json:"passed"`
	Failed            int                     `json:"failed"`
	IntegrityScore    float64                 `json:"integrity_score"`
	Issues            []AuditIssue            `json:"issues"`
	IssuesByType      map[string][]AuditIssue `json:"issues_by_type"`
	FailedDocuments   []*Report               `json:"failed_documents"`
	SourceDirectory   string                  `json:"source_directory,omitempty"`
	Timestamp         string                  `json:"timestamp"`
}

// Audit verifies every stored document and, given a source directory,
// matches its files against stored points by file path: a file is
// matched-equal, matched-mismatched (hash diverges), or missing from
// the store. With recursive false only the directory's top level is
// scanned.
func Audit(ctx context.Context, p *pipeline.PipelineContext, sourceDir string, recursive bool, extensions []string) (*AuditReport, error) {
	recs, err := p.Records(ctx, p.CollectionFor(pipeline.ContentTypeDocs), nil)
	if err != nil {
		return nil, err
	}
	codeRecs, err := p.Records(ctx, p.CollectionFor(pipeline.ContentTypeCode), nil)
	if err != nil {
		logger.Get().Warn("code collection scan failed during audit", "error", err)
	} else {
		recs = append(recs, codeRecs...)
	}

	// Index stored records by every plausible spelling of their path.
	byPath := map[string]*pipeline.Record{}
	storedWithPath := 0
	for i := range recs {
		path := recs[i].FilePath()
		if path == "" {
			continue
		}
		storedWithPath++
		byPath[path] = &recs[i]
		if abs, err := filepath.Abs(path); err == nil {
			byPath[abs] = &recs[i]
		}
	}

	passed := 0
	failedDocs := []*Report{}
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report := Document(recs[i])
		if report.Status == "pass" {
			passed++
		} else {
			failedDocs = append(failedDocs, report)
		}
	}

	result := &AuditReport{
		TotalDocuments:    len(recs),
		StoredFiles:       storedWithPath,
		MissingFiles:      []MissingFile{},
		ContentMismatches: []Mismatch{},
		Passed:            passed,
		Failed:            len(recs) - passed,
		Issues:            []AuditIssue{},
		FailedDocuments:   failedDocs,
		SourceDirectory:   sourceDir,
		Timestamp:         schema.NowUTC(),
	}

	var qualityScore float64
	if len(recs) > 0 {
		qualityScore = round3(float64(passed) / float64(len(recs)))
	}

	if sourceDir == "" {
		result.IntegrityScore = qualityScore
		result.IssuesByType = groupIssues(result.Issues)
		return result, nil
	}

	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		result.Issues = append(result.Issues, AuditIssue{
			Type:     "source_directory_not_found",
			Severity: "high",
			Message:  "Source directory not found: " + sourceDir,
		})
		result.IntegrityScore = qualityScore
		result.IssuesByType = groupIssues(result.Issues)
		return result, nil
	}

	files, err := scanSource(sourceDir, recursive, extensions)
	if err != nil {
		return nil, err
	}

	result.TotalFiles = len(files)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			rel = path
		}

		rec := lookupStored(byPath, path, rel)
		if rec == nil {
			result.MissingFiles = append(result.MissingFiles, MissingFile{
				FilePath:     path,
				RelativePath: rel,
				Severity:     "high",
				Issue:        "not_stored",
			})
			result.Issues = append(result.Issues, AuditIssue{
				Type:         "missing_file",
				Severity:     "high",
				FilePath:     path,
				RelativePath: rel,
			})
			continue
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			result.Issues = append(result.Issues, AuditIssue{
				Type:     "file_comparison_error",
				Severity: "medium",
				FilePath: path,
				Error:    readErr.Error(),
			})
			continue
		}

		sourceHash := fingerprint.ContentHash(string(data))
		storedHash := rec.ContentHash()
		if storedHash != "" && storedHash != sourceHash {
			result.ContentMismatches = append(result.ContentMismatches, Mismatch{
				FilePath:     path,
				RelativePath: rel,
				StoredHash:   storedHash,
				SourceHash:   sourceHash,
				DocumentID:   rec.PointID,
				Severity:     "high",
				Issue:        "content_mismatch",
			})
			result.Issues = append(result.Issues, AuditIssue{
				Type:         "content_mismatch",
				Severity:     "high",
				FilePath:     path,
				RelativePath: rel,
				DocumentID:   rec.PointID,
				StoredHash:   shortHash(storedHash),
				SourceHash:   shortHash(sourceHash),
			})
		}
	}

	if result.TotalFiles > 0 {
		matched := result.TotalFiles - len(result.MissingFiles) - len(result.ContentMismatches)
		result.IntegrityScore = round3(float64(matched) / float64(result.TotalFiles))
	}
	result.IssuesByType = groupIssues(result.Issues)
	return result, nil
}

func lookupStored(byPath map[string]*pipeline.Record, path, rel string) *pipeline.Record {
	for _, candidate := range []string{path, rel} {
		if rec, ok := byPath[candidate]; ok {
			return rec
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		if rec, ok := byPath[abs]; ok {
			return rec
		}
	}
	return nil
}

// scanSource walks the source tree, keeping regular files that match
// the extension set. Extensions accept both ".md" and "md" spellings.
func scanSource(root string, recursive bool, extensions []string) ([]string, error) {
	exts := map[string]bool{}
	for _, e := range extensions {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[strings.ToLower(e)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func groupIssues(issues []AuditIssue) map[string][]AuditIssue {
	grouped := map[string][]AuditIssue{}
	for _, issue := range issues {
		grouped[issue.Type] = append(grouped[issue.Type], issue)
	}
	return grouped
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
