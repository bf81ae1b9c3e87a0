// Package verify implements the quality layer over stored documents:
// per-document checks with a weighted quality score, category-wide
// verification, and the storage integrity audit against a source
// directory.
package verify

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/fingerprint"
	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/schema"
)

// PassThreshold is the minimum quality score for a pass verdict.
const PassThreshold = 0.8

type placeholderPattern struct {
	re    *regexp.Regexp
	label string
}

var placeholderPatterns = compilePatterns()

func compilePatterns() []placeholderPattern {
	labeler := strings.NewReplacer(`\`, "", "[", "", "]", "", ".*?", "")
	out := make([]placeholderPattern, 0, len(schema.PlaceholderPatterns))
	for _, p := range schema.PlaceholderPatterns {
		out = append(out, placeholderPattern{
			re:    regexp.MustCompile("(?i)" + p),
			label: labeler.Replace(p),
		})
	}
	return out
}

// PlaceholderInfo reports placeholder markers found in content.
type PlaceholderInfo struct {
	Found     bool     `json:"has_placeholder"`
	Count     int      `json:"placeholder_count"`
	Types     []string `json:"placeholder_types"`
	Positions [][2]int `json:"placeholder_positions,omitempty"`
}

// DetectPlaceholders scans content for the marker patterns.
func DetectPlaceholders(content string) PlaceholderInfo {
	info := PlaceholderInfo{Types: []string{}}
	if content == "" {
		return info
	}

	for _, p := range placeholderPatterns {
		locs := p.re.FindAllStringIndex(content, -1)
		if len(locs) == 0 {
			continue
		}
		info.Types = append(info.Types, p.label)
		for _, loc := range locs {
			info.Positions = append(info.Positions, [2]int{loc[0], loc[1]})
		}
	}
	info.Count = len(info.Positions)
	info.Found = info.Count > 0
	return info
}

// HashInfo reports a content-hash recomputation.
type HashInfo struct {
	Valid    bool   `json:"hash_valid"`
	Computed string `json:"computed_hash,omitempty"`
	Stored   string `json:"stored_hash,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VerifyHash recomputes the normalized content hash and compares it to
// the stored one.
func VerifyHash(content, storedHash string) HashInfo {
	if storedHash == "" {
		return HashInfo{Error: "No stored hash found in metadata"}
	}
	computed := fingerprint.ContentHash(content)
	return HashInfo{
		Valid:    computed == storedHash,
		Computed: computed,
		Stored:   storedHash,
	}
}

// Checks are the per-document quality checks. HasContent, HashValid
// and HasRequiredMetadata are the critical three.
type Checks struct {
	HasContent          bool `json:"has_content"`
	MinLength           bool `json:"min_length"`
	NoPlaceholders      bool `json:"no_placeholders"`
	HasMetadata         bool `json:"has_metadata"`
	HasRequiredMetadata bool `json:"has_required_metadata"`
	HasFilePath         bool `json:"has_file_path"`
	HashValid           bool `json:"hash_valid"`
	HasStatus           bool `json:"has_status"`
}

// Score weights the critical checks at 70% and the rest at 30%.
func (c Checks) Score() float64 {
	critical := ratio(c.HasContent, c.HashValid, c.HasRequiredMetadata)
	normal := ratio(c.MinLength, c.NoPlaceholders, c.HasMetadata, c.HasFilePath, c.HasStatus)
	return round3(0.7*critical + 0.3*normal)
}

// Report is one document's verification outcome.
type Report struct {
	DocumentID   string          `json:"document_id"`
	DocID        string          `json:"doc_id,omitempty"`
	QualityScore float64         `json:"quality_score"`
	Checks       Checks          `json:"checks"`
	Status       string          `json:"status"`
	Issues       []string        `json:"issues"`
	Placeholders PlaceholderInfo `json:"placeholder_info"`
	Hash         HashInfo        `json:"hash_verification"`
	Timestamp    string          `json:"timestamp"`
}

// Document runs every quality check against one stored record.
func Document(rec pipeline.Record) *Report {
	var checks Checks
	issues := []string{}

	content := rec.Content
	checks.HasContent = content != ""
	if !checks.HasContent {
		issues = append(issues, "Document has no content")
	}

	checks.MinLength = len(content) >= schema.MinContentLength
	if !checks.MinLength {
		issues = append(issues, fmt.Sprintf("Content too short: %d characters (minimum: %d)",
			len(content), schema.MinContentLength))
	}

	placeholders := DetectPlaceholders(content)
	checks.NoPlaceholders = !placeholders.Found
	if placeholders.Found {
		issues = append(issues, fmt.Sprintf("Found %d placeholder(s): %s",
			placeholders.Count, strings.Join(placeholders.Types, ", ")))
	}

	checks.HasMetadata = len(rec.Meta) > 0
	if !checks.HasMetadata {
		issues = append(issues, "Document has no metadata")
	}

	var missing []string
	for _, field := range schema.RequiredFields {
		if !fieldPresent(rec.Meta, field) {
			missing = append(missing, field)
		}
	}
	checks.HasRequiredMetadata = len(missing) == 0
	if len(missing) > 0 {
		issues = append(issues, "Missing required metadata fields: "+strings.Join(missing, ", "))
	}

	// file_path is mandatory only for rule-backed categories.
	checks.HasFilePath = rec.FilePath() != "" || !schema.IsRuleCategory(rec.Category())
	if !checks.HasFilePath {
		issues = append(issues, "Document should have file_path but it's missing")
	}

	hash := VerifyHash(content, rec.ContentHash())
	checks.HashValid = hash.Valid
	if !hash.Valid {
		if hash.Error != "" {
			issues = append(issues, "Hash verification failed: "+hash.Error)
		} else {
			issues = append(issues, "Content hash mismatch - possible corruption")
		}
	}

	_, hasStatus := rec.Meta["status"]
	checks.HasStatus = hasStatus
	if !hasStatus {
		issues = append(issues, "Document missing status field")
	} else if !schema.IsValidStatus(rec.Status()) {
		issues = append(issues, "Invalid status value: "+rec.Status())
	}

	score := checks.Score()
	status := "fail"
	if score >= PassThreshold && len(issues) == 0 {
		status = "pass"
	}

	return &Report{
		DocumentID:   rec.PointID,
		DocID:        rec.DocID(),
		QualityScore: score,
		Checks:       checks,
		Status:       status,
		Issues:       issues,
		Placeholders: placeholders,
		Hash:         hash,
		Timestamp:    schema.NowUTC(),
	}
}

// IssueCount pairs an issue label with how many failed documents hit it.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// Summary is the headline slice of a category report.
type Summary struct {
	TotalDocuments      int          `json:"total_documents"`
	Passed              int          `json:"passed"`
	Failed              int          `json:"failed"`
	AverageQualityScore float64      `json:"average_quality_score"`
	TopIssues           []IssueCount `json:"top_issues"`
}

// CategoryReport aggregates verification over one category.
type CategoryReport struct {
	Category            string         `json:"category"`
	Total               int            `json:"total"`
	Passed              int            `json:"passed"`
	Failed              int            `json:"failed"`
	PassRate            float64        `json:"pass_rate"`
	AverageQualityScore float64        `json:"average_quality_score"`
	Issues              []*Report      `json:"issues"`
	IssueCounts         map[string]int `json:"issue_counts"`
	Summary             Summary        `json:"summary"`
	Timestamp           string         `json:"timestamp"`
}

// Category verifies every document carrying the category, across both
// collections. limit > 0 caps how many are verified.
func Category(ctx context.Context, p *pipeline.PipelineContext, category string, limit int) (*CategoryReport, error) {
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	f := filter.Eq("meta.category", category)

	recs, err := p.Records(ctx, p.CollectionFor(pipeline.ContentTypeDocs), f)
	if err != nil {
		return nil, err
	}
	codeRecs, err := p.Records(ctx, p.CollectionFor(pipeline.ContentTypeCode), f)
	if err != nil {
		logger.Get().Warn("code collection scan failed during verification",
			"category", category, "error", err)
	} else {
		recs = append(recs, codeRecs...)
	}

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	reports := make([]*Report, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, Document(rec))
	}
	return summarizeCategory(category, reports), nil
}

func summarizeCategory(category string, reports []*Report) *CategoryReport {
	total := len(reports)
	passed := 0
	scoreSum := 0.0
	failed := []*Report{}
	counts := map[string]int{}

	for _, r := range reports {
		scoreSum += r.QualityScore
		if r.Status == "pass" {
			passed++
			continue
		}
		failed = append(failed, r)
		for _, issue := range r.Issues {
			counts[issueLabel(issue)]++
		}
	}

	var passRate, avg float64
	if total > 0 {
		passRate = round2(float64(passed) / float64(total) * 100)
		avg = round3(scoreSum / float64(total))
	}

	return &CategoryReport{
		Category:            category,
		Total:               total,
		Passed:              passed,
		Failed:              total - passed,
		PassRate:            passRate,
		AverageQualityScore: avg,
		Issues:              failed,
		IssueCounts:         counts,
		Summary: Summary{
			TotalDocuments:      total,
			Passed:              passed,
			Failed:              total - passed,
			AverageQualityScore: avg,
			TopIssues:           topIssues(counts, 5),
		},
		Timestamp: schema.NowUTC(),
	}
}

// issueLabel collapses an issue message to its prefix before the first
// colon, so counts group by kind rather than by instance detail.
func issueLabel(issue string) string {
	if i := strings.Index(issue, ":"); i >= 0 {
		return issue[:i]
	}
	return issue
}

func topIssues(counts map[string]int, n int) []IssueCount {
	out := make([]IssueCount, 0, len(counts))
	for issue, count := range counts {
		out = append(out, IssueCount{Issue: issue, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Issue < out[j].Issue
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func fieldPresent(meta map[string]any, key string) bool {
	v, ok := meta[key]
	if !ok || v == nil {
		return false
	}
	s, isStr := v.(string)
	return !isStr || s != ""
}

func ratio(checks ...bool) float64 {
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
