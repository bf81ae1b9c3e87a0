package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/Dhana009/haystack/pkg/pipeline"
	"github.com/Dhana009/haystack/pkg/verify"
)

const verifySampleSize = 100

// RestoreOptions configure a restore.
type RestoreOptions struct {
	// Policy decides what happens when an imported document already
	// exists: skip, update, or error. Empty means skip.
	Policy string
	// SkipVerification drops the post-restore sample check.
	SkipVerification bool
}

// SampleVerification summarizes quality checks over a sample of the
// restored documents.
type SampleVerification struct {
	SampleSize       int      `json:"sample_size"`
	Verified         int      `json:"verified_count"`
	Failed           int      `json:"failed_count"`
	VerificationRate float64  `json:"verification_rate"`
	Issues           []string `json:"issues,omitempty"`
}

// RestoreResult reports a finished restore.
type RestoreResult struct {
	Status            string               `json:"status"`
	BackupID          string               `json:"backup_id"`
	BackupCollection  string               `json:"backup_collection"`
	RestoreCollection string               `json:"restore_collection"`
	Restored          int                  `json:"restored_count"`
	Skipped           int                  `json:"skipped_count"`
	Errors            []pipeline.ItemError `json:"errors,omitempty"`
	Verification      *SampleVerification  `json:"verification,omitempty"`
}

// Restore imports a backup directory back into the store. Every file
// named by the manifest is checksummed before anything is written; a
// corrupted backup never half-restores. Existing documents are handled
// per the duplicate policy.
func Restore(ctx context.Context, p *pipeline.PipelineContext, backupPath string, opts RestoreOptions) (*RestoreResult, error) {
	const op = "restore_backup"

	manifest, err := verifyBackup(op, backupPath)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(backupPath)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op, "Backup metadata unreadable: %v", err)
	}

	docs, err := readDocuments(op, backupPath, documentsFile)
	if err != nil {
		return nil, err
	}

	out := &RestoreResult{
		Status:            "success",
		BackupID:          meta.BackupID,
		BackupCollection:  meta.CollectionName,
		RestoreCollection: p.CollectionFor(pipeline.ContentTypeDocs),
	}

	sample := docs
	res, err := p.ImportDocuments(ctx, p.CollectionFor(pipeline.ContentTypeDocs), docs, opts.Policy)
	if res != nil {
		out.Restored += res.Imported + res.Updated
		out.Skipped += res.Skipped
		out.Errors = append(out.Errors, res.Errors...)
	}
	if err != nil {
		out.Status = "error"
		return out, err
	}

	if manifest.hasFile(codeFile) {
		code, err := readDocuments(op, backupPath, codeFile)
		if err != nil {
			return nil, err
		}
		sample = append(sample, code...)
		res, err := p.ImportDocuments(ctx, p.CollectionFor(pipeline.ContentTypeCode), code, opts.Policy)
		if res != nil {
			out.Restored += res.Imported + res.Updated
			out.Skipped += res.Skipped
			out.Errors = append(out.Errors, res.Errors...)
		}
		if err != nil {
			out.Status = "error"
			return out, err
		}
	}

	if !opts.SkipVerification {
		out.Verification = verifySample(sample)
	}
	if len(out.Errors) > 0 && out.Restored == 0 && out.Skipped == 0 {
		out.Status = "error"
	}
	return out, nil
}

// verifyBackup reads the manifest and checks every listed file's
// checksum. Any missing file or mismatch means the backup is corrupted
// and nothing should be restored from it.
func verifyBackup(op, backupPath string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(backupPath, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op, "Manifest file not found in backup directory")
	}
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op, "Manifest file unreadable: %v", err)
	}

	for _, mf := range manifest.Files {
		path := filepath.Join(backupPath, mf.Filename)
		sum, err := checksumFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op, "File not found: %s", mf.Filename)
		}
		if err != nil {
			return nil, err
		}
		if sum != mf.Checksum {
			return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op,
				"Checksum mismatch for %s: expected %.16s..., got %.16s...", mf.Filename, mf.Checksum, sum)
		}
	}
	return &manifest, nil
}

func (m *Manifest) hasFile(name string) bool {
	for _, f := range m.Files {
		if f.Filename == name {
			return true
		}
	}
	return false
}

func readDocuments(op, backupPath, name string) ([]pipeline.ExportRecord, error) {
	data, err := os.ReadFile(filepath.Join(backupPath, name))
	if err != nil {
		return nil, err
	}
	var records []pipeline.ExportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, pipeline.NewError(pipeline.KindBackupCorrupted, op, "Backup file %s unreadable: %v", name, err)
	}
	return records, nil
}

// verifySample runs the quality checks over the first documents of the
// restore, mirroring what a full verification pass would report.
func verifySample(records []pipeline.ExportRecord) *SampleVerification {
	size := min(len(records), verifySampleSize)
	sv := &SampleVerification{SampleSize: size}
	for _, rec := range records[:size] {
		report := verify.Document(pipeline.Record{PointID: rec.ID, Content: rec.Content, Meta: rec.Meta})
		if report.Status == "pass" {
			sv.Verified++
		} else {
			sv.Failed++
			for _, issue := range report.Issues {
				if len(sv.Issues) < 10 {
					sv.Issues = append(sv.Issues, issue)
				}
			}
		}
	}
	if size > 0 {
		sv.VerificationRate = math.Round(float64(sv.Verified)/float64(size)*100*100) / 100
	}
	return sv
}
