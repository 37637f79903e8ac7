package bhf

import (
	"slices"
	"strings"

	"bhf-go/internal/model"
)

// Formatter rewrites backup-history records according to a set of renaming
// and relocation rules, producing records a restore planner can act on.
// A Formatter is immutable after construction and safe for concurrent use;
// records themselves are mutated in place, one pass each, in order.
type Formatter struct {
	opts FormatOptions
}

// NewFormatter normalizes and validates the options and returns a Formatter.
// Option errors surface here, before any record is touched.
func NewFormatter(opts FormatOptions) (*Formatter, error) {
	opts = opts.normalized()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Formatter{opts: opts}, nil
}

// FormatRecords runs one formatting pass over the records. Invalid records
// are skipped and reported; the rest of the batch continues. The input slice
// is returned via the report with records mutated in place, order and count
// preserved.
func (f *Formatter) FormatRecords(records []*model.BackupHistoryRecord) *Report {
	report := &Report{Results: make([]RecordResult, 0, len(records))}
	for _, rec := range records {
		changed, err := f.formatRecord(rec)
		switch {
		case err != nil:
			report.Results = append(report.Results, RecordResult{Record: rec, Status: StatusSkipped, Err: err})
		case changed:
			report.Results = append(report.Results, RecordResult{Record: rec, Status: StatusTransformed})
		default:
			report.Results = append(report.Results, RecordResult{Record: rec, Status: StatusUnchanged})
		}
	}
	return report
}

// formatRecord applies the full rule set to a single record. The steps run
// in a fixed order: snapshot, type normalization, database rename, file
// rewriting, backup set rebase. Later steps read fields written by earlier
// ones, so the order is load-bearing.
func (f *Formatter) formatRecord(rec *model.BackupHistoryRecord) (bool, error) {
	if rec == nil {
		return false, &InvalidRecordError{Reason: "nil record"}
	}
	if rec.Database == "" {
		return false, &InvalidRecordError{RecordID: rec.ID, Reason: "empty database name"}
	}
	for _, fe := range rec.FileList {
		if fe == nil {
			return false, &InvalidRecordError{RecordID: rec.ID, Reason: "nil file entry"}
		}
	}

	EnsureSnapshot(rec)

	changed := false

	if normalized := NormalizeBackupType(rec.Type); normalized != rec.Type {
		rec.Type = normalized
		changed = true
	}

	if next, ok := f.opts.Rename.resolve(rec.Database); ok && next != rec.Database {
		rec.Database = next
		changed = true
	}
	if f.opts.DatabaseNamePrefix != "" {
		rec.Database = f.opts.DatabaseNamePrefix + rec.Database
		changed = true
	}

	for _, fe := range rec.FileList {
		if f.rewriteFileEntry(rec, fe) {
			changed = true
		}
	}

	if f.rebaseFullName(rec) {
		changed = true
	}

	return changed, nil
}

// EnsureSnapshot captures the record's original database name, file list and
// backup set paths. The capture happens at most once per record: running the
// formatter again over the same record leaves the snapshot untouched.
func EnsureSnapshot(rec *model.BackupHistoryRecord) {
	if rec.HasSnapshot() {
		return
	}
	rec.OriginalDatabase = rec.Database
	rec.OriginalFileList = model.CloneFileList(rec.FileList)
	rec.OriginalFullName = slices.Clone(rec.FullName)
	rec.IsVerified = false
}

// NormalizeBackupType maps the short backup type names emitted by history
// collectors to the long-form labels restore planners expect. Unknown values
// pass through unchanged.
func NormalizeBackupType(t string) string {
	switch t {
	case "Full":
		return model.TypeDatabase
	case "Differential":
		return model.TypeDifferential
	case "Log":
		return model.TypeLog
	}
	return t
}

// rewriteFileEntry applies the file-level rules to one entry and reports
// whether the physical name changed. An exact file mapping wins over every
// other rule.
func (f *Formatter) rewriteFileEntry(rec *model.BackupHistoryRecord, fe *model.FileEntry) bool {
	before := fe.PhysicalName

	if target, ok := f.opts.FileMapping[fe.LogicalName]; ok {
		fe.PhysicalName = target
		return fe.PhysicalName != before
	}

	phys := fe.PhysicalName
	if f.opts.ReplaceDBNameInFile && rec.OriginalDatabase != "" && rec.OriginalDatabase != rec.Database {
		phys = strings.ReplaceAll(phys, rec.OriginalDatabase, rec.Database)
	}

	dir, file := splitDirectory(phys)
	base, ext := splitExtension(file)
	targetDir := f.targetDirectory(fe.FileType, dir)

	name := f.opts.DatabaseFilePrefix + base + f.opts.DatabaseFileSuffix + ext
	if targetDir == "" {
		fe.PhysicalName = name
	} else {
		fe.PhysicalName = targetDir + f.opts.PathSeparator + name
	}
	return fe.PhysicalName != before
}

// targetDirectory picks the directory for a rewritten file. Precedence is
// explicit per-type override, then DataFileDirectory, then the file's
// original directory. Unknown file types are treated as data files.
func (f *Formatter) targetDirectory(fileType, original string) string {
	switch classifyFileType(fileType) {
	case fileClassLog:
		if f.opts.LogFileDirectory != "" {
			return f.opts.LogFileDirectory
		}
	case fileClassFileStream:
		if f.opts.FileStreamDirectory != "" {
			return f.opts.FileStreamDirectory
		}
	}
	if f.opts.DataFileDirectory != "" {
		return f.opts.DataFileDirectory
	}
	return original
}

// rebaseFullName relocates the record's backup set paths into the configured
// rebase folder, keeping file names. Backup sets stored behind URLs are left
// alone: the guard checks the first entry for "http".
func (f *Formatter) rebaseFullName(rec *model.BackupHistoryRecord) bool {
	if f.opts.RebaseBackupFolder == "" || len(rec.FullName) == 0 {
		return false
	}
	if strings.Contains(rec.FullName[0], "http") {
		return false
	}
	changed := false
	for i, full := range rec.FullName {
		_, file := splitDirectory(full)
		next := f.opts.RebaseBackupFolder + f.opts.PathSeparator + file
		if next != full {
			rec.FullName[i] = next
			changed = true
		}
	}
	return changed
}

type fileClass int

const (
	fileClassData fileClass = iota
	fileClassLog
	fileClassFileStream
)

// classifyFileType buckets a file type value into data, log or filestream.
// History sources use both single-letter codes and full words.
func classifyFileType(fileType string) fileClass {
	switch strings.ToLower(fileType) {
	case "l", "log":
		return fileClassLog
	case "s", "filestream":
		return fileClassFileStream
	}
	return fileClassData
}

// splitDirectory splits a path on its last separator, accepting both
// backslash and slash. A path with no separator yields an empty directory
// and the whole string as the file name.
func splitDirectory(path string) (dir, file string) {
	idx := strings.LastIndexAny(path, `\/`)
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// splitExtension splits a file name on its last dot. A name with no dot
// yields an empty extension; the dot stays with the extension.
func splitExtension(file string) (base, ext string) {
	idx := strings.LastIndex(file, ".")
	if idx < 0 {
		return file, ""
	}
	return file[:idx], file[idx:]
}
