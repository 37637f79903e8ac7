package model

import "time"

// Backup type labels as they appear in restore planning output. Short forms
// ("Full", "Differential", "Log") are what history collectors usually emit;
// the formatter normalizes them to these long forms.
const (
	TypeDatabase     = "Database"
	TypeDifferential = "Database Differential"
	TypeLog          = "Transaction Log"
)

// BackupHistoryRecord describes one backup event for a database, including
// the physical files the backup wrote and where the backup set itself lives.
//
// The Original* fields are snapshots of the record as it was first seen,
// captured once before any formatting and never overwritten afterwards. They
// let a restore planner map a rewritten record back to its source.
type BackupHistoryRecord struct {
	ID               string       `json:"id,omitempty"`
	Database         string       `json:"database"`
	OriginalDatabase string       `json:"original_database,omitempty"`
	Type             string       `json:"type"`
	ServerName       string       `json:"server_name,omitempty"`
	Start            time.Time    `json:"start,omitzero"`
	End              time.Time    `json:"end,omitzero"`
	TotalSize        int64        `json:"total_size,omitempty"`
	FileList         []*FileEntry `json:"file_list"`
	OriginalFileList []*FileEntry `json:"original_file_list,omitempty"`
	FullName         []string     `json:"full_name"`
	OriginalFullName []string     `json:"original_full_name,omitempty"`
	IsVerified       bool         `json:"is_verified"`
}

// FileEntry is one physical file inside a backup. LogicalName is the stable
// identifier SQL Server uses for the file; PhysicalName is its filesystem
// path and is what the formatter rewrites.
type FileEntry struct {
	LogicalName  string `json:"logical_name"`
	PhysicalName string `json:"physical_name"`
	FileType     string `json:"file_type"`
}

// Clone returns a copy of the file entry.
func (f *FileEntry) Clone() *FileEntry {
	c := *f
	return &c
}

// CloneFileList deep-copies a file list, preserving order.
func CloneFileList(files []*FileEntry) []*FileEntry {
	if files == nil {
		return nil
	}
	out := make([]*FileEntry, len(files))
	for i, f := range files {
		if f != nil {
			out[i] = f.Clone()
		}
	}
	return out
}

// HasSnapshot reports whether the record's original-state snapshot has been
// captured. Snapshot capture is keyed on OriginalDatabase: it is never empty
// once EnsureSnapshot has run on a valid record.
func (r *BackupHistoryRecord) HasSnapshot() bool {
	return r.OriginalDatabase != ""
}

// FormatOperation is an audit entry for one CLI run that touched the history
// store. The ID is assigned by the database on insert; Status records the
// run's outcome ("success" or "error").
type FormatOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	CreatedAt  time.Time
}
