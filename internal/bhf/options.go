package bhf

import "strings"

// DefaultPathSeparator is the separator used to join rewritten path segments
// when none is configured. Backup history normally originates on Windows
// hosts, so backslash is the default.
const DefaultPathSeparator = `\`

// RenameRule decides the new database name for a record.
// This is a tagged union: exactly one of the three implementations applies.
type RenameRule interface {
	// resolve returns the replacement name for the current database name and
	// whether a rename applies at all.
	resolve(current string) (string, bool)
}

// NoRename leaves database names untouched.
type NoRename struct{}

func (NoRename) resolve(string) (string, bool) { return "", false }

// SingleRename renames every record to the same database name.
type SingleRename string

func (s SingleRename) resolve(string) (string, bool) {
	return string(s), s != ""
}

// MappedRename renames only records whose current database name is a key in
// the map; all other records pass through.
type MappedRename map[string]string

func (m MappedRename) resolve(current string) (string, bool) {
	next, ok := m[current]
	return next, ok
}

// FormatOptions configures one formatting pass. The zero value is a no-op
// pass aside from backup-type normalization and snapshot capture.
type FormatOptions struct {
	// Rename resolves new database names. Nil means NoRename.
	Rename RenameRule

	// DatabaseNamePrefix is prepended to every database name after rename
	// resolution.
	DatabaseNamePrefix string

	// Directory overrides per file class. LogFileDirectory and
	// FileStreamDirectory fall back to DataFileDirectory when unset; data
	// files keep their original directory when DataFileDirectory is unset.
	DataFileDirectory   string
	LogFileDirectory    string
	FileStreamDirectory string

	// DatabaseFilePrefix and DatabaseFileSuffix wrap the base file name.
	// The extension is preserved.
	DatabaseFilePrefix string
	DatabaseFileSuffix string

	// ReplaceDBNameInFile replaces occurrences of the original database name
	// inside physical file names with the new database name.
	ReplaceDBNameInFile bool

	// FileMapping maps a logical file name to an exact target physical path.
	// A mapped file bypasses every other file rule.
	FileMapping map[string]string

	// RebaseBackupFolder relocates backup set paths (FullName) into this
	// directory. URL-backed backup sets are left alone.
	RebaseBackupFolder string

	// PathSeparator joins rewritten path segments. Defaults to backslash.
	PathSeparator string
}

// normalized returns a copy of the options with defaults applied and
// trailing separators stripped from every directory-typed option. Run once
// per formatting pass, never per record.
func (o FormatOptions) normalized() FormatOptions {
	if o.Rename == nil {
		o.Rename = NoRename{}
	}
	if o.PathSeparator == "" {
		o.PathSeparator = DefaultPathSeparator
	}
	o.DataFileDirectory = trimTrailingSeparators(o.DataFileDirectory)
	o.LogFileDirectory = trimTrailingSeparators(o.LogFileDirectory)
	o.FileStreamDirectory = trimTrailingSeparators(o.FileStreamDirectory)
	o.RebaseBackupFolder = trimTrailingSeparators(o.RebaseBackupFolder)
	return o
}

// validate checks for caller errors. It expects normalized options.
func (o FormatOptions) validate() error {
	if o.PathSeparator != `\` && o.PathSeparator != "/" {
		return &ConfigurationConflictError{
			Option: "PathSeparator",
			Reason: `must be \ or /`,
		}
	}
	for logical, target := range o.FileMapping {
		if logical == "" {
			return &ConfigurationConflictError{
				Option: "FileMapping",
				Reason: "empty logical name key",
			}
		}
		if target == "" {
			return &ConfigurationConflictError{
				Option: "FileMapping",
				Reason: "empty target path for logical name " + logical,
			}
		}
	}
	if m, ok := o.Rename.(MappedRename); ok {
		for from, to := range m {
			if from == "" || to == "" {
				return &ConfigurationConflictError{
					Option: "Rename",
					Reason: "rename map entries must have non-empty names",
				}
			}
		}
	}
	return nil
}

// trimTrailingSeparators strips trailing slashes and backslashes so that
// joining with the configured separator never doubles one up.
func trimTrailingSeparators(dir string) string {
	return strings.TrimRight(dir, `\/`)
}
