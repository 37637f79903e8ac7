package bhf

import "fmt"

// InvalidRecordError reports a backup-history record that cannot be
// formatted, such as one with no database name. Record-level errors are
// recoverable: the batch skips the record and keeps going.
type InvalidRecordError struct {
	RecordID string
	Reason   string
}

func (e *InvalidRecordError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("invalid backup history record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid backup history record %s: %s", e.RecordID, e.Reason)
}

// ConfigurationConflictError reports formatting options that are invalid or
// mutually inconsistent. This is a caller error: it fails the whole run
// before any record is processed.
type ConfigurationConflictError struct {
	Option string
	Reason string
}

func (e *ConfigurationConflictError) Error() string {
	return fmt.Sprintf("conflicting format option %s: %s", e.Option, e.Reason)
}
