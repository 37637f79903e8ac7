package bhf

import "bhf-go/internal/model"

// Database provides an interface for the backup-history store.
// All methods should be implemented with appropriate transaction handling.
type Database interface {
	// UpsertRecord inserts a record or replaces an existing one with the
	// same ID, including its file list.
	UpsertRecord(rec *model.BackupHistoryRecord) error

	// FindRecordByID returns a record by ID, or nil when absent.
	FindRecordByID(id string) (*model.BackupHistoryRecord, error)

	// ListRecords returns stored records, newest first. database filters by
	// current database name when non-empty; limit <= 0 means no limit.
	ListRecords(database string, limit int) ([]*model.BackupHistoryRecord, error)

	// SetVerified updates a record's verification flag.
	SetVerified(id string, verified bool) error

	// CreateFormatOperation records one CLI run and its outcome in the
	// audit trail.
	CreateFormatOperation(operation, parameters, status string) (*model.FormatOperation, error)

	// ListFormatOperations returns audit entries, newest first.
	ListFormatOperations(limit int) ([]*model.FormatOperation, error)

	// Close closes the database connection.
	Close() error
}
