// Package database implements the backup-history store on SQLite.
package database

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bhf-go/internal/database/migrations"
	"bhf-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Schema is the full up-to-date schema as one script. Tests apply it
// directly instead of walking the migration chain.
//
//go:embed migrations/files/000001_init.up.sql
var Schema string

// SQLiteDatabase implements the bhf.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly
// configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// UpsertRecord inserts a record or replaces an existing one with the same
// ID. The file list is replaced wholesale inside one transaction.
func (s *SQLiteDatabase) UpsertRecord(rec *model.BackupHistoryRecord) error {
	fullName, err := marshalStrings(rec.FullName)
	if err != nil {
		return fmt.Errorf("encoding full_name: %w", err)
	}
	originalFullName, err := marshalStrings(rec.OriginalFullName)
	if err != nil {
		return fmt.Errorf("encoding original_full_name: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO backup_history
			(id, database_name, original_database, backup_type, server_name,
			 start_time, end_time, total_size, full_name, original_full_name, is_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			database_name = excluded.database_name,
			original_database = excluded.original_database,
			backup_type = excluded.backup_type,
			server_name = excluded.server_name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			total_size = excluded.total_size,
			full_name = excluded.full_name,
			original_full_name = excluded.original_full_name,
			is_verified = excluded.is_verified`,
		rec.ID, rec.Database, rec.OriginalDatabase, rec.Type, rec.ServerName,
		nullableTime(rec.Start), nullableTime(rec.End), rec.TotalSize,
		fullName, originalFullName, rec.IsVerified)
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM backup_file WHERE record_id = ?", rec.ID); err != nil {
		return fmt.Errorf("clearing file list: %w", err)
	}

	for i, fe := range rec.FileList {
		originalPhysical := ""
		if i < len(rec.OriginalFileList) && rec.OriginalFileList[i] != nil {
			originalPhysical = rec.OriginalFileList[i].PhysicalName
		}
		_, err := tx.Exec(`
			INSERT INTO backup_file
				(record_id, ordinal, logical_name, physical_name, original_physical_name, file_type)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, i, fe.LogicalName, fe.PhysicalName, originalPhysical, fe.FileType)
		if err != nil {
			return fmt.Errorf("inserting file entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindRecordByID returns a record by ID, or nil when absent.
func (s *SQLiteDatabase) FindRecordByID(id string) (*model.BackupHistoryRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, database_name, original_database, backup_type, server_name,
		       start_time, end_time, total_size, full_name, original_full_name, is_verified
		FROM backup_history WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.loadFileList(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns stored records, newest first by backup start time.
// database filters by current database name when non-empty; limit <= 0
// means no limit.
func (s *SQLiteDatabase) ListRecords(database string, limit int) ([]*model.BackupHistoryRecord, error) {
	query := `
		SELECT id, database_name, original_database, backup_type, server_name,
		       start_time, end_time, total_size, full_name, original_full_name, is_verified
		FROM backup_history`
	var args []any
	if database != "" {
		query += " WHERE database_name = ?"
		args = append(args, database)
	}
	query += " ORDER BY start_time DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []*model.BackupHistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	for _, rec := range records {
		if err := s.loadFileList(rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// SetVerified updates a record's verification flag.
func (s *SQLiteDatabase) SetVerified(id string, verified bool) error {
	res, err := s.db.Exec("UPDATE backup_history SET is_verified = ? WHERE id = ?", verified, id)
	if err != nil {
		return fmt.Errorf("updating verification flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no record with id %s", id)
	}
	return nil
}

// CreateFormatOperation records one CLI run and its outcome in the audit
// trail.
func (s *SQLiteDatabase) CreateFormatOperation(operation, parameters, status string) (*model.FormatOperation, error) {
	res, err := s.db.Exec(
		"INSERT INTO format_operation (operation, parameters, status) VALUES (?, ?, ?)",
		operation, parameters, status)
	if err != nil {
		return nil, fmt.Errorf("inserting format operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	op := &model.FormatOperation{ID: id, Operation: operation, Parameters: parameters, Status: status}
	row := s.db.QueryRow("SELECT created_at FROM format_operation WHERE id = ?", id)
	if err := row.Scan(&op.CreatedAt); err != nil {
		return nil, fmt.Errorf("reading operation timestamp: %w", err)
	}
	return op, nil
}

// ListFormatOperations returns audit entries, newest first.
func (s *SQLiteDatabase) ListFormatOperations(limit int) ([]*model.FormatOperation, error) {
	query := "SELECT id, operation, parameters, status, created_at FROM format_operation ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing format operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.FormatOperation
	for rows.Next() {
		op := &model.FormatOperation{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning format operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating format operations: %w", err)
	}
	return ops, nil
}

// loadFileList populates FileList and OriginalFileList for a record.
func (s *SQLiteDatabase) loadFileList(rec *model.BackupHistoryRecord) error {
	rows, err := s.db.Query(`
		SELECT logical_name, physical_name, original_physical_name, file_type
		FROM backup_file WHERE record_id = ? ORDER BY ordinal`, rec.ID)
	if err != nil {
		return fmt.Errorf("loading file list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var logical, physical, originalPhysical, fileType string
		if err := rows.Scan(&logical, &physical, &originalPhysical, &fileType); err != nil {
			return fmt.Errorf("scanning file entry: %w", err)
		}
		rec.FileList = append(rec.FileList, &model.FileEntry{
			LogicalName:  logical,
			PhysicalName: physical,
			FileType:     fileType,
		})
		rec.OriginalFileList = append(rec.OriginalFileList, &model.FileEntry{
			LogicalName:  logical,
			PhysicalName: originalPhysical,
			FileType:     fileType,
		})
	}
	return rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.BackupHistoryRecord, error) {
	rec := &model.BackupHistoryRecord{}
	var start, end sql.NullTime
	var fullName, originalFullName string

	err := sc.Scan(&rec.ID, &rec.Database, &rec.OriginalDatabase, &rec.Type,
		&rec.ServerName, &start, &end, &rec.TotalSize,
		&fullName, &originalFullName, &rec.IsVerified)
	if err != nil {
		return nil, err
	}

	if start.Valid {
		rec.Start = start.Time
	}
	if end.Valid {
		rec.End = end.Time
	}
	if rec.FullName, err = unmarshalStrings(fullName); err != nil {
		return nil, fmt.Errorf("decoding full_name: %w", err)
	}
	if rec.OriginalFullName, err = unmarshalStrings(originalFullName); err != nil {
		return nil, fmt.Errorf("decoding original_full_name: %w", err)
	}
	return rec, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func unmarshalStrings(data string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}
