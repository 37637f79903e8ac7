package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"backup_history", "backup_file", "format_operation", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A file row must point at an existing history record
	_, err := db.Exec(`
		INSERT INTO backup_file (record_id, ordinal, logical_name, physical_name, original_physical_name, file_type)
		VALUES ('non-existent-record', 0, 'Sales_Data', 'E:\data\Sales.mdf', 'E:\data\Sales.mdf', 'D')
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_FileOrdinalUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO backup_history (id, database_name, original_database, backup_type)
		VALUES ('rec-1', 'Sales', 'Sales', 'Database')
	`)
	if err != nil {
		t.Fatalf("Failed to insert history record: %v", err)
	}

	insertFile := `
		INSERT INTO backup_file (record_id, ordinal, logical_name, physical_name, original_physical_name, file_type)
		VALUES ('rec-1', 0, ?, ?, ?, 'D')
	`
	if _, err := db.Exec(insertFile, "Sales_Data", `E:\data\Sales.mdf`, `E:\data\Sales.mdf`); err != nil {
		t.Fatalf("Failed to insert first file: %v", err)
	}

	// Same ordinal for the same record should fail
	if _, err := db.Exec(insertFile, "Sales_Log", `E:\log\Sales_log.ldf`, `E:\log\Sales_log.ldf`); err == nil {
		t.Error("Expected unique constraint violation for duplicate ordinal, but insert succeeded")
	}
}

func TestSchema_CascadeDelete(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`
		INSERT INTO backup_history (id, database_name, original_database, backup_type)
		VALUES ('rec-1', 'Sales', 'Sales', 'Database')
	`); err != nil {
		t.Fatalf("Failed to insert history record: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO backup_file (record_id, ordinal, logical_name, physical_name, original_physical_name, file_type)
		VALUES ('rec-1', 0, 'Sales_Data', 'E:\data\Sales.mdf', 'E:\data\Sales.mdf', 'D')
	`); err != nil {
		t.Fatalf("Failed to insert file: %v", err)
	}

	if _, err := db.Exec("DELETE FROM backup_history WHERE id = 'rec-1'"); err != nil {
		t.Fatalf("Failed to delete history record: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM backup_file WHERE record_id = 'rec-1'").Scan(&count); err != nil {
		t.Fatalf("Failed to count files: %v", err)
	}
	if count != 0 {
		t.Errorf("backup_file rows after cascade delete = %d, want 0", count)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
