package bhf_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bhf-go/internal/bhf"
	"bhf-go/internal/model"
	"bhf-go/internal/testutil"
	"bhf-go/internal/vault"
)

func setupService(t *testing.T) (*bhf.BHFService, bhf.Database, *vault.MemoryVault) {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	v := testutil.NewTestVault()
	svc := bhf.NewBHFService(db, v, bhf.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())
	return svc, db, v
}

func TestBHFService_ImportRecords(t *testing.T) {
	t.Run("assigns IDs and captures snapshots", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := setupService(t)

		count, err := svc.ImportRecords([]*model.BackupHistoryRecord{salesRecord()})
		if err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}
		if count != 1 {
			t.Fatalf("count = %d, want 1", count)
		}

		stored, err := db.FindRecordByID("id-1")
		if err != nil {
			t.Fatalf("FindRecordByID() error = %v", err)
		}
		if stored == nil {
			t.Fatal("record not stored under generated ID")
		}
		if stored.OriginalDatabase != "Sales" {
			t.Errorf("OriginalDatabase = %q, want %q", stored.OriginalDatabase, "Sales")
		}
	})

	t.Run("keeps existing IDs", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := setupService(t)

		rec := salesRecord()
		rec.ID = "preset"
		if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{rec}); err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}

		stored, err := db.FindRecordByID("preset")
		if err != nil {
			t.Fatalf("FindRecordByID() error = %v", err)
		}
		if stored == nil {
			t.Fatal("record not stored under preset ID")
		}
	})

	t.Run("stamps missing start and end times", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := setupService(t)

		if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{salesRecord()}); err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}

		stored, err := db.FindRecordByID("id-1")
		if err != nil {
			t.Fatalf("FindRecordByID() error = %v", err)
		}
		want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		if !stored.Start.Equal(want) {
			t.Errorf("Start = %v, want %v", stored.Start, want)
		}
		if !stored.End.Equal(want) {
			t.Errorf("End = %v, want %v", stored.End, want)
		}
	})

	t.Run("keeps existing start time", func(t *testing.T) {
		t.Parallel()
		svc, db, _ := setupService(t)

		rec := salesRecord()
		start := time.Date(2024, 6, 1, 3, 30, 0, 0, time.UTC)
		rec.Start = start
		if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{rec}); err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}

		stored, err := db.FindRecordByID("id-1")
		if err != nil {
			t.Fatalf("FindRecordByID() error = %v", err)
		}
		if !stored.Start.Equal(start) {
			t.Errorf("Start = %v, want %v", stored.Start, start)
		}
	})

	t.Run("skips nil and nameless records", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setupService(t)

		count, err := svc.ImportRecords([]*model.BackupHistoryRecord{
			nil,
			{Type: "Full"},
			salesRecord(),
		})
		if err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})
}

func TestBHFService_FormatStored(t *testing.T) {
	t.Parallel()
	svc, db, _ := setupService(t)

	if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{salesRecord()}); err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}

	report, err := svc.FormatStored("Sales", 0, bhf.FormatOptions{
		DatabaseNamePrefix: "Dev_",
		DataFileDirectory:  `F:\newdata`,
	})
	if err != nil {
		t.Fatalf("FormatStored() error = %v", err)
	}

	transformed, _, _ := report.Counts()
	if transformed != 1 {
		t.Fatalf("transformed = %d, want 1", transformed)
	}

	// The rewritten record was persisted.
	stored, err := db.FindRecordByID("id-1")
	if err != nil {
		t.Fatalf("FindRecordByID() error = %v", err)
	}
	if stored.Database != "Dev_Sales" {
		t.Errorf("stored Database = %q, want %q", stored.Database, "Dev_Sales")
	}
	if stored.FileList[0].PhysicalName != `F:\newdata\Sales.mdf` {
		t.Errorf("stored PhysicalName = %q, want %q", stored.FileList[0].PhysicalName, `F:\newdata\Sales.mdf`)
	}
	if stored.OriginalDatabase != "Sales" {
		t.Errorf("stored OriginalDatabase = %q, want %q", stored.OriginalDatabase, "Sales")
	}
}

func TestBHFService_VerifyRecords(t *testing.T) {
	t.Run("marks records whose files exist", func(t *testing.T) {
		t.Parallel()
		svc, _, v := setupService(t)

		v.PutBackup(`C:\backups\Sales_full.bak`, []byte("backup data"))
		rec := salesRecord()

		verified, err := svc.VerifyRecords([]*model.BackupHistoryRecord{rec})
		if err != nil {
			t.Fatalf("VerifyRecords() error = %v", err)
		}
		if verified != 1 {
			t.Errorf("verified = %d, want 1", verified)
		}
		if !rec.IsVerified {
			t.Error("IsVerified = false, want true")
		}
	})

	t.Run("missing file leaves record unverified", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setupService(t)

		rec := salesRecord()
		verified, err := svc.VerifyRecords([]*model.BackupHistoryRecord{rec})
		if err != nil {
			t.Fatalf("VerifyRecords() error = %v", err)
		}
		if verified != 0 || rec.IsVerified {
			t.Errorf("verified = %d, IsVerified = %v, want 0/false", verified, rec.IsVerified)
		}
	})

	t.Run("empty file leaves record unverified", func(t *testing.T) {
		t.Parallel()
		svc, _, v := setupService(t)

		v.PutBackup(`C:\backups\Sales_full.bak`, nil)
		rec := salesRecord()

		verified, err := svc.VerifyRecords([]*model.BackupHistoryRecord{rec})
		if err != nil {
			t.Fatalf("VerifyRecords() error = %v", err)
		}
		if verified != 0 || rec.IsVerified {
			t.Errorf("verified = %d, IsVerified = %v, want 0/false", verified, rec.IsVerified)
		}
	})

	t.Run("URL-backed sets are skipped", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setupService(t)

		rec := salesRecord()
		rec.FullName = []string{"https://blob/Sales_full.bak"}

		verified, err := svc.VerifyRecords([]*model.BackupHistoryRecord{rec})
		if err != nil {
			t.Fatalf("VerifyRecords() error = %v", err)
		}
		if verified != 0 || rec.IsVerified {
			t.Errorf("verified = %d, IsVerified = %v, want 0/false", verified, rec.IsVerified)
		}
	})
}

func TestBHFService_VerifyStored(t *testing.T) {
	t.Parallel()
	svc, db, v := setupService(t)

	v.PutBackup(`C:\backups\Sales_full.bak`, []byte("backup data"))
	if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{salesRecord()}); err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}

	verified, err := svc.VerifyStored("Sales")
	if err != nil {
		t.Fatalf("VerifyStored() error = %v", err)
	}
	if verified != 1 {
		t.Fatalf("verified = %d, want 1", verified)
	}

	stored, err := db.FindRecordByID("id-1")
	if err != nil {
		t.Fatalf("FindRecordByID() error = %v", err)
	}
	if !stored.IsVerified {
		t.Error("stored IsVerified = false, want true")
	}
}

func TestBHFService_FetchBackups(t *testing.T) {
	t.Run("downloads backup set files", func(t *testing.T) {
		t.Parallel()
		svc, _, v := setupService(t)

		v.PutBackup(`C:\backups\Sales_full.bak`, []byte("backup data"))
		destDir := filepath.Join(t.TempDir(), "staging")

		paths, err := svc.FetchBackups([]*model.BackupHistoryRecord{salesRecord()}, destDir)
		if err != nil {
			t.Fatalf("FetchBackups() error = %v", err)
		}
		if len(paths) != 1 {
			t.Fatalf("got %d paths, want 1", len(paths))
		}

		data, err := os.ReadFile(paths[0])
		if err != nil {
			t.Fatalf("reading downloaded file: %v", err)
		}
		if string(data) != "backup data" {
			t.Errorf("content = %q, want %q", string(data), "backup data")
		}
	})

	t.Run("URL-backed sets are skipped", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setupService(t)

		rec := salesRecord()
		rec.FullName = []string{"https://blob/Sales_full.bak"}

		paths, err := svc.FetchBackups([]*model.BackupHistoryRecord{rec}, t.TempDir())
		if err != nil {
			t.Fatalf("FetchBackups() error = %v", err)
		}
		if len(paths) != 0 {
			t.Errorf("got %d paths, want 0", len(paths))
		}
	})

	t.Run("missing backup file is an error", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := setupService(t)

		if _, err := svc.FetchBackups([]*model.BackupHistoryRecord{salesRecord()}, t.TempDir()); err == nil {
			t.Error("FetchBackups() error = nil for missing file, want error")
		}
	})
}

func TestBHFService_FetchStored(t *testing.T) {
	t.Parallel()
	svc, _, v := setupService(t)

	v.PutBackup(`C:\backups\Sales_full.bak`, []byte("backup data"))
	if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{salesRecord()}); err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}

	paths, err := svc.FetchStored("Sales", t.TempDir())
	if err != nil {
		t.Fatalf("FetchStored() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	if filepath.Base(paths[0]) != "Sales_full.bak" {
		t.Errorf("path = %q, want base name Sales_full.bak", paths[0])
	}
}

func TestBHFService_GetHistory(t *testing.T) {
	t.Parallel()
	svc, _, _ := setupService(t)

	sales := salesRecord()
	hr := salesRecord()
	hr.Database = "HR"
	if _, err := svc.ImportRecords([]*model.BackupHistoryRecord{sales, hr}); err != nil {
		t.Fatalf("ImportRecords() error = %v", err)
	}

	records, err := svc.GetHistory("HR", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Database != "HR" {
		t.Errorf("Database = %q, want %q", records[0].Database, "HR")
	}
}
