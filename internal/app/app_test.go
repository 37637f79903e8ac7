package app

import (
	"path/filepath"
	"strings"
	"testing"

	"bhf-go/internal/config"
	"bhf-go/internal/vault"
)

func newTestApp(t *testing.T, operation string) *BHFApp {
	t.Helper()
	cfg := &config.Config{
		InstanceID: "test",
		LogDir:     t.TempDir(),
		Vaults:     []config.VaultConfig{{Type: "memory", Name: "test"}},
		Database:   config.DatabaseConfig{Type: "memory"},
		Encryption: config.EncryptionConfig{Type: "test"},
	}
	a, err := NewBHFApp(cfg, operation)
	if err != nil {
		t.Fatalf("NewBHFApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestBHFApp_ImportRecordsAudit(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, "Import")

	in := strings.NewReader(`[{"database": "Sales", "type": "Full"}]`)
	count, err := a.Import(in, false, "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	ops, err := a.Operations(10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1", len(ops))
	}
	if ops[0].Operation != "Import" {
		t.Errorf("Operation = %q, want %q", ops[0].Operation, "Import")
	}
	if ops[0].Status != "success" {
		t.Errorf("Status = %q, want %q", ops[0].Status, "success")
	}
	if ops[0].Parameters != "records=1" {
		t.Errorf("Parameters = %q, want %q", ops[0].Parameters, "records=1")
	}
}

func TestBHFApp_FailOperationAudit(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, "Format")

	a.failOperation("database=Sales")

	if a.op.Status != "error" {
		t.Errorf("Status = %q, want %q", a.op.Status, "error")
	}
	ops, err := a.Operations(10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1", len(ops))
	}
	if ops[0].Status != "error" {
		t.Errorf("Status = %q, want %q", ops[0].Status, "error")
	}
	if ops[0].Parameters != "database=Sales" {
		t.Errorf("Parameters = %q, want %q", ops[0].Parameters, "database=Sales")
	}
}

func TestBHFApp_FetchInput(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, "Fetch")

	mv, ok := a.vault.(*vault.MemoryVault)
	if !ok {
		t.Fatalf("vault is %T, want *vault.MemoryVault", a.vault)
	}
	mv.PutBackup(`C:\backups\Sales_full.bak`, []byte("backup data"))

	in := strings.NewReader(`[{"database": "Sales", "type": "Full", "full_name": ["C:\\backups\\Sales_full.bak"]}]`)
	paths, err := a.FetchInput(in, filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("FetchInput() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	if filepath.Base(paths[0]) != "Sales_full.bak" {
		t.Errorf("path = %q, want base name Sales_full.bak", paths[0])
	}
}
