package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID: "test-instance-abc",
		BaseDir:    "/home/user/.local/share/bhf",
		LogDir:     "/home/user/.local/share/bhf/log",
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/backup/vault"},
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/bhf/keys/bhf.pub",
			PrivateKeyPath: "/home/user/.local/share/bhf/keys/bhf.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/bhf/db"},
		Format: FormatConfig{
			PathSeparator:      `\`,
			DataFileDirectory:  `F:\newdata`,
			RebaseBackupFolder: `\\nas\backups`,
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if len(got.Vaults) != 1 {
		t.Fatalf("len(Vaults) = %d, want 1", len(got.Vaults))
	}
	if got.Vaults[0].Type != "filesystem" {
		t.Errorf("Vault.Type = %q, want %q", got.Vaults[0].Type, "filesystem")
	}
	if got.Vaults[0].FSVaultRoot != "/backup/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vaults[0].FSVaultRoot, "/backup/vault")
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Format.DataFileDirectory != `F:\newdata` {
		t.Errorf("Format.DataFileDirectory = %q, want %q", got.Format.DataFileDirectory, `F:\newdata`)
	}
	if got.Format.RebaseBackupFolder != `\\nas\backups` {
		t.Errorf("Format.RebaseBackupFolder = %q, want %q", got.Format.RebaseBackupFolder, `\\nas\backups`)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("inst-1", "/data/bhf")

	if cfg.InstanceID != "inst-1" {
		t.Errorf("InstanceID = %q, want %q", cfg.InstanceID, "inst-1")
	}
	if cfg.BaseDir != "/data/bhf" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/bhf")
	}
	if cfg.LogDir != "/data/bhf/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/bhf/log")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Database.DataDir != "/data/bhf/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/bhf/db")
	}
	if cfg.Encryption.PublicKeyPath != "/data/bhf/keys/bhf.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/bhf/keys/bhf.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/bhf/keys/bhf.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/bhf/keys/bhf.key")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bhf.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bhf.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bhf.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/bhf.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
