package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bhf-go/internal/bhf"
)

// MemoryVault is an in-memory Vault implementation for tests. Backup files
// are keyed by their file name, mirroring FileSystemVault's resolution.
type MemoryVault struct {
	name string

	mu    sync.RWMutex
	files map[string][]byte
}

var _ bhf.Vault = (*MemoryVault)(nil)

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		files: make(map[string][]byte),
	}
}

// PutBackup stores a backup file under the file name of path.
func (v *MemoryVault) PutBackup(path string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[backupFileName(path)] = append([]byte(nil), data...)
}

// StatBackup reports a stored backup file, or nil when absent.
func (v *MemoryVault) StatBackup(path string) (*bhf.BackupFileInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	name := backupFileName(path)
	data, ok := v.files[name]
	if !ok {
		return nil, nil
	}
	return &bhf.BackupFileInfo{Path: name, Size: int64(len(data))}, nil
}

// DownloadBackup writes a stored backup file into destDir under its file
// name, mirroring what the real backends do.
func (v *MemoryVault) DownloadBackup(path string, destDir string) (string, error) {
	v.mu.RLock()
	data, ok := v.files[backupFileName(path)]
	v.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("backup file not found: %s", path)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}
	destPath := filepath.Join(destDir, backupFileName(path))
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing backup file: %w", err)
	}
	return destPath, nil
}

// ValidateSetup always succeeds for an in-memory vault.
func (v *MemoryVault) ValidateSetup() error { return nil }
