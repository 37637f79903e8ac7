// Package vault implements storage backends for the backup files that
// history records point at.
package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bhf-go/internal/bhf"
)

// FileSystemVault resolves backup files on a local filesystem. When a root
// is configured, history paths are resolved by file name under the root,
// covering history collected on another machine. With an empty root, paths
// are used exactly as recorded.
type FileSystemVault struct {
	name string
	root string
}

var _ bhf.Vault = (*FileSystemVault)(nil)

// NewFileSystemVault creates a filesystem vault. root may be empty.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if root != "" {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("vault root not accessible: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("vault root is not a directory: %s", root)
		}
	}
	return &FileSystemVault{name: name, root: root}, nil
}

// StatBackup looks up a backup file. Absence is reported as nil, not an
// error.
func (v *FileSystemVault) StatBackup(path string) (*bhf.BackupFileInfo, error) {
	resolved := v.resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking backup file: %w", err)
	}
	if info.IsDir() {
		return nil, nil
	}
	return &bhf.BackupFileInfo{Path: resolved, Size: info.Size()}, nil
}

// DownloadBackup copies a backup file into destDir under its own file name.
// The write goes through a temp file plus rename so a partial copy never
// masquerades as a backup.
func (v *FileSystemVault) DownloadBackup(path string, destDir string) (string, error) {
	resolved := v.resolve(path)
	src, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("backup file not found: %s", resolved)
		}
		return "", fmt.Errorf("opening backup file: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(destDir, backupFileName(path))

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(destDir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("reading backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return destPath, nil
}

// ValidateSetup verifies the vault root is accessible.
func (v *FileSystemVault) ValidateSetup() error {
	if v.root == "" {
		return nil
	}
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	return nil
}

// resolve maps a history path onto this vault.
func (v *FileSystemVault) resolve(path string) string {
	if v.root == "" {
		return path
	}
	return filepath.Join(v.root, backupFileName(path))
}

// backupFileName extracts the file name from a history path, which may use
// either separator style regardless of the local platform.
func backupFileName(path string) string {
	if idx := strings.LastIndexAny(path, `\/`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
