package bhf

// BackupFileInfo describes a backup file found in a vault.
type BackupFileInfo struct {
	Path string // path or key as the vault resolved it
	Size int64
}

// Vault provides access to the storage holding the actual backup files that
// history records point at. Retrieval streams to disk so large backup sets
// never have to fit in memory.
type Vault interface {
	// StatBackup looks up a backup file by the path recorded in the history.
	// Returns nil when the file is absent; absence is not an error.
	StatBackup(path string) (*BackupFileInfo, error)

	// DownloadBackup fetches a backup file into destDir, keeping its file
	// name. Returns the local path written.
	DownloadBackup(path string, destDir string) (string, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
