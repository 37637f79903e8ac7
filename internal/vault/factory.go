package vault

import (
	"fmt"

	"bhf-go/internal/bhf"
	"bhf-go/internal/config"
)

// NewVaultFromConfig creates a Vault implementation based on the vault
// config type.
func NewVaultFromConfig(cfg config.VaultConfig) (bhf.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3Vault(cfg)
	case "filesystem":
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
