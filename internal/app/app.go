// Package app wires configuration into a ready-to-use service and exposes
// the high-level operations the CLI runs.
package app

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"bhf-go/internal/bhf"
	"bhf-go/internal/config"
	"bhf-go/internal/database"
	"bhf-go/internal/encryption"
	"bhf-go/internal/history"
	"bhf-go/internal/model"
	"bhf-go/internal/vault"
)

// BHFApp is the application layer between the CLI and BHFService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw readers/writers, and manages the DB lifecycle on Close.
type BHFApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     bhf.Vault
	encryptor bhf.Encryptor
	service   *bhf.BHFService
	op        *FormatOperation
	logger    *slog.Logger
	logFile   *os.File
}

// NewBHFApp creates a fully wired BHFApp from the given config.
// operation identifies the CLI command being run (e.g. "Import", "Format").
// The caller must call Close when done.
func NewBHFApp(cfg *config.Config, operation string) (*BHFApp, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clk := bhf.RealClock{}
	opID := clk.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := bhf.NewBHFService(db, v, &slogAdapter{l: logger}, clk, bhf.UUIDGenerator{})
	op := NewFormatOperation(operation, "")

	return &BHFApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   svc,
		op:        op,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Close releases the database connection and the log file.
func (a *BHFApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persistOperation saves the format operation to the audit trail, giving it
// an auto-increment ID. Only called for store-mutating commands.
func (a *BHFApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateFormatOperation(a.op.Operation, a.op.Parameters, a.op.Status)
	if err != nil {
		return fmt.Errorf("persisting format operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// failOperation records an error outcome in the audit trail. The original
// error takes precedence, so a failed write here is only logged.
func (a *BHFApp) failOperation(parameters string) {
	a.op.Status = "error"
	if err := a.persistOperation(parameters); err != nil {
		a.logger.Warn("recording failed operation", "error", err)
	}
}

// Import reads history records from r and persists them. When encrypted is
// set, r holds an age-encrypted export and passphrase unlocks the private
// key. Returns the number of records imported.
func (a *BHFApp) Import(r io.Reader, encrypted bool, passphrase string) (int, error) {
	if encrypted {
		decCtx, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}
		var plain bytes.Buffer
		if err := decCtx.Decrypt(r, &plain); err != nil {
			return 0, fmt.Errorf("decrypting history: %w", err)
		}
		r = &plain
	}

	records, err := history.ReadRecords(r)
	if err != nil {
		return 0, err
	}

	count, err := a.service.ImportRecords(records)
	if err != nil {
		a.failOperation(fmt.Sprintf("records=%d", count))
		return count, err
	}
	if err := a.persistOperation(fmt.Sprintf("records=%d", count)); err != nil {
		return count, err
	}
	return count, nil
}

// History returns stored records, newest first.
func (a *BHFApp) History(databaseName string, limit int) ([]*model.BackupHistoryRecord, error) {
	return a.service.GetHistory(databaseName, limit)
}

// FormatInput formats records read from r and writes the rewritten sequence
// to w. Nothing is persisted. The report is returned for per-record status
// output.
func (a *BHFApp) FormatInput(r io.Reader, w io.Writer, opts bhf.FormatOptions) (*bhf.Report, error) {
	records, err := history.ReadRecords(r)
	if err != nil {
		return nil, err
	}

	report, err := a.service.FormatRecords(records, opts)
	if err != nil {
		return nil, err
	}

	if err := history.WriteRecords(w, report.Records()); err != nil {
		return report, err
	}
	return report, nil
}

// FormatStored formats records from the history store, persists the
// rewritten records, and writes them to w.
func (a *BHFApp) FormatStored(databaseName string, w io.Writer, opts bhf.FormatOptions) (*bhf.Report, error) {
	report, err := a.service.FormatStored(databaseName, 0, opts)
	if err != nil {
		a.failOperation("database=" + databaseName)
		return nil, err
	}

	if err := a.persistOperation("database=" + databaseName); err != nil {
		return report, err
	}
	if err := history.WriteRecords(w, report.Records()); err != nil {
		return report, err
	}
	return report, nil
}

// VerifyInput verifies records read from r against the vault and writes the
// updated records to w. Returns the number of records that verified.
func (a *BHFApp) VerifyInput(r io.Reader, w io.Writer) (int, error) {
	records, err := history.ReadRecords(r)
	if err != nil {
		return 0, err
	}

	verified, err := a.service.VerifyRecords(records)
	if err != nil {
		return verified, err
	}
	if err := history.WriteRecords(w, records); err != nil {
		return verified, err
	}
	return verified, nil
}

// VerifyStored verifies stored records against the vault and persists the
// verification flags.
func (a *BHFApp) VerifyStored(databaseName string) (int, error) {
	verified, err := a.service.VerifyStored(databaseName)
	if err != nil {
		a.failOperation("database=" + databaseName)
		return verified, err
	}
	if err := a.persistOperation("database=" + databaseName); err != nil {
		return verified, err
	}
	return verified, nil
}

// FetchInput downloads the backup files named by records read from r into
// destDir and returns the local paths.
func (a *BHFApp) FetchInput(r io.Reader, destDir string) ([]string, error) {
	records, err := history.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	return a.service.FetchBackups(records, destDir)
}

// FetchStored downloads the backup files of stored records into destDir and
// returns the local paths.
func (a *BHFApp) FetchStored(databaseName string, destDir string) ([]string, error) {
	return a.service.FetchStored(databaseName, destDir)
}

// Export writes the whole history store to w as JSON, age-encrypted when
// encrypt is set.
func (a *BHFApp) Export(w io.Writer, encrypt bool) error {
	records, err := a.service.GetHistory("", 0)
	if err != nil {
		return err
	}

	if !encrypt {
		return history.WriteRecords(w, records)
	}

	var plain bytes.Buffer
	if err := history.WriteRecords(&plain, records); err != nil {
		return err
	}
	if err := a.encryptor.Encrypt(&plain, w); err != nil {
		return fmt.Errorf("encrypting export: %w", err)
	}
	return nil
}

// SetupKeys performs one-time age key generation.
func (a *BHFApp) SetupKeys(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("key pair already exists")
	}
	return a.encryptor.Setup(passphrase)
}

// Operations returns the audit trail, newest first.
func (a *BHFApp) Operations(limit int) ([]*model.FormatOperation, error) {
	return a.db.ListFormatOperations(limit)
}

// Config returns the loaded configuration.
func (a *BHFApp) Config() *config.Config {
	return a.cfg
}
