package bhf

import (
	"fmt"
	"strings"

	"bhf-go/internal/model"
)

// BHFService is the orchestration layer that coordinates the history store,
// the backup vault and the formatter to perform the high-level operations
// needed by the CLI.
type BHFService struct {
	database Database
	vault    Vault
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewBHFService creates a new BHFService with the provided dependencies.
func NewBHFService(database Database, vault Vault, logger Logger, clock Clock, idgen IDGenerator) *BHFService {
	return &BHFService{
		database: database,
		vault:    vault,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// ImportRecords persists backup-history records into the store. Snapshots
// are captured at ingestion, records without an ID are assigned one, and
// records arriving without a backup start time are stamped with the import
// time so history listing keeps a defined order. Returns the number of
// records imported.
func (s *BHFService) ImportRecords(records []*model.BackupHistoryRecord) (int, error) {
	now := s.clock.Now()
	count := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.Database == "" {
			s.logger.Warn("skipping record with empty database name", "id", rec.ID)
			continue
		}
		EnsureSnapshot(rec)
		if rec.ID == "" {
			rec.ID = s.idgen.New()
		}
		if rec.Start.IsZero() {
			rec.Start = now
			if rec.End.IsZero() {
				rec.End = now
			}
		}
		if err := s.database.UpsertRecord(rec); err != nil {
			return count, fmt.Errorf("storing record %s: %w", rec.ID, err)
		}
		count++
	}
	s.logger.Info("history imported", "records", count)
	return count, nil
}

// GetHistory returns stored records, newest first. database filters by
// current database name when non-empty; limit <= 0 means no limit.
func (s *BHFService) GetHistory(database string, limit int) ([]*model.BackupHistoryRecord, error) {
	recs, err := s.database.ListRecords(database, limit)
	if err != nil {
		return nil, fmt.Errorf("listing backup history: %w", err)
	}
	return recs, nil
}

// FormatRecords runs one formatting pass over records supplied by the
// caller (pipeline input). Nothing is persisted.
func (s *BHFService) FormatRecords(records []*model.BackupHistoryRecord, opts FormatOptions) (*Report, error) {
	formatter, err := NewFormatter(opts)
	if err != nil {
		return nil, err
	}

	report := formatter.FormatRecords(records)
	transformed, unchanged, skipped := report.Counts()
	s.logger.Info("history formatted",
		"transformed", transformed, "unchanged", unchanged, "skipped", skipped)
	for _, res := range report.Results {
		if res.Status == StatusSkipped {
			s.logger.Warn("record skipped", "error", res.Err)
		}
	}
	return report, nil
}

// FormatStored formats records loaded from the history store and writes the
// rewritten records back. Skipped records are left untouched in the store.
func (s *BHFService) FormatStored(database string, limit int, opts FormatOptions) (*Report, error) {
	records, err := s.GetHistory(database, limit)
	if err != nil {
		return nil, err
	}

	report, err := s.FormatRecords(records, opts)
	if err != nil {
		return nil, err
	}

	for _, rec := range report.Records() {
		if err := s.database.UpsertRecord(rec); err != nil {
			return report, fmt.Errorf("storing formatted record %s: %w", rec.ID, err)
		}
	}
	return report, nil
}

// VerifyRecords checks each record's backup set files against the vault and
// marks records whose every file is present with non-zero size. Records
// whose backup set lives behind a URL cannot be verified locally and are
// left unverified. Returns the number of records that verified.
func (s *BHFService) VerifyRecords(records []*model.BackupHistoryRecord) (int, error) {
	verified := 0
	for _, rec := range records {
		if rec == nil || len(rec.FullName) == 0 {
			continue
		}
		ok, err := s.verifyOneRecord(rec)
		if err != nil {
			return verified, err
		}
		rec.IsVerified = ok
		if ok {
			verified++
		}
	}
	s.logger.Info("history verified", "verified", verified, "total", len(records))
	return verified, nil
}

// VerifyStored verifies records from the history store and persists the
// verification flags.
func (s *BHFService) VerifyStored(database string) (int, error) {
	records, err := s.GetHistory(database, 0)
	if err != nil {
		return 0, err
	}

	verified, err := s.VerifyRecords(records)
	if err != nil {
		return verified, err
	}

	for _, rec := range records {
		if err := s.database.SetVerified(rec.ID, rec.IsVerified); err != nil {
			return verified, fmt.Errorf("updating verification for %s: %w", rec.ID, err)
		}
	}
	return verified, nil
}

// FetchBackups downloads every backup set file for the given records into
// destDir, keeping file names. URL-backed backup sets cannot be fetched from
// a local vault and are skipped with a warning. Returns the local paths
// written.
func (s *BHFService) FetchBackups(records []*model.BackupHistoryRecord, destDir string) ([]string, error) {
	var paths []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, full := range rec.FullName {
			if strings.Contains(full, "http") {
				s.logger.Warn("skipping URL-backed backup set", "id", rec.ID, "path", full)
				continue
			}
			local, err := s.vault.DownloadBackup(full, destDir)
			if err != nil {
				return paths, fmt.Errorf("fetching backup file %s: %w", full, err)
			}
			paths = append(paths, local)
		}
	}
	s.logger.Info("backups fetched", "files", len(paths), "dest", destDir)
	return paths, nil
}

// FetchStored downloads the backup set files for stored records. database
// filters by current database name when non-empty.
func (s *BHFService) FetchStored(database string, destDir string) ([]string, error) {
	records, err := s.GetHistory(database, 0)
	if err != nil {
		return nil, err
	}
	return s.FetchBackups(records, destDir)
}

// verifyOneRecord stats every backup set file for one record.
func (s *BHFService) verifyOneRecord(rec *model.BackupHistoryRecord) (bool, error) {
	for _, full := range rec.FullName {
		if strings.Contains(full, "http") {
			s.logger.Debug("skipping URL-backed backup set", "id", rec.ID, "path", full)
			return false, nil
		}
		info, err := s.vault.StatBackup(full)
		if err != nil {
			return false, fmt.Errorf("checking backup file %s: %w", full, err)
		}
		if info == nil || info.Size == 0 {
			s.logger.Debug("backup file missing or empty", "id", rec.ID, "path", full)
			return false, nil
		}
	}
	return true, nil
}
