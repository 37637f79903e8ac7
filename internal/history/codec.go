// Package history reads and writes backup-history record sequences as JSON.
// History collectors export their records in this shape, and the formatter's
// output is written back the same way for the restore planner.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"bhf-go/internal/model"
)

// ReadRecords decodes a sequence of backup-history records from r.
// The input is a JSON array; a single bare object is accepted too, since
// one-record exports are common.
func ReadRecords(r io.Reader) ([]*model.BackupHistoryRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading history input: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty history input")
	}

	if trimmed[0] == '{' {
		var rec model.BackupHistoryRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("decoding history record: %w", err)
		}
		return []*model.BackupHistoryRecord{&rec}, nil
	}

	var records []*model.BackupHistoryRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decoding history records: %w", err)
	}
	return records, nil
}

// WriteRecords encodes records to w as an indented JSON array.
func WriteRecords(w io.Writer, records []*model.BackupHistoryRecord) error {
	if records == nil {
		records = []*model.BackupHistoryRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding history records: %w", err)
	}
	return nil
}
