package bhf

import "bhf-go/internal/model"

// RecordStatus describes what a formatting pass did with one record.
type RecordStatus int

const (
	// StatusTransformed means at least one field was rewritten.
	StatusTransformed RecordStatus = iota
	// StatusUnchanged means the record passed through untouched.
	StatusUnchanged
	// StatusSkipped means the record was invalid and left alone.
	StatusSkipped
)

func (s RecordStatus) String() string {
	switch s {
	case StatusTransformed:
		return "transformed"
	case StatusUnchanged:
		return "unchanged"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// RecordResult pairs a record with its per-record outcome. Err is set only
// for skipped records.
type RecordResult struct {
	Record *model.BackupHistoryRecord
	Status RecordStatus
	Err    error
}

// Report is the outcome of one formatting pass, one result per input record
// in input order.
type Report struct {
	Results []RecordResult
}

// Counts returns how many records were transformed, passed through
// unchanged, and skipped.
func (r *Report) Counts() (transformed, unchanged, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusTransformed:
			transformed++
		case StatusUnchanged:
			unchanged++
		case StatusSkipped:
			skipped++
		}
	}
	return transformed, unchanged, skipped
}

// Records returns the non-skipped records in input order. This is what gets
// handed to a restore planner or written back to the history store.
func (r *Report) Records() []*model.BackupHistoryRecord {
	out := make([]*model.BackupHistoryRecord, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Status != StatusSkipped {
			out = append(out, res.Record)
		}
	}
	return out
}
