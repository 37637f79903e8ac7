package app

// FormatOperation tracks a CLI operation that may mutate the history store.
// Operations are created in memory with ID=0. Only store-mutating commands
// persist them (giving them an auto-increment ID from the database).
type FormatOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewFormatOperation creates a new in-memory format operation.
func NewFormatOperation(operation, parameters string) *FormatOperation {
	return &FormatOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *FormatOperation) Persisted() bool {
	return op.ID != 0
}
