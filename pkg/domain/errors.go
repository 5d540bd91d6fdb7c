package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy returned by every record store. Match with errors.Is.
var (
	// ErrInvalidInput marks a request rejected before any state was touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateKey marks an add for an ID that is already stored.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound marks an update, delete or lookup of an absent ID.
	ErrNotFound = errors.New("record not found")
)

// Action names the operation that produced an error or audit entry.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionImport Action = "import"
	ActionExport Action = "export"
)

// RecordError wraps a taxonomy sentinel with the operation and record ID.
type RecordError struct {
	Op  Action
	ID  int
	Err error
}

// Reject builds a RecordError for op on id.
func Reject(op Action, id int, err error) *RecordError {
	return &RecordError{Op: op, ID: id, Err: err}
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Op, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
