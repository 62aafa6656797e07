package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors of the block lifecycle. Handlers map these onto HTTP
// status codes with errors.Is/As; services never return raw gorm errors to
// the transport layer.
var (
	// ErrNotFound wraps a lookup miss for any entity.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized: the caller is not the resolved approver (or owner)
	// for the attempted operation.
	ErrNotAuthorized = errors.New("not authorized for this request")

	// ErrAlreadyDecided: the request left PENDING_APPROVAL before this
	// decision landed, or a concurrent decision won the version race.
	ErrAlreadyDecided = errors.New("request already decided")

	// ErrConflictingDecision: the same approver retried with a different
	// decision than the one on record.
	ErrConflictingDecision = errors.New("conflicting decision by same approver")

	// ErrResourceBusy: the per-resource-per-date lock could not be acquired
	// within the bounded retry budget. Retryable by the caller.
	ErrResourceBusy = errors.New("resource is busy, retry later")

	// ErrSchedulingConflict: a candidate window overlaps a committed one.
	ErrSchedulingConflict = errors.New("window overlaps an existing block")

	// ErrReadOnly: the block date has passed, the request is frozen.
	ErrReadOnly = errors.New("block date has passed, request is read-only")
)

// ValidationError rejects malformed input before it enters the state
// machine. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RevisionConflictError reports the first pair that made a bulk revision
// batch fail. The whole batch rolls back; no sanctioned window changes.
type RevisionConflictError struct {
	RequestID       uuid.UUID
	ConflictingWith uuid.UUID
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision of %s conflicts with sanctioned block %s", e.RequestID, e.ConflictingWith)
}

// PreconditionError reports a revision attempted on a request that is not in
// the revisable window (wrong day, or the slot already commenced).
type PreconditionError struct {
	RequestID uuid.UUID
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("request %s: %s", e.RequestID, e.Reason)
}
