package domain

import (
	"errors"
	"fmt"
)

// ErrNoStock is the expected negative result of an availability check.
// It drives "retry later", not an alarm.
var ErrNoStock = errors.New("no stock")

// TransientError marks a collaborator failure (network, timeout,
// vendor 5xx) that should be retried on the next scheduled tick.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, keeping the call-site operation name.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is a retryable collaborator failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PurchaseError means the vendor rejected the order at some step of the
// cart flow. It is recorded in the task's PurchaseOutcome; the task
// stays running for further retries.
type PurchaseError struct {
	Step   string
	Detail string
}

func (e *PurchaseError) Error() string { return fmt.Sprintf("purchase %s: %s", e.Step, e.Detail) }

// ValidationError rejects malformed task input at creation time, before
// it can enter the scheduler.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }
