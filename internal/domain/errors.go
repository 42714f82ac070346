package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means a referenced account or transaction does not exist
	// for the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the record exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation means the request carried a malformed or missing field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the operation is not allowed in the record's current state.
	ErrConflict = errors.New("conflict")
	// ErrPersistence wraps every store-level fault.
	ErrPersistence = errors.New("persistence failure")

	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	// ErrAccountInUse rejects deleting an account that transactions still reference.
	ErrAccountInUse = fmt.Errorf("account has transactions: %w", ErrConflict)
)

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PartialWriteError reports a mutation that failed after some of its writes
// were already persisted. Balances may not match the ledger until the
// affected accounts are audited and repaired.
type PartialWriteError struct {
	Op        string
	Persisted []string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: partial write (persisted: %s): %v", e.Op, strings.Join(e.Persisted, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Persistence tags err as a store fault raised during op. Errors that
// already carry a domain classification keep it.
func Persistence(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
