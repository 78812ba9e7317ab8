/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error from the orchestrators propagates to the caller
  unwrapped in kind, so the API layer can map it to an accurate
  response; logging of underlying causes happens at the boundary,
  never inside the core.

ERROR CATEGORIES:
  1. Validation errors  - Malformed input, no partial writes occur
  2. Not-found errors   - Referenced record absent at mutation time
  3. Constraint errors  - Deletion blocked by dependent records
  4. Duplicate errors   - Insert collides on a unique field
  5. Storage errors     - Durable-store failures; the enclosing atomic
                          unit is fully rolled back, so the whole
                          operation is safe to retry from the top

USAGE:
  if ledger.IsNotFound(err) { ... }

  var cv *ledger.ConstraintViolationError
  if errors.As(err, &cv) {
      // cv.BlockingChildren / cv.BlockingTransactions say what blocks
  }

SEE ALSO:
  - mutator.go, removal.go: Produce these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced transaction, account,
	// or user does not exist at mutation time.
	ErrNotFound = errors.New("record not found")

	// ErrConstraint is returned when a deletion is blocked by
	// dependent records (transactions, child accounts).
	ErrConstraint = errors.New("constraint violation")

	// ErrDuplicate is returned when an insert collides with an
	// existing record on a unique field (user email, category code).
	ErrDuplicate = errors.New("duplicate record")

	// ErrStorage is the root of durable-store failures. The enclosing
	// atomic unit never commits partially, so retrying the whole
	// operation is safe.
	ErrStorage = errors.New("storage failure")

	// ErrConflict marks a lock-timeout or serialization conflict.
	// Distinct from other storage errors so callers can decide to retry.
	ErrConflict = errors.New("storage conflict")

	// ErrNoActor is returned when an attributed operation is invoked
	// without an acting user.
	ErrNoActor = errors.New("acting user required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidTransferError reports a transfer whose target is missing or
// equal to its source. Validation should reject these before effect
// calculation; the calculator refuses to produce deltas for them.
type InvalidTransferError struct {
	TransactionID TransactionID
	Reason        string
}

func (e *InvalidTransferError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("invalid transfer %s: %s", e.TransactionID, e.Reason)
	}
	return "invalid transfer: " + e.Reason
}

func (e *InvalidTransferError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Kind string // "transaction", "account", "user", "category"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConstraintViolationError reports which records block an account
// deletion, with enough detail for the caller to act.
type ConstraintViolationError struct {
	AccountID            AccountID
	BlockingTransactions int
	BlockingChildren     []AccountID
}

func (e *ConstraintViolationError) Error() string {
	var parts []string
	if e.BlockingTransactions > 0 {
		parts = append(parts, fmt.Sprintf("%d transactions", e.BlockingTransactions))
	}
	if len(e.BlockingChildren) > 0 {
		ids := make([]string, len(e.BlockingChildren))
		for i, c := range e.BlockingChildren {
			ids[i] = string(c)
		}
		parts = append(parts, "child accounts "+strings.Join(ids, ", "))
	}
	return fmt.Sprintf("account %s cannot be deleted: blocked by %s", e.AccountID, strings.Join(parts, " and "))
}

func (e *ConstraintViolationError) Unwrap() error { return ErrConstraint }

// DuplicateError reports an insert rejected because another record
// already holds the same value on a unique field.
type DuplicateError struct {
	Kind  string // "user", "category", "asset type"
	Field string // "email", "code"
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a %s with this %s already exists", e.Kind, e.Field)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// StorageError wraps a durable-store failure. Conflict marks
// lock-timeout/serialization failures that may succeed on retry.
type StorageError struct {
	Op       string // store operation, e.g. "accounts.adjust"
	Conflict bool
	Err      error
}

func (e *StorageError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("storage conflict during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e.Conflict {
		return ErrConflict
	}
	return ErrStorage
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConstraint returns true if a deletion was blocked by dependents.
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }

// IsDuplicate returns true if an insert collided with an existing
// record on a unique field.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsRetryable returns true if the whole operation might succeed on
// retry. Only conflict-class storage errors qualify; nothing partial
// persists either way.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }
