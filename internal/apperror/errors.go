package apperror

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrOffline            = errors.New("terminal is offline")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingContext     = errors.New("missing tenant, location or actor")
	ErrDuplicate          = errors.New("duplicate request within idempotency window")
	ErrSessionAlreadyOpen = errors.New("a cash session is already open for this location")
	ErrSessionNotOpen     = errors.New("cash session is not open")
	ErrForbidden          = errors.New("operation requires a privileged role")
	ErrDrainInProgress    = errors.New("queue drain already in progress")
	ErrBlocked            = errors.New("waiting on an earlier queued write")
)

// ValidationError is a malformed write. Fatal to the call, never retried.
type ValidationError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("validation failed on %s.%s: %s", e.Collection, e.Field, e.Reason)
}

func NewValidation(collection, field, reason string) *ValidationError {
	return &ValidationError{Collection: collection, Field: field, Reason: reason}
}

// InsufficientStockError is returned when the remote adjustment refuses an
// outbound movement that would leave the stock level negative.
type InsufficientStockError struct {
	ItemID   string
	ItemName string
	Message  string
}

func (e *InsufficientStockError) Error() string {
	name := e.ItemName
	if name == "" {
		name = e.ItemID
	}
	return fmt.Sprintf("Stock insuficiente para %s: %s", name, e.Message)
}

// NetworkError wraps a remote call that could not reach the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError is a remote call that exceeded its deadline. Treated as failed, not unknown.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// QueueEntryError marks a queued operation that failed replay.
type QueueEntryError struct {
	EntryID string
	Table   string
	Err     error
}

func (e *QueueEntryError) Error() string {
	return fmt.Sprintf("queue entry %s (%s) failed: %v", e.EntryID, e.Table, e.Err)
}

func (e *QueueEntryError) Unwrap() error { return e.Err }

// Classify turns infrastructure failures into NetworkError / TimeoutError and
// leaves everything else untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TimeoutError
	var ne *NetworkError
	if errors.As(err, &te) || errors.As(err, &ne) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &TimeoutError{Op: op, Err: err}
		}
		return &NetworkError{Op: op, Err: err}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return &NetworkError{Op: op, Err: err}
	}
	return err
}

// IsInfrastructure reports whether err came from the transport rather than the business rules.
func IsInfrastructure(err error) bool {
	var te *TimeoutError
	var ne *NetworkError
	return errors.As(err, &te) || errors.As(err, &ne)
}
