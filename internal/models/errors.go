package models

import (
	"errors"
	"fmt"
)

// Sentinel domain errors. Handlers discriminate with errors.Is/As to pick
// the HTTP status; services return these before any mutation happens.
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrAlreadyCancelled       = errors.New("order already cancelled")
	ErrCancellationNotAllowed = errors.New("order can no longer be cancelled")
	ErrSignatureVerification  = errors.New("webhook signature verification failed")
	ErrUnknownEventType       = errors.New("unknown payment event type")
	ErrNotOrderOwner          = errors.New("order belongs to a different user")
)

// ValidationError is a malformed request caught before any transaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProductUnavailableError means a requested product is missing or inactive.
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

// InsufficientStockError names the offending product and the shortfall.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

// ExternalProcessorError wraps a network/timeout/5xx failure from the
// payment processor. Local state is never mutated when one is returned.
type ExternalProcessorError struct {
	Op  string
	Err error
}

func (e *ExternalProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *ExternalProcessorError) Unwrap() error { return e.Err }

// StorageError wraps an infrastructure failure that aborted a transaction.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
