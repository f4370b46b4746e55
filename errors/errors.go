/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when an entity that must exist is missing
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when a uniqueness constraint rejects a write
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when the backend rejects a conditional write
	ErrConditionFailed = errors.New("condition check failed")

	// ErrUnavailable is returned when the storage backend cannot be reached
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrWriteFailed is returned when a write fails for any reason other than a conflict
	ErrWriteFailed = errors.New("write operation failed")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError is the Conflict kind: a create or update collided with
// an existing id or email.
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// UnavailableError wraps a transport, throttling or service-side failure.
type UnavailableError struct {
	Operation string
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Operation, e.Err)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// WriteError is the generic failure surfaced by write paths. The cause stays
// reachable through errors.Is / errors.As.
type WriteError struct {
	Operation string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewUnavailableError creates a new UnavailableError
func NewUnavailableError(operation string, err error) error {
	return &UnavailableError{Operation: operation, Err: err}
}

// NewWriteError creates a new WriteError
func NewWriteError(operation string, err error) error {
	return &WriteError{Operation: operation, Err: err}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict is an alias of IsAlreadyExists named after the error kind
// callers usually branch on.
func IsConflict(err error) bool {
	return IsAlreadyExists(err)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsUnavailable checks if an error is a backend availability error
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsWriteFailed checks if an error is a generic write failure
func IsWriteFailed(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}
